// Package cli implements the pillbox command line: inspecting, verifying
// and converting fixture directories.
//
// Every command resolves settings the same way the test wrappers do
// (defaults, --config file, PILLBOX_* variables) and then applies its
// own flags on top.
package cli
