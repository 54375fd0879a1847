package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/pillbox/internal/storage"
	"github.com/getmockd/pillbox/pkg/cli/internal/output"
	"github.com/getmockd/pillbox/pkg/codec"
	"github.com/getmockd/pillbox/pkg/config"
	"github.com/getmockd/pillbox/pkg/fixture"
	"github.com/getmockd/pillbox/pkg/logging"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configFile string
	dir        string
	store      string
	format     string
	prefix     string
	jsonOutput bool
}

// NewRootCommand builds the pillbox command tree.
func NewRootCommand() *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:   "pillbox",
		Short: "pillbox inspects and maintains recorded API fixtures",
		Long: `pillbox records API responses as fixture files and replays them in tests.

This command works on fixture directories: list what was recorded, show a
single fixture, verify that every file decodes, or convert between formats.

Settings come from flags, PILLBOX_* environment variables, or a YAML file
passed with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.configFile, "config", "", "Path to a pillbox YAML config file")
	flags.StringVarP(&g.dir, "dir", "d", "", "Fixture directory (default from PILLBOX_DIR)")
	flags.StringVar(&g.store, "store", "", "Fixture store: fs, memory or s3")
	flags.StringVarP(&g.format, "format", "f", "", "Fixture format: json, yaml or gob")
	flags.StringVar(&g.prefix, "prefix", "", "Fixture name prefix")
	flags.BoolVar(&g.jsonOutput, "json", false, "Output command results in JSON format")

	root.AddCommand(
		newListCmd(&g),
		newShowCmd(&g),
		newVerifyCmd(&g),
		newConvertCmd(&g),
		newVersionCmd(&g),
	)
	return root
}

// Execute runs the root command with os.Args and exits on failure.
// This is called by main.main().
func Execute() {
	if code := Run(); code != 0 {
		os.Exit(code)
	}
}

// Run runs the root command with os.Args and returns the exit code.
func Run() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// resolve loads configuration and applies the flags that were set.
func (g *globalFlags) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return nil, err
	}
	changed := cmd.Flags().Changed
	if changed("dir") {
		cfg.Dir = g.dir
	}
	if changed("store") {
		cfg.Store.Driver = storage.Driver(g.store)
	}
	if changed("format") {
		cfg.Format = g.format
	}
	if changed("prefix") {
		cfg.Prefix = g.prefix
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore resolves settings and opens the configured fixture store.
func (g *globalFlags) openStore(cmd *cobra.Command) (*fixture.Store, *config.Config, error) {
	cfg, err := g.resolve(cmd)
	if err != nil {
		return nil, nil, err
	}
	bucket, err := storage.Open(cmd.Context(), cfg.StorageConfig())
	if err != nil {
		return nil, nil, err
	}
	format, err := codec.Lookup(cfg.Format)
	if err != nil {
		return nil, nil, err
	}
	store := fixture.NewStore(bucket,
		fixture.WithFormat(format),
		fixture.WithPrefix(cfg.Prefix),
		fixture.WithLogger(logging.Component(cfg.Logger(cmd.ErrOrStderr()), "cli")),
	)
	return store, cfg, nil
}

// printResult writes data as JSON when --json is set and calls textFn
// otherwise.
func (g *globalFlags) printResult(w io.Writer, data any, textFn func()) error {
	if g.jsonOutput {
		return output.JSON(w, data)
	}
	textFn()
	return nil
}
