// Package config resolves pillbox settings from defaults, an optional YAML
// file and PILLBOX_* environment variables, in that order of precedence.
//
// A resolved Config builds the pieces a test wrapper or the CLI needs:
//
//	cfg, err := config.Load("pillbox.yaml")
//	if err != nil {
//	    return err
//	}
//	ctl, err := cfg.NewController(ctx, recorder.WithLogger(cfg.Logger(os.Stderr)))
//
// Every value records where it came from in Config.Sources, keyed by its
// YAML name.
package config
