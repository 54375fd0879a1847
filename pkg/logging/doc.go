// Package logging configures the slog loggers used across pillbox.
//
// Components accept a *slog.Logger through an option and fall back to
// Nop() when none is given, so library users see no output unless they
// opt in:
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.ParseLevel(os.Getenv("PILLBOX_LOG_LEVEL")),
//	    Format: logging.FormatText,
//	})
//	ctl := recorder.New(dir, recorder.WithLogger(logger))
//
// Loggers handed to a component are tagged with a "component" attribute
// via Component.
package logging
