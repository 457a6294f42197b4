// README: Process-wide zap logger.
package logger

import "go.uber.org/zap"

// Log is a no-op until Initialize is called, so package code can always log.
var Log = zap.NewNop()

// Initialize builds a production logger at the given level and replaces Log.
func Initialize(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = l
	return nil
}
