package internal

import (
	"go.uber.org/zap"
)

var nop = zap.NewNop()

// Logger returns log, or a no-op logger if log is nil.
func Logger(log *zap.Logger) *zap.Logger {
	if log == nil {
		return nop
	}
	return log
}
