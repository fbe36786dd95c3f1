package logger

import (
	"log/slog"

	"sakura_marketplace/internal/app/port"
)

// slogAdapter implements port.Logger on top of a slog.Logger.
// A nil inner logger means the package-level logger installed by Init.
type slogAdapter struct {
	inner *slog.Logger
}

// NewSlogAdapter returns a port.Logger writing through the global slog logger.
func NewSlogAdapter() port.Logger {
	return &slogAdapter{}
}

// NewNop returns a port.Logger that discards everything. Used in tests.
func NewNop() port.Logger {
	return &slogAdapter{inner: slog.New(discardHandler{})}
}

func (a *slogAdapter) logger() *slog.Logger {
	if a.inner != nil {
		return a.inner
	}
	ensureInitialized()
	return globalLogger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger().Info(msg, args...) }
func (a *slogAdapter) Debug(msg string, args ...any) { a.logger().Debug(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger().Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger().Error(msg, args...) }

// With returns a child logger carrying args on every record.
func (a *slogAdapter) With(args ...any) port.Logger {
	return &slogAdapter{inner: a.logger().With(args...)}
}
