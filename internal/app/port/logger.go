package port

// Logger is the structured logger every component receives. Args are slog-style key/value pairs.
type Logger interface {
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	// With returns a child logger that always carries args.
	With(args ...any) Logger
}
