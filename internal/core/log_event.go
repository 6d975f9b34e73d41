package core

// LogEvent records a transition-level event worth surfacing to an observer
// (a dropped signal, a coerced decision) without requiring transition.Apply
// to perform I/O itself. The scheduler forwards these to its EventSink.
type LogEvent struct {
	Level   LogLevel
	Message string
	Fields  map[string]any
}

// LogLevel mirrors the handful of levels the core ever emits; it is kept
// separate from log/slog.Level so the pure transition package has no
// logging dependency.
type LogLevel string

const (
	LogLevelWarn LogLevel = "warn"
	LogLevelInfo LogLevel = "info"
)
