package log

// Logger receives protocol capture events. Connections call Log inline for
// every line, so implementations must be safe for concurrent use and return
// quickly.
type Logger interface {
	Log(event Event)
}

// NoopLogger drops every event.
type NoopLogger struct{}

func (NoopLogger) Log(Event) {}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(Event)

func (f LoggerFunc) Log(event Event) { f(event) }

// tee delivers each event to every logger in order.
type tee []Logger

func (t tee) Log(event Event) {
	for _, l := range t {
		l.Log(event)
	}
}

// Tee combines loggers into one. Nil entries are dropped; with nothing left
// it returns NoopLogger, and a single logger is returned as is.
func Tee(loggers ...Logger) Logger {
	var t tee
	for _, l := range loggers {
		if l != nil {
			t = append(t, l)
		}
	}
	switch len(t) {
	case 0:
		return NoopLogger{}
	case 1:
		return t[0]
	}
	return t
}
