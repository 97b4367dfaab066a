package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger at debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", shortID(event.ConnectionID)),
		slog.String("direction", event.Direction.String()),
		slog.String("category", event.Category.String()),
	}

	if event.Label != "" {
		attrs = append(attrs, slog.String("label", event.Label))
	}
	if event.Scenario != "" {
		attrs = append(attrs, slog.String("scenario", event.Scenario))
	}

	switch event.Category {
	case CategoryLine, CategoryPartial:
		attrs = append(attrs,
			slog.String("line", event.Line),
			slog.Int("size", event.Size),
		)
	case CategoryState:
		attrs = append(attrs, slog.String("state", event.Line))
		if event.RemoteAddr != "" {
			attrs = append(attrs, slog.String("remote", event.RemoteAddr))
		}
	case CategoryError:
		attrs = append(attrs, slog.String("error", event.Error))
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var _ Logger = (*SlogAdapter)(nil)
