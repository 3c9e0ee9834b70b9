package badger

import (
	"fmt"
	"log/slog"
	"strings"
)

// SlogAdapter adapts slog.Logger to badger's Logger interface.
// Badger terminates its messages with a newline; it is trimmed.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new slog adapter.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger.With("component", "badger")}
}

func (l *SlogAdapter) Errorf(format string, v ...any) {
	l.logger.Error(message(format, v))
}

func (l *SlogAdapter) Warningf(format string, v ...any) {
	l.logger.Warn(message(format, v))
}

func (l *SlogAdapter) Infof(format string, v ...any) {
	l.logger.Info(message(format, v))
}

func (l *SlogAdapter) Debugf(format string, v ...any) {
	l.logger.Debug(message(format, v))
}

func message(format string, v []any) string {
	return strings.TrimRight(fmt.Sprintf(format, v...), "\n")
}
