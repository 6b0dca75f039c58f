package connection

import (
	"time"

	"go.uber.org/zap"
)

// EventKind classifies how a request settled.
type EventKind int

const (
	EventComplete EventKind = iota
	EventFailure
	EventAbort
)

func (k EventKind) String() string {
	switch k {
	case EventComplete:
		return "complete"
	case EventFailure:
		return "failure"
	case EventAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// Event is published once per executed request.
type Event struct {
	Kind       EventKind
	RequestID  string
	Method     string
	URL        string
	StatusCode int
	Duration   time.Duration
	Result     []byte
	Err        error
}

// Notifier receives request events. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// MultiNotifier fans events out to every member.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(e Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(e)
		}
	}
}

type logNotifier struct {
	logger *zap.Logger
}

// LogNotifier logs completions at debug, aborts at info and failures at warn.
func LogNotifier(logger *zap.Logger) Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Notify(e Event) {
	fields := []zap.Field{
		zap.String("request_id", e.RequestID),
		zap.String("method", e.Method),
		zap.String("url", e.URL),
		zap.Duration("duration", e.Duration),
	}
	switch e.Kind {
	case EventComplete:
		n.logger.Debug("request complete", append(fields, zap.Int("status", e.StatusCode))...)
	case EventAbort:
		n.logger.Info("request aborted", fields...)
	default:
		n.logger.Warn("request failed", append(fields, zap.Int("status", e.StatusCode), zap.Error(e.Err))...)
	}
}
