package starter

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Severity tags a Notification. This package only ever emits
// SeverityError, the other levels exist for notifiers shared with
// the host
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

const notificationTitle = "EnginePlugin"

// Notification is a human readable message for the operator
type Notification struct {
	Title    string
	Text     string
	Severity Severity
	Kind     FailureKind
}

// Notifier surfaces failures to the operator.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a plain function to the Notifier interface
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

// NopNotifier drops every notification
func NopNotifier() Notifier {
	return nopNotifier{}
}

type writerNotifier struct {
	mu     sync.Mutex
	w      io.Writer
	logger *slog.Logger
}

// NewWriterNotifier creates a Notifier that writes each notification
// as a block of text to w. Write errors are dropped
func NewWriterNotifier(w io.Writer) Notifier {
	return &writerNotifier{w: w}
}

// NewWriterNotifierWithLogger is like NewWriterNotifier, but reports
// notifications that could not be written to logger
func NewWriterNotifierWithLogger(w io.Writer, logger *slog.Logger) Notifier {
	return &writerNotifier{w: w, logger: logger}
}

func (n *writerNotifier) Notify(msg Notification) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[%s] %s: ", msg.Severity, msg.Title)
	buf.WriteString(msg.Text)
	if b := buf.Bytes(); b[len(b)-1] != '\n' {
		buf.WriteByte('\n')
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := buf.WriteTo(n.w); err != nil && n.logger != nil {
		n.logger.Warn("failed to write notification", "title", msg.Title, "kind", msg.Kind.String(), "error", err)
	}
}
