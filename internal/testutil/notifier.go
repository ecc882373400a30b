package testutil

import (
	"sync"

	"integrity-go/internal/integrity"
)

// Alert is one notification captured by RecordingNotifier.
type Alert struct {
	Severity integrity.Severity
	Message  string
}

// RecordingNotifier captures alerts in delivery order. Safe for concurrent use.
type RecordingNotifier struct {
	mu     sync.Mutex
	alerts []Alert
	// Err, when set, is returned from every Notify after recording.
	Err error
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) Notify(severity integrity.Severity, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, Alert{Severity: severity, Message: message})
	return n.Err
}

// Alerts returns a copy of everything recorded so far.
func (n *RecordingNotifier) Alerts() []Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Alert(nil), n.alerts...)
}

// Messages returns the recorded messages.
func (n *RecordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	msgs := make([]string, len(n.alerts))
	for i, a := range n.alerts {
		msgs[i] = a.Message
	}
	return msgs
}

// Reset forgets recorded alerts.
func (n *RecordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = nil
}

var _ integrity.Notifier = (*RecordingNotifier)(nil)
