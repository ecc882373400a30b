package integrity

import "fmt"

// Severity grades an alert.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Notifier receives classification events worth escalating.
// How they are delivered is up to the implementation.
type Notifier interface {
	Notify(severity Severity, message string) error
}

// NopNotifier drops every alert.
type NopNotifier struct{}

func (NopNotifier) Notify(Severity, string) error { return nil }

// CorruptionMessage is the alert text for a digest mismatch.
func CorruptionMessage(path string) string {
	return "file corrupted: " + path
}

// MissingMessage is the alert text for a tracked file absent from a scan.
func MissingMessage(path string) string {
	return "missing file: " + path
}
