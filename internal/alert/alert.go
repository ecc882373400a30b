// Package alert delivers engine alerts to operators.
package alert

import (
	"errors"
	"fmt"
	"strings"

	"integrity-go/internal/integrity"
)

// LogNotifier writes every alert to the application log.
type LogNotifier struct {
	logger integrity.Logger
}

// NewLogNotifier creates a notifier that logs through logger.
func NewLogNotifier(logger integrity.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(severity integrity.Severity, message string) error {
	switch severity {
	case integrity.SeverityCritical:
		n.logger.Error("alert", "severity", severity.String(), "message", message)
	case integrity.SeverityWarning:
		n.logger.Warn("alert", "severity", severity.String(), "message", message)
	default:
		n.logger.Info("alert", "severity", severity.String(), "message", message)
	}
	return nil
}

// MultiNotifier fans an alert out to every sink. A failing sink does not
// stop delivery to the rest.
type MultiNotifier struct {
	sinks []integrity.Notifier
}

// NewMultiNotifier combines sinks.
func NewMultiNotifier(sinks ...integrity.Notifier) *MultiNotifier {
	return &MultiNotifier{sinks: sinks}
}

func (n *MultiNotifier) Notify(severity integrity.Severity, message string) error {
	var errs []error
	for _, s := range n.sinks {
		if err := s.Notify(severity, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ThresholdNotifier forwards alerts at or above a minimum severity.
type ThresholdNotifier struct {
	threshold integrity.Severity
	next      integrity.Notifier
}

// NewThresholdNotifier wraps next so that alerts below threshold are dropped.
func NewThresholdNotifier(threshold integrity.Severity, next integrity.Notifier) *ThresholdNotifier {
	return &ThresholdNotifier{threshold: threshold, next: next}
}

func (n *ThresholdNotifier) Notify(severity integrity.Severity, message string) error {
	if severity < n.threshold {
		return nil
	}
	return n.next.Notify(severity, message)
}

// ParseSeverity maps a config value to a Severity. Empty means info.
func ParseSeverity(s string) (integrity.Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return integrity.SeverityInfo, nil
	case "warning", "warn":
		return integrity.SeverityWarning, nil
	case "critical":
		return integrity.SeverityCritical, nil
	default:
		return 0, fmt.Errorf("unknown severity: %q", s)
	}
}

// Compile-time checks that the sinks implement integrity.Notifier
var (
	_ integrity.Notifier = (*LogNotifier)(nil)
	_ integrity.Notifier = (*MultiNotifier)(nil)
	_ integrity.Notifier = (*ThresholdNotifier)(nil)
)
