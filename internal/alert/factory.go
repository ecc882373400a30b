package alert

import (
	"fmt"

	"integrity-go/internal/config"
	"integrity-go/internal/integrity"
)

// NewNotifierFromConfig builds the alert sinks named in config.
// With no sinks configured, alerts still reach the log.
func NewNotifierFromConfig(cfgs []config.AlertConfig, hostID string, logger integrity.Logger) (integrity.Notifier, error) {
	if len(cfgs) == 0 {
		return NewLogNotifier(logger), nil
	}

	sinks := make([]integrity.Notifier, 0, len(cfgs))
	for i, cfg := range cfgs {
		var sink integrity.Notifier
		switch cfg.Type {
		case "log":
			sink = NewLogNotifier(logger)
		case "mail":
			m, err := NewMailNotifier(MailOptions{
				Host:     cfg.MailHost,
				Port:     cfg.MailPort,
				From:     cfg.MailFrom,
				To:       cfg.MailTo,
				Username: cfg.MailUsername,
				Password: cfg.MailPassword,
				HostID:   hostID,
			})
			if err != nil {
				return nil, fmt.Errorf("alerts[%d]: %w", i, err)
			}
			sink = m
		default:
			return nil, fmt.Errorf("alerts[%d]: unknown alert type: %s", i, cfg.Type)
		}

		if cfg.MinSeverity != "" {
			threshold, err := ParseSeverity(cfg.MinSeverity)
			if err != nil {
				return nil, fmt.Errorf("alerts[%d]: %w", i, err)
			}
			sink = NewThresholdNotifier(threshold, sink)
		}
		sinks = append(sinks, sink)
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMultiNotifier(sinks...), nil
}
