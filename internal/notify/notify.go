// Package notify implements the email alerting collaborator: on process
// failure, an alert naming the process, application, batch, host, and
// log path, with the process log attached.
package notify

import (
	"github.com/koyomi-batch/koyomi/internal/koyomilog"
)

// Alert carries everything an alert needs to render its subject, body,
// and attachment.
type Alert struct {
	ApplicationName string
	BatchName       string
	BatchNumber     string
	ProcessName     string
	User            string
	Host            string
	JobPath         string
	LogPath         string
}

// Notifier abstracts alert delivery as a notification port: a
// logging-only default plus a real implementation.
type Notifier interface {
	NotifyFailure(a Alert)
}

// DummyNotifier only logs — the default when SendFailureMessage=N or no
// AlertEMailList is configured.
type DummyNotifier struct{}

// NewDummyNotifier creates a logging-only Notifier.
func NewDummyNotifier() Notifier {
	koyomilog.Infof("notify: alert dispatch disabled, using dummy notifier")
	return &DummyNotifier{}
}

func (n *DummyNotifier) NotifyFailure(a Alert) {
	koyomilog.Warnf("notify: process %q failed (batch %s/%s); alerting disabled",
		a.ProcessName, a.ApplicationName, a.BatchNumber)
}

var _ Notifier = (*DummyNotifier)(nil)
