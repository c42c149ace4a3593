package notify

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"os"
	"strings"

	"github.com/koyomi-batch/koyomi/internal/exception"
	"github.com/koyomi-batch/koyomi/internal/koyomilog"
)

const moduleName = "notify"

// SMTPNotifier sends a real alert email with a fixed subject
// `[ALERT] <process_name> failed`, a fixed body, and the process log as
// an attachment. It uses net/smtp because no ecosystem mail client
// library appears anywhere in the pack to ground an alternative choice,
// and email dispatch is itself named an out-of-scope external
// collaborator — the implementation only needs to exist, not to be
// elaborate.
type SMTPNotifier struct {
	Host      string
	Port      string
	From      string
	Recipients []string
}

// NewSMTPNotifier creates a Notifier that sends mail through host:port.
func NewSMTPNotifier(host, port, from, recipientList string) Notifier {
	var recipients []string
	for _, r := range strings.Split(recipientList, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	return &SMTPNotifier{Host: host, Port: port, From: from, Recipients: recipients}
}

func (n *SMTPNotifier) NotifyFailure(a Alert) {
	if len(n.Recipients) == 0 {
		koyomilog.Warnf("notify: no recipients configured, dropping alert for %q", a.ProcessName)
		return
	}

	msg, err := buildMessage(n.From, n.Recipients, a)
	if err != nil {
		koyomilog.Errorf("notify: failed to build alert email for %q: %v", a.ProcessName, err)
		return
	}

	addr := fmt.Sprintf("%s:%s", n.Host, n.Port)
	if err := smtp.SendMail(addr, nil, n.From, n.Recipients, msg); err != nil {
		koyomilog.Errorf("notify: failed to send alert email for %q: %v", a.ProcessName, err)
	}
}

func buildMessage(from string, to []string, a Alert) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	subject := fmt.Sprintf("[ALERT] %s failed", a.ProcessName)
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", writer.Boundary())

	bodyHeader := textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}}
	bodyPart, err := writer.CreatePart(bodyHeader)
	if err != nil {
		return nil, exception.New(moduleName, "failed to create alert body part", err, false, false)
	}
	body := fmt.Sprintf(
		"Application: %s\nBatch: %s (%s)\nUser: %s\nHost: %s\nJob: %s\nLog: %s\n",
		a.ApplicationName, a.BatchName, a.BatchNumber, a.User, a.Host, a.JobPath, a.LogPath)
	if _, err := bodyPart.Write([]byte(body)); err != nil {
		return nil, exception.New(moduleName, "failed to write alert body", err, false, false)
	}

	if a.LogPath != "" {
		if logBytes, err := os.ReadFile(a.LogPath); err == nil {
			attHeader := textproto.MIMEHeader{
				"Content-Type":              {mime.TypeByExtension(".log")},
				"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", a.ProcessName+".log")},
				"Content-Transfer-Encoding": {"binary"},
			}
			attPart, err := writer.CreatePart(attHeader)
			if err == nil {
				attPart.Write(logBytes)
			}
		} else {
			koyomilog.Debugf("notify: could not attach log %q: %v", a.LogPath, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, exception.New(moduleName, "failed to finalize alert email", err, false, false)
	}
	return buf.Bytes(), nil
}

var _ Notifier = (*SMTPNotifier)(nil)
