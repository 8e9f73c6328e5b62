package notification

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Sender delivers composed emails. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(messages ...*gomail.Message) error
}

// EmailNotifier mails the message from a fixed sender to fixed recipients.
type EmailNotifier struct {
	sender     Sender
	from       string
	recipients []string
	logger     *logrus.Entry
}

func NewEmailNotifier(sender Sender, from string, recipients []string, logger *logrus.Entry) *EmailNotifier {
	return &EmailNotifier{sender: sender, from: from, recipients: recipients, logger: logger}
}

func (n *EmailNotifier) Notify(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mail := gomail.NewMessage()
	mail.SetHeader("From", n.from)
	mail.SetHeader("To", n.recipients...)
	mail.SetHeader("Subject", message.Subject())
	mail.SetBody("text/plain", message.Body())
	if err := n.sender.DialAndSend(mail); err != nil {
		return fmt.Errorf("failed to send email to %v: %w", n.recipients, err)
	}
	n.logger.WithField("recipients", n.recipients).Info("Sent failure email.")
	return nil
}
