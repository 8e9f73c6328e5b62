package notification

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
	"sigs.k8s.io/prow/pkg/config/secret"
	"sigs.k8s.io/prow/pkg/flagutil"
)

// Options configure the channels failures are announced on. Channels that
// are not configured are left out.
type Options struct {
	smtpHost         string
	smtpPort         int
	smtpUsername     string
	smtpPasswordFile string
	from             string
	to               flagutil.Strings

	slackWebhookFile      string
	googleChatWebhookFile string
}

func (o *Options) Bind(fs *flag.FlagSet) {
	fs.StringVar(&o.smtpHost, "smtp-host", "", "SMTP server used to send failure emails. Email is disabled when unset.")
	fs.IntVar(&o.smtpPort, "smtp-port", 25, "Port of the SMTP server.")
	fs.StringVar(&o.smtpUsername, "smtp-username", "", "Username for the SMTP server.")
	fs.StringVar(&o.smtpPasswordFile, "smtp-password-file", "", "File holding the password for the SMTP server.")
	fs.StringVar(&o.from, "mail-from", "", "Sender of failure emails.")
	fs.Var(&o.to, "mail-to", "Recipient of failure emails. Can be passed multiple times.")
	fs.StringVar(&o.slackWebhookFile, "slack-webhook-file", "", "File holding the Slack incoming webhook URL.")
	fs.StringVar(&o.googleChatWebhookFile, "google-chat-webhook-file", "", "File holding the Google Chat space webhook URL.")
}

func (o *Options) Validate() error {
	var errs []string
	if o.smtpHost != "" {
		if o.from == "" {
			errs = append(errs, "--mail-from is required with --smtp-host")
		}
		if len(o.to.Strings()) == 0 {
			errs = append(errs, "--mail-to is required with --smtp-host")
		}
		if o.smtpPort <= 0 {
			errs = append(errs, fmt.Sprintf("--smtp-port must be positive, got %d", o.smtpPort))
		}
	} else if o.from != "" || len(o.to.Strings()) != 0 {
		errs = append(errs, "--mail-from and --mail-to require --smtp-host")
	}
	if (o.smtpUsername == "") != (o.smtpPasswordFile == "") {
		errs = append(errs, "--smtp-{username|password-file} must be set together or not at all")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, ", "))
	}
	return nil
}

func (o *Options) secretPaths() []string {
	var paths []string
	for _, path := range []string{o.smtpPasswordFile, o.slackWebhookFile, o.googleChatWebhookFile} {
		if path != "" {
			paths = append(paths, path)
		}
	}
	return paths
}

// Notifier loads the configured secrets and returns a notifier sending to
// every configured channel.
func (o *Options) Notifier(logger *logrus.Entry) (Notifier, error) {
	if paths := o.secretPaths(); len(paths) > 0 {
		if err := secret.Add(paths...); err != nil {
			return nil, fmt.Errorf("failed to load notification secrets: %w", err)
		}
	}
	var notifiers Multi
	if o.smtpHost != "" {
		var password string
		if o.smtpPasswordFile != "" {
			password = strings.TrimSpace(string(secret.GetSecret(o.smtpPasswordFile)))
		}
		dialer := gomail.NewDialer(o.smtpHost, o.smtpPort, o.smtpUsername, password)
		notifiers = append(notifiers, NewEmailNotifier(dialer, o.from, o.to.Strings(), logger.WithField("channel", "email")))
	}
	if o.slackWebhookFile != "" {
		webhook := strings.TrimSpace(string(secret.GetSecret(o.slackWebhookFile)))
		notifiers = append(notifiers, NewSlackNotifier(webhook, logger.WithField("channel", "slack")))
	}
	if o.googleChatWebhookFile != "" {
		webhook := strings.TrimSpace(string(secret.GetSecret(o.googleChatWebhookFile)))
		notifiers = append(notifiers, NewGoogleChatNotifier(webhook, logger.WithField("channel", "google-chat")))
	}
	if len(notifiers) == 0 {
		logger.Warn("No notification channel is configured, failures will only be logged.")
		return Noop{}, nil
	}
	return notifiers, nil
}
