package notification

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

const failureColor = "danger"

// SlackNotifier posts the message to a Slack incoming webhook.
type SlackNotifier struct {
	webhook string
	logger  *logrus.Entry
}

func NewSlackNotifier(webhook string, logger *logrus.Entry) *SlackNotifier {
	return &SlackNotifier{webhook: webhook, logger: logger}
}

func slackMessage(message Message) *slack.WebhookMessage {
	fields := []slack.AttachmentField{
		{Title: "Job", Value: message.job(), Short: true},
		{Title: "Build", Value: message.BuildNumber, Short: true},
	}
	if message.Release != "" {
		fields = append(fields, slack.AttachmentField{Title: "Release", Value: message.Release, Short: true})
	}
	if message.Reason != "" {
		fields = append(fields, slack.AttachmentField{Title: "Reason", Value: message.Reason, Short: true})
	}
	return &slack.WebhookMessage{
		Text: message.Subject(),
		Attachments: []slack.Attachment{{
			Color:     failureColor,
			Title:     "Build log",
			TitleLink: message.BuildURL,
			Text:      message.Detail,
			Fields:    fields,
		}},
	}
}

func (n *SlackNotifier) Notify(ctx context.Context, message Message) error {
	if err := slack.PostWebhookContext(ctx, n.webhook, slackMessage(message)); err != nil {
		return fmt.Errorf("failed to post to Slack: %w", err)
	}
	n.logger.Info("Posted failure to Slack.")
	return nil
}
