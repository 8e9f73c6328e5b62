package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// GoogleChatNotifier posts the message to a Google Chat space webhook.
type GoogleChatNotifier struct {
	webhook string
	client  *retryablehttp.Client
	logger  *logrus.Entry
}

func NewGoogleChatNotifier(webhook string, logger *logrus.Entry) *GoogleChatNotifier {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = adapter{logger: logger}
	return &GoogleChatNotifier{webhook: webhook, client: client, logger: logger}
}

type chatMessage struct {
	Text string `json:"text"`
}

func (n *GoogleChatNotifier) Notify(ctx context.Context, message Message) error {
	body, err := json.Marshal(chatMessage{Text: fmt.Sprintf("*%s*\n%s", message.Subject(), message.Body())})
	if err != nil {
		return fmt.Errorf("could not marshal chat message: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to Google Chat: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var responseBody string
		if data, err := io.ReadAll(resp.Body); err != nil {
			n.logger.WithError(err).Warn("Failed to read response body from Google Chat.")
		} else {
			responseBody = string(data)
		}
		return fmt.Errorf("got unexpected http %d status code from Google Chat: %s", resp.StatusCode, responseBody)
	}
	n.logger.Info("Posted failure to Google Chat.")
	return nil
}

type adapter struct {
	logger *logrus.Entry
}

func (a adapter) format(s string, i ...interface{}) string {
	builder := strings.Builder{}
	builder.WriteString(s)
	for _, x := range i {
		builder.WriteString(" ")
		builder.WriteString(fmt.Sprintf("%v", x))
	}
	return builder.String()
}

func (a adapter) Error(s string, i ...interface{}) {
	a.logger.Error(a.format(s, i...))
}

func (a adapter) Info(s string, i ...interface{}) {
	a.logger.Debug(a.format(s, i...))
}

func (a adapter) Debug(s string, i ...interface{}) {
	a.logger.Debug(a.format(s, i...))
}

func (a adapter) Warn(s string, i ...interface{}) {
	a.logger.Warn(a.format(s, i...))
}

var _ retryablehttp.LeveledLogger = adapter{}
