// Package notification delivers the failure notice of a pipeline run to the
// people watching it.
package notification

import (
	"context"
	"fmt"
	"strings"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// Message describes a failed pipeline run.
type Message struct {
	JobName     string
	BuildNumber string
	BuildURL    string
	Release     string
	Phase       string
	// Reason is the reason chain of the failure, Detail its message.
	Reason string
	Detail string
}

// Subject is a one-line summary of the failure.
func (m Message) Subject() string {
	return fmt.Sprintf("%s build #%s failed", m.job(), m.BuildNumber)
}

// Body renders every field of the message as plain text.
func (m Message) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job: %s\n", m.job())
	fmt.Fprintf(&b, "Build number: %s\n", m.BuildNumber)
	if m.BuildURL != "" {
		fmt.Fprintf(&b, "Build URL: %s\n", m.BuildURL)
	}
	if m.Release != "" {
		fmt.Fprintf(&b, "Release: %s\n", m.Release)
	}
	if m.Phase != "" {
		fmt.Fprintf(&b, "Phase: %s\n", m.Phase)
	}
	if m.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", m.Reason)
	}
	if m.Detail != "" {
		fmt.Fprintf(&b, "\n%s\n", m.Detail)
	}
	return b.String()
}

func (m Message) job() string {
	if m.JobName == "" {
		return "<unknown job>"
	}
	return m.JobName
}

// Notifier sends a message to a single channel.
type Notifier interface {
	Notify(ctx context.Context, message Message) error
}

// Multi sends the message through every notifier, even when some fail.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, message Message) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return utilerrors.NewAggregate(errs)
}

// Noop drops every message.
type Noop struct{}

func (Noop) Notify(context.Context, Message) error { return nil }
