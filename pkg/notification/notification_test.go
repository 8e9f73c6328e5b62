package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
	"gopkg.in/gomail.v2"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/red-hat-storage/cephci-tools/pkg/testhelper"
)

func failedBuild() Message {
	return Message{
		JobName:     "rhceph-5-update-release",
		BuildNumber: "42",
		BuildURL:    "https://jenkins.example.com/job/rhceph-5-update-release/42/",
		Release:     "RHCEPH-5.3",
		Phase:       "Failed",
		Reason:      "preparing:preparation_timed_out",
		Detail:      "preparation did not finish within 5m0s",
	}
}

func TestMessage(t *testing.T) {
	message := failedBuild()
	testhelper.Diff(t, "subject", "rhceph-5-update-release build #42 failed", message.Subject())
	testhelper.Diff(t, "body", `Job: rhceph-5-update-release
Build number: 42
Build URL: https://jenkins.example.com/job/rhceph-5-update-release/42/
Release: RHCEPH-5.3
Phase: Failed
Reason: preparing:preparation_timed_out

preparation did not finish within 5m0s
`, message.Body())

	testhelper.Diff(t, "bare body", "Job: <unknown job>\nBuild number: \n", Message{}.Body())
}

type recordingNotifier struct {
	received []Message
	err      error
}

func (r *recordingNotifier) Notify(_ context.Context, message Message) error {
	r.received = append(r.received, message)
	return r.err
}

func TestMulti(t *testing.T) {
	first := &recordingNotifier{err: errors.New("smtp unavailable")}
	second := &recordingNotifier{}
	third := &recordingNotifier{err: errors.New("webhook gone")}

	err := Multi{first, second, third}.Notify(context.Background(), failedBuild())
	testhelper.Diff(t, "error", utilerrors.NewAggregate([]error{errors.New("smtp unavailable"), errors.New("webhook gone")}), err, testhelper.EquateErrorMessage)
	for i, notifier := range []*recordingNotifier{first, second, third} {
		if len(notifier.received) != 1 {
			t.Errorf("notifier %d: expected one message, got %d", i, len(notifier.received))
		}
	}

	if err := (Multi{second}).Notify(context.Background(), failedBuild()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (Multi{}).Notify(context.Background(), failedBuild()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(messages ...*gomail.Message) error {
	f.sent = append(f.sent, messages...)
	return f.err
}

func TestEmailNotifier(t *testing.T) {
	sender := &fakeSender{}
	notifier := NewEmailNotifier(sender, "cephci@example.com", []string{"ceph-qe@example.com", "ceph-release@example.com"}, logrus.WithField("test", t.Name()))
	if err := notifier.Notify(context.Background(), failedBuild()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	mail := sender.sent[0]
	testhelper.Diff(t, "from", []string{"cephci@example.com"}, mail.GetHeader("From"))
	testhelper.Diff(t, "to", []string{"ceph-qe@example.com", "ceph-release@example.com"}, mail.GetHeader("To"))
	testhelper.Diff(t, "subject", []string{"rhceph-5-update-release build #42 failed"}, mail.GetHeader("Subject"))
	var raw bytes.Buffer
	if _, err := mail.WriteTo(&raw); err != nil {
		t.Fatalf("failed to render email: %v", err)
	}
	if !strings.Contains(raw.String(), "Build number: 42") {
		t.Errorf("email does not carry the build number:\n%s", raw.String())
	}

	sender.err = errors.New("connection refused")
	if err := notifier.Notify(context.Background(), failedBuild()); err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected the delivery error to be returned, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sent := len(sender.sent)
	if err := notifier.Notify(ctx, failedBuild()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected a cancelled notification to fail, got %v", err)
	}
	if len(sender.sent) != sent {
		t.Error("expected no email to be sent after cancellation")
	}
}

func TestSlackNotifier(t *testing.T) {
	var received slack.WebhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode webhook: %v", err)
		}
	}))
	defer server.Close()

	if err := NewSlackNotifier(server.URL, logrus.WithField("test", t.Name())).Notify(context.Background(), failedBuild()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testhelper.Diff(t, "text", "rhceph-5-update-release build #42 failed", received.Text)
	if len(received.Attachments) != 1 {
		t.Fatalf("expected one attachment, got %d", len(received.Attachments))
	}
	attachment := received.Attachments[0]
	testhelper.Diff(t, "link", "https://jenkins.example.com/job/rhceph-5-update-release/42/", attachment.TitleLink)
	var fields []string
	for _, field := range attachment.Fields {
		fields = append(fields, field.Title+"="+field.Value)
	}
	testhelper.Diff(t, "fields", []string{"Job=rhceph-5-update-release", "Build=42", "Release=RHCEPH-5.3", "Reason=preparing:preparation_timed_out"}, fields)
}

func TestSlackNotifierRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer server.Close()
	if err := NewSlackNotifier(server.URL, logrus.WithField("test", t.Name())).Notify(context.Background(), failedBuild()); err == nil {
		t.Error("expected a rejected webhook to fail")
	}
}

func TestGoogleChatNotifier(t *testing.T) {
	var testCases = []struct {
		name          string
		statuses      []int
		expectedCalls int
		expectedErr   bool
	}{
		{
			name:          "delivered",
			statuses:      []int{http.StatusOK},
			expectedCalls: 1,
		},
		{
			name:          "server errors are retried",
			statuses:      []int{http.StatusServiceUnavailable, http.StatusOK},
			expectedCalls: 2,
		},
		{
			name:          "client errors are not retried",
			statuses:      []int{http.StatusBadRequest},
			expectedCalls: 1,
			expectedErr:   true,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var calls int
			var bodies []string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				raw, _ := io.ReadAll(r.Body)
				bodies = append(bodies, string(raw))
				w.WriteHeader(testCase.statuses[calls])
				calls++
			}))
			defer server.Close()

			notifier := NewGoogleChatNotifier(server.URL, logrus.WithField("test", t.Name()))
			notifier.client.RetryWaitMin = time.Millisecond
			notifier.client.RetryWaitMax = time.Millisecond
			err := notifier.Notify(context.Background(), failedBuild())
			if (err != nil) != testCase.expectedErr {
				t.Errorf("expected error %t, got %v", testCase.expectedErr, err)
			}
			if calls != testCase.expectedCalls {
				t.Errorf("expected %d calls, got %d", testCase.expectedCalls, calls)
			}
			var message chatMessage
			if err := json.Unmarshal([]byte(bodies[0]), &message); err != nil {
				t.Fatalf("failed to decode chat message: %v", err)
			}
			if !strings.HasPrefix(message.Text, "*rhceph-5-update-release build #42 failed*\n") {
				t.Errorf("unexpected chat message %q", message.Text)
			}
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	var testCases = []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name: "nothing configured",
		},
		{
			name: "email",
			args: []string{"--smtp-host=smtp.example.com", "--mail-from=cephci@example.com", "--mail-to=ceph-qe@example.com"},
		},
		{
			name:     "email without recipients",
			args:     []string{"--smtp-host=smtp.example.com", "--mail-from=cephci@example.com"},
			expected: "--mail-to is required with --smtp-host",
		},
		{
			name:     "recipients without a server",
			args:     []string{"--mail-to=ceph-qe@example.com"},
			expected: "--mail-from and --mail-to require --smtp-host",
		},
		{
			name:     "username without password",
			args:     []string{"--smtp-host=smtp.example.com", "--mail-from=cephci@example.com", "--mail-to=ceph-qe@example.com", "--smtp-username=cephci"},
			expected: "--smtp-{username|password-file} must be set together or not at all",
		},
		{
			name:     "bad port",
			args:     []string{"--smtp-host=smtp.example.com", "--smtp-port=0", "--mail-from=cephci@example.com", "--mail-to=ceph-qe@example.com"},
			expected: "--smtp-port must be positive, got 0",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			fs := flag.NewFlagSet(testCase.name, flag.ContinueOnError)
			o := &Options{}
			o.Bind(fs)
			if err := fs.Parse(testCase.args); err != nil {
				t.Fatalf("failed to parse flags: %v", err)
			}
			var actual string
			if err := o.Validate(); err != nil {
				actual = err.Error()
			}
			testhelper.Diff(t, "error", testCase.expected, actual)
		})
	}
}

func TestOptionsWithoutChannels(t *testing.T) {
	notifier, err := (&Options{}).Notifier(logrus.WithField("test", t.Name()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := notifier.(Noop); !ok {
		t.Errorf("expected a noop notifier, got %T", notifier)
	}
}
