package results

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// Options holds the configuration options for connecting to the remote aggregation server
type Options struct {
	address  string
	username string
	password string
}

// Bind adds flags for the options
func (o *Options) Bind(flag *flag.FlagSet) {
	flag.StringVar(&o.address, "report-address", "", "Address of the aggregate reporting server. Reporting is disabled when unset.")
	flag.StringVar(&o.username, "report-username", "", "Username for the aggregate reporting server.")
	flag.StringVar(&o.password, "report-password-file", "", "File holding the password for the aggregate reporting server.")
}

// Validate ensures that options are set correctly
func (o *Options) Validate() error {
	numSet := 0
	for _, field := range []string{o.username, o.password} {
		if field != "" {
			numSet = numSet + 1
		}
	}

	if numSet != 0 && numSet != 2 {
		return errors.New("--report-{username|password-file} must be set together or not at all")
	}
	return nil
}

// Subject identifies what a report is about.
type Subject struct {
	Suite    string
	Platform string
	Build    string
	RunID    string
}

// Reporter returns a reporter for the subject, or one that does nothing when
// no aggregation server is configured.
func (o *Options) Reporter(subject Subject) (Reporter, error) {
	if o.address == "" {
		return &noopReporter{}, nil
	}
	var password string
	if o.password != "" {
		raw, err := os.ReadFile(o.password)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %q: %w", o.password, err)
		}
		password = strings.TrimSpace(string(raw))
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = time.Second
	client.Logger = nil
	return &reporter{
		subject:  subject,
		address:  o.address,
		client:   client,
		username: o.username,
		password: password,
	}, nil
}

// Request holds the data used to report a result to an aggregation server
type Request struct {
	// Suite is the name of the suite for which a result is being reported
	Suite string `json:"suite"`
	// Platform is the platform the suite ran on
	Platform string `json:"platform"`
	// Build is the product build the suite qualified
	Build string `json:"build"`
	// RunID identifies the run
	RunID string `json:"run_id"`
	// State is "succeeded" or "failed"
	State string `json:"state"`
	// Reason is a colon-delimited list of reasons for failure
	Reason string `json:"reason"`
}

const (
	StateSucceeded string = "succeeded"
	StateFailed    string = "failed"
)

type Reporter interface {
	// Report sends a report for this error to an aggregation server.
	// This action is best-effort and errors are logged but not exposed.
	// Err may be nil in which case a success is reported.
	Report(err error)
}

type noopReporter struct{}

func (r *noopReporter) Report(err error) {}

type reporter struct {
	client             *retryablehttp.Client
	username, password string
	address            string

	subject Subject
}

func (r *reporter) Report(err error) {
	state := StateSucceeded
	if err != nil {
		state = StateFailed
	}
	request := Request{
		Suite:    r.subject.Suite,
		Platform: r.subject.Platform,
		Build:    r.subject.Build,
		RunID:    r.subject.RunID,
		State:    state,
		Reason:   FullReason(err),
	}
	data, err := json.Marshal(request)
	if err != nil {
		logrus.Tracef("could not marshal request: %v", err)
		return
	}
	logrus.Infof("Reporting suite state %q with reason %q", request.State, request.Reason)
	req, err := retryablehttp.NewRequest(http.MethodPost, fmt.Sprintf("%s/result", r.address), bytes.NewReader(data))
	if err != nil {
		logrus.Tracef("could not create report request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if r.username != "" {
		req.SetBasicAuth(r.username, r.password)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		logrus.Tracef("could not send report request: %v", err)
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Tracef("could not close report response: %v", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		logrus.Tracef("response for report was not 200: %s", string(body))
	}
}
