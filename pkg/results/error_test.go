package results

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/red-hat-storage/cephci-tools/pkg/api"
)

func TestError(t *testing.T) {
	base := errors.New("failure")
	if actual, expected := FullReason(base), "unknown"; actual != expected {
		t.Errorf("got incorrect reason for base error; expected %s, got %v", expected, actual)
	}
	initial := ForReason("oops").WithError(base).Errorf("couldn't do it")
	if actual, expected := FullReason(initial), "oops"; actual != expected {
		t.Errorf("got incorrect reason for initial error; expected %s, got %v", expected, actual)
	}
	second := ForReason("whoopsie").WithError(initial).Errorf("couldn't do it")
	if actual, expected := FullReason(second), "whoopsie:oops"; actual != expected {
		t.Errorf("got incorrect reason for second error; expected %s, got %v", expected, actual)
	}
	third := ForReason("argh").WithError(second).Errorf("couldn't do it")
	if actual, expected := FullReason(third), "argh:whoopsie:oops"; actual != expected {
		t.Errorf("got incorrect reason for third error; expected %s, got %v", expected, actual)
	}

	simple := ForReason("simple").ForError(base)
	if actual, expected := FullReason(simple), "simple"; actual != expected {
		t.Errorf("got incorrect reason for simple error; expected %s, got %v", expected, actual)
	}

	none := ForReason("fake").ForError(nil)
	if none != nil {
		t.Errorf("expected a wrapped nil error to be nil, got %v", none)
	}

	alsoNone := DefaultReason(nil)
	if alsoNone != nil {
		t.Errorf("expected a wrapped nil error to be nil, got %v", alsoNone)
	}
	withDefault := DefaultReason(base)
	if actual, expected := FullReason(withDefault), "unknown"; actual != expected {
		t.Errorf("got incorrect reason for defaulted error; expected %s, got %v", expected, actual)
	}
	unchanged := DefaultReason(initial)
	if actual, expected := FullReason(unchanged), "oops"; actual != expected {
		t.Errorf("got incorrect reason for unchanged error; expected %s, got %v", expected, actual)
	}
}

func TestClassify(t *testing.T) {
	base := errors.New("exit status 1")
	for _, tc := range []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil stays nil"},
		{name: "plain error", err: base, expected: "unknown"},
		{name: "not found", err: &api.NotFoundError{Name: "Tier-0 Fs"}, expected: "suite_not_found"},
		{name: "wrapped ambiguous name", err: fmt.Errorf("resolving: %w", &api.AmbiguousNameError{Name: "Tier-0 Fs", Indices: []int{0, 3}}), expected: "ambiguous_suite_name"},
		{name: "step failure", err: &api.StepFailure{Step: "install", Module: "install_prereq.py", Err: base}, expected: "step_failed"},
		{name: "timeout", err: &api.TimeoutFailure{Operation: "install", Err: context.DeadlineExceeded}, expected: "step_timed_out"},
		{name: "bare deadline", err: fmt.Errorf("waiting: %w", context.DeadlineExceeded), expected: "step_timed_out"},
		{name: "update failure", err: &api.UpdateFailure{Attempts: 4, Err: base}, expected: "update_failed"},
		{name: "existing reason is kept", err: ForReason(ReasonPreparing).ForError(&api.NotFoundError{Name: "x"}), expected: "preparing"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			classified := Classify(tc.err)
			if tc.err == nil {
				if classified != nil {
					t.Fatalf("expected nil, got %v", classified)
				}
				return
			}
			if actual := FullReason(classified); actual != tc.expected {
				t.Errorf("expected reason %q, got %q", tc.expected, actual)
			}
			if classified.Error() != tc.err.Error() {
				t.Errorf("expected the message to be kept, got %q", classified.Error())
			}
		})
	}
}
