// Package pipeline prepares a checkout of the shared pipeline helper and
// runs its update operation for a release, notifying on unexpected failure.
package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

// Phase is the state of a pipeline run.
type Phase string

const (
	PhasePreparing Phase = "Preparing"
	PhaseUpdating  Phase = "Updating"
	PhaseSuccess   Phase = "Success"
	// PhaseAborted is reached only when every update attempt failed.
	PhaseAborted Phase = "Aborted"
	// PhaseFailed is reached on any other fault and is announced.
	PhaseFailed Phase = "Failed"
)

// Terminal determines if no further phase follows.
func (p Phase) Terminal() bool {
	return p == PhaseSuccess || p == PhaseAborted || p == PhaseFailed
}

// Job identifies the build that triggered the run.
type Job struct {
	Name        string `envconfig:"JOB_NAME"`
	BuildNumber string `envconfig:"BUILD_NUMBER"`
	BuildURL    string `envconfig:"BUILD_URL"`
}

// JobFromEnvironment reads the job identity exported by the build system.
func JobFromEnvironment() (Job, error) {
	job := Job{}
	if err := envconfig.Process("", &job); err != nil {
		return Job{}, fmt.Errorf("failed to read the job environment: %w", err)
	}
	return job, nil
}

// Run is the state of one pipeline run. Phase functions take a Run and return
// the next one; a Run is never mutated in place.
type Run struct {
	ID  string
	Job Job
	// Release is the target of the update and may be empty.
	Release   string
	Phase     Phase
	Workspace string
	// Commit is the checked out revision of the helper repository.
	Commit   string
	Attempts int
	Started  time.Time
	// Err is the fault that ended the run in PhaseAborted or PhaseFailed.
	Err error
	// NotifyErr is set when announcing a failure did not succeed.
	NotifyErr error
}

// NewRun starts a run in PhasePreparing.
func NewRun(job Job, release string) Run {
	return Run{
		ID:      uuid.NewString(),
		Job:     job,
		Release: release,
		Phase:   PhasePreparing,
		Started: time.Now(),
	}
}

func (r Run) to(phase Phase) Run {
	r.Phase = phase
	return r
}

func (r Run) failed(phase Phase, err error) Run {
	r.Phase = phase
	r.Err = err
	return r
}

func (r Run) String() string {
	release := r.Release
	if release == "" {
		release = "<unset>"
	}
	return fmt.Sprintf("%s #%s (release %s) %s", r.Job.Name, r.Job.BuildNumber, release, r.Phase)
}
