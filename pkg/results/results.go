package results

import "strings"

type Reason string

const (
	// ReasonUnknown is default reason. Occurrences of this reason in metrics
	// indicate a bug, a failure to identify the reason for an error somewhere.
	ReasonUnknown Reason = "unknown"

	// ReasonLoadingConfig indicates a catalogue document could not be read or parsed.
	ReasonLoadingConfig Reason = "loading_config"
	// ReasonInvalidConfig indicates the catalogue failed validation.
	ReasonInvalidConfig Reason = "invalid_config"
	// ReasonSuiteNotFound indicates a suite name matched no record.
	ReasonSuiteNotFound Reason = "suite_not_found"
	// ReasonAmbiguousSuiteName indicates a suite name matched several records.
	ReasonAmbiguousSuiteName Reason = "ambiguous_suite_name"
	// ReasonStepFailed indicates a module reported failure.
	ReasonStepFailed Reason = "step_failed"
	// ReasonStepTimedOut indicates a step exceeded its timeout.
	ReasonStepTimedOut Reason = "step_timed_out"
	// ReasonSuiteAborted indicates an abort-on-fail step stopped the suite.
	ReasonSuiteAborted Reason = "suite_aborted"
	// ReasonInterrupted indicates the run was cancelled before it finished.
	ReasonInterrupted Reason = "interrupted"
	// ReasonPreparing indicates the workspace or checkout could not be prepared.
	ReasonPreparing Reason = "preparing"
	// ReasonPreparationTimedOut indicates the preparation phase exceeded its bound.
	ReasonPreparationTimedOut Reason = "preparation_timed_out"
	// ReasonUpdateFailed indicates the update operation failed on every attempt.
	ReasonUpdateFailed Reason = "update_failed"
	// ReasonNotifying indicates a failure notification could not be delivered.
	ReasonNotifying Reason = "notifying"
)

// FullReason returns the reason chains of the error joined into a single
// string, defaulting to ReasonUnknown for errors carrying no reason.
func FullReason(err error) string {
	if err == nil {
		return ""
	}
	return strings.Join(Reasons(DefaultReason(err)), ",")
}
