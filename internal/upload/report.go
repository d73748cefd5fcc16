package upload

import (
	"fmt"
	"time"
)

// Outcome is the terminal result of an upload task.
type Outcome int

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Report is the one result every task produces. On failure Err holds the
// originating error and FailedIn the phase it came from.
type Report struct {
	Outcome    Outcome
	FileName   string
	Message    string
	Bucket     string
	FolderName string
	Elapsed    time.Duration
	FailedIn   State
	Err        *Error
}

// OK reports whether the upload succeeded.
func (r Report) OK() bool {
	return r.Outcome == OutcomeSuccess
}

func (r Report) String() string {
	return r.Message
}

func successReport(fileName, bucket, folder string, elapsed time.Duration) Report {
	return Report{
		Outcome:    OutcomeSuccess,
		FileName:   fileName,
		Bucket:     bucket,
		FolderName: folder,
		Elapsed:    elapsed,
		Message: fmt.Sprintf("SUCCESS: %s uploaded to %s/%s, time: %.2f seconds",
			fileName, bucket, folder, elapsed.Seconds()),
	}
}

// FailedReport builds the failure report for fileName.
func FailedReport(fileName string, state State, err *Error) Report {
	return Report{
		Outcome:  OutcomeFailure,
		FileName: fileName,
		FailedIn: state,
		Err:      err,
		Message:  fmt.Sprintf("FAILED: %s, reason: %s", fileName, err.Error()),
	}
}
