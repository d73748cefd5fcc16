package upload

import (
	"time"

	"github.com/google/uuid"
)

// ReportEvent is emitted for every finished upload task.
type ReportEvent struct {
	ID             string    `json:"id"`
	RunID          string    `json:"run_id"`
	FileName       string    `json:"file_name"`
	Outcome        string    `json:"outcome"`
	Message        string    `json:"message"`
	Bucket         string    `json:"bucket,omitempty"`
	FolderName     string    `json:"folder_name,omitempty"`
	ElapsedSeconds float64   `json:"elapsed_seconds,omitempty"`
	FailedPhase    string    `json:"failed_phase,omitempty"`
	ErrorKind      string    `json:"error_kind,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func newReportEvent(runID string, r Report, now time.Time) ReportEvent {
	event := ReportEvent{
		ID:         uuid.NewString(),
		RunID:      runID,
		FileName:   r.FileName,
		Outcome:    r.Outcome.String(),
		Message:    r.Message,
		Bucket:     r.Bucket,
		FolderName: r.FolderName,
		CreatedAt:  now.UTC(),
	}
	if r.OK() {
		event.ElapsedSeconds = r.Elapsed.Seconds()
	} else {
		event.FailedPhase = r.FailedIn.String()
		if r.Err != nil {
			event.ErrorKind = r.Err.Kind.String()
		}
	}
	return event
}
