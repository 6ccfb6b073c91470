// Package models defines the data structures exchanged with the Ricordi server.
package models

// CurrentPhoto describes the photo the analysis worker is processing right now.
// ElapsedSeconds is the server's authoritative elapsed time and takes precedence
// over any locally computed estimate.
type CurrentPhoto struct {
	ID             string `json:"id"`
	Filename       string `json:"filename"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
}

// JobSnapshot is a complete view of the server-side processing queue as
// returned by GET /queue-status. A snapshot is replaced wholesale on each
// successful poll and never partially merged.
type JobSnapshot struct {
	QueueSize       int           `json:"queue_size"`
	WorkerRunning   bool          `json:"worker_running"`
	CurrentPhoto    *CurrentPhoto `json:"current_photo"`
	TotalInProgress int           `json:"total_in_progress"`
	RewritePending  int           `json:"rewrite_pending"`

	// Seq is assigned client-side at the moment the poll request is issued.
	// It orders responses so a slow stale poll can never overwrite a newer one.
	Seq uint64 `json:"-"`
}

// HasActivity reports whether the server has any work in progress or queued.
func (s JobSnapshot) HasActivity() bool {
	return s.TotalInProgress > 0 || s.QueueSize > 0 || s.RewritePending > 0
}
