// Package upload drives the per-file upload lifecycle with bounded
// concurrency. Item status is monotonic: pending -> uploading -> success or
// error, never backwards.
package upload

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of one upload item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// rank orders statuses so transitions can be checked for monotonicity.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusUploading:
		return 1
	case StatusSuccess, StatusError:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Item is one file in an upload batch. Items are created when files are
// submitted and mutated only by the Coordinator.
type Item struct {
	ID          string
	SourcePath  string
	Filename    string
	Status      Status
	Message     string // terminal message: server confirmation on success, failure detail on error
	PhotoID     string // server id, set on success
	CreatedAt   time.Time
	CompletedAt time.Time
}

func newItem(path string) *Item {
	return &Item{
		ID:         uuid.NewString(),
		SourcePath: path,
		Filename:   filepath.Base(path),
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}
}
