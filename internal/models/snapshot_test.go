package models

import (
	"encoding/json"
	"testing"
)

func TestHasActivity(t *testing.T) {
	cases := []struct {
		name string
		snap JobSnapshot
		want bool
	}{
		{"idle", JobSnapshot{}, false},
		{"queue only", JobSnapshot{QueueSize: 2}, true},
		{"in progress only", JobSnapshot{TotalInProgress: 1}, true},
		{"rewrites only", JobSnapshot{RewritePending: 3}, true},
		{"worker running alone is not activity", JobSnapshot{WorkerRunning: true}, false},
		{"everything", JobSnapshot{QueueSize: 1, TotalInProgress: 1, RewritePending: 1}, true},
	}

	for _, tc := range cases {
		if got := tc.snap.HasActivity(); got != tc.want {
			t.Errorf("%s: HasActivity() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSnapshotDecode(t *testing.T) {
	raw := `{
		"queue_size": 3,
		"worker_running": true,
		"current_photo": {"id": "p1", "filename": "beach.jpg", "elapsed_seconds": 42},
		"total_in_progress": 1,
		"rewrite_pending": 2
	}`

	var snap JobSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if snap.QueueSize != 3 {
		t.Errorf("QueueSize = %d, want 3", snap.QueueSize)
	}
	if !snap.WorkerRunning {
		t.Error("WorkerRunning should be true")
	}
	if snap.CurrentPhoto == nil {
		t.Fatal("CurrentPhoto should be set")
	}
	if snap.CurrentPhoto.ID != "p1" {
		t.Errorf("CurrentPhoto.ID = %q, want p1", snap.CurrentPhoto.ID)
	}
	if snap.CurrentPhoto.ElapsedSeconds != 42 {
		t.Errorf("ElapsedSeconds = %d, want 42", snap.CurrentPhoto.ElapsedSeconds)
	}
	if snap.RewritePending != 2 {
		t.Errorf("RewritePending = %d, want 2", snap.RewritePending)
	}
}

func TestSnapshotDecodeNoCurrentPhoto(t *testing.T) {
	var snap JobSnapshot
	if err := json.Unmarshal([]byte(`{"queue_size": 0}`), &snap); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if snap.CurrentPhoto != nil {
		t.Error("CurrentPhoto should be nil when absent")
	}
}

func TestPhotoTransient(t *testing.T) {
	if (Photo{}).Transient() {
		t.Error("settled photo should not be transient")
	}
	if !(Photo{AnalysisPending: true}).Transient() {
		t.Error("pending photo should be transient")
	}
	if !(Photo{Analyzing: true}).Transient() {
		t.Error("analyzing photo should be transient")
	}
}

func TestAnyTransient(t *testing.T) {
	none := []Photo{{ID: "a"}, {ID: "b"}}
	if AnyTransient(none) {
		t.Error("AnyTransient should be false for settled collection")
	}

	some := []Photo{{ID: "a"}, {ID: "b", Analyzing: true}}
	if !AnyTransient(some) {
		t.Error("AnyTransient should be true when any photo is analyzing")
	}

	if AnyTransient(nil) {
		t.Error("AnyTransient should be false for empty collection")
	}
}
