package process

import (
	"errors"
	"testing"
)

func TestNewRunCapturesIdentity(t *testing.T) {
	run := NewRun("rasterize", "run-1", "/tmp/docs.zip")

	if run.Kind != "rasterize" || run.ID != "run-1" || run.Source != "/tmp/docs.zip" {
		t.Fatalf("unexpected run identity: %+v", run)
	}
	if run.Status != StatusPending {
		t.Fatalf("new run not pending: %v", run.Status)
	}
	if run.Duration() != 0 {
		t.Fatal("unstarted run has non-zero duration")
	}
}

func TestMarkFailedSetsStatusAndDetail(t *testing.T) {
	run := NewRun("rasterize", "run-2", "in")
	MarkRunning(run)
	MarkFailed(run, errors.New("boom"))

	if run.Status != StatusFailed {
		t.Fatalf("run status not failed: %v", run.Status)
	}
	if run.Detail != "boom" {
		t.Fatalf("run detail not recorded: %q", run.Detail)
	}
	if run.FinishedAt.IsZero() {
		t.Fatal("finish time not recorded")
	}
}

func TestMarkFailedDoesNotOverwriteDetailWhenNil(t *testing.T) {
	run := NewRun("rasterize", "run-3", "in")
	MarkFailed(run, nil)

	if run.Status != StatusFailed {
		t.Fatalf("run status not failed: %v", run.Status)
	}
	if run.Detail != "" {
		t.Fatalf("expected empty detail, got %q", run.Detail)
	}
}

func TestSettle(t *testing.T) {
	tests := []struct {
		name                     string
		found, succeeded, failed int
		want                     Status
		success                  bool
		detail                   string
	}{
		{"nothing found", 0, 0, 0, StatusFailed, false, "no files found in src"},
		{"all succeeded", 3, 3, 0, StatusSucceeded, true, ""},
		{"some failed", 3, 2, 1, StatusPartial, false, ""},
		{"all failed", 2, 0, 2, StatusFailed, false, "all files failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := NewRun("rasterize", "id", "src")
			MarkRunning(run)
			Settle(run, tt.found, tt.succeeded, tt.failed)

			if run.Status != tt.want {
				t.Errorf("status = %s, want %s", run.Status, tt.want)
			}
			if run.Success() != tt.success {
				t.Errorf("Success() = %v, want %v", run.Success(), tt.success)
			}
			if run.Detail != tt.detail {
				t.Errorf("detail = %q, want %q", run.Detail, tt.detail)
			}
			if run.Duration() < 0 {
				t.Error("negative duration")
			}
		})
	}
}
