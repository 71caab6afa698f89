package models

import (
	"encoding/json"
	"testing"
)

func TestImportRun(t *testing.T) {
	t.Run("NewImportRun", func(t *testing.T) {
		run := NewImportRun(3, "12345", "page-1")

		if run.Status() != RunRunning {
			t.Errorf("expected running status, got %s", run.Status())
		}
		if run.StartedAt() == nil {
			t.Error("expected started_at to be set")
		}
		if run.CompletedAt() != nil {
			t.Error("expected completed_at to be nil")
		}
		if err := run.Validate(); err != nil {
			t.Errorf("new run should be valid: %v", err)
		}
	})

	t.Run("Complete", func(t *testing.T) {
		run := NewImportRun(1, "12345", "")
		run.SetCounts(12, 10)
		run.Complete(RunPartial)

		if run.Status() != RunPartial {
			t.Errorf("expected partial, got %s", run.Status())
		}
		if run.CompletedAt() == nil {
			t.Error("expected completed_at to be set")
		}
		if run.Failed() != 2 {
			t.Errorf("expected 2 failed, got %d", run.Failed())
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name  string
			setup func(*ImportRun)
		}{
			{name: "missing uid", setup: func(r *ImportRun) { r.uid = "" }},
			{name: "unknown status", setup: func(r *ImportRun) { r.SetStatus("paused") }},
			{name: "succeeded exceeds attempted", setup: func(r *ImportRun) { r.SetCounts(1, 2) }},
			{name: "negative counts", setup: func(r *ImportRun) { r.SetCounts(-1, 0) }},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				run := NewImportRun(1, "12345", "")
				tt.setup(run)
				if err := run.Validate(); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	})
}

func TestSourceRecordDecoding(t *testing.T) {
	payload := `{
		"playCount": 7,
		"score": 100,
		"song": {
			"name": "晴天",
			"id": 186016,
			"ar": [{"id": 6452, "name": "周杰伦"}],
			"al": {"id": 18905, "name": "叶惠美", "picUrl": "https://p1.music.126.net/cover.jpg"},
			"dt": 269000,
			"publishTime": 1059580800000,
			"fee": 8,
			"mv": 504177,
			"privilege": {"payed": 0}
		}
	}`

	var rec SourceRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	if rec.Song.Artists[0].Name != "周杰伦" {
		t.Errorf("unexpected artists %+v", rec.Song.Artists)
	}
	if rec.Song.Album.PicURL != "https://p1.music.126.net/cover.jpg" {
		t.Errorf("unexpected cover %q", rec.Song.Album.PicURL)
	}
	if rec.Song.Privilege == nil || rec.Song.Privilege.Payed != 0 {
		t.Errorf("unexpected privilege %+v", rec.Song.Privilege)
	}
	if rec.Song.DurationMS != 269000 || rec.PlayCount != 7 {
		t.Errorf("unexpected numbers %+v", rec)
	}
}
