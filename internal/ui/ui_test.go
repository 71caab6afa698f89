package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cloudnote/internal/models"
	"github.com/desertthunder/cloudnote/internal/tasks"
)

type fakeImporter struct {
	records    []models.NormalizedRecord
	previewErr error
	updates    []tasks.ProgressUpdate
	result     *tasks.ImportResult
	runErr     error
	block      bool
	requests   []tasks.ImportRequest
}

func (f *fakeImporter) Preview(ctx context.Context, uid string) ([]models.NormalizedRecord, error) {
	return f.records, f.previewErr
}

func (f *fakeImporter) Run(ctx context.Context, req tasks.ImportRequest, progress chan<- tasks.ProgressUpdate) (*tasks.ImportResult, error) {
	f.requests = append(f.requests, req)
	for _, u := range f.updates {
		progress <- u
	}
	if f.block {
		<-ctx.Done()
		return &tasks.ImportResult{Outcome: tasks.OutcomePartial, Error: ctx.Err().Error()}, ctx.Err()
	}
	return f.result, f.runErr
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sampleRecords() []models.NormalizedRecord {
	return []models.NormalizedRecord{
		{Name: "晴天", Artist: "周杰伦", Album: "叶惠美", Duration: "4:29", PlayCount: 10},
		{Name: "七里香", Artist: "周杰伦", Duration: "4:59", PlayCount: 7},
	}
}

// loadedModel returns a model that has received its preview.
func loadedModel(t *testing.T, f *fakeImporter) *Model {
	t.Helper()
	m := NewModel(context.Background(), f, tasks.ImportRequest{UID: "32953014", Token: "secret"})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.Update(m.fetchRecords()())
	return m
}

// drive runs the import commands until the result arrives.
func drive(t *testing.T, m *Model) {
	t.Helper()
	for i := 0; i < 100 && m.State() == ImportView; i++ {
		m.Update(m.waitForProgress()())
	}
	if m.State() != ResultView {
		t.Fatalf("expected result view, got %v", m.State())
	}
}

func TestModel(t *testing.T) {
	t.Run("Preview", func(t *testing.T) {
		m := loadedModel(t, &fakeImporter{records: sampleRecords()})

		if m.State() != PreviewView {
			t.Fatalf("expected preview view, got %v", m.State())
		}
		if len(m.records) != 2 {
			t.Errorf("expected 2 records, got %d", len(m.records))
		}
		view := m.View()
		if !strings.Contains(view, "周杰伦 - 晴天") {
			t.Errorf("expected record in preview:\n%s", view)
		}
	})

	t.Run("Loading", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeImporter{}, tasks.ImportRequest{UID: "42"})
		if !strings.Contains(m.View(), "Fetching listening history for 42") {
			t.Errorf("unexpected loading view %q", m.View())
		}
	})

	t.Run("Preview Error", func(t *testing.T) {
		m := loadedModel(t, &fakeImporter{previewErr: errors.New("history is private")})
		if !strings.Contains(m.View(), "history is private") {
			t.Errorf("expected error in view:\n%s", m.View())
		}

		m.Update(keyPress("enter"))
		if m.State() != PreviewView {
			t.Error("enter should not confirm without records")
		}
	})

	t.Run("Confirm And Back", func(t *testing.T) {
		m := loadedModel(t, &fakeImporter{records: sampleRecords()})

		m.Update(keyPress("enter"))
		if m.State() != ConfirmView {
			t.Fatalf("expected confirm view, got %v", m.State())
		}
		view := m.View()
		if !strings.Contains(view, "Import 2 records") || !strings.Contains(view, tasks.DefaultTitle("32953014")) {
			t.Errorf("unexpected confirm view:\n%s", view)
		}

		m.Update(keyPress("n"))
		if m.State() != PreviewView {
			t.Errorf("expected preview view after n, got %v", m.State())
		}
	})

	t.Run("Quit", func(t *testing.T) {
		m := loadedModel(t, &fakeImporter{records: sampleRecords()})
		_, cmd := m.Update(keyPress("q"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})

	t.Run("Import Succeeds", func(t *testing.T) {
		f := &fakeImporter{
			records: sampleRecords(),
			updates: []tasks.ProgressUpdate{
				{Phase: tasks.FetchHistory, Message: "Fetching listening history"},
				{Phase: tasks.UploadRecords, Step: 1, Total: 1, Message: "[1/1] Uploaded 2 of 2 records",
					Data: tasks.UploadProgress{Attempted: 2, Succeeded: 2, Total: 2}},
			},
			result: &tasks.ImportResult{
				Outcome: tasks.OutcomeSucceeded, Total: 2, Attempted: 2, Succeeded: 2,
				DatabaseURL: "https://notion.so/db-1",
			},
		}
		m := loadedModel(t, f)
		m.Update(keyPress("enter"))
		_, cmd := m.Update(keyPress("y"))
		if m.State() != ImportView || cmd == nil {
			t.Fatalf("expected import view with a command, got %v", m.State())
		}

		drive(t, m)

		if m.percent != 1 {
			t.Errorf("expected full progress, got %v", m.percent)
		}
		result, err := m.Result()
		if err != nil || result.Outcome != tasks.OutcomeSucceeded {
			t.Fatalf("unexpected result %+v, %v", result, err)
		}
		if len(f.requests) != 1 || f.requests[0].UID != "32953014" {
			t.Errorf("unexpected requests %+v", f.requests)
		}

		view := m.View()
		if !strings.Contains(view, "Import complete") || !strings.Contains(view, "https://notion.so/db-1") {
			t.Errorf("unexpected result view:\n%s", view)
		}
	})

	t.Run("Import Partial Lists Failures", func(t *testing.T) {
		f := &fakeImporter{
			records: sampleRecords(),
			result: &tasks.ImportResult{
				Outcome: tasks.OutcomePartial, Total: 2, Attempted: 2, Succeeded: 1, Failed: 1,
				Failures: []models.ImportFailure{{Index: 1, Name: "七里香", Status: 400, Message: "validation_error"}},
			},
		}
		m := loadedModel(t, f)
		m.Update(keyPress("enter"))
		m.Update(keyPress("y"))
		drive(t, m)

		view := m.View()
		for _, want := range []string{"partially complete", "Uploaded: 1/2", "#2 七里香: validation_error"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected %q in view:\n%s", want, view)
			}
		}
	})

	t.Run("Import Failed", func(t *testing.T) {
		f := &fakeImporter{
			records: sampleRecords(),
			result:  &tasks.ImportResult{Outcome: tasks.OutcomeFailed, Stage: tasks.ProvisionDatabase, Error: "object_not_found"},
			runErr:  &tasks.StageError{Stage: tasks.ProvisionDatabase, Err: errors.New("object_not_found")},
		}
		m := loadedModel(t, f)
		m.Update(keyPress("enter"))
		m.Update(keyPress("y"))
		drive(t, m)

		view := m.View()
		if !strings.Contains(view, "Import failed at provision") || !strings.Contains(view, "object_not_found") {
			t.Errorf("unexpected view:\n%s", view)
		}
	})

	t.Run("Cancel", func(t *testing.T) {
		f := &fakeImporter{records: sampleRecords(), block: true}
		m := loadedModel(t, f)
		m.Update(keyPress("enter"))
		m.Update(keyPress("y"))

		m.Update(keyPress("ctrl+c"))
		if !m.cancelled {
			t.Fatal("expected cancel to be recorded")
		}
		if !strings.Contains(m.View(), "Cancelling") {
			t.Errorf("expected cancelling notice:\n%s", m.View())
		}

		drive(t, m)
		result, err := m.Result()
		if !errors.Is(err, context.Canceled) || result.Outcome != tasks.OutcomePartial {
			t.Errorf("expected cancelled partial result, got %+v, %v", result, err)
		}
	})
}

func TestRecordItem(t *testing.T) {
	item := recordItem{index: 0, record: sampleRecords()[0]}
	if item.Title() != "1. 周杰伦 - 晴天" {
		t.Errorf("unexpected title %q", item.Title())
	}
	if item.Description() != "叶惠美 • 4:29 • 10 plays" {
		t.Errorf("unexpected description %q", item.Description())
	}

	noAlbum := recordItem{index: 1, record: sampleRecords()[1]}
	if noAlbum.Description() != "4:59 • 7 plays" {
		t.Errorf("unexpected description %q", noAlbum.Description())
	}
}
