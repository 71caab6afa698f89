package tasks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/cloudnote/internal/models"
	"github.com/desertthunder/cloudnote/internal/services"
	"github.com/desertthunder/cloudnote/internal/shared"
	tu "github.com/desertthunder/cloudnote/internal/testing"
)

type mockSource struct {
	resp  *services.RecordResponse
	err   error
	calls int
}

func (m *mockSource) UserRecords(ctx context.Context, uid string) (*services.RecordResponse, error) {
	m.calls++
	return m.resp, m.err
}

func historyOf(n int) *mockSource {
	return &mockSource{resp: &services.RecordResponse{Code: 200, AllData: tu.SourceRecords(n)}}
}

type mockRecorder struct {
	started  []string
	finished []*models.ImportRun
	startErr error
}

func (m *mockRecorder) StartRun(uid, pageID string) (*models.ImportRun, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.started = append(m.started, uid)
	run := models.NewImportRun(len(m.started), uid, pageID)
	run.SetID("run-1")
	return run, nil
}

func (m *mockRecorder) FinishRun(run *models.ImportRun) error {
	m.finished = append(m.finished, run)
	return nil
}

type mockObserver struct {
	mu       sync.Mutex
	stages   map[string]error
	settled  map[bool]int
	outcomes []string
}

func newMockObserver() *mockObserver {
	return &mockObserver{stages: map[string]error{}, settled: map[bool]int{}}
}

func (m *mockObserver) StageCompleted(stage string, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[stage] = err
}

func (m *mockObserver) RecordSettled(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settled[ok]++
}

func (m *mockObserver) RunCompleted(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

// cancellingDestination cancels the run right after the database is provisioned.
type cancellingDestination struct {
	*mockDestination
	cancel context.CancelFunc
}

func (c *cancellingDestination) CreateDatabase(ctx context.Context, token string, req services.CreateDatabaseRequest) (*services.NotionDatabase, error) {
	defer c.cancel()
	return c.mockDestination.CreateDatabase(ctx, token, req)
}

func newTestEngine(src Source, dest Destination) *ImportEngine {
	return NewImportEngine(src, dest, nil).WithUploader(newTestUploader(&sleepRecorder{}))
}

func drain(progress chan ProgressUpdate) []ProgressUpdate {
	close(progress)
	var updates []ProgressUpdate
	for u := range progress {
		updates = append(updates, u)
	}
	return updates
}

func TestImportEngine_Run(t *testing.T) {
	req := ImportRequest{UID: "32953014", Token: "secret_token", PageID: "page-1"}

	t.Run("Full Success", func(t *testing.T) {
		dest := &mockDestination{}
		progress := make(chan ProgressUpdate, 50)

		result, err := newTestEngine(historyOf(12), dest).Run(context.Background(), req, progress)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Outcome != OutcomeSucceeded {
			t.Errorf("expected succeeded, got %s", result.Outcome)
		}
		if result.Attempted != 12 || result.Succeeded != 12 || result.Failed != 0 {
			t.Errorf("unexpected counts %+v", result)
		}
		if result.DatabaseID != "db-1" || result.DatabaseURL != "https://notion.so/db-1" {
			t.Errorf("unexpected database %s %s", result.DatabaseID, result.DatabaseURL)
		}
		if len(dest.databases) != 1 {
			t.Fatalf("expected one database, got %d", len(dest.databases))
		}
		if dest.databases[0].Title[0].Text.Content != "网易云听歌记录 - 32953014" {
			t.Errorf("expected default title, got %q", dest.databases[0].Title[0].Text.Content)
		}
		if dest.databases[0].Parent.PageID != "page-1" {
			t.Errorf("expected explicit parent, got %+v", dest.databases[0].Parent)
		}

		updates := drain(progress)
		last := updates[len(updates)-1]
		if last.Phase != Complete {
			t.Fatalf("expected final phase complete, got %s", last.Phase)
		}
		if last.Data.(*ImportResult) != result {
			t.Error("expected completion event to carry the result")
		}

		seen := map[Phase]int{}
		for _, u := range updates {
			seen[u.Phase]++
		}
		for _, p := range []Phase{ValidateInput, FetchHistory, ValidateHistory, TransformRecords, ResolveParent} {
			if seen[p] != 1 {
				t.Errorf("expected one %s update, got %d", p, seen[p])
			}
		}
		if seen[UploadRecords] != 3 {
			t.Errorf("expected one update per batch, got %d", seen[UploadRecords])
		}
	})

	t.Run("Partial Success", func(t *testing.T) {
		dest := &mockDestination{failNames: map[string]error{
			"Song 2": errors.New("timeout"),
			"Song 5": &services.NotionAPIError{Status: 409, Body: "conflict"},
		}}

		result, err := newTestEngine(historyOf(7), dest).Run(context.Background(), req, nil)
		if err != nil {
			t.Fatalf("partial success is not an error, got %v", err)
		}
		if result.Outcome != OutcomePartial {
			t.Errorf("expected partial, got %s", result.Outcome)
		}
		if result.Succeeded != result.Attempted-2 || result.Attempted != 7 {
			t.Errorf("expected succeeded = attempted - 2, got %d of %d", result.Succeeded, result.Attempted)
		}
		if len(result.Failures) != 2 || result.Failures[1].Status != 409 {
			t.Errorf("unexpected failures %+v", result.Failures)
		}
	})

	t.Run("All Uploads Fail", func(t *testing.T) {
		fail := map[string]error{}
		for i := 1; i <= 3; i++ {
			fail["Song "+string(rune('0'+i))] = errors.New("nope")
		}
		dest := &mockDestination{failNames: fail}

		result, err := newTestEngine(historyOf(3), dest).Run(context.Background(), req, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Outcome != OutcomePartial || result.Succeeded != 0 || result.Attempted != 3 {
			t.Errorf("expected partial with zero successes, got %+v", result)
		}
	})

	t.Run("Provisioning Failure Skips Upload", func(t *testing.T) {
		dest := &mockDestination{databaseErr: &shared.ProvisioningError{Status: 400, Body: `{"code":"validation_error"}`}}

		result, err := newTestEngine(historyOf(5), dest).Run(context.Background(), req, nil)

		var stageErr *StageError
		if !errors.As(err, &stageErr) || stageErr.Stage != ProvisionDatabase {
			t.Fatalf("expected provision StageError, got %v", err)
		}
		if !errors.Is(err, shared.ErrProvisioningFailed) {
			t.Errorf("expected ErrProvisioningFailed, got %v", err)
		}
		if dest.pageCalls() != 0 {
			t.Errorf("expected zero page creates, got %d", dest.pageCalls())
		}
		if result.Outcome != OutcomeFailed || result.Attempted != 0 {
			t.Errorf("unexpected result %+v", result)
		}
		if result.Error == "" {
			t.Error("expected error message on result")
		}
	})

	t.Run("Fetch Failure", func(t *testing.T) {
		dest := &mockDestination{}
		src := &mockSource{err: &shared.UpstreamError{Status: 502, Message: "bad gateway"}}

		result, err := newTestEngine(src, dest).Run(context.Background(), req, nil)

		var stageErr *StageError
		if !errors.As(err, &stageErr) || stageErr.Stage != FetchHistory {
			t.Fatalf("expected fetch StageError, got %v", err)
		}
		if !errors.Is(err, shared.ErrUpstream) {
			t.Errorf("expected ErrUpstream, got %v", err)
		}
		if len(dest.databases) != 0 {
			t.Error("expected no database to be created")
		}
		if result.Stage != FetchHistory {
			t.Errorf("expected failed stage fetch, got %s", result.Stage)
		}
	})

	t.Run("Unexpected Code", func(t *testing.T) {
		src := &mockSource{resp: &services.RecordResponse{Code: 301, AllData: tu.SourceRecords(1)}}

		_, err := newTestEngine(src, &mockDestination{}).Run(context.Background(), req, nil)
		var stageErr *StageError
		if !errors.As(err, &stageErr) || stageErr.Stage != ValidateHistory {
			t.Fatalf("expected validate StageError, got %v", err)
		}
	})

	t.Run("Empty History", func(t *testing.T) {
		dest := &mockDestination{}

		result, err := newTestEngine(historyOf(0), dest).Run(context.Background(), req, nil)
		if !errors.Is(err, shared.ErrEmptyHistory) {
			t.Fatalf("expected ErrEmptyHistory, got %v", err)
		}
		if result.Stage != ValidateHistory || len(dest.databases) != 0 {
			t.Errorf("expected abort before provisioning, got %+v", result)
		}
	})

	t.Run("Invalid Input", func(t *testing.T) {
		tests := []struct {
			name string
			req  ImportRequest
		}{
			{"missing uid", ImportRequest{Token: "t"}},
			{"blank uid", ImportRequest{UID: "   ", Token: "t"}},
			{"missing token", ImportRequest{UID: "1"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				src := historyOf(1)
				result, err := newTestEngine(src, &mockDestination{}).Run(context.Background(), tt.req, nil)
				if !errors.Is(err, shared.ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				if src.calls != 0 {
					t.Error("expected no fetch")
				}
				if result.Outcome != OutcomeFailed || result.Stage != ValidateInput {
					t.Errorf("unexpected result %+v", result)
				}
			})
		}
	})

	t.Run("Resolves Parent By Search", func(t *testing.T) {
		dest := &mockDestination{searchPages: []services.NotionPage{{ID: "recent"}, {ID: "older"}}}
		r := req
		r.PageID = ""
		r.Title = "My History"

		result, err := newTestEngine(historyOf(1), dest).Run(context.Background(), r, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.PageID != "recent" || dest.databases[0].Parent.PageID != "recent" {
			t.Errorf("expected first search result as parent, got %s", result.PageID)
		}
		if dest.databases[0].Title[0].Text.Content != "My History" {
			t.Errorf("expected custom title, got %q", dest.databases[0].Title[0].Text.Content)
		}
	})

	t.Run("No Shared Page", func(t *testing.T) {
		r := req
		r.PageID = ""

		_, err := newTestEngine(historyOf(1), &mockDestination{}).Run(context.Background(), r, nil)
		if !errors.Is(err, shared.ErrNoParentPage) {
			t.Fatalf("expected ErrNoParentPage, got %v", err)
		}
	})

	t.Run("Cancelled During Upload", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		u := &BatchUploader{BatchSize: 5, Delay: time.Second, Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}}

		engine := NewImportEngine(historyOf(12), &mockDestination{}, nil).WithUploader(u)
		result, err := engine.Run(ctx, req, nil)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if result.Outcome != OutcomePartial || result.Attempted != 5 || result.Total != 12 {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("Cancelled Before First Batch", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		dest := &cancellingDestination{mockDestination: &mockDestination{}, cancel: cancel}
		rec := &mockRecorder{}

		result, err := newTestEngine(historyOf(3), dest).WithRecorder(rec).Run(ctx, req, nil)
		var stageErr *StageError
		if !errors.As(err, &stageErr) || stageErr.Stage != UploadRecords || !errors.Is(err, context.Canceled) {
			t.Fatalf("expected cancelled upload stage error, got %v", err)
		}
		if result.Outcome != OutcomeFailed || result.Attempted != 0 {
			t.Errorf("expected failed with nothing attempted, got %+v", result)
		}
		if result.DatabaseURL != "https://notion.so/db-1" {
			t.Errorf("expected database url to be kept, got %q", result.DatabaseURL)
		}
		if dest.pageCalls() != 0 {
			t.Errorf("expected no page creates, got %d", dest.pageCalls())
		}
		if len(rec.finished) != 1 || rec.finished[0].Status() != models.RunFailed || rec.finished[0].DatabaseURL() == "" {
			t.Errorf("unexpected recorded run %+v", rec.finished)
		}
	})

	t.Run("Records History", func(t *testing.T) {
		rec := &mockRecorder{}
		dest := &mockDestination{failNames: map[string]error{"Song 1": errors.New("x")}}

		result, _ := newTestEngine(historyOf(3), dest).WithRecorder(rec).Run(context.Background(), req, nil)
		if result.RunID != "run-1" {
			t.Errorf("expected run id, got %q", result.RunID)
		}
		if len(rec.finished) != 1 {
			t.Fatalf("expected one finished run, got %d", len(rec.finished))
		}

		run := rec.finished[0]
		if run.Status() != models.RunPartial || run.Attempted() != 3 || run.Succeeded() != 2 {
			t.Errorf("unexpected run %s %d/%d", run.Status(), run.Succeeded(), run.Attempted())
		}
		if run.DatabaseID() != "db-1" || len(run.Failures()) != 1 || run.CompletedAt() == nil {
			t.Errorf("unexpected run details %+v", run)
		}
	})

	t.Run("Recorder Failure Is Not Fatal", func(t *testing.T) {
		rec := &mockRecorder{startErr: errors.New("disk full")}

		result, err := newTestEngine(historyOf(2), &mockDestination{}).WithRecorder(rec).Run(context.Background(), req, nil)
		if err != nil || result.Outcome != OutcomeSucceeded {
			t.Errorf("expected success, got %v %+v", err, result)
		}
	})

	t.Run("Observer", func(t *testing.T) {
		obs := newMockObserver()
		dest := &mockDestination{failNames: map[string]error{"Song 3": errors.New("x")}}

		newTestEngine(historyOf(6), dest).WithObserver(obs).Run(context.Background(), req, nil)

		for _, stage := range []string{"validate_input", "fetch", "validate", "transform", "resolve_parent", "provision", "upload"} {
			if _, ok := obs.stages[stage]; !ok {
				t.Errorf("expected stage %s to be observed", stage)
			}
		}
		if obs.settled[true] != 5 || obs.settled[false] != 1 {
			t.Errorf("unexpected settle counts %v", obs.settled)
		}
		if len(obs.outcomes) != 1 || obs.outcomes[0] != "partial" {
			t.Errorf("unexpected outcomes %v", obs.outcomes)
		}
	})

	t.Run("Unconfigured Engine", func(t *testing.T) {
		_, err := NewImportEngine(nil, nil, nil).Run(context.Background(), req, nil)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestImportEngine_Preview(t *testing.T) {
	t.Run("Normalizes Without Notion", func(t *testing.T) {
		dest := &mockDestination{}
		records, err := newTestEngine(historyOf(4), dest).Preview(context.Background(), "1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(records) != 4 || records[0].Name != "Song 1" {
			t.Errorf("unexpected records %+v", records)
		}
		if len(dest.databases) != 0 || dest.pageCalls() != 0 {
			t.Error("expected no Notion calls")
		}
	})

	t.Run("Tolerates Malformed Records", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code":200,"allData":[` +
				`{"playCount":1,"song":{"name":"One","publishTime":1059580800000,"dt":60000}},` +
				`{"playCount":2,"song":{"name":"Two","publishTime":"2020-01-01","dt":60000,"mv":"none"}},` +
				`{"playCount":3,"song":{"name":"Three","publishTime":1059580800000,"dt":60000}}]}`))
		}))
		defer srv.Close()

		source := services.NewNeteaseService(shared.NeteaseConfig{APIURL: srv.URL}, srv.Client())
		records, err := newTestEngine(source, nil).Preview(context.Background(), "1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected 3 records, got %d", len(records))
		}

		for i, want := range []string{"One", "Two", "Three"} {
			if records[i].Name != want {
				t.Errorf("record %d: expected %q, got %q", i, want, records[i].Name)
			}
		}
		if records[1].PublishDate != UnknownDate || records[1].VideoURL != "" {
			t.Errorf("expected sentinel date and no video, got %+v", records[1])
		}
		if records[0].PublishDate == UnknownDate || records[2].PublishDate == UnknownDate {
			t.Errorf("expected real dates on well-formed records, got %q and %q", records[0].PublishDate, records[2].PublishDate)
		}
		if records[1].PlayCount != 2 || records[1].Duration == "" {
			t.Errorf("expected remaining fields to survive, got %+v", records[1])
		}
	})

	t.Run("Empty UID", func(t *testing.T) {
		_, err := newTestEngine(historyOf(1), nil).Preview(context.Background(), "")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestImportResult_Message(t *testing.T) {
	tests := []struct {
		name   string
		result ImportResult
		want   string
	}{
		{
			"succeeded",
			ImportResult{Outcome: OutcomeSucceeded, Attempted: 3, Succeeded: 3, DatabaseURL: "u"},
			"Imported 3 of 3 records into u",
		},
		{
			"partial",
			ImportResult{Outcome: OutcomePartial, Attempted: 3, Succeeded: 1, Failed: 2, DatabaseURL: "u"},
			"Imported 1 of 3 records (2 failed) into u",
		},
		{
			"failed",
			ImportResult{Outcome: OutcomeFailed, Stage: ProvisionDatabase, Error: "boom"},
			"Import failed at provision: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Message(); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}
