package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desertthunder/cloudnote/internal/models"
	"github.com/desertthunder/cloudnote/internal/services"
	"github.com/desertthunder/cloudnote/internal/shared"
)

const (
	BatchSize   = 5                // records created concurrently per batch
	BatchDelay  = time.Second      // pause between batches
	CallTimeout = 30 * time.Second // bound on a single page create
	CancelGrace = 2 * time.Second  // how long in-flight creates may run once the upload is cancelled
)

// PageCreator creates one Notion page.
type PageCreator interface {
	CreatePage(ctx context.Context, token string, req services.CreatePageRequest) (*services.NotionPage, error)
}

// RecordOutcome is the settled result of one page create.
type RecordOutcome struct {
	Index  int
	Name   string
	PageID string
	Err    error // *shared.RecordUploadError when the create failed
}

// UploadResult tallies an upload. Outcomes are in record order.
type UploadResult struct {
	Attempted int
	Succeeded int
	Outcomes  []RecordOutcome
}

// Failures lists the records that could not be created.
func (r *UploadResult) Failures() []models.ImportFailure {
	failures := []models.ImportFailure{}
	for _, o := range r.Outcomes {
		if o.Err == nil {
			continue
		}

		f := models.ImportFailure{Index: o.Index, Name: o.Name, Message: o.Err.Error()}
		var uerr *shared.RecordUploadError
		if errors.As(o.Err, &uerr) {
			f.Status = uerr.Status
			if uerr.Err != nil {
				f.Message = uerr.Err.Error()
			} else {
				f.Message = uerr.Body
			}
		}
		failures = append(failures, f)
	}
	return failures
}

// BatchUploader creates pages in fixed-size batches: all creates in a batch run concurrently, and the next batch
// starts only after every call in the previous one settled and Delay elapsed.
type BatchUploader struct {
	BatchSize   int
	Delay       time.Duration
	CallTimeout time.Duration // bound on each page create, zero disables it
	CancelGrace time.Duration // how long a dispatched batch may run after ctx ends before its creates are aborted
	Sleep       func(ctx context.Context, d time.Duration) error // waits between batches
	OnSettle    func(RecordOutcome)                            // called once per record, from the record's goroutine
}

// NewBatchUploader returns an uploader with the default batch size, delay and timeouts.
func NewBatchUploader() *BatchUploader {
	return &BatchUploader{BatchSize: BatchSize, Delay: BatchDelay, CallTimeout: CallTimeout, CancelGrace: CancelGrace, Sleep: sleepContext}
}

// Partition splits n items into consecutive [start, end) ranges of at most size items.
func Partition(n, size int) [][2]int {
	if size <= 0 {
		size = BatchSize
	}

	batches := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		batches = append(batches, [2]int{start, min(start+size, n)})
	}
	return batches
}

// Upload creates one page per record in databaseID.
//
// Failed creates are tallied and never stop the upload. Cancellation is checked before each batch. A batch that
// was already dispatched gets CancelGrace to settle, then its remaining creates are aborted and tallied as
// failures. When ctx ends early the partial result is returned with ctx's error.
func (u *BatchUploader) Upload(
	ctx context.Context,
	dest PageCreator,
	token, databaseID string,
	records []models.NormalizedRecord,
	progress chan<- ProgressUpdate,
) (*UploadResult, error) {
	sleep := u.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	batches := Partition(len(records), u.BatchSize)
	result := &UploadResult{Outcomes: make([]RecordOutcome, 0, len(records))}

	var succeeded atomic.Int64
	for b, bounds := range batches {
		if b > 0 && u.Delay > 0 {
			if err := sleep(ctx, u.Delay); err != nil {
				result.Succeeded = int(succeeded.Load())
				return result, err
			}
		}
		if err := ctx.Err(); err != nil {
			result.Succeeded = int(succeeded.Load())
			return result, err
		}

		start, end := bounds[0], bounds[1]
		settled := make([]RecordOutcome, end-start)
		inflight, abort := context.WithCancel(context.WithoutCancel(ctx))
		stop := context.AfterFunc(ctx, func() { u.abortAfterGrace(inflight, abort) })

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				out := u.create(inflight, dest, token, databaseID, i, records[i])
				if out.Err == nil {
					succeeded.Add(1)
				}
				settled[i-start] = out

				if u.OnSettle != nil {
					u.OnSettle(out)
				}
			}()
		}
		wg.Wait()
		stop()
		abort()

		result.Outcomes = append(result.Outcomes, settled...)
		result.Attempted = end
		result.Succeeded = int(succeeded.Load())

		sendProgress(progress, uploadBatchUpdate(b+1, len(batches), result.Attempted, result.Succeeded, len(records)))

		if err := ctx.Err(); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (u *BatchUploader) create(ctx context.Context, dest PageCreator, token, databaseID string, i int, rec models.NormalizedRecord) RecordOutcome {
	out := RecordOutcome{Index: i, Name: rec.Name}

	if u.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.CallTimeout)
		defer cancel()
	}

	page, err := dest.CreatePage(ctx, token, services.CreatePageRequest{
		Parent:     services.DatabaseParent(databaseID),
		Properties: PageProperties(rec),
	})
	if err != nil {
		uerr := &shared.RecordUploadError{Index: i, Name: rec.Name}

		var apiErr *services.NotionAPIError
		if errors.As(err, &apiErr) {
			uerr.Status = apiErr.Status
			uerr.Body = apiErr.Body
		} else {
			uerr.Err = err
		}
		out.Err = uerr
		return out
	}

	if page != nil {
		out.PageID = page.ID
	}
	return out
}

// abortAfterGrace cancels a dispatched batch once CancelGrace elapses, unless the batch settles first.
func (u *BatchUploader) abortAfterGrace(inflight context.Context, abort context.CancelFunc) {
	if u.CancelGrace <= 0 {
		abort()
		return
	}

	t := time.NewTimer(u.CancelGrace)
	defer t.Stop()

	select {
	case <-t.C:
		abort()
	case <-inflight.Done():
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
