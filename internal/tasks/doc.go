// Package tasks imports a NetEase Cloud Music listening history into a new Notion database with real-time progress
// reporting.
//
// # Pipeline
//
// [ImportEngine.Run] walks a fixed sequence of stages and never goes back:
//
//  1. validate input : uid and token must be present
//  2. fetch : one GET of the user's all-time history
//  3. validate : payload code must be 200 and the history non-empty
//  4. transform : [Transform] flattens every record, one output per input, in order
//  5. resolve parent : explicit page id, or the most recently edited page shared with the integration
//  6. provision : one POST creating the twelve-column database from [DatabaseSchema]
//  7. upload : [BatchUploader] creates one page per record, five at a time, one second apart
//
// Any failure before upload stops the run with a [StageError]. Nothing already created in Notion is rolled back,
// and running the same import twice creates a second database with duplicate pages.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// Each stage sends one [ProgressUpdate]; the upload sends one per batch. The final update has phase [Complete] and
// carries the [ImportResult]. Updates use select with default so a slow reader never stalls an import.
//
// # Run History
//
// The optional [RunRecorder] persists a [models.ImportRun] when a run starts and again when it ends, including the
// per-record failures of a partial run. Recorder errors are logged and ignored.
package tasks
