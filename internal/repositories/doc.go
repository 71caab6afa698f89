// Package repositories implements SQLite persistence for import history.
//
// [ImportRunRepository] is a models.Store[*models.ImportRun] with atomic sequence generation and soft
// deletes via deleted_at timestamps; deleted runs are excluded from queries. Per-record failures of partial runs are
// stored alongside each run in import_failures.
//
// [ImportHistoryAdapter] plugs the repository into the import engine as its run recorder.
//
// [NextSequence] advances the per-table counters kept in {table}_sequence.
package repositories
