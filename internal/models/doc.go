// Package models defines the domain entities for cloudnote.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects: plain structs decoded from or encoded for external services
//   - [SourceRecord] : one listening history entry from the NetEase Cloud Music API
//   - [Song], [Artist], [Album], [Privilege] : nested parts of a SourceRecord
//   - [NormalizedRecord] : a flattened SourceRecord ready to become a Notion page
//
// 2. Persistent Entities: database-backed models
//   - [ImportRun] : one import attempt with its outcome and counters
//   - [ImportFailure] : one record that could not be uploaded during a run
//
// Persistent entities implement [Record]; [Store] describes their CRUD surface.
package models
