// Package services implements the HTTP clients cloudnote talks to.
//
// # NetEase Cloud Music
//
// [NeteaseService] reads a user's listening history from the NetEase Cloud Music API proxy and relays
// playlist/song/album detail lookups. History fetches are single-shot: no retries.
//
// [BreakerSource] wraps any [RecordSource] in a [gobreaker.CircuitBreaker] so a relay server stops hammering a
// dead upstream. An open circuit surfaces as [shared.ErrFetchFailed].
//
// # Notion
//
// [NotionService] covers the endpoints the import pipeline and the OAuth relay need:
//   - OAuth authorization URL and code exchange through [oauth2.Config]
//   - POST /v1/databases, POST /v1/pages, POST /v1/search, GET /v1/users/me
//
// Every request carries the bearer token of the caller and the pinned Notion-Version header. An optional
// [rate.Limiter] paces requests client side.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrInvalidInput] : missing uid, unknown detail kind
//   - [shared.ErrFetchFailed] : transport failure reaching NetEase, or open circuit
//   - [shared.UpstreamError] : non-2xx, malformed payload or code != 200 from NetEase
//   - [shared.ProvisioningError] : database creation rejected by Notion, body kept verbatim
//   - [NotionAPIError] : any other non-2xx Notion response
package services
