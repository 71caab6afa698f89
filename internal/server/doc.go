// Package server implements the OAuth relay and import API served by `cloudnote serve`.
//
// The relay exchanges Notion authorization codes for browser clients, proxies NetEase detail lookups and
// runs imports with progress streamed as server-sent events. [LoginHandler] is the single-route callback
// server used by `cloudnote auth login`.
package server
