// NetEase Cloud Music API client
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/cloudnote/internal/models"
	"github.com/desertthunder/cloudnote/internal/shared"
)

// DefaultNeteaseURL is the public NetEase Cloud Music API proxy.
const DefaultNeteaseURL = "https://netease-cloud-music-api-tau-one-92.vercel.app"

// neteaseOK is the payload code for a successful response.
const neteaseOK = 200

// DetailKinds lists the lookups supported by [NeteaseService.Detail].
var DetailKinds = []string{"playlist", "song", "album"}

// NeteaseService reads data from the NetEase Cloud Music API.
type NeteaseService struct {
	baseURL    string
	cookie     string
	httpClient *http.Client
}

// NewNeteaseService creates a client from cfg.
//
// When client is nil a client with cfg.TimeoutSeconds (default 30s) is used.
func NewNeteaseService(cfg shared.NeteaseConfig, client *http.Client) *NeteaseService {
	baseURL := strings.TrimRight(cfg.APIURL, "/")
	if baseURL == "" {
		baseURL = DefaultNeteaseURL
	}

	if client == nil {
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &NeteaseService{baseURL: baseURL, cookie: cfg.Cookie, httpClient: client}
}

// Name returns the service name.
func (n *NeteaseService) Name() string { return "NetEase Cloud Music" }

// UserRecords fetches the all-time listening history (type=0) for uid.
func (n *NeteaseService) UserRecords(ctx context.Context, uid string) (*RecordResponse, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", shared.ErrInvalidInput)
	}

	query := url.Values{"uid": {uid}, "type": {"0"}}
	status, body, err := n.get(ctx, "/user/record?"+query.Encode())
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		return nil, &shared.UpstreamError{Status: status, Message: upstreamMessage(body)}
	}

	var payload struct {
		Code    *int               `json:"code"`
		Message string             `json:"message"`
		Msg     string             `json:"msg"`
		AllData *[]json.RawMessage `json:"allData"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &shared.UpstreamError{Status: status, Message: fmt.Sprintf("malformed payload: %v", err)}
	}

	if payload.Code == nil || *payload.Code != neteaseOK {
		code := 0
		if payload.Code != nil {
			code = *payload.Code
		}
		msg := firstNonEmpty(payload.Message, payload.Msg, "unexpected code")
		return nil, &shared.UpstreamError{Status: status, Code: code, Message: msg}
	}

	if payload.AllData == nil {
		return nil, &shared.UpstreamError{Status: status, Code: *payload.Code, Message: "payload is missing allData"}
	}

	records := make([]models.SourceRecord, len(*payload.AllData))
	for i, raw := range *payload.AllData {
		if err := json.Unmarshal(raw, &records[i]); err != nil {
			records[i] = models.SourceRecord{}
		}
	}
	return &RecordResponse{Code: *payload.Code, AllData: records}, nil
}

// Detail relays a playlist, song or album lookup and returns the upstream JSON untouched.
func (n *NeteaseService) Detail(ctx context.Context, kind, id string) (json.RawMessage, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", shared.ErrInvalidInput)
	}

	var path string
	switch kind {
	case "playlist":
		path = "/playlist/detail?" + url.Values{"id": {id}}.Encode()
	case "song":
		path = "/song/detail?" + url.Values{"ids": {id}}.Encode()
	case "album":
		path = "/album?" + url.Values{"id": {id}}.Encode()
	default:
		return nil, fmt.Errorf("%w: type must be one of %s", shared.ErrInvalidInput, strings.Join(DetailKinds, ", "))
	}

	status, body, err := n.get(ctx, path)
	if err != nil {
		return nil, err
	}

	if !json.Valid(body) {
		return nil, &shared.UpstreamError{Status: status, Message: "response is not JSON"}
	}
	return json.RawMessage(body), nil
}

func (n *NeteaseService) get(ctx context.Context, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to create request: %v", shared.ErrFetchFailed, err)
	}

	req.Header.Set("Accept", "application/json")
	if n.cookie != "" {
		req.Header.Set("Cookie", n.cookie)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrFetchFailed, err)
	}

	return resp.StatusCode, body, nil
}

// upstreamMessage pulls a message out of an error body, falling back to the raw text.
func upstreamMessage(body []byte) string {
	var errResp struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		if msg := firstNonEmpty(errResp.Message, errResp.Msg, errResp.Error); msg != "" {
			return msg
		}
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 512 {
		text = text[:512]
	}
	return text
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
