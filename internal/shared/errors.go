package shared

import (
	"fmt"
	"strings"
)

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Import pipeline errors
	ErrFetchFailed        = fmt.Errorf("fetch failed")
	ErrUpstream           = fmt.Errorf("upstream error")
	ErrEmptyHistory       = fmt.Errorf("listening history is empty")
	ErrNoParentPage       = fmt.Errorf("no page shared with the integration")
	ErrProvisioningFailed = fmt.Errorf("database provisioning failed")
	ErrRecordUploadFailed = fmt.Errorf("record upload failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// UpstreamError describes a response from the listening history API that could not be used.
type UpstreamError struct {
	Status  int    // HTTP status of the response, 0 when unknown
	Code    int    // code field embedded in the payload, 0 when absent
	Message string // upstream message or a description of the malformed payload
}

func (e *UpstreamError) Error() string {
	var parts []string
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status %d", e.Status))
	}
	if e.Code != 0 {
		parts = append(parts, fmt.Sprintf("code %d", e.Code))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%v: %s", ErrUpstream, e.Message)
	}
	return fmt.Sprintf("%v: %s: %s", ErrUpstream, strings.Join(parts, ", "), e.Message)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// ProvisioningError carries the Notion response body verbatim.
type ProvisioningError struct {
	Status int
	Body   string
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("%v: status %d: %s", ErrProvisioningFailed, e.Status, e.Body)
}

func (e *ProvisioningError) Unwrap() error { return ErrProvisioningFailed }

// RecordUploadError is a per-record failure. It is tallied, never fatal.
type RecordUploadError struct {
	Index  int    // position of the record in the import
	Name   string // song name
	Status int    // 0 for transport failures
	Body   string
	Err    error
}

func (e *RecordUploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: #%d %q: %v", ErrRecordUploadFailed, e.Index, e.Name, e.Err)
	}
	return fmt.Sprintf("%v: #%d %q: status %d: %s", ErrRecordUploadFailed, e.Index, e.Name, e.Status, e.Body)
}

func (e *RecordUploadError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRecordUploadFailed, e.Err}
	}
	return []error{ErrRecordUploadFailed}
}
