// package testing contains shared testing utilities
package testing

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/desertthunder/cloudnote/internal/models"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// SourceRecords generates n listening records with distinct ids and names.
//
// Every third song is VIP, every fourth purchased, and every fifth has an MV.
func SourceRecords(n int) []models.SourceRecord {
	published := time.Date(2020, time.March, 15, 0, 0, 0, 0, time.UTC).UnixMilli()
	records := make([]models.SourceRecord, n)
	for i := range records {
		song := models.Song{
			ID:          int64(1000 + i),
			Name:        fmt.Sprintf("Song %d", i+1),
			Artists:     []models.Artist{{ID: int64(i + 1), Name: fmt.Sprintf("Artist %d", i+1)}},
			Album:       models.Album{ID: int64(500 + i), Name: fmt.Sprintf("Album %d", i+1), PicURL: fmt.Sprintf("https://p1.music.126.net/%d.jpg", i+1)},
			DurationMS:  int64(180000 + i*1000),
			PublishTime: published,
		}
		if i%3 == 2 {
			song.Fee = 1
		}
		if i%4 == 3 {
			song.Privilege = &models.Privilege{Payed: 1}
		}
		if i%5 == 4 {
			song.MV = int64(9000 + i)
		}
		records[i] = models.SourceRecord{PlayCount: 10 + i, Score: 100 - i, Song: song}
	}
	return records
}
