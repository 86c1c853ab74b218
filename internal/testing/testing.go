// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/desertthunder/vkm/internal/models"
	"github.com/desertthunder/vkm/internal/services"
)

// MockService is a test double for [services.MusicService]
//
// It serves fixed audios and albums and records the queries it receives.
type MockService struct {
	AudioList   []models.Audio
	AlbumList   []models.Album
	Err         error
	ValidateErr error

	AudioQueries  []services.AudioQuery
	SearchQueries []services.SearchQuery
}

func (m *MockService) Audios(ctx context.Context, q services.AudioQuery) ([]models.Audio, error) {
	m.AudioQueries = append(m.AudioQueries, q)
	if m.Err != nil {
		return nil, m.Err
	}

	audios := m.AudioList
	if q.AlbumID != 0 {
		audios = nil
		for _, a := range m.AudioList {
			if a.AlbumID == q.AlbumID {
				audios = append(audios, a)
			}
		}
	}
	if q.Limit > 0 && len(audios) > q.Limit {
		audios = audios[:q.Limit]
	}
	return audios, nil
}

func (m *MockService) Albums(ctx context.Context, q services.AlbumQuery) ([]models.Album, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.AlbumList, nil
}

func (m *MockService) Search(ctx context.Context, q services.SearchQuery) ([]models.Audio, error) {
	m.SearchQueries = append(m.SearchQueries, q)
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.Audio
	for _, a := range m.AudioList {
		if strings.Contains(strings.ToLower(a.Artist+" "+a.Title), strings.ToLower(q.Query)) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockService) Validate(ctx context.Context) error { return m.ValidateErr }

var _ services.MusicService = (*MockService)(nil)

// SampleAudios returns n audios owned by 42 with predictable names and urls under base.
func SampleAudios(base string, n int) []models.Audio {
	audios := make([]models.Audio, n)
	for i := range audios {
		audios[i] = models.Audio{
			ID:       i + 1,
			OwnerID:  42,
			Artist:   fmt.Sprintf("Artist %d", i+1),
			Title:    fmt.Sprintf("Song %d", i+1),
			Duration: 180 + i,
			URL:      fmt.Sprintf("%s/%d.mp3", base, i+1),
		}
	}
	return audios
}

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

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
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
