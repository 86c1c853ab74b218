package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vkm/internal/models"
	"github.com/desertthunder/vkm/internal/shared"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultWorkers   = 2
	DefaultRateLimit = 4.0
	partSuffix       = ".part"
)

// DownloadOpts contains configuration for a download run.
type DownloadOpts struct {
	Destination  string                  // Target directory, created when missing (default: ".")
	Workers      int                     // Concurrent downloads (default: 2, max: 8)
	RateLimit    float64                 // Downloads started per second (default: 4)
	SkipExisting bool                    // Skip audios whose file already exists
	SkipErrors   bool                    // Report failures and continue instead of stopping
	SlugNames    bool                    // Use ASCII slugs for file names
	Confirm      func(models.Audio) bool // Asked once per audio before queueing, nil accepts all
}

// DownloadItemResult is the outcome for one audio.
type DownloadItemResult struct {
	Audio   models.Audio
	Path    string
	Bytes   int64
	Skipped bool
	Err     error
}

// DownloadResult summarizes a download run.
type DownloadResult struct {
	Destination string
	Total       int
	Downloaded  int
	Skipped     int
	Failed      int
	Items       []DownloadItemResult
}

// DownloadEngine saves audio files to disk.
type DownloadEngine struct {
	http    *resty.Client
	history DownloadRecorder
	logger  *log.Logger
}

// NewDownloadEngine creates a [DownloadEngine]. history may be nil.
func NewDownloadEngine(client *resty.Client, history DownloadRecorder, logger *log.Logger) *DownloadEngine {
	if client == nil {
		client = resty.New()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &DownloadEngine{http: client, history: history, logger: logger}
}

// TargetPath is where audio is saved under opts.
func TargetPath(audio models.Audio, opts DownloadOpts) string {
	dest := opts.Destination
	if dest == "" {
		dest = "."
	}
	return filepath.Join(dest, shared.AudioFileName(audio.Artist, audio.Title, opts.SlugNames))
}

// uniquePath numbers path as "name (2).mp3", "name (3).mp3" until it is not in taken.
func uniquePath(path string, taken map[string]bool) string {
	if !taken[path] {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if !taken[candidate] {
			return candidate
		}
	}
}

type downloadJob struct {
	audio models.Audio
	path  string
}

// Download saves audios to opts.Destination with a rate-limited worker pool.
//
// Without SkipErrors the first failure cancels the queued work and is returned wrapping
// [shared.ErrDownloadFailed]; the partial result is returned alongside it.
func (e *DownloadEngine) Download(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	audios []models.Audio,
	opts DownloadOpts,
) (*DownloadResult, error) {
	if opts.Destination == "" {
		opts.Destination = "."
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Workers > shared.MaxWorkers {
		opts.Workers = shared.MaxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}

	if err := os.MkdirAll(opts.Destination, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	result := &DownloadResult{
		Destination: opts.Destination,
		Total:       len(audios),
		Items:       make([]DownloadItemResult, 0, len(audios)),
	}

	var queue []downloadJob
	taken := make(map[string]bool, len(audios))
	for _, audio := range audios {
		path := uniquePath(TargetPath(audio, opts), taken)
		taken[path] = true
		if opts.SkipExisting && fileExists(path) {
			e.logger.Debug("skipping existing file", "path", path)
			result.skip(audio, path)
			continue
		}
		if opts.Confirm != nil && !opts.Confirm(audio) {
			result.skip(audio, path)
			continue
		}
		queue = append(queue, downloadJob{audio: audio, path: path})
	}
	sendProgress(prog, preparedUpdate(len(queue), result.Skipped))

	if len(queue) == 0 {
		return result, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan downloadJob, len(queue))
	results := make(chan DownloadItemResult, len(queue))

	var wg sync.WaitGroup
	for range min(opts.Workers, len(queue)) {
		wg.Add(1)
		go e.downloadWorker(ctx, &wg, limiter, jobs, results)
	}

	for _, job := range queue {
		jobs <- job
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	completed := 0
	for res := range results {
		completed++
		result.Items = append(result.Items, res)

		if res.Err == nil {
			result.Downloaded++
			sendProgress(prog, downloadedUpdate(completed, len(queue), res))
			continue
		}

		if firstErr != nil && errors.Is(res.Err, context.Canceled) {
			continue
		}

		result.Failed++
		sendProgress(prog, downloadFailedUpdate(completed, len(queue), res))
		e.logger.Error("download failed", "audio", res.Audio.FullID(), "err", res.Err)
		if !opts.SkipErrors && firstErr == nil {
			firstErr = fmt.Errorf("%w: %s: %w", shared.ErrDownloadFailed, displayName(res.Audio), res.Err)
			cancel()
		}
	}

	return result, firstErr
}

func (r *DownloadResult) skip(audio models.Audio, path string) {
	r.Skipped++
	r.Items = append(r.Items, DownloadItemResult{Audio: audio, Path: path, Skipped: true})
}

// downloadWorker is a worker goroutine that downloads audios from the jobs channel.
func (e *DownloadEngine) downloadWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan downloadJob,
	results chan<- DownloadItemResult,
) {
	defer wg.Done()

	for job := range jobs {
		res := DownloadItemResult{Audio: job.audio, Path: job.path}
		if err := limiter.Wait(ctx); err != nil {
			res.Err = err
			results <- res
			continue
		}

		res.Bytes, res.Err = e.fetch(ctx, job.audio.URL, job.path)
		if res.Err == nil && e.history != nil {
			if err := e.history.Record(models.NewDownload(job.audio, job.path, res.Bytes)); err != nil {
				e.logger.Warn("failed to record download", "path", job.path, "err", err)
			}
		}
		results <- res
	}
}

// fetch streams url to path through a temporary .part file.
func (e *DownloadEngine) fetch(ctx context.Context, url, path string) (int64, error) {
	if url == "" {
		return 0, fmt.Errorf("%w: audio has no url", shared.ErrAudioNotFound)
	}

	res, err := e.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		return 0, fmt.Errorf("unexpected status %d", res.StatusCode())
	}

	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*"+partSuffix)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	part := f.Name()

	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(part)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(part, path); err != nil {
		os.Remove(part)
		return 0, fmt.Errorf("failed to move file into place: %w", err)
	}
	return n, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
