package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/vkm/internal/formatter"
	"github.com/desertthunder/vkm/internal/models"
	"github.com/desertthunder/vkm/internal/services"
	"github.com/desertthunder/vkm/internal/shared"
	"github.com/desertthunder/vkm/internal/tasks"
	"github.com/urfave/cli/v3"
)

// audioQuery builds the audio.get arguments from the selection flags.
func audioQuery(cmd *cli.Command) (services.AudioQuery, error) {
	q := services.AudioQuery{
		OwnerID:  cmd.Int("owner-id"),
		AlbumID:  cmd.Int("album-id"),
		AudioIDs: cmd.IntSlice("ids"),
		Limit:    cmd.Int("limit"),
		AllPages: cmd.Bool("all"),
	}
	if q.Limit < 0 {
		return q, fmt.Errorf("%w: --limit must not be negative", shared.ErrInvalidFlag)
	}
	return q, nil
}

// outputFormat picks text, CSV or JSON from mutually exclusive flags.
func outputFormat(cmd *cli.Command) (string, error) {
	useJSON, useCSV := cmd.Bool("json"), cmd.Bool("csv")
	switch {
	case useJSON && useCSV:
		return "", fmt.Errorf("%w: --json and --csv are mutually exclusive", shared.ErrInvalidFlag)
	case useJSON:
		return formatter.FormatJSON, nil
	case useCSV:
		return formatter.FormatCSV, nil
	}
	return formatter.FormatText, nil
}

// audioPart validates --print before any request is made.
func audioPart(cmd *cli.Command) (string, error) {
	part := cmd.String("print")
	if _, err := formatter.FormatAudio(models.Audio{}, part); err != nil {
		return "", err
	}
	return part, nil
}

// MusicList prints audios of the user, an owner or an album.
func (r *Runner) MusicList(ctx context.Context, cmd *cli.Command) error {
	q, err := audioQuery(cmd)
	if err != nil {
		return err
	}
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	part, err := audioPart(cmd)
	if err != nil {
		return err
	}

	music, err := r.musicService(ctx)
	if err != nil {
		return err
	}

	r.logger.Debug("listing audios", "owner_id", q.OwnerID, "album_id", q.AlbumID, "limit", q.Limit, "all", q.AllPages)

	audios, err := music.Audios(ctx, q)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}

	return formatter.WriteAudios(r.output, audios, format, part)
}

// MusicAlbums prints audio albums.
func (r *Runner) MusicAlbums(ctx context.Context, cmd *cli.Command) error {
	q := services.AlbumQuery{
		OwnerID:  cmd.Int("owner-id"),
		Limit:    cmd.Int("limit"),
		AllPages: cmd.Bool("all"),
	}

	music, err := r.musicService(ctx)
	if err != nil {
		return err
	}

	albums, err := music.Albums(ctx, q)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}

	return formatter.WriteAlbums(r.output, albums, cmd.String("print"))
}

// MusicSearch runs one audio search and prints the results.
func (r *Runner) MusicSearch(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	part, err := audioPart(cmd)
	if err != nil {
		return err
	}

	music, err := r.musicService(ctx)
	if err != nil {
		return err
	}

	audios, err := music.Search(ctx, services.SearchQuery{
		Query: query,
		Own:   cmd.Bool("own"),
		Limit: cmd.Int("limit"),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}

	if len(audios) == 0 && format == formatter.FormatText {
		r.logger.Info("no audios found", "query", query)
		return nil
	}
	return formatter.WriteAudios(r.output, audios, format, part)
}

// downloadOpts merges download flags over the [download] config section.
func (r *Runner) downloadOpts(cmd *cli.Command) (tasks.DownloadOpts, error) {
	opts := tasks.DownloadOpts{
		Destination:  r.config.Download.Destination,
		Workers:      r.config.Download.Workers,
		RateLimit:    r.config.Download.RateLimit,
		SkipExisting: cmd.Bool("skip-exists"),
		SkipErrors:   cmd.Bool("skip-error"),
		SlugNames:    r.config.Download.SlugNames || cmd.Bool("slug"),
	}
	if dest := cmd.String("destination"); dest != "" {
		opts.Destination = dest
	}
	if cmd.IsSet("workers") {
		opts.Workers = cmd.Int("workers")
		if opts.Workers < 1 || opts.Workers > shared.MaxWorkers {
			return opts, fmt.Errorf("%w: --workers must be between 1 and %d", shared.ErrInvalidFlag, shared.MaxWorkers)
		}
	}
	if cmd.Bool("interactive") {
		opts.Confirm = func(a models.Audio) bool {
			return r.ask(fmt.Sprintf("Download %s?", formatter.MakeAudioName(a.Artist, a.Title, false, formatter.DefaultSeparator)))
		}
	}
	return opts, nil
}

// MusicDownload downloads the selected audios.
func (r *Runner) MusicDownload(ctx context.Context, cmd *cli.Command) error {
	q, err := audioQuery(cmd)
	if err != nil {
		return err
	}
	opts, err := r.downloadOpts(cmd)
	if err != nil {
		return err
	}

	music, err := r.musicService(ctx)
	if err != nil {
		return err
	}
	engine, err := r.downloadEngine()
	if err != nil {
		return err
	}

	audios, err := music.Audios(ctx, q)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	if len(audios) == 0 {
		return r.writePlain("No audios to download\n")
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go printProgress(r.output, progressCh, done)

	result, err := engine.Download(ctx, progressCh, audios, opts)
	close(progressCh)
	<-done

	if result != nil {
		r.writePlain("\n")
		r.writePlainHeader("Download summary")
		r.writePlain("Destination: %s\n", result.Destination)
		r.writePlain("Downloaded: %d/%d\n", result.Downloaded, result.Total)
		r.writePlain("Skipped: %d\n", result.Skipped)
		if result.Failed > 0 {
			r.writePlain("\nFailed to download %d audios:\n", result.Failed)
			for _, item := range result.Items {
				if item.Err != nil && !item.Skipped {
					r.writePlain("  - %s - %s: %v\n", item.Audio.Artist, item.Audio.Title, item.Err)
				}
			}
		}
	}
	return err
}

// MusicHistory prints the most recent downloads.
func (r *Runner) MusicHistory(ctx context.Context, cmd *cli.Command) error {
	if err := r.openStore(); err != nil {
		return err
	}

	downloads, err := r.downloads.List(cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to read download history: %w", err)
	}

	if cmd.Bool("json") {
		type entry struct {
			Sequence  int    `json:"sequence"`
			AudioID   string `json:"audio_id"`
			Artist    string `json:"artist"`
			Title     string `json:"title"`
			Path      string `json:"path"`
			Bytes     int64  `json:"bytes"`
			CreatedAt string `json:"created_at"`
		}
		entries := make([]entry, len(downloads))
		for i, d := range downloads {
			entries[i] = entry{
				Sequence:  d.Sequence(),
				AudioID:   fmt.Sprintf("%d_%d", d.OwnerID, d.AudioID),
				Artist:    d.Artist,
				Title:     d.Title,
				Path:      d.Path,
				Bytes:     d.Bytes,
				CreatedAt: d.CreatedAt().UTC().Format("2006-01-02T15:04:05Z"),
			}
		}
		return r.writeJSON(entries, true)
	}

	if len(downloads) == 0 {
		return r.writePlain("No downloads yet\n")
	}
	_, err = r.output.Write(formatter.HistoryToText(downloads))
	return err
}
