// package formatter renders audios, albums and download history as plain lines, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/desertthunder/vkm/internal/models"
	"github.com/desertthunder/vkm/internal/shared"
	"github.com/mattn/go-runewidth"
)

// Print parts accepted by [FormatAudio] and [FormatAlbum].
const (
	PartAll   = ""
	PartID    = "id"
	PartName  = "name"
	PartURL   = "url"
	PartTitle = "title"
)

// Output formats accepted by [WriteAudios].
const (
	FormatText = "text"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// DefaultSeparator sits between artist and title in audio names.
const DefaultSeparator = "-"

// MakeAudioName joins artist and title as "Artist - Title".
//
// When sanitize is set both parts are passed through [shared.SanitizeName] so the result is
// usable as a file name.
func MakeAudioName(artist, title string, sanitize bool, sep string) string {
	if sep == "" {
		sep = DefaultSeparator
	}
	if sanitize {
		artist, title = shared.SanitizeName(artist), shared.SanitizeName(title)
	}
	return artist + " " + sep + " " + title
}

// FormatAudio renders one audio line. An empty part prints "name  url".
func FormatAudio(a models.Audio, part string) (string, error) {
	switch part {
	case PartAll:
		return MakeAudioName(a.Artist, a.Title, true, DefaultSeparator) + "  " + a.URL, nil
	case PartID:
		return a.FullID(), nil
	case PartName:
		return MakeAudioName(a.Artist, a.Title, true, DefaultSeparator), nil
	case PartURL:
		return a.URL, nil
	}
	return "", fmt.Errorf("%w: unknown audio part %q (want id, name or url)", shared.ErrInvalidFlag, part)
}

// FormatAlbum renders one album line. An empty part prints "id  title".
func FormatAlbum(a models.Album, part string) (string, error) {
	switch part {
	case PartAll:
		return strconv.Itoa(a.ID) + "  " + a.Title, nil
	case PartID:
		return strconv.Itoa(a.ID), nil
	case PartTitle:
		return a.Title, nil
	}
	return "", fmt.Errorf("%w: unknown album part %q (want id or title)", shared.ErrInvalidFlag, part)
}

// FormatDuration formats seconds as m:ss.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatBytes formats a byte count with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// AudiosToCSV converts audios to CSV with columns: ID, OwnerID, Artist, Title, Duration, URL
func AudiosToCSV(audios []models.Audio) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "OwnerID", "Artist", "Title", "Duration", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, a := range audios {
		record := []string{
			strconv.Itoa(a.ID),
			strconv.Itoa(a.OwnerID),
			a.Artist,
			a.Title,
			strconv.Itoa(a.Duration),
			a.URL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// AudiosToJSON converts audios to an indented JSON array.
func AudiosToJSON(audios []models.Audio) ([]byte, error) {
	if audios == nil {
		audios = []models.Audio{}
	}
	return shared.MarshalJSON(audios, true)
}

// AudiosToText renders one [FormatAudio] line per audio.
func AudiosToText(audios []models.Audio, part string) ([]byte, error) {
	var buf bytes.Buffer
	for _, a := range audios {
		line, err := FormatAudio(a, part)
		if err != nil {
			return nil, err
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// WriteAudios renders audios in format to w.
func WriteAudios(w io.Writer, audios []models.Audio, format, part string) error {
	var (
		data []byte
		err  error
	)

	switch format {
	case FormatText, "":
		data, err = AudiosToText(audios, part)
	case FormatCSV:
		data, err = AudiosToCSV(audios)
	case FormatJSON:
		data, err = AudiosToJSON(audios)
		data = append(data, '\n')
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// WriteAlbums writes one [FormatAlbum] line per album to w.
func WriteAlbums(w io.Writer, albums []models.Album, part string) error {
	var buf bytes.Buffer
	for _, a := range albums {
		line, err := FormatAlbum(a, part)
		if err != nil {
			return err
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

const historyNameWidth = 48

// HistoryToText renders download history as aligned columns: sequence, date, name, size, path.
func HistoryToText(downloads []*models.Download) []byte {
	var buf bytes.Buffer
	for _, d := range downloads {
		name := shared.Truncate(MakeAudioName(d.Artist, d.Title, false, DefaultSeparator), historyNameWidth)
		name += strings.Repeat(" ", historyNameWidth-runewidth.StringWidth(name))
		fmt.Fprintf(&buf, "%4d  %s  %s  %9s  %s\n",
			d.Sequence(),
			d.CreatedAt().Local().Format("2006-01-02 15:04"),
			name,
			FormatBytes(d.Bytes),
			d.Path,
		)
	}
	return buf.Bytes()
}
