package tasks

import (
	"fmt"

	"github.com/desertthunder/vkm/internal/models"
	"github.com/desertthunder/vkm/internal/shared"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ResolveToken Phase = iota
	Login
	PrepareDownloads
	DownloadAudio
)

func (p Phase) String() string {
	switch p {
	case ResolveToken:
		return "resolve_token"
	case Login:
		return "login"
	case PrepareDownloads:
		return "prepare_downloads"
	case DownloadAudio:
		return "download_audio"
	default:
		return ""
	}
}

// nameWidth caps audio names in progress messages.
const nameWidth = 48

func displayName(a models.Audio) string {
	return shared.Truncate(a.Artist+" - "+a.Title, nameWidth)
}

func cachedTokenUpdate(source TokenSource) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveToken,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Using %s token", source),
		Data:    source,
	}
}

func loginUpdate(login string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Login,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Logging in as %s...", login),
	}
}

func preparedUpdate(queued, skipped int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PrepareDownloads,
		Step:    queued,
		Total:   queued + skipped,
		Message: fmt.Sprintf("Queued %d audios (%d skipped)", queued, skipped),
	}
}

func downloadedUpdate(step, total int, item DownloadItemResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadAudio,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, displayName(item.Audio)),
		Data:    item,
	}
}

func downloadFailedUpdate(step, total int, item DownloadItemResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadAudio,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, displayName(item.Audio), item.Err),
		Data:    item,
	}
}
