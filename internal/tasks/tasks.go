package tasks

import (
	"github.com/desertthunder/vkm/internal/models"
)

// TokenStore persists access tokens. [repositories.TokenRepository] implements it.
type TokenStore interface {
	Save(token *models.CachedToken) error
	Latest(login string) (*models.CachedToken, error)
	Delete(login string) (int64, error)
	DeleteAll() (int64, error)
}

// DownloadRecorder records completed downloads. [repositories.DownloadRepository] implements it.
type DownloadRecorder interface {
	Record(download *models.Download) error
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
