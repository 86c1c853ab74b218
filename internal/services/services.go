// package services is the VK access layer: form scraping, the browser-style login flow,
// API method calls and pagination, plus typed audio operations on top of them.
package services

import (
	"context"

	"github.com/desertthunder/vkm/internal/models"
)

// MusicService defines the audio operations the CLI, tasks and TUI consume.
type MusicService interface {
	// Audios lists audios of an owner, optionally restricted to an album or a set of ids.
	Audios(ctx context.Context, q AudioQuery) ([]models.Audio, error)

	// Albums lists the audio albums of an owner.
	Albums(ctx context.Context, q AlbumQuery) ([]models.Album, error)

	// Search runs a single audio.search call.
	Search(ctx context.Context, q SearchQuery) ([]models.Audio, error)

	// Validate checks that the access token is accepted.
	Validate(ctx context.Context) error
}

// AudioQuery are the arguments of audio.get.
type AudioQuery struct {
	OwnerID  int   // defaults to the token's user
	AlbumID  int   // optional
	AudioIDs []int // optional
	Limit    int
	AllPages bool
}

// AlbumQuery are the arguments of audio.getAlbums.
type AlbumQuery struct {
	OwnerID  int
	Limit    int
	AllPages bool
}

// SearchQuery are the arguments of audio.search.
type SearchQuery struct {
	Query string
	Own   bool // search only the user's audios
	Limit int  // defaults to [DefaultSearchLimit]
}
