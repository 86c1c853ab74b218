package models

import (
	"errors"
	"fmt"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

var ErrValidation = errors.New("validation failed")

// Audio is an audio record as returned by the VK audio methods.
type Audio struct {
	ID       int    `json:"id"`
	OwnerID  int    `json:"owner_id"`
	Artist   string `json:"artist"`
	Title    string `json:"title"`
	Duration int    `json:"duration"` // Duration in seconds
	URL      string `json:"url"`
	AlbumID  int    `json:"album_id,omitempty"`
	GenreID  int    `json:"genre_id,omitempty"`
}

// FullID returns the "owner_audio" identifier VK uses to address an audio.
func (a Audio) FullID() string {
	return fmt.Sprintf("%d_%d", a.OwnerID, a.ID)
}

// Album is an audio album as returned by audio.getAlbums.
type Album struct {
	ID      int    `json:"id"`
	OwnerID int    `json:"owner_id"`
	Title   string `json:"title"`
}

// CachedToken is an access token persisted for a login.
type CachedToken struct {
	id        string
	Login     string
	Token     string
	UserID    string
	ExpiresAt *time.Time // nil when the token does not expire
	createdAt time.Time
}

// NewCachedToken creates a [CachedToken] issued now.
func NewCachedToken(login, token, userID string, expiresAt *time.Time) *CachedToken {
	return &CachedToken{
		Login:     login,
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
		createdAt: time.Now(),
	}
}

func (t *CachedToken) ID() string               { return t.id }
func (t *CachedToken) SetID(id string)          { t.id = id }
func (t *CachedToken) CreatedAt() time.Time     { return t.createdAt }
func (t *CachedToken) SetCreatedAt(c time.Time) { t.createdAt = c }

// Expired reports whether the token expired at instant now.
func (t *CachedToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

func (t *CachedToken) Validate() error {
	if t.Login == "" {
		return fmt.Errorf("%w: login is required", ErrValidation)
	}
	if t.Token == "" {
		return fmt.Errorf("%w: token is required", ErrValidation)
	}
	return nil
}

// Download records an audio file written to disk.
type Download struct {
	id        string
	sequence  int
	OwnerID   int
	AudioID   int
	Artist    string
	Title     string
	Path      string
	Bytes     int64
	createdAt time.Time
}

// NewDownload creates a [Download] for audio saved at path.
func NewDownload(audio Audio, path string, size int64) *Download {
	return &Download{
		OwnerID:   audio.OwnerID,
		AudioID:   audio.ID,
		Artist:    audio.Artist,
		Title:     audio.Title,
		Path:      path,
		Bytes:     size,
		createdAt: time.Now(),
	}
}

func (d *Download) ID() string               { return d.id }
func (d *Download) SetID(id string)          { d.id = id }
func (d *Download) Sequence() int            { return d.sequence }
func (d *Download) SetSequence(s int)        { d.sequence = s }
func (d *Download) CreatedAt() time.Time     { return d.createdAt }
func (d *Download) SetCreatedAt(c time.Time) { d.createdAt = c }

func (d *Download) Validate() error {
	if d.AudioID == 0 {
		return fmt.Errorf("%w: audio id is required", ErrValidation)
	}
	if d.Path == "" {
		return fmt.Errorf("%w: path is required", ErrValidation)
	}
	return nil
}
