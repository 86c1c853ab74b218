package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/vkm/internal/models"
)

const DefaultSearchLimit = 100

// AudioService implements [MusicService] over the VK audio methods.
type AudioService struct {
	client *Client
}

// NewAudioService creates an [AudioService] calling through client.
func NewAudioService(client *Client) *AudioService {
	return &AudioService{client: client}
}

// Client returns the underlying API client.
func (s *AudioService) Client() *Client { return s.client }

// Audios lists audio.get.
func (s *AudioService) Audios(ctx context.Context, q AudioQuery) ([]models.Audio, error) {
	params := Params{
		"owner_id":  q.OwnerID,
		"album_id":  q.AlbumID,
		"audio_ids": q.AudioIDs,
	}
	opts := ListOptions{Limit: q.Limit, AllPages: q.AllPages}
	return Collect(ListAs[models.Audio](ctx, s.client, "audio.get", opts, params))
}

// Albums lists audio.getAlbums.
func (s *AudioService) Albums(ctx context.Context, q AlbumQuery) ([]models.Album, error) {
	params := Params{"owner_id": q.OwnerID}
	opts := ListOptions{Limit: q.Limit, AllPages: q.AllPages}
	return Collect(ListAs[models.Album](ctx, s.client, "audio.getAlbums", opts, params))
}

// Search performs one audio.search call of at most q.Limit results.
func (s *AudioService) Search(ctx context.Context, q SearchQuery) ([]models.Audio, error) {
	query := strings.TrimSpace(q.Query)
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	searchOwn := 0
	if q.Own {
		searchOwn = 1
	}

	var page struct {
		Count int            `json:"count"`
		Items []models.Audio `json:"items"`
	}
	params := Params{"q": query, "count": limit, "search_own": searchOwn}
	if err := s.client.CallInto(ctx, "audio.search", params, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Validate calls audio.get for a single item to check the token.
func (s *AudioService) Validate(ctx context.Context) error {
	_, err := s.client.Call(ctx, "audio.get", Params{"count": 1})
	return err
}

var _ MusicService = (*AudioService)(nil)
