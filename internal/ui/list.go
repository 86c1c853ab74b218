package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/vkm/internal/formatter"
	"github.com/desertthunder/vkm/internal/models"
)

var (
	_ list.Item = albumItem{}
	_ list.Item = audioItem{}
)

// albumItem wraps [models.Album] to implement [list.Item]. A nil album is the "All audios" entry.
type albumItem struct {
	album *models.Album
}

func (i albumItem) FilterValue() string { return i.Title() }
func (i albumItem) Title() string {
	if i.album == nil {
		return "All audios"
	}
	return i.album.Title
}
func (i albumItem) Description() string {
	if i.album == nil {
		return "Every audio on the account"
	}
	return fmt.Sprintf("album %d", i.album.ID)
}

// audioItem wraps [models.Audio] to implement [list.Item].
type audioItem struct {
	audio  models.Audio
	marked bool
}

func (i audioItem) FilterValue() string { return i.audio.Artist + " " + i.audio.Title }
func (i audioItem) Title() string {
	mark := "  "
	if i.marked {
		mark = "● "
	}
	return mark + i.audio.Title
}
func (i audioItem) Description() string {
	return fmt.Sprintf("%s • %s", i.audio.Artist, formatter.FormatDuration(i.audio.Duration))
}

func albumItems(albums []models.Album) []list.Item {
	items := make([]list.Item, 0, len(albums)+1)
	items = append(items, albumItem{})
	for i := range albums {
		items = append(items, albumItem{album: &albums[i]})
	}
	return items
}

func audioItems(audios []models.Audio) []list.Item {
	items := make([]list.Item, len(audios))
	for i, a := range audios {
		items[i] = audioItem{audio: a}
	}
	return items
}
