package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vkm/internal/models"
	"github.com/desertthunder/vkm/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgAlbumsFetched MsgKind = iota
	MsgAudiosFetched
	MsgProgressUpdate
	MsgDownloadComplete
)

type albumsPayload struct {
	albums []models.Album
	err    error
}

type audiosPayload struct {
	album  *models.Album
	audios []models.Audio
	err    error
}

type completePayload struct {
	result *tasks.DownloadResult
	err    error
}

// albumsFetchedMsg is the constructor for [MsgAlbumsFetched]
func albumsFetchedMsg(albums []models.Album, err error) Msg {
	return Msg{kind: MsgAlbumsFetched, data: albumsPayload{albums, err}}
}

// audiosFetchedMsg is the constructor for [MsgAudiosFetched]. A nil album means all audios.
func audiosFetchedMsg(album *models.Album, audios []models.Audio, err error) Msg {
	return Msg{kind: MsgAudiosFetched, data: audiosPayload{album, audios, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// downloadCompleteMsg is the constructor for [MsgDownloadComplete]
func downloadCompleteMsg(result *tasks.DownloadResult, err error) Msg {
	return Msg{kind: MsgDownloadComplete, data: completePayload{result, err}}
}
