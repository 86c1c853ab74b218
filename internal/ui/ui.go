package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vkm/internal/models"
	"github.com/desertthunder/vkm/internal/services"
	"github.com/desertthunder/vkm/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	AlbumListView ViewState = iota
	AudioListView
	ConfirmView
	DownloadView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	music      services.MusicService
	engine     *tasks.DownloadEngine
	opts       tasks.DownloadOpts
	width      int
	height     int
	albumList  list.Model
	audioList  list.Model
	album      *models.Album // nil when browsing all audios
	audios     []models.Audio
	marked     map[int]bool
	queued     []models.Audio
	progressCh chan tasks.ProgressUpdate
	doneCh     chan completePayload
	progress   tasks.ProgressUpdate
	spinner    spinner.Model
	result     *tasks.DownloadResult
	err        error
	help       help.Model
	keys       keyMap
}

// NewModel creates a new TUI model. opts are passed to every download started from the UI.
func NewModel(ctx context.Context, music services.MusicService, engine *tasks.DownloadEngine, opts tasks.DownloadOpts) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = NewStyle("#4C75A3")

	return &Model{
		ctx:       ctx,
		view:      AlbumListView,
		music:     music,
		engine:    engine,
		opts:      opts,
		albumList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		audioList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		marked:    map[int]bool{},
		spinner:   s,
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init initializes the TUI by fetching the account's albums.
func (m *Model) Init() tea.Cmd {
	return m.fetchAlbums()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.albumList.SetSize(msg.Width-4, msg.Height-8)
		m.audioList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case AlbumListView:
			return m.handleAlbumListKeys(msg)
		case AudioListView:
			return m.handleAudioListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case DownloadView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != DownloadView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgAlbumsFetched:
		data := msg.data.(albumsPayload)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.albumList = list.New(albumItems(data.albums), list.NewDefaultDelegate(), 0, 0)
		m.albumList.Title = "VK Albums"
		m.albumList.SetSize(m.width-4, m.height-8)
		return m, nil

	case MsgAudiosFetched:
		data := msg.data.(audiosPayload)
		if data.err != nil {
			m.err = data.err
			m.view = AlbumListView
			return m, nil
		}
		m.album = data.album
		m.audios = data.audios
		m.marked = map[int]bool{}
		m.audioList = list.New(audioItems(data.audios), list.NewDefaultDelegate(), 0, 0)
		m.audioList.Title = m.albumTitle()
		m.audioList.SetSize(m.width-4, m.height-8)
		m.view = AudioListView
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForDownload()

	case MsgDownloadComplete:
		data := msg.data.(completePayload)
		m.result = data.result
		m.err = data.err
		m.view = ResultView
		m.progressCh = nil
		m.doneCh = nil
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case AlbumListView:
		return m.renderAlbumList()
	case AudioListView:
		return m.renderAudioList()
	case ConfirmView:
		return m.renderConfirm()
	case DownloadView:
		return m.renderDownload()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleAlbumListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.albumList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.albumList.SelectedItem().(albumItem); ok {
			return m, m.fetchAudios(item.album)
		}
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *Model) handleAudioListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.audioList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = AlbumListView
		return m, nil
	case key.Matches(msg, m.keys.mark):
		m.toggleMark()
		return m, nil
	case key.Matches(msg, m.keys.download):
		m.queued = m.selection()
		if len(m.queued) > 0 {
			m.view = ConfirmView
		}
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = DownloadView
		m.progress = tasks.ProgressUpdate{}
		return m, tea.Batch(m.spinner.Tick, m.startDownload())
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.view = AudioListView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = AlbumListView
		m.album = nil
		m.audios = nil
		m.queued = nil
		m.result = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case AlbumListView:
		m.albumList, cmd = m.albumList.Update(msg)
	case AudioListView:
		m.audioList, cmd = m.audioList.Update(msg)
	}
	return m, cmd
}

func (m *Model) toggleMark() {
	item, ok := m.audioList.SelectedItem().(audioItem)
	if !ok {
		return
	}
	item.marked = !item.marked
	m.marked[item.audio.ID] = item.marked
	m.audioList.SetItem(m.audioList.Index(), item)
}

// selection returns the marked audios in list order, or every audio when none is marked.
func (m *Model) selection() []models.Audio {
	var picked []models.Audio
	for _, a := range m.audios {
		if m.marked[a.ID] {
			picked = append(picked, a)
		}
	}
	if len(picked) == 0 {
		return m.audios
	}
	return picked
}

func (m *Model) albumTitle() string {
	if m.album == nil {
		return "All audios"
	}
	return fmt.Sprintf("Audios in '%s'", m.album.Title)
}

func (m *Model) fetchAlbums() tea.Cmd {
	return func() tea.Msg {
		albums, err := m.music.Albums(m.ctx, services.AlbumQuery{AllPages: true})
		return albumsFetchedMsg(albums, err)
	}
}

func (m *Model) fetchAudios(album *models.Album) tea.Cmd {
	return func() tea.Msg {
		q := services.AudioQuery{AllPages: true}
		if album != nil {
			q.AlbumID = album.ID
		}
		audios, err := m.music.Audios(m.ctx, q)
		return audiosFetchedMsg(album, audios, err)
	}
}

func (m *Model) startDownload() tea.Cmd {
	m.progressCh = make(chan tasks.ProgressUpdate, 50)
	m.doneCh = make(chan completePayload, 1)

	progress, done, audios := m.progressCh, m.doneCh, m.queued
	go func() {
		result, err := m.engine.Download(m.ctx, progress, audios, m.opts)
		done <- completePayload{result: result, err: err}
	}()

	return m.waitForDownload()
}

func (m *Model) waitForDownload() tea.Cmd {
	progress, done := m.progressCh, m.doneCh
	return func() tea.Msg {
		if done == nil {
			return downloadCompleteMsg(m.result, m.err)
		}
		select {
		case update := <-progress:
			return progressUpdateMsg(update)
		case c := <-done:
			return downloadCompleteMsg(c.result, c.err)
		}
	}
}

func (m *Model) renderAlbumList() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.albumList.View(), helpView)
}

func (m *Model) renderAudioList() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.mark, m.keys.download, m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.audioList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Download %d audios?", len(m.queued)))
	info := fmt.Sprintf("\nSource: %s\nDestination: %s\n", m.albumTitle(), m.destination())

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderDownload() string {
	title := styles.title.Render("Downloading")

	var phase string
	switch m.progress.Phase {
	case tasks.DownloadAudio:
		phase = fmt.Sprintf("%s Downloading (%d/%d)", m.spinner.View(), m.progress.Step, m.progress.Total)
	default:
		phase = fmt.Sprintf("%s Preparing...", m.spinner.View())
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, styles.help.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.result == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Download failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	var b strings.Builder
	if m.err != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("Download stopped: %v", m.err)))
	} else {
		b.WriteString(styles.ok.Render("✓ Download Complete!"))
	}

	fmt.Fprintf(&b, "\n\nDestination: %s\nDownloaded: %d/%d\nSkipped: %d",
		m.result.Destination, m.result.Downloaded, m.result.Total, m.result.Skipped)

	if m.result.Failed > 0 {
		b.WriteString("\n\n")
		b.WriteString(styles.warn.Render(fmt.Sprintf("Failed to download %d audios:", m.result.Failed)))
		for _, item := range m.result.Items {
			if item.Err != nil {
				fmt.Fprintf(&b, "\n  • %s - %s", item.Audio.Artist, item.Audio.Title)
			}
		}
	}

	fmt.Fprintf(&b, "\n\n%s", helpView)
	return b.String()
}

func (m *Model) destination() string {
	if m.opts.Destination == "" {
		return "."
	}
	return m.opts.Destination
}
