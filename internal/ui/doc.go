// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through a download:
//  1. [AlbumListView] : pick an album, or "All audios"
//  2. [AudioListView] : preview audios and mark the ones to fetch (none marked means all)
//  3. [ConfirmView] : confirm the download
//  4. [DownloadView] : follow progress updates from the download engine
//  5. [ResultView] : downloaded, skipped and failed counts
//
// The (view) [Model] implements Init/Update/View, receiving fetch and progress results through the [Msg] union.
// Keyboard navigation uses vim-style bindings with contextual help from charmbracelet/bubbles/help.
package ui
