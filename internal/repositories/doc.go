// Package repositories implements SQLite persistence for cached access tokens and download history.
//
// Key Implementations:
//   - [TokenRepository] : access tokens per login, newest first
//   - [DownloadRepository] : completed downloads, used by --skip-exists and the history command
//
// Downloads carry a sequence number from [NextSequence], which atomically increments the
// counter in the downloads_sequence table.
package repositories
