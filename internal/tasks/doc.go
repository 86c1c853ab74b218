// Package tasks runs the multi-step operations behind the CLI and TUI with progress reporting.
//
// # Token Session
//
// [Session.Resolve] finds an access token in order of preference:
//
//  1. a pre-fetched token given by flag or config
//  2. the newest cached token for the login, unless expired or rejected by VK
//  3. a fresh login through [services.AuthFlow], which is then cached
//
// # Downloads
//
// [DownloadEngine.Download] saves audios to a directory with a pool of workers sharing one
// rate limiter. Interactive confirmation and --skip-exists are applied before queueing. With
// SkipErrors a failed item is reported and the run continues; otherwise the first failure
// cancels the remaining work and is returned.
//
// # Progress Reporting
//
// Operations send [ProgressUpdate] values on a caller-supplied channel. Sends never block:
// a full or nil channel drops the update.
package tasks
