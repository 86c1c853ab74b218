package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/desertthunder/vkm/internal/services"
	"github.com/desertthunder/vkm/internal/shared"
	"github.com/desertthunder/vkm/internal/tasks"
	"golang.org/x/term"
)

// isTerminal reports whether v is a file attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ask prints question and reads a Y/N answer. An empty answer or end of input means no.
func (r *Runner) ask(question string) bool {
	if !strings.HasSuffix(question, "?") {
		question += " ?"
	}
	for {
		r.writePlain("%s Y/N: ", question)
		answer, err := r.readLine()
		if err != nil {
			return false
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true
		case "n", "no", "":
			return false
		default:
			r.writePlain("Invalid character.\n")
		}
	}
}

// readSecret reads a line without echo when the input is a terminal.
func (r *Runner) readSecret(prompt string) (string, error) {
	r.writePlain("%s", prompt)
	if isTerminal(r.input) {
		f := r.input.(*os.File)
		b, err := term.ReadPassword(int(f.Fd()))
		r.writePlain("\n")
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return r.readLine()
}

// promptCredentials asks for whatever part of creds is missing.
func (r *Runner) promptCredentials(creds services.Credentials) (services.Credentials, error) {
	if creds.Login == "" {
		r.writePlain("VK login: ")
		login, err := r.readLine()
		if err != nil {
			return creds, err
		}
		creds.Login = login
	}
	if creds.Password == "" {
		password, err := r.readSecret(fmt.Sprintf("Password for %s: ", creds.Login))
		if err != nil {
			return creds, err
		}
		creds.Password = password
	}
	if creds.Login == "" || creds.Password == "" {
		return creds, shared.ErrMissingCredentials
	}
	return creds, nil
}

// withSpinner runs fn while a spinner on stderr shows its progress messages.
//
// The spinner is only drawn when stderr is a terminal.
func (r *Runner) withSpinner(
	ctx context.Context,
	label string,
	fn func(progress chan<- tasks.ProgressUpdate) (*tasks.ResolvedToken, error),
) (*tasks.ResolvedToken, error) {
	progress := make(chan tasks.ProgressUpdate, 10)
	drained := make(chan struct{})

	var s *spinner.Spinner
	if isTerminal(os.Stderr) {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " " + label
		s.Start()
	}

	go func() {
		defer close(drained)
		for update := range progress {
			r.logger.Debug(update.Message, "phase", update.Phase)
			if s != nil {
				s.Lock()
				s.Suffix = " " + update.Message
				s.Unlock()
			}
		}
	}()

	resolved, err := fn(progress)
	close(progress)
	<-drained

	if s != nil {
		s.Stop()
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return resolved, err
}

// printProgress writes download progress updates to w until progress is closed.
func printProgress(w io.Writer, progress <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	defer close(done)
	for update := range progress {
		if update.Phase == tasks.DownloadAudio {
			fmt.Fprintf(w, "  %s\n", update.Message)
			continue
		}
		fmt.Fprintf(w, "%s\n", update.Message)
	}
}
