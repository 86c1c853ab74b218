package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/vkm/internal/models"
	"github.com/desertthunder/vkm/internal/repositories"
	"github.com/desertthunder/vkm/internal/services"
	"github.com/desertthunder/vkm/internal/shared"
	tu "github.com/desertthunder/vkm/internal/testing"
	"github.com/google/go-cmp/cmp"
	jsoniter "github.com/json-iterator/go"
)

// fakeAuth hands out a fixed token and records the credentials it was given.
type fakeAuth struct {
	token *services.AccessToken
	err   error
	calls []services.Credentials
}

func (f *fakeAuth) Authenticate(ctx context.Context, creds services.Credentials) (*services.AccessToken, error) {
	f.calls = append(f.calls, creds)
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{token: &services.AccessToken{
		Token:     "vk1.token",
		UserID:    "42",
		ExpiresIn: 86400,
		IssuedAt:  time.Now(),
	}}
}

func TestAuthCommands(t *testing.T) {
	clearCredentialEnv(t)
	configPath, _ := writeTestConfig(t)

	t.Run("login, status and logout", func(t *testing.T) {
		output := &bytes.Buffer{}
		auth := newFakeAuth()
		runner := NewRunner(RunnerOpts{Output: output, DB: newTestDB(t), Auth: auth})

		err := runApp(t, runner, "--config", configPath, "--login", "me@example.com", "--password", "secret", "auth", "login")
		if err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if !strings.Contains(output.String(), "✓ Authenticated (new token)") {
			t.Errorf("unexpected login output %q", output.String())
		}
		if !strings.Contains(output.String(), "User ID: 42") {
			t.Errorf("expected user id in output %q", output.String())
		}
		if len(auth.calls) != 1 || auth.calls[0].Password != "secret" {
			t.Fatalf("expected one login with the flag password, got %+v", auth.calls)
		}

		output.Reset()
		if err := runApp(t, runner, "--config", configPath, "--login", "me@example.com", "auth", "status"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		for _, want := range []string{"Cached token", "Login: me@example.com", "User ID: 42"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("expected %q in status output %q", want, output.String())
			}
		}

		output.Reset()
		if err := runApp(t, runner, "--config", configPath, "--login", "me@example.com", "auth", "logout"); err != nil {
			t.Fatalf("logout failed: %v", err)
		}
		if !strings.Contains(output.String(), "✓ Removed 1 cached token(s)") {
			t.Errorf("unexpected logout output %q", output.String())
		}

		output.Reset()
		if err := runApp(t, runner, "--config", configPath, "--login", "me@example.com", "auth", "status"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(output.String(), "✗ Not authenticated") {
			t.Errorf("expected not authenticated, got %q", output.String())
		}
	})

	t.Run("cached token is reused", func(t *testing.T) {
		auth := newFakeAuth()
		db := newTestDB(t)

		first := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, DB: db, Auth: auth})
		if err := runApp(t, first, "--config", configPath, "-l", "me@example.com", "-p", "secret", "auth", "login"); err != nil {
			t.Fatalf("login failed: %v", err)
		}

		var validated []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			validated = append(validated, r.URL.Query().Get("access_token"))
			fmt.Fprint(w, `{"response":{"count":0,"items":[]}}`)
		}))
		defer server.Close()

		output := &bytes.Buffer{}
		second := NewRunner(RunnerOpts{Output: output, DB: db, Auth: auth})
		cfgPath, config := writeTestConfig(t)
		config.VK.APIURL = server.URL
		if err := shared.SaveConfig(cfgPath, config); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if err := runApp(t, second, "--config", cfgPath, "-l", "me@example.com", "auth", "login"); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if !strings.Contains(output.String(), "✓ Authenticated (cached token)") {
			t.Errorf("unexpected output %q", output.String())
		}
		if len(auth.calls) != 1 {
			t.Errorf("expected a single real login, got %d", len(auth.calls))
		}
		if diff := cmp.Diff([]string{"vk1.token"}, validated); diff != "" {
			t.Errorf("validation mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("pre-fetched token skips the login", func(t *testing.T) {
		output := &bytes.Buffer{}
		auth := newFakeAuth()
		runner := NewRunner(RunnerOpts{Output: output, DB: newTestDB(t), Auth: auth})

		if err := runApp(t, runner, "--config", configPath, "--token", "abc", "auth", "login"); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if !strings.Contains(output.String(), "✓ Authenticated (pre-fetched token)") {
			t.Errorf("unexpected output %q", output.String())
		}
		if len(auth.calls) != 0 {
			t.Errorf("expected no login, got %d", len(auth.calls))
		}
	})

	t.Run("force logs in again", func(t *testing.T) {
		auth := newFakeAuth()
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, DB: newTestDB(t), Auth: auth})

		args := []string{"--config", configPath, "-l", "me@example.com", "-p", "secret", "auth", "login", "--force"}
		if err := runApp(t, runner, args...); err != nil {
			t.Fatalf("first login failed: %v", err)
		}
		if err := runApp(t, runner, args...); err != nil {
			t.Fatalf("second login failed: %v", err)
		}
		if len(auth.calls) != 2 {
			t.Errorf("expected two logins, got %d", len(auth.calls))
		}
	})

	t.Run("prompts for missing credentials", func(t *testing.T) {
		output := &bytes.Buffer{}
		auth := newFakeAuth()
		runner := NewRunner(RunnerOpts{
			Output: output,
			Input:  strings.NewReader("me@example.com\nsecret\n"),
			DB:     newTestDB(t),
			Auth:   auth,
		})

		if err := runApp(t, runner, "--config", configPath, "auth", "login"); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if !strings.Contains(output.String(), "VK login: ") {
			t.Errorf("expected login prompt, got %q", output.String())
		}
		if !strings.Contains(output.String(), "Password for me@example.com: ") {
			t.Errorf("expected password prompt, got %q", output.String())
		}
		want := []services.Credentials{{Login: "me@example.com", Password: "secret"}}
		if diff := cmp.Diff(want, auth.calls); diff != "" {
			t.Errorf("credentials mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing credentials without input", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{
			Output: &bytes.Buffer{},
			Input:  strings.NewReader(""),
			DB:     newTestDB(t),
			Auth:   newFakeAuth(),
		})

		err := runApp(t, runner, "--config", configPath, "auth", "login")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("rejected credentials are returned", func(t *testing.T) {
		auth := &fakeAuth{err: fmt.Errorf("%w: wrong password", services.ErrCredentials)}
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, DB: newTestDB(t), Auth: auth})

		err := runApp(t, runner, "--config", configPath, "-l", "me@example.com", "-p", "bad", "auth", "login")
		if !errors.Is(err, services.ErrCredentials) {
			t.Errorf("expected ErrCredentials, got %v", err)
		}
	})

	t.Run("logout requires a login", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, DB: newTestDB(t)})

		err := runApp(t, runner, "--config", configPath, "auth", "logout")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("logout all", func(t *testing.T) {
		output := &bytes.Buffer{}
		db := newTestDB(t)
		runner := NewRunner(RunnerOpts{Output: output, DB: db, Auth: newFakeAuth()})

		for _, login := range []string{"a@example.com", "b@example.com"} {
			if err := runApp(t, runner, "--config", configPath, "-l", login, "-p", "pw", "auth", "login", "--force"); err != nil {
				t.Fatalf("login failed: %v", err)
			}
		}

		output.Reset()
		if err := runApp(t, runner, "--config", configPath, "auth", "logout", "--all"); err != nil {
			t.Fatalf("logout failed: %v", err)
		}
		if !strings.Contains(output.String(), "✓ Removed 2 cached token(s)") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("status check reports an expired token", func(t *testing.T) {
		db := newTestDB(t)
		if err := shared.RunMigrations(db); err != nil {
			t.Fatalf("failed to migrate: %v", err)
		}
		past := time.Now().Add(-time.Hour)
		expired := models.NewCachedToken("me@example.com", "old.token", "42", &past)
		if err := repositories.NewTokenRepository(db).Save(expired); err != nil {
			t.Fatalf("failed to save token: %v", err)
		}

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output, DB: db})
		if err := runApp(t, runner, "--config", configPath, "-l", "me@example.com", "auth", "status"); err != nil {
			t.Fatalf("status without --check failed: %v", err)
		}
		if !strings.Contains(output.String(), "Status: ✗ Expired") {
			t.Errorf("expected expired status, got %q", output.String())
		}

		err := runApp(t, runner, "--config", configPath, "-l", "me@example.com", "auth", "status", "--check")
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})
}

func TestMusicCommands(t *testing.T) {
	clearCredentialEnv(t)
	configPath, _ := writeTestConfig(t)

	newRunner := func(t *testing.T, music *tu.MockService) (*Runner, *bytes.Buffer) {
		t.Helper()
		output := &bytes.Buffer{}
		return NewRunner(RunnerOpts{Output: output, DB: newTestDB(t), Music: music}), output
	}

	t.Run("list", func(t *testing.T) {
		audios := tu.SampleAudios("https://cs.vk.me", 2)

		tests := []struct {
			name string
			args []string
			want string
		}{
			{
				name: "text",
				args: []string{"music", "list"},
				want: "Artist 1 - Song 1  https://cs.vk.me/1.mp3\nArtist 2 - Song 2  https://cs.vk.me/2.mp3\n",
			},
			{
				name: "ids",
				args: []string{"music", "list", "--print", "id"},
				want: "42_1\n42_2\n",
			},
			{
				name: "urls",
				args: []string{"music", "list", "--print", "url"},
				want: "https://cs.vk.me/1.mp3\nhttps://cs.vk.me/2.mp3\n",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				runner, output := newRunner(t, &tu.MockService{AudioList: audios})

				if err := runApp(t, runner, append([]string{"--config", configPath}, tt.args...)...); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if output.String() != tt.want {
					t.Errorf("expected %q, got %q", tt.want, output.String())
				}
			})
		}
	})

	t.Run("list json", func(t *testing.T) {
		audios := tu.SampleAudios("https://cs.vk.me", 3)
		runner, output := newRunner(t, &tu.MockService{AudioList: audios})

		if err := runApp(t, runner, "--config", configPath, "music", "list", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got []models.Audio
		if err := jsoniter.Unmarshal(output.Bytes(), &got); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, output.String())
		}
		if diff := cmp.Diff(audios, got); diff != "" {
			t.Errorf("audios mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("list csv", func(t *testing.T) {
		runner, output := newRunner(t, &tu.MockService{AudioList: tu.SampleAudios("https://cs.vk.me", 1)})

		if err := runApp(t, runner, "--config", configPath, "music", "list", "--csv"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(output.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected header and one row, got %q", output.String())
		}
		if lines[0] != "ID,OwnerID,Artist,Title,Duration,URL" {
			t.Errorf("unexpected header %q", lines[0])
		}
	})

	t.Run("list passes the selection", func(t *testing.T) {
		music := &tu.MockService{}
		runner, _ := newRunner(t, music)

		err := runApp(t, runner, "--config", configPath,
			"music", "list", "--owner-id=-100", "--album-id", "7", "--ids", "1,2", "--limit", "5", "--all")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []services.AudioQuery{{OwnerID: -100, AlbumID: 7, AudioIDs: []int{1, 2}, Limit: 5, AllPages: true}}
		if diff := cmp.Diff(want, music.AudioQueries); diff != "" {
			t.Errorf("query mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("list rejects bad flags", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
		}{
			{name: "json and csv", args: []string{"music", "list", "--json", "--csv"}},
			{name: "unknown part", args: []string{"music", "list", "--print", "lyrics"}},
			{name: "negative limit", args: []string{"music", "list", "--limit", "-1"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				music := &tu.MockService{}
				runner, _ := newRunner(t, music)

				err := runApp(t, runner, append([]string{"--config", configPath}, tt.args...)...)
				if !errors.Is(err, shared.ErrInvalidFlag) {
					t.Errorf("expected ErrInvalidFlag, got %v", err)
				}
				if len(music.AudioQueries) != 0 {
					t.Error("expected no request to be made")
				}
			})
		}
	})

	t.Run("list wraps API errors", func(t *testing.T) {
		apiErr := &services.APIError{Code: 201, Message: "Access denied"}
		runner, _ := newRunner(t, &tu.MockService{Err: apiErr})

		err := runApp(t, runner, "--config", configPath, "music", "list")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		var got *services.APIError
		if !errors.As(err, &got) || got.Code != 201 {
			t.Errorf("expected the API error to be kept, got %v", err)
		}
	})

	t.Run("albums", func(t *testing.T) {
		music := &tu.MockService{AlbumList: []models.Album{
			{ID: 1, OwnerID: 42, Title: "Road trip"},
			{ID: 2, OwnerID: 42, Title: "Focus"},
		}}
		runner, output := newRunner(t, music)

		if err := runApp(t, runner, "--config", configPath, "music", "albums", "--print", "title"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if output.String() != "Road trip\nFocus\n" {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("search", func(t *testing.T) {
		music := &tu.MockService{AudioList: tu.SampleAudios("https://cs.vk.me", 3)}
		runner, output := newRunner(t, music)

		if err := runApp(t, runner, "--config", configPath, "music", "search", "--own", "--print", "name", "song 2"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []services.SearchQuery{{Query: "song 2", Own: true, Limit: services.DefaultSearchLimit}}
		if diff := cmp.Diff(want, music.SearchQueries); diff != "" {
			t.Errorf("query mismatch (-want +got):\n%s", diff)
		}
		if output.String() != "Artist 2 - Song 2\n" {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("search without a query", func(t *testing.T) {
		music := &tu.MockService{}
		runner, _ := newRunner(t, music)

		err := runApp(t, runner, "--config", configPath, "music", "search")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if len(music.SearchQueries) != 0 {
			t.Error("expected no request to be made")
		}
	})

	t.Run("history is empty", func(t *testing.T) {
		runner, output := newRunner(t, &tu.MockService{})

		if err := runApp(t, runner, "--config", configPath, "music", "history"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if output.String() != "No downloads yet\n" {
			t.Errorf("unexpected output %q", output.String())
		}
	})
}

func TestMusicDownload(t *testing.T) {
	clearCredentialEnv(t)
	configPath, _ := writeTestConfig(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.mp3" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "audio bytes for %s", r.URL.Path)
	}))
	defer server.Close()

	t.Run("downloads and records history", func(t *testing.T) {
		dest := t.TempDir()
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{
			Output: output,
			DB:     newTestDB(t),
			Music:  &tu.MockService{AudioList: tu.SampleAudios(server.URL, 2)},
		})

		if err := runApp(t, runner, "--config", configPath, "music", "download", "-d", dest, "--workers", "2"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(dest, "Artist 1 - Song 1.mp3"))
		tu.AssertFileExists(t, filepath.Join(dest, "Artist 2 - Song 2.mp3"))
		if got := tu.MustReadFile(t, filepath.Join(dest, "Artist 1 - Song 1.mp3")); got != "audio bytes for /1.mp3" {
			t.Errorf("unexpected file content %q", got)
		}
		if !strings.Contains(output.String(), "Downloaded: 2/2") {
			t.Errorf("expected summary in output %q", output.String())
		}

		output.Reset()
		if err := runApp(t, runner, "--config", configPath, "music", "history"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		for _, want := range []string{"Artist 1 - Song 1", "Artist 2 - Song 2"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("expected %q in history %q", want, output.String())
			}
		}
	})

	t.Run("interactive skips declined audios", func(t *testing.T) {
		dest := t.TempDir()
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{
			Output: output,
			Input:  strings.NewReader("y\nn\n"),
			DB:     newTestDB(t),
			Music:  &tu.MockService{AudioList: tu.SampleAudios(server.URL, 2)},
		})

		if err := runApp(t, runner, "--config", configPath, "music", "download", "-i", "-d", dest); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(output.String(), "Download Artist 1 - Song 1? Y/N: ") {
			t.Errorf("expected a prompt, got %q", output.String())
		}
		tu.AssertFileExists(t, filepath.Join(dest, "Artist 1 - Song 1.mp3"))
		if _, err := os.Stat(filepath.Join(dest, "Artist 2 - Song 2.mp3")); !os.IsNotExist(err) {
			t.Error("expected the declined audio not to be downloaded")
		}
		if !strings.Contains(output.String(), "Skipped: 1") {
			t.Errorf("expected one skipped audio, got %q", output.String())
		}
	})

	t.Run("failure stops without skip-error", func(t *testing.T) {
		audios := tu.SampleAudios(server.URL, 1)
		audios[0].URL = server.URL + "/missing.mp3"
		runner := NewRunner(RunnerOpts{
			Output: &bytes.Buffer{},
			DB:     newTestDB(t),
			Music:  &tu.MockService{AudioList: audios},
		})

		err := runApp(t, runner, "--config", configPath, "music", "download", "-d", t.TempDir())
		if !errors.Is(err, shared.ErrDownloadFailed) {
			t.Errorf("expected ErrDownloadFailed, got %v", err)
		}
	})

	t.Run("skip-error reports failures", func(t *testing.T) {
		audios := tu.SampleAudios(server.URL, 2)
		audios[0].URL = server.URL + "/missing.mp3"
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{
			Output: output,
			DB:     newTestDB(t),
			Music:  &tu.MockService{AudioList: audios},
		})

		if err := runApp(t, runner, "--config", configPath, "music", "download", "--skip-error", "-d", t.TempDir()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output.String(), "Failed to download 1 audios") {
			t.Errorf("expected a failure report, got %q", output.String())
		}
	})

	t.Run("rejects worker count", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, DB: newTestDB(t), Music: &tu.MockService{}})

		err := runApp(t, runner, "--config", configPath, "music", "download", "--workers", "0")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("nothing to download", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output, DB: newTestDB(t), Music: &tu.MockService{}})

		if err := runApp(t, runner, "--config", configPath, "music", "download", "-d", t.TempDir()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if output.String() != "No audios to download\n" {
			t.Errorf("unexpected output %q", output.String())
		}
	})
}

func TestSetup(t *testing.T) {
	wd := tu.MustGetwd(t)
	dir := t.TempDir()
	tu.MustChdir(t, dir)
	t.Cleanup(func() { tu.MustChdir(t, wd) })

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Output: output})
	defer runner.Close()

	if err := runApp(t, runner, "setup"); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tu.AssertFileExists(t, filepath.Join(dir, defaultConfigPath))
	tu.AssertFileExists(t, filepath.Join(dir, runner.config.Database.Path))
	if !strings.Contains(output.String(), "✓ Config written to config.toml") {
		t.Errorf("unexpected output %q", output.String())
	}

	t.Run("keeps an existing config", func(t *testing.T) {
		output := &bytes.Buffer{}
		again := NewRunner(RunnerOpts{Output: output})
		defer again.Close()

		if err := runApp(t, again, "setup"); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if strings.Contains(output.String(), "Config written") {
			t.Errorf("expected the config to be kept, got %q", output.String())
		}
	})
}
