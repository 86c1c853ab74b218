package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vkm/internal/repositories"
	"github.com/desertthunder/vkm/internal/services"
	"github.com/desertthunder/vkm/internal/shared"
	"github.com/desertthunder/vkm/internal/tasks"
	"github.com/go-resty/resty/v2"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database, login flow and audio service are built lazily so commands that do not
// need them (setup, help) work without a token or a database file.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	reader     *bufio.Reader
	httpClient *http.Client

	db        *sql.DB
	ownsDB    bool
	tokens    *repositories.TokenRepository
	downloads *repositories.DownloadRepository
	auth      tasks.Authenticator
	session   *tasks.Session
	music     services.MusicService
	engine    *tasks.DownloadEngine

	creds services.Credentials
	token string
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	HTTPClient *http.Client          // used for API calls and downloads
	DB         *sql.DB               // opened from config when nil
	Auth       tasks.Authenticator   // built from config when nil
	Music      services.MusicService // built after token resolution when nil
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		httpClient: opts.HTTPClient,
		db:         opts.DB,
		auth:       opts.Auth,
		music:      opts.Music,
	}
}

// SetLogger replaces the runner's logger, e.g. to keep logs out of the TUI.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Close releases the database when the runner opened it.
func (r *Runner) Close() error {
	if r.db != nil && r.ownsDB {
		err := r.db.Close()
		r.db = nil
		return err
	}
	return nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, musicCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// configure runs before every command: it loads the config file, applies global flag
// overrides and collects credentials.
func (r *Runner) configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if lvl := cmd.String("log-level"); lvl != "" {
		shared.SetLogLevel(r.logger, shared.ParseLogLevel(lvl))
	}

	path := cmd.String("config")
	if path == "" {
		path = r.configPath
	}
	if path != "" {
		r.configPath = path
		switch _, err := os.Stat(path); {
		case err == nil:
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.config = config
			r.logger.Debug("config loaded", "path", path)
		case cmd.IsSet("config"):
			return ctx, fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
		default:
			r.logger.Debug("config file not found, using defaults", "path", path)
		}
	}

	if v := cmd.String("api-version"); v != "" {
		r.config.VK.APIVersion = v
	}
	if err := r.config.Validate(); err != nil {
		return ctx, err
	}

	creds, err := r.credentials(cmd)
	if err != nil {
		return ctx, err
	}
	r.creds = creds

	r.token = cmd.String("token")
	if r.token == "" {
		r.token = r.config.Credentials.Token
	}

	return ctx, nil
}

// credentials resolves the login and password from flags, the environment, a credentials
// file or the config file, in that order.
func (r *Runner) credentials(cmd *cli.Command) (services.Credentials, error) {
	file := cmd.String("credentials")
	if file != "" && (cmd.IsSet("login") || cmd.IsSet("password")) {
		return services.Credentials{}, fmt.Errorf("%w: --credentials cannot be combined with --login or --password", shared.ErrInvalidArgument)
	}

	creds := services.Credentials{Login: cmd.String("login"), Password: cmd.String("password")}

	if file == "" && creds.Login == "" && creds.Password == "" {
		envLogin, envPassword := shared.EnvCredentials()
		creds = services.Credentials{Login: envLogin, Password: envPassword}
		if creds.Login == "" && creds.Password == "" {
			file = r.config.Credentials.File
		}
	}

	if file != "" {
		login, password, err := shared.ReadCredentialsFile(file)
		if err != nil {
			return services.Credentials{}, err
		}
		return services.Credentials{Login: login, Password: password}, nil
	}

	if creds.Login == "" {
		creds.Login = r.config.Credentials.Login
	}
	return creds, nil
}

// openStore opens the database once and runs pending migrations.
func (r *Runner) openStore() error {
	if r.tokens != nil {
		return nil
	}

	if r.db == nil {
		db, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		r.db = db
		r.ownsDB = true
	}

	if err := shared.RunMigrations(r.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.tokens = repositories.NewTokenRepository(r.db)
	r.downloads = repositories.NewDownloadRepository(r.db)
	return nil
}

func (r *Runner) apiClient(token string) *services.Client {
	return services.NewClient(services.ClientConfig{
		BaseURL:     r.config.VK.APIURL,
		Version:     r.config.VK.APIVersion,
		AccessToken: token,
		Timeout:     r.config.VK.Timeout(),
		UserAgent:   r.config.VK.UserAgent,
		HTTPClient:  r.httpClient,
		Logger:      shared.WithLogger(r.logger, "component", "api"),
	})
}

// tokenSession builds the [tasks.Session] backed by the token cache.
func (r *Runner) tokenSession() (*tasks.Session, error) {
	if r.session != nil {
		return r.session, nil
	}
	if err := r.openStore(); err != nil {
		return nil, err
	}

	if r.auth == nil {
		flow, err := services.NewAuthFlow(services.AuthConfig{
			AppID:        r.config.VK.AppID,
			Scope:        r.config.VK.Scope,
			AuthorizeURL: r.config.VK.OAuthURL,
			RedirectURI:  r.config.VK.RedirectURI,
			Timeout:      r.config.VK.Timeout(),
			UserAgent:    r.config.VK.UserAgent,
			Transport:    r.httpClient.Transport,
			Logger:       shared.WithLogger(r.logger, "component", "auth"),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
		r.auth = flow
	}

	validate := func(ctx context.Context, token string) error {
		return services.NewAudioService(r.apiClient(token)).Validate(ctx)
	}

	r.session = tasks.NewSession(r.auth, r.tokens, validate, r.logger)
	return r.session, nil
}

// resolveToken returns an access token, prompting for missing credentials when a login
// is needed and the input allows it.
func (r *Runner) resolveToken(ctx context.Context, fresh bool) (*tasks.ResolvedToken, error) {
	session, err := r.tokenSession()
	if err != nil {
		return nil, err
	}

	opts := tasks.ResolveOpts{Token: r.token, Credentials: r.creds, Fresh: fresh}
	resolved, err := r.withSpinner(ctx, "Logging in to VK", func(progress chan<- tasks.ProgressUpdate) (*tasks.ResolvedToken, error) {
		return session.Resolve(ctx, progress, opts)
	})
	if !errors.Is(err, shared.ErrMissingCredentials) {
		return resolved, err
	}

	creds, perr := r.promptCredentials(r.creds)
	if perr != nil {
		return nil, err
	}
	r.creds = creds
	opts.Credentials = creds
	opts.Fresh = true

	return r.withSpinner(ctx, "Logging in to VK", func(progress chan<- tasks.ProgressUpdate) (*tasks.ResolvedToken, error) {
		return session.Resolve(ctx, progress, opts)
	})
}

// musicService returns the audio service, resolving a token first when none was injected.
func (r *Runner) musicService(ctx context.Context) (services.MusicService, error) {
	if r.music != nil {
		return r.music, nil
	}

	resolved, err := r.resolveToken(ctx, false)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("token resolved", "source", resolved.Source, "user_id", resolved.UserID)

	r.music = services.NewAudioService(r.apiClient(resolved.Token))
	return r.music, nil
}

// downloadEngine returns the engine that saves audio files and records them in history.
func (r *Runner) downloadEngine() (*tasks.DownloadEngine, error) {
	if r.engine != nil {
		return r.engine, nil
	}
	if err := r.openStore(); err != nil {
		return nil, err
	}

	// Audio bodies are streamed without the API timeout.
	hc := *r.httpClient
	hc.Timeout = 0
	client := resty.NewWithClient(&hc)
	if ua := r.config.VK.UserAgent; ua != "" {
		client.SetHeader("User-Agent", ua)
	}

	r.engine = tasks.NewDownloadEngine(client, r.downloads, shared.WithLogger(r.logger, "component", "download"))
	return r.engine, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// readLine reads one trimmed line from the runner's input.
func (r *Runner) readLine() (string, error) {
	if r.reader == nil {
		r.reader = bufio.NewReader(r.input)
	}
	line, err := r.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
