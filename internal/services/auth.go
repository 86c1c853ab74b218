package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
)

const (
	DefaultAppID        = "5091851"
	DefaultAuthorizeURL = "https://oauth.vk.com/authorize"
	DefaultRedirectURI  = "https://oauth.vk.com/blank.html"

	// displayMode asks VK for the minimal mobile markup.
	displayMode  = "wap"
	maxRedirects = 10
)

// Credentials are the login and password typed into the VK login form.
type Credentials struct {
	Login    string
	Password string
}

// AuthConfig configures an [AuthFlow].
type AuthConfig struct {
	AppID        string
	Scope        []string
	AuthorizeURL string
	RedirectURI  string
	Timeout      time.Duration     // per request, 0 means none
	UserAgent    string            // optional
	Transport    http.RoundTripper // optional, mostly for tests
	Logger       *log.Logger       // optional
}

// AccessToken is the result of a successful login.
type AccessToken struct {
	Token     string
	UserID    string
	ExpiresIn int // seconds, 0 when the token does not expire
	IssuedAt  time.Time
}

// ExpiresAt returns when the token expires, or nil for a non-expiring token.
func (t AccessToken) ExpiresAt() *time.Time {
	if t.ExpiresIn <= 0 {
		return nil
	}
	at := t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
	return &at
}

// OAuth2 converts t into an [oauth2.Token] carrying user_id as extra data.
func (t AccessToken) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{AccessToken: t.Token, TokenType: "Bearer"}
	if at := t.ExpiresAt(); at != nil {
		tok.Expiry = *at
	}
	return tok.WithExtra(map[string]any{"user_id": t.UserID})
}

// AuthState is a step of the login flow.
type AuthState int

const (
	StateStart AuthState = iota
	StateLoginPageFetched
	StateCredentialsSubmitted
	StateConsentRequired
	StateConsentSubmitted
	StateTokenLocation
	StateTokenExtracted
	StateFailed
)

func (s AuthState) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateLoginPageFetched:
		return "login page fetched"
	case StateCredentialsSubmitted:
		return "credentials submitted"
	case StateConsentRequired:
		return "consent required"
	case StateConsentSubmitted:
		return "consent submitted"
	case StateTokenLocation:
		return "token location"
	case StateTokenExtracted:
		return "token extracted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AuthFlow logs into VK the way a browser would and returns the access token
// VK puts in the fragment of the redirect URI (OAuth implicit grant).
type AuthFlow struct {
	cfg      AuthConfig
	oauth    *oauth2.Config
	redirect *url.URL
	logger   *log.Logger
}

// NewAuthFlow validates cfg, filling defaults for empty endpoints.
func NewAuthFlow(cfg AuthConfig) (*AuthFlow, error) {
	if cfg.AppID == "" {
		cfg.AppID = DefaultAppID
	}
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = DefaultAuthorizeURL
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = DefaultRedirectURI
	}

	redirect, err := url.Parse(cfg.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect uri %q: %w", cfg.RedirectURI, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &AuthFlow{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:    cfg.AppID,
			RedirectURL: cfg.RedirectURI,
			Scopes:      cfg.Scope,
			Endpoint:    oauth2.Endpoint{AuthURL: cfg.AuthorizeURL},
		},
		redirect: redirect,
		logger:   logger,
	}, nil
}

// AuthorizeURL is the implicit-grant authorization URL the flow starts from.
func (f *AuthFlow) AuthorizeURL() string {
	return f.oauth.AuthCodeURL("",
		oauth2.SetAuthURLParam("response_type", "token"),
		oauth2.SetAuthURLParam("scope", strings.Join(f.cfg.Scope, ",")),
		oauth2.SetAuthURLParam("display", displayMode),
	)
}

// authSession is the state of one Authenticate call.
type authSession struct {
	http  *resty.Client
	page  []byte
	url   *url.URL
	code  int
	token AccessToken
}

func (f *AuthFlow) newSession() (*authSession, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	rc := resty.New()
	rc.SetCookieJar(jar)
	rc.SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects))
	rc.SetRetryCount(0)
	if f.cfg.Transport != nil {
		rc.SetTransport(f.cfg.Transport)
	}
	if f.cfg.Timeout > 0 {
		rc.SetTimeout(f.cfg.Timeout)
	}
	if f.cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", f.cfg.UserAgent)
	}

	return &authSession{http: rc}, nil
}

// Authenticate runs the login flow for creds in a fresh cookie session.
//
// Rejected credentials fail with [ErrCredentials]; a changed page or redirect shape fails
// with [ErrProtocol]; network failures with [ErrTransport].
func (f *AuthFlow) Authenticate(ctx context.Context, creds Credentials) (*AccessToken, error) {
	if creds.Login == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: login and password are required", ErrCredentials)
	}

	s, err := f.newSession()
	if err != nil {
		return nil, err
	}

	state := StateStart
	for state != StateTokenExtracted {
		var next AuthState
		switch state {
		case StateStart:
			next, err = f.fetchLoginPage(ctx, s)
		case StateLoginPageFetched:
			next, err = f.submitCredentials(ctx, s, creds)
		case StateCredentialsSubmitted:
			next, err = f.branch(s)
		case StateConsentRequired:
			next, err = f.submitConsent(ctx, s)
		case StateConsentSubmitted, StateTokenLocation:
			next, err = f.extractToken(s)
		default:
			next, err = StateFailed, fmt.Errorf("%w: unexpected state %s", ErrProtocol, state)
		}

		if err != nil {
			f.logger.Debug("login failed", "state", state, "err", err)
			return nil, err
		}
		f.logger.Debug("login step", "from", state, "to", next)
		state = next
	}

	return &s.token, nil
}

// fetchLoginPage handles Start -> LoginPageFetched.
func (f *AuthFlow) fetchLoginPage(ctx context.Context, s *authSession) (AuthState, error) {
	if err := f.do(ctx, s, http.MethodGet, f.AuthorizeURL(), nil); err != nil {
		return StateFailed, err
	}
	return StateLoginPageFetched, nil
}

// submitCredentials handles LoginPageFetched -> CredentialsSubmitted.
func (f *AuthFlow) submitCredentials(ctx context.Context, s *authSession, creds Credentials) (AuthState, error) {
	form, err := ParseForm(bytes.NewReader(s.page), s.url)
	if err == nil {
		err = form.RequireFields("email", "pass")
	}
	if err != nil {
		return StateFailed, fmt.Errorf("%w: login page: %w", ErrProtocol, err)
	}

	form = form.With("email", creds.Login).With("pass", creds.Password)
	if err := f.submit(ctx, s, form); err != nil {
		return StateFailed, err
	}

	if !success(s.code) {
		if _, perr := ParseForm(bytes.NewReader(s.page), s.url); perr != nil {
			return StateFailed, fmt.Errorf("%w: login rejected with status %d", ErrCredentials, s.code)
		}
	}
	return StateCredentialsSubmitted, nil
}

// branch handles CredentialsSubmitted -> TokenLocation | ConsentRequired.
func (f *AuthFlow) branch(s *authSession) (AuthState, error) {
	if f.atRedirect(s.url) {
		return StateTokenLocation, nil
	}
	return StateConsentRequired, nil
}

// submitConsent handles ConsentRequired -> ConsentSubmitted.
func (f *AuthFlow) submitConsent(ctx context.Context, s *authSession) (AuthState, error) {
	form, err := ParseForm(bytes.NewReader(s.page), s.url)
	if err != nil {
		return StateFailed, fmt.Errorf("%w: consent page: %w", ErrProtocol, err)
	}

	// VK shows the login form again when the password was wrong.
	if form.Has("pass") {
		return StateFailed, ErrCredentials
	}

	if err := f.submit(ctx, s, form); err != nil {
		return StateFailed, err
	}
	return StateConsentSubmitted, nil
}

// extractToken handles ConsentSubmitted | TokenLocation -> TokenExtracted.
func (f *AuthFlow) extractToken(s *authSession) (AuthState, error) {
	if !f.atRedirect(s.url) {
		return StateFailed, fmt.Errorf("%w: %w: landed on %s", ErrProtocol, ErrTokenExtraction, s.url.Path)
	}

	values, err := url.ParseQuery(s.url.Fragment)
	if err != nil {
		return StateFailed, fmt.Errorf("%w: %w: bad fragment: %w", ErrProtocol, ErrTokenExtraction, err)
	}

	if reason := values.Get("error"); reason != "" {
		return StateFailed, fmt.Errorf("%w: %w: %s: %s", ErrProtocol, ErrTokenExtraction, reason, values.Get("error_description"))
	}

	token, userID := values.Get("access_token"), values.Get("user_id")
	if token == "" || userID == "" {
		return StateFailed, fmt.Errorf("%w: %w: access_token and user_id are required", ErrProtocol, ErrTokenExtraction)
	}

	var expiresIn int
	if raw := values.Get("expires_in"); raw != "" {
		expiresIn, err = strconv.Atoi(raw)
		if err != nil {
			return StateFailed, fmt.Errorf("%w: %w: bad expires_in %q", ErrProtocol, ErrTokenExtraction, raw)
		}
	}

	s.token = AccessToken{Token: token, UserID: userID, ExpiresIn: expiresIn, IssuedAt: time.Now()}
	return StateTokenExtracted, nil
}

func (f *AuthFlow) atRedirect(u *url.URL) bool {
	return u != nil && u.Path == f.redirect.Path
}

func (f *AuthFlow) submit(ctx context.Context, s *authSession, form *FormModel) error {
	return f.do(ctx, s, form.Method, form.Action.String(), form.Values())
}

// do performs one request (following redirects) and stores the landing page in s.
func (f *AuthFlow) do(ctx context.Context, s *authSession, method, target string, values url.Values) error {
	req := s.http.R().SetContext(ctx)

	var (
		res *resty.Response
		err error
	)
	switch method {
	case http.MethodPost:
		res, err = req.SetFormDataFromValues(values).Post(target)
	case http.MethodGet:
		res, err = req.SetQueryParamsFromValues(values).Get(target)
	default:
		return fmt.Errorf("%w: %w: %s", ErrProtocol, ErrUnsupportedMethod, method)
	}
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, redactURL(target), err)
	}

	s.page = res.Body()
	s.code = res.StatusCode()
	s.url = res.Request.RawRequest.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		s.url = res.RawResponse.Request.URL
	}
	return nil
}

func success(code int) bool {
	return code >= 200 && code < 300
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
