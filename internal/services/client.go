package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
)

const (
	DefaultAPIURL     = "https://api.vk.com/method"
	DefaultAPIVersion = "5.34"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Params are the arguments of one API method call.
//
// Values may be strings, numbers, bools or slices of those. Zero values are left out of the query.
type Params map[string]any

// ClientConfig configures a [Client].
type ClientConfig struct {
	BaseURL     string        // defaults to [DefaultAPIURL]
	Version     string        // defaults to [DefaultAPIVersion]
	AccessToken string        // optional
	Timeout     time.Duration // per request, 0 means none
	UserAgent   string
	HTTPClient  *http.Client // optional, mostly for tests
	Logger      *log.Logger  // optional
}

// Client performs VK API method calls.
type Client struct {
	http    *resty.Client
	version string
	token   string
	logger  *log.Logger
}

// NewClient creates a [Client] from cfg.
func NewClient(cfg ClientConfig) *Client {
	var rc *resty.Client
	if cfg.HTTPClient != nil {
		// resty writes its timeout and transport onto the client it wraps.
		hc := *cfg.HTTPClient
		rc = resty.NewWithClient(&hc)
	} else {
		rc = resty.New()
	}

	base := cfg.BaseURL
	if base == "" {
		base = DefaultAPIURL
	}
	rc.SetBaseURL(strings.TrimRight(base, "/"))
	rc.SetRetryCount(0)
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}

	version := cfg.Version
	if version == "" {
		version = DefaultAPIVersion
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Client{http: rc, version: version, token: cfg.AccessToken, logger: logger}
}

// WithToken returns a client sharing the transport of c that authenticates as token.
func (c *Client) WithToken(token string) *Client {
	out := *c
	out.token = token
	return &out
}

// Token returns the access token the client sends, if any.
func (c *Client) Token() string { return c.token }

// Version returns the API version the client requests.
func (c *Client) Version() string { return c.version }

type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    *APIError       `json:"error"`
}

// Call performs one GET of method and returns the raw "response" value.
//
// An error envelope is returned as [*APIError]. Network failures and bodies that are not
// JSON wrap [ErrTransport].
func (c *Client) Call(ctx context.Context, method string, params Params) (json.RawMessage, error) {
	query := c.CompileParams(params)
	c.logger.Debug("api call", "method", method, "params", redact(query))

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		Get("/" + method)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, method, err)
	}

	var env envelope
	if err := jsonAPI.Unmarshal(res.Body(), &env); err != nil {
		return nil, fmt.Errorf("%w: %s: decode response (status %d): %w", ErrTransport, method, res.StatusCode(), err)
	}

	if env.Error != nil {
		c.logger.Debug("api error", "method", method, "code", env.Error.Code, "msg", env.Error.Message)
		return nil, env.Error
	}

	if len(env.Response) == 0 || string(env.Response) == "null" {
		return nil, fmt.Errorf("%w: %s: response has neither response nor error", ErrTransport, method)
	}

	return env.Response, nil
}

// CallInto performs [Client.Call] and decodes the response into out.
func (c *Client) CallInto(ctx context.Context, method string, params Params, out any) error {
	raw, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if err := jsonAPI.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, method, err)
	}
	return nil
}

// CompileParams renders params as a query string.
//
// Falsy values (nil, "", 0, false, empty slices) are omitted, slices are joined with commas and
// true renders as "1". The access token (when set) and "v" are always appended.
func (c *Client) CompileParams(params Params) url.Values {
	q := make(url.Values, len(params)+2)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		if s, ok := formatParam(params[k]); ok {
			q[k] = []string{s}
		}
	}

	if c.token != "" {
		q["access_token"] = []string{c.token}
	}
	q["v"] = []string{c.version}
	return q
}

// formatParam renders v, reporting false when v is falsy.
func formatParam(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case bool:
		if x {
			return "1", true
		}
		return "", false
	case int:
		return strconv.Itoa(x), x != 0
	case int64:
		return strconv.FormatInt(x, 10), x != 0
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), x != 0
	case []string:
		return strings.Join(x, ","), len(x) > 0
	case []int:
		parts := make([]string, len(x))
		for i, n := range x {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, ","), len(x) > 0
	case fmt.Stringer:
		s := x.String()
		return s, s != ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return "", false
		}
		parts := make([]string, rv.Len())
		for i := range rv.Len() {
			parts[i] = fmt.Sprint(rv.Index(i).Interface())
		}
		return strings.Join(parts, ","), true
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "", false
		}
		return formatParam(rv.Elem().Interface())
	}

	if rv.IsZero() {
		return "", false
	}
	return fmt.Sprint(v), true
}

func redact(q url.Values) url.Values {
	if _, ok := q["access_token"]; !ok {
		return q
	}
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = v
	}
	out["access_token"] = []string{"***"}
	return out
}
