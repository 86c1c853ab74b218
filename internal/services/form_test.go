package services

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const loginPage = `<html><body>
<form method="post" action="https://login.vk.com/?act=login&soft=1">
  <input type="hidden" name="ip_h" value="abc123" />
  <input type="hidden" name="lg_h" value="def456" />
  <input type="hidden" name="_origin" value="https://oauth.vk.com" />
  <input type="text" name="email" />
  <input type="password" name="pass" />
  <input type="checkbox" name="remember" value="1" />
  <input type="submit" value="Log in" />
</form>
</body></html>`

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

func TestParseForm(t *testing.T) {
	page := mustURL(t, "https://oauth.vk.com/authorize?client_id=1")

	t.Run("Login Form", func(t *testing.T) {
		form, err := ParseForm(strings.NewReader(loginPage), page)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if form.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", form.Method)
		}

		if got := form.Action.String(); got != "https://login.vk.com/?act=login&soft=1" {
			t.Errorf("unexpected action %s", got)
		}

		want := []FormField{
			{Name: "ip_h", Value: "abc123"},
			{Name: "lg_h", Value: "def456"},
			{Name: "_origin", Value: "https://oauth.vk.com"},
			{Name: "email", Value: ""},
			{Name: "pass", Value: ""},
		}
		if diff := cmp.Diff(want, form.Fields()); diff != "" {
			t.Errorf("fields mismatch (-want +got):\n%s", diff)
		}

		if err := form.RequireFields("email", "pass"); err != nil {
			t.Errorf("expected required fields present, got %v", err)
		}
	})

	t.Run("Method Defaults To GET", func(t *testing.T) {
		form, err := ParseForm(strings.NewReader(`<form action="/grant"><input type="hidden" name="h" value="1"></form>`), page)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if form.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", form.Method)
		}
		if got := form.Action.String(); got != "https://oauth.vk.com/grant" {
			t.Errorf("relative action should resolve against page, got %s", got)
		}
	})

	t.Run("Lowercase Method", func(t *testing.T) {
		form, err := ParseForm(strings.NewReader(`<form method="post" action="/x"></form>`), page)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if form.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", form.Method)
		}
	})

	t.Run("Input Without Name Ignored", func(t *testing.T) {
		form, err := ParseForm(strings.NewReader(`<form action="/x"><input type="text" value="v"><input type="TEXT" name="a"></form>`), page)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if diff := cmp.Diff([]FormField{{Name: "a"}}, form.Fields()); diff != "" {
			t.Errorf("fields mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		tests := []struct {
			name string
			html string
			want error
		}{
			{name: "no form", html: `<html><body><p>hello</p></body></html>`, want: ErrMalformedPage},
			{name: "two forms", html: `<form action="/a"></form><form action="/b"></form>`, want: ErrMalformedPage},
			{name: "put method", html: `<form method="put" action="/a"></form>`, want: ErrUnsupportedMethod},
			{name: "dialog method", html: `<form method="dialog" action="/a"></form>`, want: ErrUnsupportedMethod},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ParseForm(strings.NewReader(tt.html), page)
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})

	t.Run("Missing Required Field", func(t *testing.T) {
		form, err := ParseForm(strings.NewReader(`<form action="/a"><input type="text" name="email"></form>`), page)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := form.RequireFields("email", "pass"); !errors.Is(err, ErrMalformedPage) {
			t.Errorf("expected ErrMalformedPage, got %v", err)
		}
	})
}

func TestFormModel(t *testing.T) {
	form, err := ParseForm(strings.NewReader(loginPage), nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	t.Run("With Returns Copy", func(t *testing.T) {
		filled := form.With("email", "user@example.com").With("pass", "secret")

		if v, _ := form.Get("email"); v != "" {
			t.Errorf("original form was modified: email=%q", v)
		}
		if v, _ := filled.Get("email"); v != "user@example.com" {
			t.Errorf("expected email to be set, got %q", v)
		}

		values := filled.Values()
		if values.Get("pass") != "secret" || values.Get("ip_h") != "abc123" {
			t.Errorf("unexpected values %v", values)
		}
	})

	t.Run("With Appends New Field", func(t *testing.T) {
		extended := form.With("captcha_key", "x")
		fields := extended.Fields()
		if last := fields[len(fields)-1]; last.Name != "captcha_key" {
			t.Errorf("expected new field appended, got %v", last)
		}
		if len(form.Fields()) != len(fields)-1 {
			t.Error("original form gained a field")
		}
	})

	t.Run("Relative Action Without Page URL", func(t *testing.T) {
		_, err := ParseForm(strings.NewReader(`<form action="/a"></form>`), nil)
		if !errors.Is(err, ErrMalformedPage) {
			t.Errorf("expected ErrMalformedPage, got %v", err)
		}
	})
}
