package services

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FormField is one submittable input of a scraped form.
type FormField struct {
	Name  string
	Value string
}

// FormModel is the single form of a scraped page.
//
// It is immutable: [FormModel.With] returns a modified copy.
type FormModel struct {
	Action *url.URL
	Method string
	fields []FormField
}

// ParseForm scrapes the only <form> in document.
//
// The action is resolved against pageURL. Inputs of type hidden, text and password are kept in
// document order; a missing value attribute reads as "".
func ParseForm(document io.Reader, pageURL *url.URL) (*FormModel, error) {
	doc, err := goquery.NewDocumentFromReader(document)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPage, err)
	}

	forms := doc.Find("form")
	switch forms.Length() {
	case 0:
		return nil, fmt.Errorf("%w: no form found", ErrMalformedPage)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %d forms found, expected one", ErrMalformedPage, forms.Length())
	}

	method := strings.ToUpper(strings.TrimSpace(forms.AttrOr("method", http.MethodGet)))
	if method == "" {
		method = http.MethodGet
	}
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}

	action, err := resolveAction(pageURL, forms.AttrOr("action", ""))
	if err != nil {
		return nil, err
	}

	form := &FormModel{Action: action, Method: method}
	forms.Find("input").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		switch strings.ToLower(s.AttrOr("type", "")) {
		case "hidden", "text", "password":
			form.fields = append(form.fields, FormField{Name: name, Value: s.AttrOr("value", "")})
		}
	})

	return form, nil
}

func resolveAction(pageURL *url.URL, action string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(action))
	if err != nil {
		return nil, fmt.Errorf("%w: bad form action %q: %w", ErrMalformedPage, action, err)
	}
	if pageURL == nil {
		if !ref.IsAbs() {
			return nil, fmt.Errorf("%w: relative form action %q without page url", ErrMalformedPage, action)
		}
		return ref, nil
	}
	return pageURL.ResolveReference(ref), nil
}

// Fields returns a copy of the fields in document order.
func (f *FormModel) Fields() []FormField {
	out := make([]FormField, len(f.fields))
	copy(out, f.fields)
	return out
}

// Get returns the value of the first field called name.
func (f *FormModel) Get(name string) (string, bool) {
	for _, field := range f.fields {
		if field.Name == name {
			return field.Value, true
		}
	}
	return "", false
}

// Has reports whether a field called name exists.
func (f *FormModel) Has(name string) bool {
	_, ok := f.Get(name)
	return ok
}

// RequireFields fails with [ErrMalformedPage] naming the first absent field.
func (f *FormModel) RequireFields(names ...string) error {
	for _, name := range names {
		if !f.Has(name) {
			return fmt.Errorf("%w: form has no %q field", ErrMalformedPage, name)
		}
	}
	return nil
}

// With returns a copy of the form with name set to value. Existing fields keep their
// position; new ones are appended.
func (f *FormModel) With(name, value string) *FormModel {
	out := &FormModel{Action: f.Action, Method: f.Method, fields: f.Fields()}
	for i := range out.fields {
		if out.fields[i].Name == name {
			out.fields[i].Value = value
			return out
		}
	}
	out.fields = append(out.fields, FormField{Name: name, Value: value})
	return out
}

// Values encodes the fields for submission.
func (f *FormModel) Values() url.Values {
	v := make(url.Values, len(f.fields))
	for _, field := range f.fields {
		v.Add(field.Name, field.Value)
	}
	return v
}
