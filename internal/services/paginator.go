package services

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"maps"
)

// MaxPageSize is the largest count the VK list methods accept.
const MaxPageSize = 100

// Caller performs a single API method call. [*Client] implements it.
type Caller interface {
	Call(ctx context.Context, method string, params Params) (json.RawMessage, error)
}

// ListOptions bounds a paginated listing.
type ListOptions struct {
	Limit    int  // stop after this many items, 0 means no limit
	AllPages bool // fetch past the first page
}

// Page is one {"count": N, "items": [...]} response of a list method.
type Page struct {
	Count int               `json:"count"`
	Items []json.RawMessage `json:"items"`
}

// Cursor is the position of a listing between page fetches.
type Cursor struct {
	Offset  int
	Yielded int
	Total   int
	Done    bool
	opts    ListOptions
}

// NewCursor returns the cursor for the first page.
func NewCursor(opts ListOptions) Cursor {
	return Cursor{opts: opts}
}

// PageSize is the count to request for the next page.
func (c Cursor) PageSize() int {
	if c.opts.Limit > 0 && c.opts.Limit < MaxPageSize {
		return c.opts.Limit
	}
	return MaxPageSize
}

// Take reports how many items of page to yield before the limit is reached.
func (c Cursor) Take(page Page) int {
	n := len(page.Items)
	if c.opts.Limit > 0 {
		n = min(n, c.opts.Limit-c.Yielded)
	}
	return max(n, 0)
}

// Advance returns the cursor after page has been yielded.
//
// Termination is checked in order: the limit is reached, only the first page was asked for,
// the offset reached the total, the page was empty.
func (c Cursor) Advance(page Page) Cursor {
	taken := c.Take(page)
	next := c
	next.Total = page.Count
	next.Yielded += taken
	next.Offset += len(page.Items)

	switch {
	case c.opts.Limit > 0 && next.Yielded >= c.opts.Limit:
		next.Done = true
	case !c.opts.AllPages:
		next.Done = true
	case next.Offset >= next.Total:
		next.Done = true
	case len(page.Items) == 0:
		next.Done = true
	}
	return next
}

// List lazily yields every item of a paginated method.
//
// Each iteration issues fresh calls. An error is yielded once and ends the sequence.
func List(ctx context.Context, caller Caller, method string, opts ListOptions, params Params) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		cur := NewCursor(opts)
		for !cur.Done {
			p := maps.Clone(params)
			if p == nil {
				p = Params{}
			}
			p["count"] = cur.PageSize()
			p["offset"] = cur.Offset

			raw, err := caller.Call(ctx, method, p)
			if err != nil {
				yield(nil, err)
				return
			}

			var page Page
			if err := jsonAPI.Unmarshal(raw, &page); err != nil {
				yield(nil, fmt.Errorf("%w: %s: decode page: %w", ErrTransport, method, err))
				return
			}

			for _, item := range page.Items[:cur.Take(page)] {
				if !yield(item, nil) {
					return
				}
			}
			cur = cur.Advance(page)
		}
	}
}

// ListAs is [List] decoding each item into T.
func ListAs[T any](ctx context.Context, caller Caller, method string, opts ListOptions, params Params) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for raw, err := range List(ctx, caller, method, opts, params) {
			var item T
			if err != nil {
				yield(item, err)
				return
			}
			if err := jsonAPI.Unmarshal(raw, &item); err != nil {
				yield(item, fmt.Errorf("%w: %s: decode item: %w", ErrTransport, method, err))
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}
