package shared

import (
	"strings"
	"unicode"

	"github.com/gosimple/slug"
	"github.com/mattn/go-runewidth"
)

const (
	MaxNamePart = 175
	AudioExt    = ".mp3"
)

// forbidden holds characters no common filesystem accepts in a file name.
const forbidden = `/\:*"<>|` + "\x00"

// SanitizeName drops non-printable runes, replaces characters filesystems reject with '_'
// and caps the result at [MaxNamePart] runes.
func SanitizeName(s string) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.TrimSpace(s) {
		if n == MaxNamePart {
			break
		}
		switch {
		case !unicode.IsPrint(r):
			continue
		case strings.ContainsRune(forbidden, r), r == '?':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
		n++
	}
	return strings.TrimSpace(b.String())
}

// SlugName builds an ASCII slug for s, capped at [MaxNamePart] bytes.
func SlugName(s string) string {
	out := slug.Make(s)
	if len(out) > MaxNamePart {
		out = strings.TrimRight(out[:MaxNamePart], "-")
	}
	return out
}

// AudioFileName builds "Artist - Title.mp3" using [SanitizeName] or [SlugName] per part.
func AudioFileName(artist, title string, useSlug bool) string {
	clean := SanitizeName
	sep := " - "
	if useSlug {
		clean = SlugName
		sep = "_"
	}

	a, t := clean(artist), clean(title)
	switch {
	case a == "" && t == "":
		return "untitled" + AudioExt
	case a == "":
		return t + AudioExt
	case t == "":
		return a + AudioExt
	}
	return a + sep + t + AudioExt
}

// Truncate shortens s to at most width terminal cells, appending an ellipsis when cut.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}
