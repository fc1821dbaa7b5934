package forms

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const slugBaseLen = 41

var (
	reNoSlug = regexp.MustCompile(`[^a-z0-9\s-]+`)
	reDashes = regexp.MustCompile(`[-\s]+`)
)

// Slugify folds accents, lowercases and joins words with dashes.
func Slugify(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title)
	if err != nil {
		folded = title
	}

	s := strings.ToLower(folded)
	s = reNoSlug.ReplaceAllLiteralString(s, "")
	s = reDashes.ReplaceAllLiteralString(strings.TrimSpace(s), "-")
	return strings.Trim(s, "-")
}

// NewSlug derives a unique-by-construction slug from a title.
func NewSlug(title string) string {
	base := Slugify(title)
	if len(base) > slugBaseLen {
		base = strings.TrimRight(base[:slugBaseLen], "-")
	}
	suffix := uuid.NewString()[:8]
	if base == "" {
		return "form-" + suffix
	}
	return base + "-" + suffix
}
