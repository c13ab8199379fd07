package articles

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// reservedSlugs are path segments the public site claims for itself. An
// article slug colliding with one of these would shadow a site route.
var reservedSlugs = map[string]struct{}{
	"admin":       {},
	"api":         {},
	"static":      {},
	"media":       {},
	"assets":      {},
	"dashboard":   {},
	"login":       {},
	"logout":      {},
	"robots.txt":  {},
	"sitemap.xml": {},
	"favicon.ico": {},
}

// IsReservedSlug reports whether the slug collides with a site route.
func IsReservedSlug(slug string) bool {
	s := strings.ToLower(strings.TrimSpace(slug))
	if s == "" {
		return false
	}
	if _, ok := reservedSlugs[s]; ok {
		return true
	}
	return strings.HasPrefix(s, "_next")
}

var deaccent = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify derives a URL slug from a title: diacritics stripped, lowercased,
// non-alphanumeric runs collapsed to single hyphens.
func Slugify(title string) string {
	flattened, _, err := transform.String(deaccent, title)
	if err != nil {
		flattened = title
	}

	var b strings.Builder
	b.Grow(len(flattened))
	lastHyphen := true
	for _, r := range strings.ToLower(flattened) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
