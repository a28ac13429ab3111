package identity

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9]+`)
	multiDashRegex  = regexp.MustCompile(`-{2,}`)
	diacriticsStrip = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Slug turns an arbitrary vendor string into a filesystem- and URL-safe
// directory token: diacritics stripped, lowercased, non-alphanumeric runs
// collapsed to single hyphens.
func Slug(s string) string {
	if out, _, err := transform.String(diacriticsStrip, s); err == nil {
		s = out
	}
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnumRegex.ReplaceAllString(s, "-")
	s = multiDashRegex.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SanitizeFilename slugs a remote image filename while preserving a usable
// extension. Missing or non-image extensions become ".jpg".
func SanitizeFilename(name string) string {
	ext := strings.ToLower(path.Ext(name))
	base := strings.TrimSuffix(name, path.Ext(name))
	if !isImageExt(ext) {
		ext = ".jpg"
	}

	slug := Slug(base)
	if slug == "" {
		slug = "image"
	}
	return slug + ext
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp":
		return true
	}
	return false
}

// UniqueName resolves collisions within one seed's image set by appending
// -2, -3, ... before the extension. The used set is updated with the result.
func UniqueName(used map[string]bool, name string) string {
	if !used[name] {
		used[name] = true
		return name
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if !used[candidate] {
			used[candidate] = true
			return candidate
		}
	}
}
