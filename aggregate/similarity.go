package aggregate

import (
	"net/url"
	"strings"
	"unicode"
)

// normalizeTitle lowercases a title and strips punctuation so that
// near-identical titles from different backends compare equal-ish.
func normalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// titleTokens returns the normalized word set of a title.
func titleTokens(title string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, w := range strings.Fields(normalizeTitle(title)) {
		tokens[w] = struct{}{}
	}
	return tokens
}

// titleOverlap computes the Jaccard overlap of two titles' word sets.
func titleOverlap(a, b string) float64 {
	ta, tb := titleTokens(a), titleTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for w := range ta {
		if _, ok := tb[w]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// domainOf extracts the registrable-ish host of a URL, with the "www."
// prefix stripped. Unparseable URLs yield "".
func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// normalizeURL strips scheme, "www." and trailing slashes so that
// http/https and slash variants of the same page compare equal.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.ToLower(raw), "/")
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimRight(u.Path, "/")
	return host + path
}

// similarity scores how likely two items describe the same content.
// Exact URL match is a duplicate outright; otherwise title overlap
// carries most of the weight, with same-domain acting as a tiebreaker.
func similarity(aTitle, aURL, bTitle, bURL string) float64 {
	if aURL != "" && normalizeURL(aURL) == normalizeURL(bURL) {
		return 1.0
	}

	overlap := titleOverlap(aTitle, bTitle)
	if domainOf(aURL) != "" && domainOf(aURL) == domainOf(bURL) {
		return 0.8*overlap + 0.2
	}
	return 0.9 * overlap
}
