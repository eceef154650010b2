package aggregate

import (
	"strings"
	"time"
)

// reliableDomains maps well-known source domains to a 0..1 reliability
// prior. Unknown domains fall back to defaultReliability.
var reliableDomains = map[string]float64{
	"wikipedia.org":       0.9,
	"arxiv.org":           0.95,
	"nature.com":          0.95,
	"sciencedirect.com":   0.9,
	"ncbi.nlm.nih.gov":    0.95,
	"scholar.google.com":  0.9,
	"britannica.com":      0.85,
	"khanacademy.org":     0.85,
	"mit.edu":             0.9,
	"stanford.edu":        0.9,
	"youtube.com":         0.6,
	"medium.com":          0.5,
	"reddit.com":          0.45,
	"stackexchange.com":   0.65,
	"stackoverflow.com":   0.7,
	"quora.com":           0.4,
}

const defaultReliability = 0.5

// sourceReliability scores a URL's domain. Academic and government TLDs
// get a bump even when the exact domain is unknown.
func sourceReliability(rawURL string) float64 {
	domain := domainOf(rawURL)
	if domain == "" {
		return defaultReliability * 0.8
	}
	for known, score := range reliableDomains {
		if domain == known || strings.HasSuffix(domain, "."+known) {
			return score
		}
	}
	if strings.HasSuffix(domain, ".edu") || strings.HasSuffix(domain, ".gov") {
		return 0.85
	}
	if strings.HasSuffix(domain, ".org") {
		return 0.6
	}
	return defaultReliability
}

// recencyScore maps a published-at string to 0..1, newest first. Items
// without a parseable date sit at a neutral 0.5.
func recencyScore(publishedAt string, now time.Time) float64 {
	if publishedAt == "" {
		return 0.5
	}
	var ts time.Time
	var err error
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01"} {
		ts, err = time.Parse(layout, publishedAt)
		if err == nil {
			break
		}
	}
	if err != nil {
		return 0.5
	}

	age := now.Sub(ts)
	switch {
	case age < 0:
		return 1.0
	case age < 30*24*time.Hour:
		return 1.0
	case age < 180*24*time.Hour:
		return 0.8
	case age < 365*24*time.Hour:
		return 0.6
	case age < 3*365*24*time.Hour:
		return 0.4
	default:
		return 0.2
	}
}

// uniquenessScore rewards results few agents duplicated. A heavily
// duplicated cluster is well-corroborated but adds little new signal.
func uniquenessScore(duplicateCount int) float64 {
	switch {
	case duplicateCount == 0:
		return 1.0
	case duplicateCount == 1:
		return 0.7
	case duplicateCount == 2:
		return 0.5
	default:
		return 0.3
	}
}

// contentTypesOf infers coarse content types from the URL and source.
func contentTypesOf(rawURL, source string) []string {
	domain := domainOf(rawURL)
	s := strings.ToLower(source)

	var out []string
	switch {
	case strings.Contains(domain, "youtube") || strings.Contains(domain, "vimeo") || s == "video":
		out = append(out, "video")
	case strings.Contains(domain, "arxiv") || strings.Contains(domain, "scholar") ||
		strings.HasSuffix(domain, ".edu") || s == "academic":
		out = append(out, "academic")
	case strings.Contains(domain, "reddit") || strings.Contains(domain, "stackexchange") ||
		strings.Contains(domain, "stackoverflow") || strings.Contains(domain, "quora") || s == "community":
		out = append(out, "community")
	}
	if len(out) == 0 {
		out = append(out, "article")
	}
	return out
}
