package domain

import (
	"regexp"
	"strings"
)

// articlePattern is 2-4 letters, an optional dash or underscore, then 4-6
// digits. A space is not accepted here: "MSM 1000" is a dosage.
var articlePattern = regexp.MustCompile(`(?i)\b([a-z]{2,4})([-_]?)(\d{4,6})\b`)

// spacedArticlePattern also accepts a space, for codes already known to be articles
var spacedArticlePattern = regexp.MustCompile(`(?i)\b([a-z]{2,4})([-_ ]?)(\d{4,6})\b`)

// FindArticle returns the first article-shaped token in text, as written
func FindArticle(text string) (string, bool) {
	m := articlePattern.FindString(text)
	if m == "" {
		return "", false
	}
	return m, true
}

// ArticleVariants lists the spellings a catalog may store an article under.
// The raw code comes first, then the upper-case dashed, bare and spaced forms.
func ArticleVariants(code string) []string {
	code = strings.TrimSpace(code)
	parts := spacedArticlePattern.FindStringSubmatch(code)
	if parts == nil || parts[0] != code {
		if code == "" {
			return nil
		}
		return []string{code}
	}

	prefix, digits := strings.ToUpper(parts[1]), parts[3]
	candidates := []string{
		code,
		prefix + "-" + digits,
		prefix + digits,
		prefix + " " + digits,
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
