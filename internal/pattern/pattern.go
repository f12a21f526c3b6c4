// Package pattern implements the two path-matching algorithms the engine
// needs, kept deliberately separate per the design note in spec.md §9:
// template matching answers "does this concrete path come from this
// endpoint's template?"; glob matching answers "does this path satisfy an
// operator-supplied filter?".
package pattern

import (
	"regexp"
	"strings"
	"sync"
)

// TemplateMatches reports whether concretePath was produced by template.
// Segments are split on '/' after the leading slash, so a trailing slash
// counts as an extra empty segment; a literal segment must match
// case-insensitively (case-preserving comparison is done first as a fast
// path), and a "{name}" segment matches any single non-empty segment.
func TemplateMatches(template, concretePath string) bool {
	tSegs := splitSegments(template)
	cSegs := splitSegments(concretePath)
	if len(tSegs) != len(cSegs) {
		return false
	}
	for i, tSeg := range tSegs {
		cSeg := cSegs[i]
		if cSeg == "" {
			return false
		}
		if isPlaceholder(tSeg) {
			continue
		}
		if tSeg != cSeg && !strings.EqualFold(tSeg, cSeg) {
			return false
		}
	}
	return true
}

func isPlaceholder(segment string) bool {
	return strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") && len(segment) > 2
}

func splitSegments(path string) []string {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

var (
	globCacheMu sync.Mutex
	globCache   = map[string]*regexp.Regexp{}
)

// GlobMatches reports whether path satisfies glob, where '*' expands to
// ".*" and "{name}" expands to "[^/]+" (spec.md §4.6). Compiled regexes are
// cached since the same filter patterns are evaluated per request.
func GlobMatches(glob, path string) bool {
	re := compileGlob(glob)
	return re.MatchString(path)
}

func compileGlob(glob string) *regexp.Regexp {
	globCacheMu.Lock()
	defer globCacheMu.Unlock()
	if re, ok := globCache[glob]; ok {
		return re
	}
	re := regexp.MustCompile("^" + translateGlob(glob) + "$")
	globCache[glob] = re
	return re
}

var placeholderRe = regexp.MustCompile(`\{[^/{}]+\}`)

func translateGlob(glob string) string {
	var b strings.Builder
	i := 0
	for i < len(glob) {
		if loc := placeholderRe.FindStringIndex(glob[i:]); loc != nil && loc[0] == 0 {
			b.WriteString(`[^/]+`)
			i += loc[1]
			continue
		}
		c := glob[i]
		switch c {
		case '*':
			b.WriteString(".*")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
		i++
	}
	return b.String()
}
