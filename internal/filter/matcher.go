package filter

import (
	"path"
	"regexp"
	"strings"
)

// Matcher tests a repo-relative path (and whether it names a directory)
// against one compiled rule pattern.
type Matcher interface {
	Match(name string, isDir bool) bool
}

// CompilePattern builds a Matcher from a raw pattern string per rsync's
// wildcard rules referenced by spec.md §4.5: a pattern anchored with a
// leading slash matches only from the root of the transfer; a trailing
// slash restricts the rule to directories; patterns containing no glob
// metacharacters and no slash match by basename anywhere in the tree;
// everything else is matched with path.Match-style globbing extended to
// treat "**" as matching across directory separators.
func CompilePattern(pattern string) Matcher {
	anchored := strings.HasPrefix(pattern, "/")
	if anchored {
		pattern = pattern[1:]
	}
	dirOnly := strings.HasSuffix(pattern, "/")
	if dirOnly {
		pattern = strings.TrimSuffix(pattern, "/")
	}

	hasSlash := strings.Contains(pattern, "/")
	hasGlob := strings.ContainsAny(pattern, "*?[")

	switch {
	case !hasGlob && !hasSlash && !anchored:
		return &basenameMatcher{literal: pattern, dirOnly: dirOnly}
	case !hasGlob:
		return &literalMatcher{path: pattern, anchored: anchored, dirOnly: dirOnly}
	default:
		return &globMatcher{pattern: pattern, anchored: anchored, dirOnly: dirOnly, hasSlash: hasSlash}
	}
}

type basenameMatcher struct {
	literal string
	dirOnly bool
}

func (m *basenameMatcher) Match(name string, isDir bool) bool {
	if m.dirOnly && !isDir {
		return false
	}
	return path.Base(name) == m.literal
}

type literalMatcher struct {
	path     string
	anchored bool
	dirOnly  bool
}

func (m *literalMatcher) Match(name string, isDir bool) bool {
	if m.dirOnly && !isDir {
		return false
	}
	if m.anchored {
		return name == m.path
	}
	return name == m.path || strings.HasSuffix(name, "/"+m.path)
}

// globMatcher handles patterns with metacharacters, including "**" which
// rsync treats as matching any number of path components (unlike a bare
// "*", which stops at a slash).
type globMatcher struct {
	pattern  string
	anchored bool
	dirOnly  bool
	hasSlash bool
	compiled *regexp.Regexp
}

func (m *globMatcher) Match(name string, isDir bool) bool {
	if m.dirOnly && !isDir {
		return false
	}
	if m.anchored || m.hasSlash || strings.Contains(m.pattern, "**") {
		return m.regexp().MatchString(name)
	}
	// Unanchored, slash-free glob: also try the basename alone.
	if ok, _ := path.Match(m.pattern, path.Base(name)); ok {
		return true
	}
	return m.regexp().MatchString(name)
}

// regexp lazily compiles the pattern into an anchored regular expression,
// translating "**" (matches across slashes) and "*"/"?"/"[...]" (rsync's
// normal glob metacharacters, which stop at a slash) since path.Match
// cannot express "**" on its own.
func (m *globMatcher) regexp() *regexp.Regexp {
	if m.compiled == nil {
		m.compiled = globToRegexp(m.pattern)
	}
	return m.compiled
}

func globToRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteByte('^')
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '*' && i+1 < len(runes) && runes[i+1] == '*':
			b.WriteString(".*")
			i++
		case r == '*':
			b.WriteString("[^/]*")
		case r == '?':
			b.WriteString("[^/]")
		case strings.ContainsRune(".+()^$|{}", r):
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '[':
			j := i + 1
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j < len(runes) {
				b.WriteString(string(runes[i : j+1]))
				i = j
			} else {
				b.WriteString("\\[")
			}
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('$')
	return regexp.MustCompile(b.String())
}
