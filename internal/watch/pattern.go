package watch

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"

	"github.com/Iron-Ham/forge/internal/errors"
)

// Pattern is a compiled watch glob such as "app/**/*.js". Patterns are
// slash-separated and relative to the watcher root. A leading "!" turns
// the pattern into an exclusion.
type Pattern struct {
	raw     string
	expr    string
	base    string
	exclude bool
}

// CompilePattern validates and compiles a watch glob.
func CompilePattern(raw string) (Pattern, error) {
	expr := strings.TrimSpace(raw)
	exclude := strings.HasPrefix(expr, "!")
	expr = strings.TrimPrefix(expr, "!")
	expr = strings.TrimPrefix(filepath.ToSlash(expr), "./")

	if expr == "" {
		return Pattern{}, errors.Wrapf(errors.ErrInvalidInput, "empty watch pattern %q", raw)
	}
	if path.IsAbs(expr) {
		return Pattern{}, errors.Wrapf(errors.ErrInvalidInput, "watch pattern %q must be relative", raw)
	}
	if !doublestar.ValidatePattern(expr) {
		return Pattern{}, errors.Wrapf(errors.ErrInvalidInput, "invalid watch pattern %q", raw)
	}

	base, _ := doublestar.SplitPattern(expr)
	return Pattern{raw: raw, expr: expr, base: base, exclude: exclude}, nil
}

// String returns the pattern as written.
func (p Pattern) String() string { return p.raw }

// Root returns the static directory prefix of the pattern, "." when the
// pattern starts with a wildcard.
func (p Pattern) Root() string { return p.base }

// Match reports whether the slash-separated relative path matches.
func (p Pattern) Match(rel string) bool {
	ok, _ := doublestar.Match(p.expr, rel)
	return ok
}

// PatternSet matches a path against include and exclude patterns. A path
// matches when any include pattern matches and no exclude pattern does.
type PatternSet struct {
	include []Pattern
	exclude []Pattern
}

// CompilePatterns compiles every pattern, returning the first error.
func CompilePatterns(raw []string) (PatternSet, error) {
	var set PatternSet
	for _, r := range raw {
		p, err := CompilePattern(r)
		if err != nil {
			return PatternSet{}, err
		}
		if p.exclude {
			set.exclude = append(set.exclude, p)
		} else {
			set.include = append(set.include, p)
		}
	}
	return set, nil
}

// Match reports whether rel is selected by the set.
func (s PatternSet) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	matched := false
	for _, p := range s.include {
		if p.Match(rel) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, p := range s.exclude {
		if p.Match(rel) {
			return false
		}
	}
	return true
}

// Roots returns the distinct static roots of the include patterns.
func (s PatternSet) Roots() []string {
	seen := make(map[string]bool)
	var roots []string
	for _, p := range s.include {
		if !seen[p.base] {
			seen[p.base] = true
			roots = append(roots, p.base)
		}
	}
	return roots
}

// Empty reports whether the set has no include patterns.
func (s PatternSet) Empty() bool { return len(s.include) == 0 }

// IgnoreList filters out paths no binding should ever see, such as VCS
// metadata and editor swap files. Each glob is matched against every
// element of the path, so ".git" ignores the whole tree below it.
type IgnoreList struct {
	raw   []string
	globs []glob.Glob
}

// DefaultIgnore is used when no ignore list is configured.
var DefaultIgnore = []string{".git", "node_modules", ".DS_Store", "*.swp", "*~", ".#*"}

// NewIgnoreList compiles the ignore globs.
func NewIgnoreList(patterns []string) (*IgnoreList, error) {
	l := &IgnoreList{raw: patterns}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "invalid ignore pattern %q: %v", p, err)
		}
		l.globs = append(l.globs, g)
	}
	return l, nil
}

// Match reports whether any element of the relative path is ignored.
func (l *IgnoreList) Match(rel string) bool {
	if l == nil {
		return false
	}
	for _, elem := range strings.Split(filepath.ToSlash(rel), "/") {
		for _, g := range l.globs {
			if g.Match(elem) {
				return true
			}
		}
	}
	return false
}
