package cache

import "strings"

// Matcher selects cache keys for invalidation.
type Matcher func(key string) bool

// Glob returns a Matcher for an anchored wildcard pattern.
func Glob(pattern string) Matcher {
	return func(key string) bool {
		return Match(pattern, key)
	}
}

// PrefixPattern returns the glob selecting everything strictly below path
// within kind, e.g. "key:database.*".
func PrefixPattern(kind Kind, path string) string {
	return string(kind) + ":" + path + ".*"
}

// Subtree returns a Matcher for path and everything below it within kind:
// "{kind}:{path}" and "{kind}:{path}.<anything>". Unlike a glob, wildcard
// characters in path are taken literally.
func Subtree(kind Kind, path string) Matcher {
	exact := string(kind) + ":" + path
	prefix := exact + "."
	return func(key string) bool {
		return key == exact || strings.HasPrefix(key, prefix)
	}
}

// Ancestors returns a Matcher for the strict ancestors of path within kind.
// For "a.b.c" it matches "{kind}:a" and "{kind}:a.b".
func Ancestors(kind Kind, path string) Matcher {
	keys := make(map[string]struct{})
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			keys[string(kind)+":"+path[:i]] = struct{}{}
		}
	}
	return func(key string) bool {
		_, ok := keys[key]
		return ok
	}
}

// Any returns a Matcher accepting keys matched by at least one of ms.
func Any(ms ...Matcher) Matcher {
	return func(key string) bool {
		for _, m := range ms {
			if m(key) {
				return true
			}
		}
		return false
	}
}

// HasWildcard reports whether pattern contains '*' or '?'.
func HasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?")
}

// Match reports whether key matches pattern in full. '*' matches any run of
// characters, including none; '?' matches exactly one character. Every other
// character matches itself.
func Match(pattern, key string) bool {
	p := []rune(pattern)
	s := []rune(key)

	pi, si := 0, 0
	star, mark := -1, 0

	for si < len(s) {
		switch {
		case pi < len(p) && p[pi] == '*':
			star = pi
			mark = si
			pi++
		case pi < len(p) && (p[pi] == '?' || p[pi] == s[si]):
			pi++
			si++
		case star >= 0:
			// Let the last star absorb one more character and retry.
			mark++
			si = mark
			pi = star + 1
		default:
			return false
		}
	}

	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
