package storage

import "strings"

// Match reports whether text matches the glob pattern. Supported syntax:
// '*' any sequence, '?' any single byte, '[abc]', '[^abc]', '[a-z]' classes
// and '\' escapes. Matching is byte oriented, like key comparison.
func Match(pattern, text string) bool {
	if matched, ok := matchSimple(pattern, text); ok {
		return matched
	}
	return matchAutomaton(pattern, text, 0, 0, make(map[[2]int]bool))
}

// matchSimple handles patterns with at most one '*' and no other
// metacharacters. The second result is false when the pattern needs the
// full matcher.
func matchSimple(pattern, text string) (bool, bool) {
	if strings.ContainsAny(pattern, "?[\\") {
		return false, false
	}

	star := strings.IndexByte(pattern, '*')
	switch {
	case star == -1:
		return pattern == text, true
	case strings.LastIndexByte(pattern, '*') != star:
		return false, false
	default:
		prefix, suffix := pattern[:star], pattern[star+1:]
		return len(text) >= len(prefix)+len(suffix) &&
			strings.HasPrefix(text, prefix) &&
			strings.HasSuffix(text, suffix), true
	}
}

// matchAutomaton walks pattern and text with memoization on (pattern, text) positions
func matchAutomaton(pattern, text string, p, t int, memo map[[2]int]bool) bool {
	key := [2]int{p, t}
	if result, ok := memo[key]; ok {
		return result
	}

	var result bool
	switch {
	case p == len(pattern):
		result = t == len(text)
	case pattern[p] == '*':
		result = matchAutomaton(pattern, text, p+1, t, memo) ||
			(t < len(text) && matchAutomaton(pattern, text, p, t+1, memo))
	case t == len(text):
		result = false
	default:
		width, ok := matchToken(pattern[p:], text[t])
		result = ok && matchAutomaton(pattern, text, p+width, t+1, memo)
	}

	memo[key] = result
	return result
}

// matchToken matches one non-star token at the start of pattern against c and
// returns the number of pattern bytes the token spans.
func matchToken(pattern string, c byte) (int, bool) {
	switch pattern[0] {
	case '?':
		return 1, true
	case '\\':
		if len(pattern) > 1 {
			return 2, pattern[1] == c
		}
		return 1, c == '\\'
	case '[':
		return matchClass(pattern, c)
	default:
		return 1, pattern[0] == c
	}
}

// matchClass matches a bracket expression. An unterminated class extends to
// the end of the pattern.
func matchClass(pattern string, c byte) (int, bool) {
	i := 1
	negate := false
	if i < len(pattern) && pattern[i] == '^' {
		negate = true
		i++
	}

	matched := false
	for i < len(pattern) && pattern[i] != ']' {
		switch {
		case pattern[i] == '\\' && i+1 < len(pattern):
			if pattern[i+1] == c {
				matched = true
			}
			i += 2
		case i+2 < len(pattern) && pattern[i+1] == '-' && pattern[i+2] != ']':
			lo, hi := pattern[i], pattern[i+2]
			if lo > hi {
				lo, hi = hi, lo
			}
			if c >= lo && c <= hi {
				matched = true
			}
			i += 3
		default:
			if pattern[i] == c {
				matched = true
			}
			i++
		}
	}
	if i < len(pattern) {
		i++ // closing bracket
	}

	return i, matched != negate
}
