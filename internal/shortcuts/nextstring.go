package shortcuts

import "unicode/utf8"

// nextString returns the least string greater than every string that
// has s as a prefix, so that the half-open range [s, nextString(s))
// matches exactly the strings starting with s. This keeps prefix
// lookups on the clicklog query index instead of falling back to LIKE.
func nextString(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	last := runes[len(runes)-1]
	switch {
	case last >= utf8.MaxRune:
		// Cannot increment the final rune; recurse on the prefix.
		return nextString(string(runes[:len(runes)-1]))
	case last == 0xD7FF:
		// Skip the surrogate block, which cannot appear in UTF-8.
		runes[len(runes)-1] = 0xE000
	default:
		runes[len(runes)-1] = last + 1
	}
	return string(runes)
}
