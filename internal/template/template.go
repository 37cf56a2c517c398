// Package template expands file-name and URL patterns such as
// "{basename}/{uuid}.{ext}" using a registry of named replacers.
//
// Unknown placeholders are left in the output verbatim, so a typo in a
// pattern shows up in the uploaded name instead of failing the upload.
package template

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\{.*?\}`)

// Token is one placeholder occurrence in a pattern.
type Token struct {
	// Raw is the token exactly as written, braces included.
	Raw string

	Name string

	// Arg is the trimmed text after the first colon, empty if absent.
	Arg string

	// Start and End are byte offsets of Raw in the pattern.
	Start int
	End   int
}

// Scan returns the placeholder tokens of pattern in order of appearance.
func Scan(pattern string) []Token {
	locs := tokenPattern.FindAllStringIndex(pattern, -1)
	tokens := make([]Token, 0, len(locs))
	for _, loc := range locs {
		raw := pattern[loc[0]:loc[1]]
		name, arg := splitToken(raw)
		tokens = append(tokens, Token{
			Raw:   raw,
			Name:  name,
			Arg:   arg,
			Start: loc[0],
			End:   loc[1],
		})
	}
	return tokens
}

func splitToken(raw string) (name, arg string) {
	body := raw[1 : len(raw)-1]
	name, arg, found := strings.Cut(body, ":")
	if !found {
		return name, ""
	}
	return name, strings.TrimSpace(arg)
}

// Kind tags how a token was resolved.
type Kind int

const (
	// Unmatched tokens are kept as literal text.
	Unmatched Kind = iota
	// Matched tokens are replaced by their replacer's output.
	Matched
)

func (k Kind) String() string {
	if k == Matched {
		return "matched"
	}
	return "unmatched"
}

// Resolution is the outcome of resolving a single token.
type Resolution struct {
	Kind Kind
	Text string
}

// Resolve maps a token to its replacement. A name missing from the
// registry resolves to the raw token.
func Resolve(tok Token, reg *Registry) Resolution {
	if fn, ok := reg.Lookup(tok.Name); ok {
		return Resolution{Kind: Matched, Text: fn(tok.Arg)}
	}
	return Resolution{Kind: Unmatched, Text: tok.Raw}
}

// Expand replaces every registered placeholder in pattern.
// Replacer output is inserted as-is and never scanned again.
func Expand(pattern string, reg *Registry) string {
	tokens := Scan(pattern)
	if len(tokens) == 0 {
		return pattern
	}

	var b strings.Builder
	b.Grow(len(pattern))
	last := 0
	for _, tok := range tokens {
		b.WriteString(pattern[last:tok.Start])
		b.WriteString(Resolve(tok, reg).Text)
		last = tok.End
	}
	b.WriteString(pattern[last:])
	return b.String()
}

// Placeholders returns the distinct token names used in pattern.
func Placeholders(pattern string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, tok := range Scan(pattern) {
		if seen[tok.Name] {
			continue
		}
		seen[tok.Name] = true
		names = append(names, tok.Name)
	}
	return names
}
