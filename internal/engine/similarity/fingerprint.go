package similarity

import (
	"hash/fnv"
	"strings"
	"unicode"
)

const numHashFuncs = 64

// fingerprint captures the token surface of one indexed definition: the
// exact token set for small-set Jaccard and a MinHash signature for cheap
// comparison against large snippets.
type fingerprint struct {
	tokens map[string]bool
	sig    []uint64
}

var stopTokens = map[string]bool{
	"public": true, "private": true, "protected": true, "static": true,
	"final": true, "const": true, "var": true, "let": true,
	"return": true, "func": true, "function": true, "def": true,
	"self": true, "this": true,
}

// tokenize splits an identifier or signature fragment into lower-cased word
// tokens, breaking on camelCase, snake_case and punctuation.
func tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		token := strings.ToLower(current.String())
		current.Reset()
		if !stopTokens[token] {
			tokens = append(tokens, token)
		}
	}

	var prev rune
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			if unicode.IsUpper(r) && unicode.IsLower(prev) {
				flush()
			}
			current.WriteRune(r)
		case unicode.IsDigit(r):
			current.WriteRune(r)
		default:
			flush()
		}
		prev = r
	}
	flush()
	return tokens
}

func newFingerprint(tokens []string) fingerprint {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}

	sig := make([]uint64, numHashFuncs)
	for i := range sig {
		sig[i] = ^uint64(0)
	}
	for t := range set {
		h := hashToken(t)
		for i := 0; i < numHashFuncs; i++ {
			seed := uint64(i*31 + 17)
			combined := h ^ (seed * 0x9e3779b97f4a7c15)
			if combined < sig[i] {
				sig[i] = combined
			}
		}
	}
	return fingerprint{tokens: set, sig: sig}
}

func hashToken(token string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(token))
	return h.Sum64()
}

// jaccard returns the exact Jaccard similarity for small sets and the
// MinHash estimate once either set is large enough that exactness stops
// mattering.
func (a fingerprint) jaccard(b fingerprint) float64 {
	if len(a.tokens) == 0 && len(b.tokens) == 0 {
		return 0
	}
	if len(a.tokens) <= numHashFuncs && len(b.tokens) <= numHashFuncs {
		inter := 0
		for t := range a.tokens {
			if b.tokens[t] {
				inter++
			}
		}
		union := len(a.tokens) + len(b.tokens) - inter
		if union == 0 {
			return 0
		}
		return float64(inter) / float64(union)
	}

	matches := 0
	for i := 0; i < numHashFuncs; i++ {
		if a.sig[i] == b.sig[i] {
			matches++
		}
	}
	return float64(matches) / float64(numHashFuncs)
}

// editDistance is the Levenshtein distance over two token sequences.
func editDistance(a, b []string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// longestCommonSubsequence over two call sequences.
func longestCommonSubsequence(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
		for j := range curr {
			curr[j] = 0
		}
	}
	return prev[len(b)]
}
