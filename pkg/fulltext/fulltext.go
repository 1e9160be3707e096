// Copyright (c) 2026 Inkwell. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package fulltext normalizes arbitrary Unicode text into search tokens.
//
// # Usage
//
// The entity collector gathers every String and rich-text text value of an
// entity and runs it through [Tokenize]; the resulting tokens are stored in
// the full-text index table and matched with array containment queries.
package fulltext

import (
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tokenize converts arbitrary Unicode text into lowercase ASCII-folded tokens.
//
// # Transformation Pipeline
//
// 1. Normalizes to NFD (decomposes accented chars: é → e + combining acute).
// 2. Removes combining marks (accents).
// 3. Converts to lowercase.
// 4. Splits on any non-letter, non-digit rune.
// 5. Deduplicates while preserving first-seen order.
func Tokenize(text string) []string {
	// 1. Normalize and remove accents
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn))
	result, _, _ := transform.String(t, text)

	// 2. Lowercase
	result = strings.ToLower(result)

	// 3. Split on everything that is not a letter or digit
	parts := strings.FieldsFunc(result, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	// 4. Deduplicate, keeping first-seen order so results are deterministic
	seen := make(map[string]struct{}, len(parts))
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		tokens = append(tokens, part)
	}

	return tokens
}

// isMn reports whether r is a Unicode non-spacing mark (e.g., accents).
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}
