// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package engine

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// maxSanitizedRunes is the length cap applied to every string inside a tool
// result before it re-enters the conversation.
const maxSanitizedRunes = 500

// truncationMarker replaces the tail of an over-long string. ASCII dots,
// not U+2026: NFKC rewrites the ellipsis rune to "...", which would break
// sanitizer idempotence.
const truncationMarker = "..."

// roleMarkerPatterns match bracketed role markers and system-tag fragments
// that tool-supplied data could use to smuggle fake instructions back into
// the model. Stripping runs to a fixpoint so nested markers cannot survive
// a single pass.
var roleMarkerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)\[\s*(?:SYSTEM|INSTRUCTION|ASSISTANT|DEVELOPER|ADMIN)\b[^\[\]]*\]`),
	regexp.MustCompile(`(?is)</?\s*(?:system|instructions?|assistant|prompt)\s*>`),
	regexp.MustCompile(`(?i)<<SYS>>|<</SYS>>`),
	regexp.MustCompile(`(?i)<\|im_start\|>|<\|im_end\|>|<\|?system\|?>`),
}

// invisibleCharReplacer strips zero-width and other invisible Unicode
// characters so markers cannot evade the patterns via homoglyph tricks.
// Escape sequences, not literal runes: a literal U+FEFF is only legal as
// the first code point of a Go source file, and none of these are
// reviewable by eye.
var invisibleCharReplacer = strings.NewReplacer(
	"\u200B", "", // zero-width space
	"\u200C", "", // zero-width non-joiner
	"\u200D", "", // zero-width joiner
	"\uFEFF", "", // zero-width no-break space / BOM
	"\u00AD", "", // soft hyphen
	"\u2060", "", // word joiner
	"\u2061", "", // invisible function application
	"\u2062", "", // invisible times
	"\u2063", "", // invisible separator
	"\u2064", "", // invisible plus
)

// Sanitize deep-scrubs a tool-result value before it is attached to a
// function response. Strings are normalized, stripped of role markers, and
// truncated; maps and slices are rebuilt recursively; other scalars pass
// through unchanged. Sanitize is idempotent.
func Sanitize(v any) any {
	switch val := v.(type) {
	case string:
		return sanitizeString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[sanitizeString(k)] = Sanitize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Sanitize(item)
		}
		return out
	default:
		return v
	}
}

func sanitizeString(s string) string {
	s = invisibleCharReplacer.Replace(s)
	s = norm.NFKC.String(s)

	// Strip to a fixpoint: removing one marker can expose another
	// (e.g. a marker nested inside a marker's brackets).
	for {
		stripped := s
		for _, pat := range roleMarkerPatterns {
			stripped = pat.ReplaceAllString(stripped, "")
		}
		if stripped == s {
			break
		}
		s = stripped
	}

	runes := []rune(s)
	if len(runes) > maxSanitizedRunes {
		s = string(runes[:maxSanitizedRunes-len(truncationMarker)]) + truncationMarker
	}

	return s
}
