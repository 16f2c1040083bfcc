// Package sanitizer scrubs record message bodies before a sink's
// FormatProgram renders them into a line: control characters, shell
// metacharacters, and other bytes a producer doesn't fully control are
// filtered or transformed according to a PolicyPreset selected per sink
// (§4.1 of the line format). A Serializer then applies the output
// format's quoting rules — a sanitized body bound for a txt sink still
// needs wrapping in quotes if it contains whitespace, and one bound for
// a json sink needs full JSON string escaping regardless of policy.
package sanitizer

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Filter flags select which runes in a message body a rule matches.
const (
	FilterNonPrintable uint64 = 1 << iota // runes not classified as printable by strconv.IsPrint
	FilterControl                         // control characters (unicode.IsControl)
	FilterWhitespace                      // whitespace characters (unicode.IsSpace)
	FilterShellSpecial                    // shell metacharacters: '`', '$', ';', '|', '&', '>', '<', '(', ')', '#'
)

// Transform flags select what happens to a rune a rule's filter matched.
const (
	TransformStrip      uint64 = 1 << iota // drop the rune entirely
	TransformHexEncode                     // encode the rune's UTF-8 bytes as "<XXYY>"
	TransformJSONEscape                    // apply JSON-style backslash escaping (e.g. '\n', '\u0000')
)

// PolicyPreset names a pre-built rule set for a sink's output format. A
// sink picks its preset from its line format's destination, not from a
// message body's content — a file sink writing plain text wants
// PolicyTxt regardless of what any given body looks like.
type PolicyPreset string

const (
	PolicyRaw   PolicyPreset = "raw"   // passthrough; no filtering
	PolicyJSON  PolicyPreset = "json"  // body will be embedded in a JSON line
	PolicyTxt   PolicyPreset = "txt"   // body will be appended to a plain-text log line
	PolicyShell PolicyPreset = "shell" // body may be interpolated into a shell command
)

// rule pairs a filter mask with the transform applied to runes it matches.
type rule struct {
	filter    uint64
	transform uint64
}

// policyRules holds the rule set bound to each PolicyPreset.
var policyRules = map[PolicyPreset][]rule{
	PolicyRaw:   {},
	PolicyTxt:   {{filter: FilterNonPrintable, transform: TransformHexEncode}},
	PolicyJSON:  {{filter: FilterControl, transform: TransformJSONEscape}},
	PolicyShell: {{filter: FilterShellSpecial | FilterWhitespace, transform: TransformStrip}},
}

// filterCheckers maps each filter flag to the predicate it tests.
var filterCheckers = map[uint64]func(rune) bool{
	FilterNonPrintable: func(r rune) bool { return !strconv.IsPrint(r) },
	FilterControl:      unicode.IsControl,
	FilterWhitespace:   unicode.IsSpace,
	FilterShellSpecial: func(r rune) bool {
		switch r {
		case '`', '$', ';', '|', '&', '>', '<', '(', ')', '#':
			return true
		}
		return false
	},
}

// Sanitizer holds an ordered set of filter/transform rules applied to a
// record's message body before CompileFormat's Serializer quotes or
// escapes it for a sink's output format.
type Sanitizer struct {
	rules []rule
	buf   []byte
}

// New returns an empty Sanitizer. Chain Rule and Policy to build up its
// rule set before the first call to Sanitize.
func New() *Sanitizer {
	return &Sanitizer{
		rules: []rule{},
		buf:   make([]byte, 0, 256),
	}
}

// Rule appends a custom filter/transform pair. Rules are tried in the
// order they were added; the first one whose filter matches a rune
// wins.
func (s *Sanitizer) Rule(filter uint64, transform uint64) *Sanitizer {
	s.rules = append(s.rules, rule{filter: filter, transform: transform})
	return s
}

// Policy appends the rule set bound to preset. Unknown presets are a
// no-op so a misconfigured PolicyPreset degrades to passthrough rather
// than panicking mid-dispatch.
func (s *Sanitizer) Policy(preset PolicyPreset) *Sanitizer {
	if rules, ok := policyRules[preset]; ok {
		s.rules = append(s.rules, rules...)
	}
	return s
}

// Sanitize runs body through the configured rules and returns the
// result. The returned string is only valid until the next call to
// Sanitize on the same Sanitizer — it aliases an internal buffer that
// the caller must copy or consume before reusing the Sanitizer.
func (s *Sanitizer) Sanitize(body string) string {
	s.buf = s.buf[:0]

	for _, r := range body {
		matched := false
		for _, rl := range s.rules {
			if matchesFilter(r, rl.filter) {
				applyTransform(&s.buf, r, rl.transform)
				matched = true
				break
			}
		}
		if !matched {
			s.buf = utf8.AppendRune(s.buf, r)
		}
	}

	return string(s.buf)
}

// matchesFilter reports whether r matches any flag set in filterMask.
func matchesFilter(r rune, filterMask uint64) bool {
	for flag, checker := range filterCheckers {
		if (filterMask&flag) != 0 && checker(r) {
			return true
		}
	}
	return false
}

// applyTransform appends r to buf, transformed per transformMask.
func applyTransform(buf *[]byte, r rune, transformMask uint64) {
	switch {
	case (transformMask & TransformStrip) != 0:
		// Do nothing (strip)

	case (transformMask & TransformHexEncode) != 0:
		var runeBytes [utf8.UTFMax]byte
		n := utf8.EncodeRune(runeBytes[:], r)
		*buf = append(*buf, '<')
		*buf = append(*buf, hex.EncodeToString(runeBytes[:n])...)
		*buf = append(*buf, '>')

	case (transformMask & TransformJSONEscape) != 0:
		switch r {
		case '\n':
			*buf = append(*buf, '\\', 'n')
		case '\r':
			*buf = append(*buf, '\\', 'r')
		case '\t':
			*buf = append(*buf, '\\', 't')
		case '\b':
			*buf = append(*buf, '\\', 'b')
		case '\f':
			*buf = append(*buf, '\\', 'f')
		case '"':
			*buf = append(*buf, '\\', '"')
		case '\\':
			*buf = append(*buf, '\\', '\\')
		default:
			if r < 0x20 || r == 0x7f {
				*buf = append(*buf, fmt.Sprintf("\\u%04x", r)...)
			} else {
				*buf = utf8.AppendRune(*buf, r)
			}
		}
	}
}

// Serializer applies a PolicyPreset's output-format quoting rules on
// top of a Sanitizer's filtering, so a sink only has to call one method
// to get a message body that is both scrubbed and safe to drop straight
// into its line. Unlike the Sanitizer, which only ever strips or
// transforms runes, the Serializer may also wrap the result in quotes —
// a txt sink needs quoting only when the body contains whitespace or
// shell-hostile characters, while a json sink always needs it.
type Serializer struct {
	policy    PolicyPreset
	sanitizer *Sanitizer
}

// NewSerializer pairs a PolicyPreset with the Sanitizer that should run
// before this Serializer's quoting rules are applied. Callers typically
// build the Sanitizer with New().Policy(policy) so the two stay in sync.
func NewSerializer(policy PolicyPreset, san *Sanitizer) *Serializer {
	return &Serializer{
		policy:    policy,
		sanitizer: san,
	}
}

// WriteString appends body to buf, quoted or escaped according to the
// Serializer's PolicyPreset. For PolicyJSON the body is JSON-escaped and
// quoted directly, without running the Sanitizer's rules; every other
// policy runs the Sanitizer first.
func (se *Serializer) WriteString(buf *[]byte, body string) {
	switch se.policy {
	case PolicyJSON:
		writeJSONEscaped(buf, body)

	case PolicyTxt:
		sanitized := se.sanitizer.Sanitize(body)
		if se.NeedsQuotes(sanitized) {
			*buf = append(*buf, '"')
			for i := 0; i < len(sanitized); i++ {
				if sanitized[i] == '"' || sanitized[i] == '\\' {
					*buf = append(*buf, '\\')
				}
				*buf = append(*buf, sanitized[i])
			}
			*buf = append(*buf, '"')
		} else {
			*buf = append(*buf, sanitized...)
		}

	default: // PolicyRaw, PolicyShell
		*buf = append(*buf, se.sanitizer.Sanitize(body)...)
	}
}

// writeJSONEscaped appends s to buf as a quoted JSON string, escaping
// control characters, quotes, and backslashes along the way.
func writeJSONEscaped(buf *[]byte, s string) {
	*buf = append(*buf, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c >= ' ' && c != '"' && c != '\\' && c < 0x7f {
			start := i
			for i < len(s) && s[i] >= ' ' && s[i] != '"' && s[i] != '\\' && s[i] < 0x7f {
				i++
			}
			*buf = append(*buf, s[start:i]...)
			continue
		}
		switch c {
		case '\\', '"':
			*buf = append(*buf, '\\', c)
		case '\n':
			*buf = append(*buf, '\\', 'n')
		case '\r':
			*buf = append(*buf, '\\', 'r')
		case '\t':
			*buf = append(*buf, '\\', 't')
		case '\b':
			*buf = append(*buf, '\\', 'b')
		case '\f':
			*buf = append(*buf, '\\', 'f')
		default:
			*buf = append(*buf, fmt.Sprintf("\\u%04x", c)...)
		}
		i++
	}
	*buf = append(*buf, '"')
}

// NeedsQuotes reports whether a txt-policy body must be quoted: empty
// bodies, bodies containing whitespace, or bodies containing characters
// that would otherwise make the rendered line ambiguous to re-split.
func (se *Serializer) NeedsQuotes(s string) bool {
	if se.policy != PolicyTxt {
		return se.policy == PolicyJSON
	}
	if len(s) == 0 {
		return true
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			return true
		}
		switch r {
		case '"', '\'', '\\', '$', '`', '!', '&', '|', ';',
			'(', ')', '<', '>', '*', '?', '[', ']', '{', '}',
			'~', '#', '%', '=', '\n', '\r', '\t':
			return true
		}
		if !unicode.IsPrint(r) {
			return true
		}
	}
	return false
}