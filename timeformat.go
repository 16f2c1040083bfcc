package log

import (
	"strconv"
	"strings"
	"time"
)

// fracMarker is substituted into the compiled Go layout at the position
// of the template's `$N` token. It contains no byte sequence Go's
// time.Format reference layout recognises, so it survives formatting
// untouched and can be swapped for the rendered fractional digits
// afterward.
const fracMarker = "\x00FRAC\x00"

// timeFormat is a compiled time template: a strftime-like layout string
// with the `$N` fractional-second marker replaced by fracMarker, plus
// the precision that marker declared.
type timeFormat struct {
	layout    string
	precision int
}

// strftimeToGo maps the handful of strftime specifiers this module's
// default time template relies on to Go's reference-time layout tokens.
// Unrecognised specifiers pass through unchanged, same as an unknown
// character in a literal string.
var strftimeToGo = map[byte]string{
	'Y': "2006",
	'm': "01",
	'd': "02",
	'H': "15",
	'M': "04",
	'S': "05",
	'y': "06",
}

// compileTimeFormat parses a template like "%Y/%m/%d %H:%M:%S.$6" into a
// Go time layout plus a fractional-second precision. The last `$N`
// marker in the template wins; precision is clamped to [1, 9] and
// defaults to 6 when no marker is present, per §4.1.
func compileTimeFormat(tmpl string) timeFormat {
	var b strings.Builder
	precision := 6
	sawMarker := false

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '%' && i+1 < len(tmpl):
			spec := tmpl[i+1]
			if layout, ok := strftimeToGo[spec]; ok {
				b.WriteString(layout)
			} else {
				b.WriteByte('%')
				b.WriteByte(spec)
			}
			i++
		case c == '$' && i+1 < len(tmpl) && tmpl[i+1] >= '1' && tmpl[i+1] <= '9':
			precision = int(tmpl[i+1] - '0')
			sawMarker = true
			b.WriteString(fracMarker)
			i++
		default:
			b.WriteByte(c)
		}
	}

	if !sawMarker {
		precision = 6
	}
	if precision < 1 {
		precision = 1
	}
	if precision > 9 {
		precision = 9
	}

	return timeFormat{layout: b.String(), precision: precision}
}

// Render formats t according to the compiled layout, substituting
// fracMarker with t's fractional second, zero-padded and truncated to
// the compiled precision.
func (tf timeFormat) Render(t time.Time) string {
	base := t.Format(tf.layout)
	if !strings.Contains(base, fracMarker) {
		return base
	}
	nanos := t.Nanosecond()
	digits := strconv.FormatInt(int64(nanos), 10)
	for len(digits) < 9 {
		digits = "0" + digits
	}
	frac := digits[:tf.precision]
	return strings.ReplaceAll(base, fracMarker, frac)
}
