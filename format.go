package log

import (
	"strings"

	"github.com/veyron-labs/asynclog/sanitizer"
)

// fragment renders one piece of a compiled line format into buf for a
// given record. Fragments are either literal byte runs or field
// extractors; keeping them as closures over a single append-style
// signature lets Render amortise allocation across an entire batch by
// reusing the caller's buffer (§4.1).
type fragment func(buf []byte, rec *Record) []byte

// FormatProgram is a line template compiled into an ordered list of
// fragments. It is rebuilt whenever a sink's format configuration
// changes and is otherwise immutable, so concurrent renders need no
// lock of their own.
type FormatProgram struct {
	fragments []fragment
	memo      *tagMemo
	timeFmt   timeFormat
	body      *sanitizer.Serializer
}

// CompileFormat compiles lineTemplate and timeTemplate into a
// FormatProgram. Recognised line tokens are %t (timestamp), %s (full
// source), %S (source basename), %T (tag list), %m (message body), and
// %% (literal percent). Per §4.1's normative text, any other %-prefixed
// token — including one this compiler does not recognise — is preserved
// verbatim, marker included, rather than silently dropped.
//
// policy selects the sanitizer.PolicyPreset applied to a Record's
// message body before it lands in the rendered line: the message body
// is the one field a producer fully controls, so it's the one field
// worth guarding against control characters and shell metacharacters
// before it reaches a file or a terminal. The resulting
// sanitizer.Serializer also applies policy's quoting rules, so a body
// containing whitespace comes out quoted in a txt-policy line and fully
// escaped in a json-policy one.
func CompileFormat(lineTemplate, timeTemplate string, memo *tagMemo, policy sanitizer.PolicyPreset) *FormatProgram {
	fp := &FormatProgram{
		memo:    memo,
		timeFmt: compileTimeFormat(timeTemplate),
		body:    sanitizer.NewSerializer(policy, sanitizer.New().Policy(policy)),
	}

	var lit strings.Builder
	flushLit := func() {
		if lit.Len() == 0 {
			return
		}
		s := lit.String()
		fp.fragments = append(fp.fragments, func(buf []byte, rec *Record) []byte {
			return append(buf, s...)
		})
		lit.Reset()
	}

	for i := 0; i < len(lineTemplate); i++ {
		c := lineTemplate[i]
		if c != '%' || i+1 >= len(lineTemplate) {
			lit.WriteByte(c)
			continue
		}
		tok := lineTemplate[i+1]
		switch tok {
		case 't':
			flushLit()
			fp.fragments = append(fp.fragments, func(buf []byte, rec *Record) []byte {
				return append(buf, fp.timeFmt.Render(rec.When)...)
			})
		case 's':
			flushLit()
			fp.fragments = append(fp.fragments, func(buf []byte, rec *Record) []byte {
				return append(buf, rec.Source...)
			})
		case 'S':
			flushLit()
			fp.fragments = append(fp.fragments, func(buf []byte, rec *Record) []byte {
				return append(buf, basename(string(rec.Source))...)
			})
		case 'T':
			flushLit()
			fp.fragments = append(fp.fragments, func(buf []byte, rec *Record) []byte {
				return append(buf, fp.memo.Join(rec.Source, rec.Tags)...)
			})
		case 'm':
			flushLit()
			fp.fragments = append(fp.fragments, func(buf []byte, rec *Record) []byte {
				fp.body.WriteString(&buf, rec.Body)
				return buf
			})
		case '%':
			lit.WriteByte('%')
		default:
			// Unrecognised token: preserve verbatim, marker included.
			lit.WriteByte('%')
			lit.WriteByte(tok)
		}
		i++
	}
	flushLit()

	return fp
}

// basename strips the longest prefix ending in '/' or '\\', since
// source-location literals may have been stamped on either platform.
func basename(s string) string {
	if i := strings.LastIndexAny(s, `/\`); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Render compiles rec into buf, appending to whatever buf already holds
// so a sink's write path can amortise allocation across a batch.
func (fp *FormatProgram) Render(buf []byte, rec *Record) []byte {
	for _, f := range fp.fragments {
		buf = f(buf, rec)
	}
	return buf
}
