package template

import (
	"regexp"
	"strings"
)

var (
	curlyRe   = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)
	angleRe   = regexp.MustCompile(`<([^<>]+?)>`)
	escapedRe = regexp.MustCompile(`&lt;([^<>]+?)&gt;`)

	tagRe   = regexp.MustCompile(`<[^>]+>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// bodyStyle is injected into the <body> tag of bulk mail so clients without
// a stylesheet still render a sane base font.
const bodyStyle = `<body style="font-family:Arial, sans-serif; font-size:14px; line-height:1.5; color:#0b1320;"`

// segment is a piece of rendered output. Only template segments are
// scanned by later passes.
type segment struct {
	text     string
	template bool
}

// lookupFunc resolves the key captured by a pass. ok=false keeps the match.
type lookupFunc func(key string) (value string, ok bool)

// Render substitutes vars into tmpl.
func Render(tmpl string, vars map[string]string) string {
	segments := []segment{{text: tmpl, template: true}}

	segments = apply(segments, curlyRe, func(key string) (string, bool) {
		return vars[key], true
	})
	angle := func(key string) (string, bool) {
		v, ok := vars["<"+key+">"]
		return v, ok
	}
	segments = apply(segments, angleRe, angle)
	segments = apply(segments, escapedRe, angle)

	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.text)
	}
	return b.String()
}

func apply(in []segment, re *regexp.Regexp, lookup lookupFunc) []segment {
	out := make([]segment, 0, len(in))
	for _, s := range in {
		if !s.template {
			out = append(out, s)
			continue
		}
		last := 0
		for _, m := range re.FindAllStringSubmatchIndex(s.text, -1) {
			value, ok := lookup(s.text[m[2]:m[3]])
			if !ok {
				continue
			}
			if m[0] > last {
				out = append(out, segment{text: s.text[last:m[0]], template: true})
			}
			out = append(out, segment{text: value})
			last = m[1]
		}
		if last < len(s.text) {
			out = append(out, segment{text: s.text[last:], template: true})
		}
	}
	return out
}

// HTMLToText derives a plain text body from HTML by replacing tags with
// spaces and collapsing whitespace.
func HTMLToText(html string) string {
	text := tagRe.ReplaceAllString(html, " ")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// HardenBody adds a base inline style to the first <body tag. Documents
// without a body tag are returned unchanged.
func HardenBody(html string) string {
	return strings.Replace(html, "<body", bodyStyle, 1)
}
