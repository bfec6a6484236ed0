// Package emailparser recovers email addresses that profile pages hide behind
// inline JavaScript.
package emailparser

import (
	"html"
	"regexp"
	"strings"
)

var (
	// Single or double quoted JS string literals.
	reLiteral = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'|"((?:[^"\\]|\\.)*)"`)
	reMailto  = regexp.MustCompile(`(?i)mailto:([^"'?>\s]+)`)
	reTag     = regexp.MustCompile(`<[^>]*>`)
	reAt      = regexp.MustCompile(`(?i)\s*[\[\(\{]\s*at\s*[\]\)\}]\s*`)
	reDot     = regexp.MustCompile(`(?i)\s*[\[\(\{]\s*dot\s*[\]\)\}]\s*`)

	reEmail = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// DecodeEmailFromScript returns the address assembled by an inline script,
// or "" when nothing email-shaped comes out.
//
// The script is never executed. Its string literals are concatenated in
// source order (covering both `var a='...'` and document.write('a'+'b')
// styles), HTML entities are unescaped, and a mailto: target wins over the
// visible link text.
func DecodeEmailFromScript(script string) string {
	var b strings.Builder
	for _, m := range reLiteral.FindAllStringSubmatch(script, -1) {
		lit := m[1]
		if lit == "" {
			lit = m[2]
		}
		b.WriteString(unescapeJS(lit))
	}
	assembled := html.UnescapeString(b.String())

	if m := reMailto.FindStringSubmatch(assembled); len(m) == 2 {
		if email := Normalize(m[1]); email != "" {
			return email
		}
	}
	return Normalize(reTag.ReplaceAllString(assembled, ""))
}

// Normalize undoes "[at]"/"(dot)" style spelling and returns s when the
// result looks like an email address, else "".
func Normalize(s string) string {
	s = strings.TrimSpace(html.UnescapeString(s))
	s = strings.TrimPrefix(s, "mailto:")
	s = reAt.ReplaceAllString(s, "@")
	s = reDot.ReplaceAllString(s, ".")
	if reEmail.MatchString(s) {
		return s
	}
	return ""
}

func unescapeJS(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	r := strings.NewReplacer(`\'`, `'`, `\"`, `"`, `\/`, `/`, `\\`, `\`)
	return r.Replace(s)
}
