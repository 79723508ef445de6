// Package rewrite makes legacy-server HTML embeddable from another origin.
//
// DESIGN: Regex-based rewriting over a known, constrained legacy markup
// surface. Supported grammar:
//   - <head ...>                 opening tag, receives the injected <base>
//   - <base ...>                 presence disables injection
//   - href="..." / src="..."     double or single quoted, attribute name
//     case-insensitive, preceded by whitespace (data-src etc. are ignored)
//
// Attribute values rewritten (after stripping any number of leading "../"
// or a single leading "/"):
//   - web/...              CSS, JS and skins
//   - org.openbravo.*      module resources
//   - ad_forms/...         legacy form pages
//
// Values beginning with /etendo/ (the legacy webapp context root) become
// absolute URLs on the origin of the target base. Everything else (query-only,
// fragments, protocol-relative, data: and absolute URLs) is left untouched.
package rewrite

import (
	"net/url"
	"regexp"
	"strings"
)

// ContextRoot is the legacy webapp context path.
const ContextRoot = "/etendo/"

var (
	headTagRe = regexp.MustCompile(`(?i)<head(\s[^>]*)?>`)
	baseTagRe = regexp.MustCompile(`(?i)<base[\s>/]`)

	doubleQuotedAttrRe = regexp.MustCompile(`(?i)(\s)(href|src)(\s*=\s*)"([^"]*)"`)
	singleQuotedAttrRe = regexp.MustCompile(`(?i)(\s)(href|src)(\s*=\s*)'([^']*)'`)
)

var rewritablePrefixes = []string{"web/", "org.openbravo.", "ad_forms/"}

// Rewriter rewrites resource URLs against a fixed legacy base URL.
type Rewriter struct {
	base   string // no trailing slash
	origin string // scheme://host[:port], empty if base is not absolute
}

// New creates a rewriter targeting baseURL, the browser-reachable legacy host.
func New(baseURL string) *Rewriter {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &Rewriter{base: base, origin: originOf(base)}
}

// Base returns the normalized target base URL.
func (rw *Rewriter) Base() string { return rw.base }

// RewriteHTMLResourceURLs is a convenience wrapper around New(baseURL).Rewrite(html).
func RewriteHTMLResourceURLs(html, baseURL string) string {
	return New(baseURL).Rewrite(html)
}

// Rewrite injects a <base> tag when none exists and rewrites resource
// references. Running it twice yields the same document.
func (rw *Rewriter) Rewrite(html string) string {
	out := rw.injectBase(html)
	out = doubleQuotedAttrRe.ReplaceAllStringFunc(out, func(m string) string {
		return rw.rewriteAttr(doubleQuotedAttrRe, m, `"`)
	})
	out = singleQuotedAttrRe.ReplaceAllStringFunc(out, func(m string) string {
		return rw.rewriteAttr(singleQuotedAttrRe, m, `'`)
	})
	return out
}

func (rw *Rewriter) injectBase(html string) string {
	if baseTagRe.MatchString(html) {
		return html
	}
	loc := headTagRe.FindStringIndex(html)
	if loc == nil {
		return html
	}
	tag := `<base href="` + rw.base + `/" />`
	return html[:loc[1]] + tag + html[loc[1]:]
}

func (rw *Rewriter) rewriteAttr(re *regexp.Regexp, match, quote string) string {
	parts := re.FindStringSubmatch(match)
	if len(parts) != 5 {
		return match
	}
	value, ok := rw.rewriteURL(parts[4])
	if !ok {
		return match
	}
	return parts[1] + parts[2] + parts[3] + quote + value + quote
}

// rewriteURL returns the rewritten value and true when value is one of the
// supported resource forms.
func (rw *Rewriter) rewriteURL(value string) (string, bool) {
	if strings.HasPrefix(value, ContextRoot) {
		if rw.origin == "" {
			return value, false
		}
		return rw.origin + value, true
	}

	rest := value
	if strings.HasPrefix(rest, "/") {
		rest = rest[1:]
	} else {
		for strings.HasPrefix(rest, "../") {
			rest = rest[len("../"):]
		}
	}

	for _, prefix := range rewritablePrefixes {
		if strings.HasPrefix(rest, prefix) {
			return rw.base + "/" + rest, true
		}
	}
	return value, false
}

func originOf(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
