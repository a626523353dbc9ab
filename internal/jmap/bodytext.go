package jmap

import (
	"html"
	"regexp"
	"strings"
)

var (
	htmlScriptRe  = regexp.MustCompile(`(?is)<(script|style|head)\b.*?</(script|style|head)>`)
	htmlBreakRe   = regexp.MustCompile(`(?i)<br\s*/?>`)
	htmlBlockRe   = regexp.MustCompile(`(?i)</(p|div|li|tr|h[1-6]|blockquote|table)>`)
	htmlTagRe     = regexp.MustCompile(`(?s)<[^>]*>`)
	blankRunRe    = regexp.MustCompile(`\n{3,}`)
	trailingWSRe  = regexp.MustCompile(`[ \t]+\n`)
	interiorWSRre = regexp.MustCompile(`[ \t]{2,}`)
)

// HTMLToText converts an HTML body to readable plain text. It is a best
// effort stripper for tool output, not an HTML renderer.
func HTMLToText(input string) string {
	text := htmlScriptRe.ReplaceAllString(input, "")
	text = htmlBreakRe.ReplaceAllString(text, "\n")
	text = htmlBlockRe.ReplaceAllString(text, "\n")
	text = htmlTagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = trailingWSRe.ReplaceAllString(text, "\n")
	text = interiorWSRre.ReplaceAllString(text, " ")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
