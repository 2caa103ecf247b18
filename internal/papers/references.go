// Package papers extracts bibliography-like entries from document text
// and renders the related-work fragment. Extraction is pattern matching,
// not bibliographic parsing: wrong or missed references are expected and
// acceptable, and no input ever produces an error.
package papers

import (
	"html"
	"regexp"
	"strings"
)

const (
	maxExtractedReferences = 10
	maxRenderedReferences  = 5
)

// Section patterns: a references/bibliography header followed by free
// text up to an "appendix" terminator or end of text. Extraction runs on
// whitespace-normalized page text, so the header may sit mid-line; the
// entry pattern does the real filtering.
var sectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)\b(?:references|bibliography|works cited)\s*:?\s+(.*?)(?:\bappendix\b|\z)`),
	regexp.MustCompile(`(?is)\b(?:references|bibliography)\s*:?\s+(.*)`),
}

// Line-like entries: capitalized start, a (year), ending in a period.
var entryPattern = regexp.MustCompile(`[A-Z][^.]+\.\s*\(\d{4}\)[^.]+\.`)

// ExtractReferences scans text for a references section and pulls
// entry-like lines from it, capped at a fixed count. A missing section
// yields an empty list.
func ExtractReferences(text string) []string {
	for _, pattern := range sectionPatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		entries := entryPattern.FindAllString(match[1], maxExtractedReferences)
		if len(entries) == 0 {
			continue
		}
		refs := make([]string, 0, len(entries))
		for _, e := range entries {
			refs = append(refs, strings.TrimSpace(e))
		}
		return refs
	}
	return nil
}

// RenderFragment builds the presentation fragment: extracted references
// (when any) followed by the model-generated suggestions, which are
// always labeled as suggestions rather than verified citations.
func RenderFragment(refs []string, suggestions string) string {
	var b strings.Builder
	b.WriteString("<section class=\"related-work\">\n")
	if len(refs) > 0 {
		if len(refs) > maxRenderedReferences {
			refs = refs[:maxRenderedReferences]
		}
		b.WriteString("<h4>References from uploaded papers</h4>\n<ul>\n")
		for _, ref := range refs {
			b.WriteString("<li>")
			b.WriteString(html.EscapeString(ref))
			b.WriteString("</li>\n")
		}
		b.WriteString("</ul>\n")
	}
	if strings.TrimSpace(suggestions) != "" {
		b.WriteString("<h4>Suggested reading (model-generated, unverified)</h4>\n<div class=\"suggestions\">")
		b.WriteString(html.EscapeString(suggestions))
		b.WriteString("</div>\n")
	}
	b.WriteString("</section>")
	return b.String()
}
