package parser

import (
	"regexp"
	"strings"
)

// Alias sets for the sections recognized in resumes. Overlap between the sets
// is resolved positionally: the earliest keyword occurrence opens a section,
// and the earliest end keyword after it closes it.
var (
	experienceKeywords    = []string{"experience", "work experience", "employment", "work history"}
	experienceEndKeywords = []string{"education", "skills", "projects", "achievements"}

	skillsKeywords    = []string{"skills", "technical skills", "core competencies", "expertise"}
	skillsEndKeywords = []string{"experience", "education", "projects", "achievements"}

	educationKeywords    = []string{"education", "academic background", "qualifications"}
	educationEndKeywords = []string{"experience", "skills", "projects", "achievements"}
)

// bulletPrefixRe strips leading bullet, dash, and whitespace runs from line items.
var bulletPrefixRe = regexp.MustCompile(`^[-•*+\s]+`)

// ExtractSection returns the line items of the section introduced by the
// earliest case-insensitive occurrence of any keyword in sectionKeywords.
// The section runs to the earliest occurrence of any end keyword strictly
// after the start, or to the end of text. The header line is skipped, lines
// containing a keyword from either set are dropped, bullet prefixes are
// stripped, and the remaining items are kept in document order without
// deduplication.
func ExtractSection(text string, sectionKeywords, endKeywords []string) []string {
	textLower := strings.ToLower(text)

	startPos := -1
	for _, keyword := range sectionKeywords {
		pos := strings.Index(textLower, strings.ToLower(keyword))
		if pos != -1 && (startPos == -1 || pos < startPos) {
			startPos = pos
		}
	}
	if startPos == -1 {
		return []string{}
	}

	endPos := len(text)
	for _, keyword := range endKeywords {
		idx := strings.Index(textLower[startPos+1:], strings.ToLower(keyword))
		if idx != -1 && startPos+1+idx < endPos {
			endPos = startPos + 1 + idx
		}
	}

	lines := strings.Split(text[startPos:endPos], "\n")

	items := []string{}
	for _, line := range lines[1:] { // skip the header line
		line = strings.TrimSpace(line)
		if line == "" || containsAnyKeyword(line, sectionKeywords, endKeywords) {
			continue
		}
		line = bulletPrefixRe.ReplaceAllString(line, "")
		if line != "" {
			items = append(items, line)
		}
	}

	return items
}

// containsAnyKeyword reports whether line contains any keyword from the given
// sets, case-insensitively. It guards against re-matching nested headers.
func containsAnyKeyword(line string, keywordSets ...[]string) bool {
	lineLower := strings.ToLower(line)
	for _, set := range keywordSets {
		for _, keyword := range set {
			if strings.Contains(lineLower, strings.ToLower(keyword)) {
				return true
			}
		}
	}
	return false
}
