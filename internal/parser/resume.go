package parser

import (
	"regexp"
	"strings"

	"resumatch/internal/types"
)

// UnknownCandidate is the sentinel name used when no name can be detected.
const UnknownCandidate = "Unknown Candidate"

const (
	// nameScanLines bounds how many leading lines are inspected for a name.
	nameScanLines = 5
	// maxNameTokens bounds how many whitespace-separated tokens a name line may have.
	maxNameTokens = 4
)

var (
	// nameLineRe accepts lines made of letters, whitespace, and periods only.
	nameLineRe = regexp.MustCompile(`^[A-Za-z\s.]+$`)

	// nameLabelRe is the fallback "Name: ..." pattern searched anywhere in the text.
	nameLabelRe = regexp.MustCompile(`(?i)Name\s*:\s*(.+)`)
)

// contactMarkers disqualify a line from being read as the candidate name.
var contactMarkers = []string{"email", "phone", "address", "linkedin"}

// ExtractName returns the candidate name from resume text. The first line
// among the leading lines that carries no contact marker, matches the name
// pattern, and has at most four tokens wins. Failing that, a "Name:" label
// anywhere in the text is used, and failing that the UnknownCandidate
// sentinel is returned.
func ExtractName(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > nameScanLines {
		lines = lines[:nameScanLines]
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || containsContactMarker(line) {
			continue
		}
		if nameLineRe.MatchString(line) && len(strings.Fields(line)) <= maxNameTokens {
			return line
		}
	}

	if m := nameLabelRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}

	return UnknownCandidate
}

func containsContactMarker(line string) bool {
	lineLower := strings.ToLower(line)
	for _, marker := range contactMarkers {
		if strings.Contains(lineLower, marker) {
			return true
		}
	}
	return false
}

// ParseResume extracts the structured candidate profile from raw resume text.
func ParseResume(text string) types.ParsedResume {
	resume := types.NewParsedResume()
	resume.Name = ExtractName(text)
	resume.Experience = ExtractSection(text, experienceKeywords, experienceEndKeywords)
	resume.Skills = ExtractSection(text, skillsKeywords, skillsEndKeywords)
	resume.Education = ExtractSection(text, educationKeywords, educationEndKeywords)
	return resume
}
