package parser

import (
	"regexp"
	"strings"

	"resumatch/internal/types"
)

// DefaultJobTitle is used when a job description declares no role, position, or title.
const DefaultJobTitle = "Job Position"

var (
	// jobTitleRe captures the first "role:", "position:", or "title:" value.
	jobTitleRe = regexp.MustCompile(`(?i)(role|position|title)\s*:\s*(.+)`)

	// experiencePatterns are applied in order and every match of every pattern
	// is collected; duplicates across patterns are intentionally preserved.
	experiencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)\+?\s*years?\s*(of\s*)?experience`),
		regexp.MustCompile(`(?i)experience\s*:\s*(.+)`),
		regexp.MustCompile(`(?i)minimum\s*(\d+)\s*years?`),
	}

	// educationPatterns follow the same collect-all policy. The degree capture
	// runs from the first "in" after the degree word up to the next comma,
	// period, or newline.
	educationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(bachelor|master|phd|degree)\s*.*?(in\s*[^,.\n]+)`),
		regexp.MustCompile(`(?i)education\s*:\s*(.+)`),
	}

	// skillsBlockRe opens the skills block; the block runs until a blank line,
	// a line starting with an uppercase letter, or the end of text.
	skillsBlockRe    = regexp.MustCompile(`(?i)(skills|required|tools|technologies)\s*:`)
	skillsBlockEndRe = regexp.MustCompile(`\n\n|\n[A-Z]`)
	skillsSplitRe    = regexp.MustCompile(`[,;\n\-•*]+`)
)

// ParseJobRequirements extracts structured job requirements from raw
// job-description text.
func ParseJobRequirements(text string) types.JobRequirements {
	req := types.NewJobRequirements()
	req.Title = extractJobTitle(text)
	req.RequiredExperience = collectPatternMatches(text, experiencePatterns)
	req.RequiredSkills = extractRequiredSkills(text)
	req.RequiredEducation = collectPatternMatches(text, educationPatterns)
	return req
}

func extractJobTitle(text string) string {
	if m := jobTitleRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[2])
	}
	return DefaultJobTitle
}

// collectPatternMatches gathers every match of every pattern, joining the
// non-empty capture groups of each match with single spaces.
func collectPatternMatches(text string, patterns []*regexp.Regexp) []string {
	collected := []string{}
	for _, pattern := range patterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			groups := make([]string, 0, len(match)-1)
			for _, group := range match[1:] {
				if group != "" {
					groups = append(groups, group)
				}
			}
			if joined := strings.TrimSpace(strings.Join(groups, " ")); joined != "" {
				collected = append(collected, joined)
			}
		}
	}
	return collected
}

// extractRequiredSkills captures the text following the first skills block
// header and splits it into individual skills on commas, semicolons,
// newlines, dashes, bullets, and asterisks.
func extractRequiredSkills(text string) []string {
	loc := skillsBlockRe.FindStringIndex(text)
	if loc == nil {
		return []string{}
	}

	block := text[loc[1]:]
	// The block terminator is searched one character past the colon so a
	// skills list beginning on the next line is not cut off at its own
	// leading newline.
	if len(block) > 1 {
		if end := skillsBlockEndRe.FindStringIndex(block[1:]); end != nil {
			block = block[:1+end[0]]
		}
	}

	skills := []string{}
	for _, part := range skillsSplitRe.Split(block, -1) {
		if part = strings.TrimSpace(part); part != "" {
			skills = append(skills, part)
		}
	}
	return skills
}
