package formatters

import (
	"encoding/json"
	"fmt"
	"strings"

	"resumatch/internal/types"
)

// Formatter renders one data type in one output format.
type Formatter interface {
	Format(data any) (string, error)
	// SupportedType names the data type this formatter renders, or "any"
	// for type-generic formatters. The registry keys on it.
	SupportedType() string
}

// FormatterRegistry resolves (output format, data type) pairs to formatters.
type FormatterRegistry struct {
	byFormat map[string]map[string]Formatter // format -> data type -> formatter
}

func NewFormatterRegistry() *FormatterRegistry {
	r := &FormatterRegistry{byFormat: make(map[string]map[string]Formatter)}
	r.Register("json", &JSONFormatter{})
	r.Register("text", &MatchTextFormatter{})
	r.Register("markdown", &MatchMarkdownFormatter{})
	return r
}

// Register adds a formatter under the data type it reports.
func (fr *FormatterRegistry) Register(format string, formatter Formatter) {
	byType := fr.byFormat[format]
	if byType == nil {
		byType = make(map[string]Formatter)
		fr.byFormat[format] = byType
	}
	byType[formatter.SupportedType()] = formatter
}

// Format renders data in the requested output format. When no formatter is
// registered for the concrete data type, the format's "any" formatter takes
// over, so arbitrary values still render as JSON.
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := dataTypeOf(data)
	byType := fr.byFormat[format]

	if f, ok := byType[dataType]; ok {
		return f.Format(data)
	}
	if f, ok := byType["any"]; ok {
		return f.Format(data)
	}
	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

func dataTypeOf(data any) string {
	switch data.(type) {
	case types.MatchResult:
		return "MatchResult"
	default:
		return "any"
	}
}

// writeListSection appends a header and bulleted items, skipping the section
// entirely when there are no items.
func writeListSection(out *strings.Builder, header string, items []string) {
	if len(items) == 0 {
		return
	}
	out.WriteString(header)
	for _, item := range items {
		out.WriteString(fmt.Sprintf("- %s\n", item))
	}
	out.WriteString("\n")
}

// JSONFormatter marshals any value as indented JSON.
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// MatchTextFormatter renders a match result as plain text for the terminal.
type MatchTextFormatter struct{}

func (mtf *MatchTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.MatchResult)
	if !ok {
		return "", fmt.Errorf("expected MatchResult, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== JOB MATCH RESULTS ===\n\n")
	output.WriteString(fmt.Sprintf("Candidate: %s\n", result.CandidateName))
	output.WriteString(fmt.Sprintf("Position:  %s\n\n", result.JobTitle))

	output.WriteString("=== MATCH SCORES ===\n")
	output.WriteString(fmt.Sprintf("Overall Match:    %d%%\n", result.MatchScores.OverallScore))
	output.WriteString(fmt.Sprintf("Skills Match:     %d%% (50%% weight)\n", result.MatchScores.SkillsMatch))
	output.WriteString(fmt.Sprintf("Experience Match: %d%% (30%% weight)\n", result.MatchScores.ExperienceMatch))
	output.WriteString(fmt.Sprintf("Education Match:  %d%% (20%% weight)\n\n", result.MatchScores.EducationMatch))

	output.WriteString("=== RESUME ANALYSIS ===\n")
	parsed := result.Details.ParsedResume
	writeListSection(&output, "Skills Found:\n", parsed.Skills)
	writeListSection(&output, "Experience Found:\n", parsed.Experience)
	writeListSection(&output, "Education Found:\n", parsed.Education)

	output.WriteString("=== JOB REQUIREMENTS ===\n")
	requirements := result.Details.JobRequirements
	writeListSection(&output, "Required Skills:\n", requirements.RequiredSkills)
	writeListSection(&output, "Required Experience:\n", requirements.RequiredExperience)
	writeListSection(&output, "Required Education:\n", requirements.RequiredEducation)

	if result.Details.SemanticMatchingUsed {
		output.WriteString("Matching Method: Semantic + Keyword Matching\n")
	} else {
		output.WriteString("Matching Method: Keyword Matching Only\n")
	}

	return output.String(), nil
}

func (mtf *MatchTextFormatter) SupportedType() string {
	return "MatchResult"
}

// MatchMarkdownFormatter renders a match result as a Markdown report.
type MatchMarkdownFormatter struct{}

func (mmf *MatchMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.MatchResult)
	if !ok {
		return "", fmt.Errorf("expected MatchResult, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Job Match Results\n\n")
	output.WriteString(fmt.Sprintf("**Candidate:** %s\n\n", result.CandidateName))
	output.WriteString(fmt.Sprintf("**Position:** %s\n\n", result.JobTitle))

	output.WriteString("## Match Scores\n\n")
	output.WriteString(fmt.Sprintf("**Overall Match:** %d%%\n\n", result.MatchScores.OverallScore))
	output.WriteString(fmt.Sprintf("- Skills Match: %d%% (50%% weight)\n", result.MatchScores.SkillsMatch))
	output.WriteString(fmt.Sprintf("- Experience Match: %d%% (30%% weight)\n", result.MatchScores.ExperienceMatch))
	output.WriteString(fmt.Sprintf("- Education Match: %d%% (20%% weight)\n", result.MatchScores.EducationMatch))
	output.WriteString("\n")

	output.WriteString("## Resume Analysis\n\n")
	parsed := result.Details.ParsedResume
	writeListSection(&output, "### Skills Found\n", parsed.Skills)
	writeListSection(&output, "### Experience Found\n", parsed.Experience)
	writeListSection(&output, "### Education Found\n", parsed.Education)

	output.WriteString("## Job Requirements\n\n")
	requirements := result.Details.JobRequirements
	writeListSection(&output, "### Required Skills\n", requirements.RequiredSkills)
	writeListSection(&output, "### Required Experience\n", requirements.RequiredExperience)
	writeListSection(&output, "### Required Education\n", requirements.RequiredEducation)

	if result.Details.SemanticMatchingUsed {
		output.WriteString("**Matching Method:** Semantic + Keyword Matching\n")
	} else {
		output.WriteString("**Matching Method:** Keyword Matching Only\n")
	}

	return output.String(), nil
}

func (mmf *MatchMarkdownFormatter) SupportedType() string {
	return "MatchResult"
}

// GlobalRegistry is the shared registry the CLI output path renders through.
var GlobalRegistry = NewFormatterRegistry()
