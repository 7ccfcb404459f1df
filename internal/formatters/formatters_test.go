package formatters

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"resumatch/internal/types"
)

func sampleResult(semantic bool) types.MatchResult {
	return types.MatchResult{
		CandidateName: "Jane A. Doe",
		JobTitle:      "Backend Engineer",
		MatchScores: types.MatchScores{
			ExperienceMatch: 75,
			SkillsMatch:     82,
			EducationMatch:  70,
			OverallScore:    78,
		},
		Details: types.MatchDetails{
			ParsedResume: types.ParsedResume{
				Name:       "Jane A. Doe",
				Experience: []string{"Software Engineer at ACME, 5 years"},
				Skills:     []string{"Python, Go, Docker"},
				Education:  []string{"BSc Computer Science"},
			},
			JobRequirements: types.JobRequirements{
				Title:              "Backend Engineer",
				RequiredExperience: []string{"3"},
				RequiredSkills:     []string{"Go", "PostgreSQL"},
				RequiredEducation:  []string{"Bachelor in Computer Science"},
			},
			SemanticMatchingUsed: semantic,
		},
	}
}

func TestFormatJSON(t *testing.T) {
	registry := NewFormatterRegistry()

	output, err := registry.Format(sampleResult(true), "json")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var decoded types.MatchResult
	if err := json.Unmarshal([]byte(output), &decoded); err != nil {
		t.Fatalf("Expected valid JSON, got error %v", err)
	}
	if decoded.CandidateName != "Jane A. Doe" {
		t.Errorf("Expected candidate 'Jane A. Doe', got %q", decoded.CandidateName)
	}
	if decoded.MatchScores.OverallScore != 78 {
		t.Errorf("Expected overall score 78, got %d", decoded.MatchScores.OverallScore)
	}
}

func TestFormatJSONFallbackForUnknownType(t *testing.T) {
	registry := NewFormatterRegistry()

	output, err := registry.Format(map[string]string{"status": "healthy"}, "json")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(output, `"status": "healthy"`) {
		t.Errorf("Expected JSON output to contain status field, got %q", output)
	}
}

func TestFormatText(t *testing.T) {
	registry := NewFormatterRegistry()

	output, err := registry.Format(sampleResult(false), "text")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expectedLines := []string{
		"=== JOB MATCH RESULTS ===",
		"Candidate: Jane A. Doe",
		"Position:  Backend Engineer",
		"Overall Match:    78%",
		"Skills Match:     82% (50% weight)",
		"Experience Match: 75% (30% weight)",
		"Education Match:  70% (20% weight)",
		"- Python, Go, Docker",
		"Required Skills:",
		"- PostgreSQL",
		"Matching Method: Keyword Matching Only",
	}
	for _, expected := range expectedLines {
		if !strings.Contains(output, expected) {
			t.Errorf("Expected text output to contain %q", expected)
		}
	}
}

func TestFormatTextSemanticMethod(t *testing.T) {
	registry := NewFormatterRegistry()

	output, err := registry.Format(sampleResult(true), "text")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(output, "Matching Method: Semantic + Keyword Matching") {
		t.Errorf("Expected semantic matching method line, got %q", output)
	}
}

func TestFormatMarkdown(t *testing.T) {
	registry := NewFormatterRegistry()

	output, err := registry.Format(sampleResult(true), "markdown")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expectedLines := []string{
		"# Job Match Results",
		"**Candidate:** Jane A. Doe",
		"**Position:** Backend Engineer",
		"**Overall Match:** 78%",
		"- Skills Match: 82% (50% weight)",
		"### Skills Found",
		"### Required Education",
		"- Bachelor in Computer Science",
		"**Matching Method:** Semantic + Keyword Matching",
	}
	for _, expected := range expectedLines {
		if !strings.Contains(output, expected) {
			t.Errorf("Expected markdown output to contain %q", expected)
		}
	}
}

func TestFormatTextSkipsEmptySections(t *testing.T) {
	registry := NewFormatterRegistry()

	result := sampleResult(false)
	result.Details.ParsedResume.Education = []string{}

	output, err := registry.Format(result, "text")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if strings.Contains(output, "Education Found:") {
		t.Errorf("Expected empty education section to be omitted, got %q", output)
	}
}

func TestFormatUnknownFormat(t *testing.T) {
	registry := NewFormatterRegistry()

	_, err := registry.Format(sampleResult(false), "yaml")
	if err == nil {
		t.Fatal("Expected error for unsupported format, got nil")
	}
	if !strings.Contains(err.Error(), "no formatter found") {
		t.Errorf("Expected 'no formatter found' error, got %v", err)
	}
}

type upperNameFormatter struct{}

func (uf *upperNameFormatter) Format(data any) (string, error) {
	result, ok := data.(types.MatchResult)
	if !ok {
		return "", fmt.Errorf("expected MatchResult, got %T", data)
	}
	return strings.ToUpper(result.CandidateName), nil
}

func (uf *upperNameFormatter) SupportedType() string { return "MatchResult" }

func TestRegisterCustomFormatter(t *testing.T) {
	registry := NewFormatterRegistry()
	registry.Register("shout", &upperNameFormatter{})

	output, err := registry.Format(sampleResult(false), "shout")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if output != "JANE A. DOE" {
		t.Errorf("Expected custom formatter output, got %q", output)
	}
}
