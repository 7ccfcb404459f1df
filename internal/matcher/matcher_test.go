package matcher

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"resumatch/internal/errors"
	"resumatch/internal/scoring"
	"resumatch/internal/types"
)

const sampleResume = `Jane A. Doe
Email: jane@example.com

Experience
- 5 years of backend development at Initech
- Led the platform team

Skills
Python, Go, Docker

Education
BSc Computer Science, State University
`

const sampleJob = `Role: Backend Engineer
We need someone with 3+ years experience.
Skills: Python, Go, Kubernetes
Education: Bachelor degree in Computer Science preferred
`

func newTestMatcher() *Matcher {
	logger := errors.NewLogger(slog.LevelError)
	return New(scoring.NewScorer(nil, logger), logger)
}

func TestMatch(t *testing.T) {
	m := newTestMatcher()

	result, err := m.Match(context.Background(), sampleResume, sampleJob)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.CandidateName != "Jane A. Doe" {
		t.Errorf("Expected candidate name 'Jane A. Doe', got '%s'", result.CandidateName)
	}
	if result.JobTitle != "Backend Engineer" {
		t.Errorf("Expected job title 'Backend Engineer', got '%s'", result.JobTitle)
	}

	// 5 resume years against a 3 year requirement caps at 100
	if result.MatchScores.ExperienceMatch != 100 {
		t.Errorf("Expected experience match 100, got %d", result.MatchScores.ExperienceMatch)
	}
	// 2 of 3 required skill keywords are covered
	if result.MatchScores.SkillsMatch != 66 {
		t.Errorf("Expected skills match 66, got %d", result.MatchScores.SkillsMatch)
	}
	if result.MatchScores.EducationMatch != 40 {
		t.Errorf("Expected education match 40, got %d", result.MatchScores.EducationMatch)
	}
	if result.MatchScores.OverallScore != 71 {
		t.Errorf("Expected overall score 71, got %d", result.MatchScores.OverallScore)
	}

	if result.Details.SemanticMatchingUsed {
		t.Error("Expected semantic matching to be reported as off")
	}

	wantSkills := []string{"Python, Go, Docker"}
	if !reflect.DeepEqual(result.Details.ParsedResume.Skills, wantSkills) {
		t.Errorf("Expected parsed skills %v, got %v", wantSkills, result.Details.ParsedResume.Skills)
	}
	wantRequiredSkills := []string{"Python", "Go", "Kubernetes"}
	if !reflect.DeepEqual(result.Details.JobRequirements.RequiredSkills, wantRequiredSkills) {
		t.Errorf("Expected required skills %v, got %v", wantRequiredSkills, result.Details.JobRequirements.RequiredSkills)
	}
}

func TestMatchValidation(t *testing.T) {
	m := newTestMatcher()

	t.Run("empty resume text", func(t *testing.T) {
		_, err := m.Match(context.Background(), "   \n\t", sampleJob)
		if err == nil {
			t.Fatal("Expected an error for empty resume text")
		}

		var appErr *errors.AppError
		if !goerrors.As(err, &appErr) {
			t.Fatalf("Expected an AppError, got %T", err)
		}
		if appErr.Code != errors.ErrCodeEmptyDocument {
			t.Errorf("Expected error code %s, got %s", errors.ErrCodeEmptyDocument, appErr.Code)
		}
	})

	t.Run("empty job description", func(t *testing.T) {
		_, err := m.Match(context.Background(), sampleResume, "   ")
		if err == nil {
			t.Fatal("Expected an error for empty job description")
		}

		var appErr *errors.AppError
		if !goerrors.As(err, &appErr) {
			t.Fatalf("Expected an AppError, got %T", err)
		}
		if appErr.Code != errors.ErrCodeMissingInput {
			t.Errorf("Expected error code %s, got %s", errors.ErrCodeMissingInput, appErr.Code)
		}
	})
}

func TestMatchDeterministic(t *testing.T) {
	m := newTestMatcher()

	first, err := m.Match(context.Background(), sampleResume, sampleJob)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := m.Match(context.Background(), sampleResume, sampleJob)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical results for identical inputs, got %+v then %+v", first, second)
	}
}

func TestMatchResultJSON(t *testing.T) {
	m := newTestMatcher()

	// A resume without recognizable sections keeps its list fields as
	// empty arrays on the wire, never null.
	result, err := m.Match(context.Background(), "Just a plain note\nnothing to see", "Role: Greeter")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Unexpected marshal error: %v", err)
	}

	payload := string(data)
	if strings.Contains(payload, "null") {
		t.Errorf("Expected no null fields in payload: %s", payload)
	}
	for _, field := range []string{`"skills":[]`, `"experience":[]`, `"required_skills":[]`, `"required_education":[]`} {
		if !strings.Contains(payload, field) {
			t.Errorf("Expected payload to contain %s: %s", field, payload)
		}
	}

	var decoded types.MatchResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unexpected unmarshal error: %v", err)
	}
	if !reflect.DeepEqual(result, decoded) {
		t.Errorf("Expected round-tripped result to match original, got %+v then %+v", result, decoded)
	}
}
