package matcher

import (
	"context"
	"strings"

	"resumatch/internal/errors"
	"resumatch/internal/parser"
	"resumatch/internal/scoring"
	"resumatch/internal/types"
)

// Matcher ties resume parsing, job requirement extraction and scoring
// together into the single match operation the CLI and server both use.
type Matcher struct {
	scorer *scoring.Scorer
	logger *errors.Logger
}

// New creates a matcher around the given scorer
func New(scorer *scoring.Scorer, logger *errors.Logger) *Matcher {
	return &Matcher{
		scorer: scorer,
		logger: logger,
	}
}

// SemanticEnabled reports whether the underlying scorer uses embeddings
func (m *Matcher) SemanticEnabled() bool {
	return m.scorer.SemanticEnabled()
}

// Match parses resume text and a job description and scores them against
// each other. Inputs that are empty after trimming are rejected.
func (m *Matcher) Match(ctx context.Context, resumeText, jobDescription string) (types.MatchResult, error) {
	if strings.TrimSpace(resumeText) == "" {
		return types.MatchResult{}, errors.NewValidationError(errors.ErrCodeEmptyDocument,
			"Resume text is empty", nil)
	}
	if strings.TrimSpace(jobDescription) == "" {
		return types.MatchResult{}, errors.NewValidationError(errors.ErrCodeMissingInput,
			"Job description is required", nil)
	}

	parsedResume := parser.ParseResume(resumeText)
	requirements := parser.ParseJobRequirements(jobDescription)

	m.logger.Debug("Parsed matching inputs",
		"candidate", parsedResume.Name,
		"job_title", requirements.Title,
		"resume_skills", len(parsedResume.Skills),
		"required_skills", len(requirements.RequiredSkills))

	scores := m.scorer.Scores(ctx, parsedResume, requirements)

	return types.MatchResult{
		CandidateName: parsedResume.Name,
		JobTitle:      requirements.Title,
		MatchScores:   scores,
		Details: types.MatchDetails{
			ParsedResume:         parsedResume,
			JobRequirements:      requirements,
			SemanticMatchingUsed: m.scorer.SemanticEnabled(),
		},
	}, nil
}
