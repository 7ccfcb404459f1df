package scoring

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"resumatch/internal/embedding"
	"resumatch/internal/errors"
	"resumatch/internal/types"
)

// Scoring weights and factors. These values are part of the scoring contract:
// the same inputs must keep producing the same percentages across releases.
const (
	// Blend weights for skills scoring when semantic matching is available
	skillsSemanticWeight = 0.7
	skillsKeywordWeight  = 0.3

	// Blend weights for education scoring when semantic matching is available
	educationSemanticWeight = 0.6
	educationKeywordWeight  = 0.4

	// Experience scoring factors. Meeting the requirement scales the
	// years ratio by 85 (capped at 100), falling short scales it by 70.
	meetsRequirementFactor = 85
	belowRequirementFactor = 70

	// Score awarded when the job states no measurable requirement
	noRequirementScore = 50.0

	// Weights for the overall score
	overallSkillsWeight     = 0.5
	overallExperienceWeight = 0.3
	overallEducationWeight  = 0.2
)

var (
	// wordRe tokenizes text into Unicode word characters
	wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

	// resumeYearsRe finds year counts like "5 years" in resume experience items
	resumeYearsRe = regexp.MustCompile(`(?i)(\d+)\s*years?`)

	// requiredYearsRe finds the first number in a requirement item
	requiredYearsRe = regexp.MustCompile(`\d+`)
)

// stopWords are excluded from keyword overlap
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {},
}

// Scorer computes match scores between parsed resumes and job requirements.
// The embedding provider is optional: when it is nil every score falls back
// to pure keyword matching.
type Scorer struct {
	provider embedding.Provider
	logger   *errors.Logger
}

// NewScorer creates a scorer. Pass a nil provider to disable semantic matching.
func NewScorer(provider embedding.Provider, logger *errors.Logger) *Scorer {
	return &Scorer{
		provider: provider,
		logger:   logger,
	}
}

// SemanticEnabled reports whether an embedding provider is wired in
func (s *Scorer) SemanticEnabled() bool {
	return s.provider != nil
}

// KeywordSimilarity scores the overlap between resume items and required
// items as a percentage of the required keyword set that the resume covers.
func (s *Scorer) KeywordSimilarity(resumeItems, requiredItems []string) float64 {
	if len(resumeItems) == 0 || len(requiredItems) == 0 {
		return 0
	}

	resumeWords := tokenSet(strings.Join(resumeItems, " "))
	requiredWords := tokenSet(strings.Join(requiredItems, " "))

	if len(requiredWords) == 0 {
		return 0
	}

	overlap := 0
	for word := range resumeWords {
		if _, ok := requiredWords[word]; ok {
			overlap++
		}
	}

	return math.Min(100, float64(overlap)/float64(len(requiredWords))*100)
}

// SemanticSimilarity scores the cosine similarity between the embedded item
// lists as a percentage. Embedding failures degrade to 0 so callers keep the
// keyword portion of their blend.
func (s *Scorer) SemanticSimilarity(ctx context.Context, resumeItems, requiredItems []string) float64 {
	if s.provider == nil || len(resumeItems) == 0 || len(requiredItems) == 0 {
		return 0
	}

	resumeVec, err := s.provider.Embed(ctx, strings.Join(resumeItems, " "))
	if err != nil {
		s.logger.Warn("Semantic similarity calculation failed", "error", err.Error())
		return 0
	}

	requiredVec, err := s.provider.Embed(ctx, strings.Join(requiredItems, " "))
	if err != nil {
		s.logger.Warn("Semantic similarity calculation failed", "error", err.Error())
		return 0
	}

	return math.Max(0, cosine(resumeVec, requiredVec)*100)
}

// ExperienceMatch scores total resume years against the largest required
// year count. Jobs without a numeric requirement score noRequirementScore.
func (s *Scorer) ExperienceMatch(resumeExperience, requiredExperience []string) float64 {
	if len(resumeExperience) == 0 {
		return 0
	}

	totalResumeYears := 0
	for _, item := range resumeExperience {
		for _, match := range resumeYearsRe.FindAllStringSubmatch(item, -1) {
			if years, err := strconv.Atoi(match[1]); err == nil {
				totalResumeYears += years
			}
		}
	}

	requiredYears := 0
	for _, item := range requiredExperience {
		if match := requiredYearsRe.FindString(item); match != "" {
			if years, err := strconv.Atoi(match); err == nil && years > requiredYears {
				requiredYears = years
			}
		}
	}

	if requiredYears == 0 {
		return noRequirementScore
	}

	ratio := float64(totalResumeYears) / float64(requiredYears)
	if totalResumeYears >= requiredYears {
		return math.Min(100, ratio*meetsRequirementFactor)
	}
	return ratio * belowRequirementFactor
}

// SkillsMatch blends semantic and keyword similarity for skills
func (s *Scorer) SkillsMatch(ctx context.Context, resumeSkills, requiredSkills []string) float64 {
	if len(resumeSkills) == 0 || len(requiredSkills) == 0 {
		return 0
	}

	if s.provider == nil {
		return s.KeywordSimilarity(resumeSkills, requiredSkills)
	}

	semanticScore := s.SemanticSimilarity(ctx, resumeSkills, requiredSkills)
	keywordScore := s.KeywordSimilarity(resumeSkills, requiredSkills)
	return semanticScore*skillsSemanticWeight + keywordScore*skillsKeywordWeight
}

// EducationMatch blends semantic and keyword similarity for education.
// Jobs without an education requirement score noRequirementScore.
func (s *Scorer) EducationMatch(ctx context.Context, resumeEducation, requiredEducation []string) float64 {
	if len(resumeEducation) == 0 {
		return 0
	}

	if len(requiredEducation) == 0 {
		return noRequirementScore
	}

	if s.provider == nil {
		return s.KeywordSimilarity(resumeEducation, requiredEducation)
	}

	semanticScore := s.SemanticSimilarity(ctx, resumeEducation, requiredEducation)
	keywordScore := s.KeywordSimilarity(resumeEducation, requiredEducation)
	return semanticScore*educationSemanticWeight + keywordScore*educationKeywordWeight
}

// OverallScore combines the sub-scores into the weighted overall percentage,
// rounded to the nearest integer. The untruncated sub-scores go in here, not
// the integer values reported to callers.
func (s *Scorer) OverallScore(experienceScore, skillsScore, educationScore float64) float64 {
	overall := skillsScore*overallSkillsWeight +
		experienceScore*overallExperienceWeight +
		educationScore*overallEducationWeight
	return math.Round(overall)
}

// Scores computes all four scores for a parsed resume against job requirements
func (s *Scorer) Scores(ctx context.Context, resume types.ParsedResume, requirements types.JobRequirements) types.MatchScores {
	experienceScore := s.ExperienceMatch(resume.Experience, requirements.RequiredExperience)
	skillsScore := s.SkillsMatch(ctx, resume.Skills, requirements.RequiredSkills)
	educationScore := s.EducationMatch(ctx, resume.Education, requirements.RequiredEducation)

	return types.MatchScores{
		ExperienceMatch: int(experienceScore),
		SkillsMatch:     int(skillsScore),
		EducationMatch:  int(educationScore),
		OverallScore:    int(s.OverallScore(experienceScore, skillsScore, educationScore)),
	}
}

// tokenSet lowercases text, tokenizes it and drops stop words
func tokenSet(text string) map[string]struct{} {
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		if _, stop := stopWords[word]; !stop {
			set[word] = struct{}{}
		}
	}
	return set
}

// cosine returns the cosine similarity of two vectors, or 0 when the lengths
// differ or either vector has zero magnitude.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
