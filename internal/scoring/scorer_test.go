package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"testing"

	"resumatch/internal/embedding"
	"resumatch/internal/errors"
	"resumatch/internal/types"
)

// stubProvider returns canned vectors keyed by the embedded text
type stubProvider struct {
	vectors map[string][]float32
	err     error
}

func (p *stubProvider) Embed(_ context.Context, text string) ([]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	if vector, ok := p.vectors[text]; ok {
		return vector, nil
	}
	return []float32{1, 0, 0}, nil
}

func (p *stubProvider) GetModelInfo(_ context.Context) *embedding.ModelInfo {
	return &embedding.ModelInfo{Name: "stub", Provider: "stub", Available: true}
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Close() error { return nil }

func testLogger() *errors.Logger {
	return errors.NewLogger(slog.LevelError)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestKeywordSimilarity(t *testing.T) {
	scorer := NewScorer(nil, testLogger())

	tests := []struct {
		name          string
		resumeItems   []string
		requiredItems []string
		expected      float64
	}{
		{
			name:          "identical items",
			resumeItems:   []string{"Python", "Go"},
			requiredItems: []string{"Python", "Go"},
			expected:      100,
		},
		{
			name:          "case insensitive overlap",
			resumeItems:   []string{"PYTHON"},
			requiredItems: []string{"python"},
			expected:      100,
		},
		{
			name:          "half overlap",
			resumeItems:   []string{"Python", "Go"},
			requiredItems: []string{"Python", "Java"},
			expected:      50,
		},
		{
			name:          "no overlap",
			resumeItems:   []string{"Python"},
			requiredItems: []string{"Java"},
			expected:      0,
		},
		{
			name:          "resume superset stays capped",
			resumeItems:   []string{"Python", "Go", "Java", "Rust"},
			requiredItems: []string{"Python"},
			expected:      100,
		},
		{
			name:          "empty resume items",
			resumeItems:   []string{},
			requiredItems: []string{"Python"},
			expected:      0,
		},
		{
			name:          "empty required items",
			resumeItems:   []string{"Python"},
			requiredItems: []string{},
			expected:      0,
		},
		{
			name:          "required items are only stop words",
			resumeItems:   []string{"Python"},
			requiredItems: []string{"the and of"},
			expected:      0,
		},
		{
			name:          "stop words do not count as overlap",
			resumeItems:   []string{"experience with Python"},
			requiredItems: []string{"skilled with Java"},
			expected:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.KeywordSimilarity(tt.resumeItems, tt.requiredItems)
			if !almostEqual(got, tt.expected) {
				t.Errorf("Expected %.2f, got %.2f", tt.expected, got)
			}
		})
	}
}

func TestSemanticSimilarity(t *testing.T) {
	ctx := context.Background()

	t.Run("identical vectors score 100", func(t *testing.T) {
		provider := &stubProvider{vectors: map[string][]float32{
			"python go": {1, 2, 3},
			"java rust": {1, 2, 3},
		}}
		scorer := NewScorer(provider, testLogger())

		got := scorer.SemanticSimilarity(ctx, []string{"python", "go"}, []string{"java", "rust"})
		if !almostEqual(got, 100) {
			t.Errorf("Expected 100, got %.4f", got)
		}
	})

	t.Run("orthogonal vectors score 0", func(t *testing.T) {
		provider := &stubProvider{vectors: map[string][]float32{
			"python": {1, 0},
			"java":   {0, 1},
		}}
		scorer := NewScorer(provider, testLogger())

		got := scorer.SemanticSimilarity(ctx, []string{"python"}, []string{"java"})
		if !almostEqual(got, 0) {
			t.Errorf("Expected 0, got %.4f", got)
		}
	})

	t.Run("negative similarity clamps to 0", func(t *testing.T) {
		provider := &stubProvider{vectors: map[string][]float32{
			"python": {1, 0},
			"java":   {-1, 0},
		}}
		scorer := NewScorer(provider, testLogger())

		got := scorer.SemanticSimilarity(ctx, []string{"python"}, []string{"java"})
		if got != 0 {
			t.Errorf("Expected 0, got %.4f", got)
		}
	})

	t.Run("zero vector scores 0", func(t *testing.T) {
		provider := &stubProvider{vectors: map[string][]float32{
			"python": {0, 0},
			"java":   {1, 1},
		}}
		scorer := NewScorer(provider, testLogger())

		got := scorer.SemanticSimilarity(ctx, []string{"python"}, []string{"java"})
		if got != 0 {
			t.Errorf("Expected 0, got %.4f", got)
		}
	})

	t.Run("embedding failure degrades to 0", func(t *testing.T) {
		provider := &stubProvider{err: fmt.Errorf("backend unavailable")}
		scorer := NewScorer(provider, testLogger())

		got := scorer.SemanticSimilarity(ctx, []string{"python"}, []string{"java"})
		if got != 0 {
			t.Errorf("Expected 0, got %.4f", got)
		}
	})

	t.Run("nil provider scores 0", func(t *testing.T) {
		scorer := NewScorer(nil, testLogger())

		got := scorer.SemanticSimilarity(ctx, []string{"python"}, []string{"python"})
		if got != 0 {
			t.Errorf("Expected 0, got %.4f", got)
		}
	})

	t.Run("empty item lists score 0", func(t *testing.T) {
		provider := &stubProvider{}
		scorer := NewScorer(provider, testLogger())

		if got := scorer.SemanticSimilarity(ctx, nil, []string{"python"}); got != 0 {
			t.Errorf("Expected 0 for empty resume items, got %.4f", got)
		}
		if got := scorer.SemanticSimilarity(ctx, []string{"python"}, nil); got != 0 {
			t.Errorf("Expected 0 for empty required items, got %.4f", got)
		}
	})
}

func TestExperienceMatch(t *testing.T) {
	scorer := NewScorer(nil, testLogger())

	tests := []struct {
		name               string
		resumeExperience   []string
		requiredExperience []string
		expected           float64
	}{
		{
			name:               "exact requirement met",
			resumeExperience:   []string{"5 years of software development"},
			requiredExperience: []string{"5+ years experience"},
			expected:           85,
		},
		{
			name:               "below requirement",
			resumeExperience:   []string{"2 years of development"},
			requiredExperience: []string{"5 years experience"},
			expected:           28,
		},
		{
			name:               "well above requirement caps at 100",
			resumeExperience:   []string{"20 years in industry"},
			requiredExperience: []string{"2 years experience"},
			expected:           100,
		},
		{
			name:               "years sum across resume items",
			resumeExperience:   []string{"3 years Go development", "4 years Java development"},
			requiredExperience: []string{"5 years experience"},
			expected:           100,
		},
		{
			name:               "largest required years wins",
			resumeExperience:   []string{"6 years of engineering"},
			requiredExperience: []string{"3 years preferred", "7 years required"},
			expected:           60,
		},
		{
			name:               "first number of a range is the requirement",
			resumeExperience:   []string{"3 years of development"},
			requiredExperience: []string{"3-5 years experience"},
			expected:           85,
		},
		{
			name:               "no numeric requirement scores the default",
			resumeExperience:   []string{"several years of development"},
			requiredExperience: []string{"experienced team player"},
			expected:           50,
		},
		{
			name:               "empty required experience scores the default",
			resumeExperience:   []string{"5 years of development"},
			requiredExperience: []string{},
			expected:           50,
		},
		{
			name:               "empty resume experience scores 0",
			resumeExperience:   []string{},
			requiredExperience: []string{"5 years experience"},
			expected:           0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.ExperienceMatch(tt.resumeExperience, tt.requiredExperience)
			if !almostEqual(got, tt.expected) {
				t.Errorf("Expected %.2f, got %.4f", tt.expected, got)
			}
		})
	}
}

func TestSkillsMatch(t *testing.T) {
	ctx := context.Background()

	t.Run("keyword only without provider", func(t *testing.T) {
		scorer := NewScorer(nil, testLogger())

		got := scorer.SkillsMatch(ctx, []string{"Python", "Go"}, []string{"Python", "Java"})
		if !almostEqual(got, 50) {
			t.Errorf("Expected 50, got %.4f", got)
		}
	})

	t.Run("blends semantic and keyword scores", func(t *testing.T) {
		// Semantic scores 100 (identical vectors), keyword scores 50,
		// so the blend lands at 0.7*100 + 0.3*50 = 85.
		provider := &stubProvider{vectors: map[string][]float32{
			"python developer": {1, 2},
			"java developer":   {1, 2},
		}}
		scorer := NewScorer(provider, testLogger())

		got := scorer.SkillsMatch(ctx, []string{"python developer"}, []string{"java developer"})
		if !almostEqual(got, 85) {
			t.Errorf("Expected 85, got %.4f", got)
		}
	})

	t.Run("embedding failure leaves the keyword portion", func(t *testing.T) {
		provider := &stubProvider{err: fmt.Errorf("backend unavailable")}
		scorer := NewScorer(provider, testLogger())

		// Semantic degrades to 0, keyword scores 100, blend is 0.3*100 = 30
		got := scorer.SkillsMatch(ctx, []string{"python"}, []string{"python"})
		if !almostEqual(got, 30) {
			t.Errorf("Expected 30, got %.4f", got)
		}
	})

	t.Run("empty inputs score 0", func(t *testing.T) {
		scorer := NewScorer(nil, testLogger())

		if got := scorer.SkillsMatch(ctx, nil, []string{"python"}); got != 0 {
			t.Errorf("Expected 0 for empty resume skills, got %.4f", got)
		}
		if got := scorer.SkillsMatch(ctx, []string{"python"}, nil); got != 0 {
			t.Errorf("Expected 0 for empty required skills, got %.4f", got)
		}
	})
}

func TestEducationMatch(t *testing.T) {
	ctx := context.Background()

	t.Run("empty resume education scores 0", func(t *testing.T) {
		scorer := NewScorer(nil, testLogger())

		got := scorer.EducationMatch(ctx, nil, []string{"bachelor degree"})
		if got != 0 {
			t.Errorf("Expected 0, got %.4f", got)
		}
	})

	t.Run("no requirement scores the default", func(t *testing.T) {
		scorer := NewScorer(nil, testLogger())

		got := scorer.EducationMatch(ctx, []string{"BSc Computer Science"}, nil)
		if !almostEqual(got, 50) {
			t.Errorf("Expected 50, got %.4f", got)
		}
	})

	t.Run("keyword only without provider", func(t *testing.T) {
		scorer := NewScorer(nil, testLogger())

		got := scorer.EducationMatch(ctx, []string{"bachelor computer science"}, []string{"bachelor degree"})
		if !almostEqual(got, 50) {
			t.Errorf("Expected 50, got %.4f", got)
		}
	})

	t.Run("blends semantic and keyword scores", func(t *testing.T) {
		// Semantic scores 100 (identical vectors), keyword scores 50,
		// so the blend lands at 0.6*100 + 0.4*50 = 80.
		provider := &stubProvider{vectors: map[string][]float32{
			"bachelor science": {3, 4},
			"master science":   {3, 4},
		}}
		scorer := NewScorer(provider, testLogger())

		got := scorer.EducationMatch(ctx, []string{"bachelor science"}, []string{"master science"})
		if !almostEqual(got, 80) {
			t.Errorf("Expected 80, got %.4f", got)
		}
	})
}

func TestOverallScore(t *testing.T) {
	scorer := NewScorer(nil, testLogger())

	tests := []struct {
		name            string
		experienceScore float64
		skillsScore     float64
		educationScore  float64
		expected        float64
	}{
		{
			name:            "weighted combination",
			experienceScore: 80,
			skillsScore:     60,
			educationScore:  100,
			expected:        74,
		},
		{
			name:            "all perfect",
			experienceScore: 100,
			skillsScore:     100,
			educationScore:  100,
			expected:        100,
		},
		{
			name:            "all zero",
			experienceScore: 0,
			skillsScore:     0,
			educationScore:  0,
			expected:        0,
		},
		{
			name:            "fractional result rounds",
			experienceScore: 70,
			skillsScore:     55,
			educationScore:  45,
			expected:        58,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.OverallScore(tt.experienceScore, tt.skillsScore, tt.educationScore)
			if !almostEqual(got, tt.expected) {
				t.Errorf("Expected %.2f, got %.4f", tt.expected, got)
			}
		})
	}
}

func TestScores(t *testing.T) {
	scorer := NewScorer(nil, testLogger())

	resume := types.ParsedResume{
		Name:       "Jane Doe",
		Experience: []string{"2 years of backend development"},
		Skills:     []string{"python"},
		Education:  []string{"BSc Computer Science"},
	}
	requirements := types.JobRequirements{
		Title:              "Backend Engineer",
		RequiredExperience: []string{"5 years experience"},
		RequiredSkills:     []string{"python java go"},
		RequiredEducation:  []string{},
	}

	scores := scorer.Scores(context.Background(), resume, requirements)

	// Sub-scores truncate toward zero, the overall score is computed from
	// the untruncated values and rounded.
	if scores.ExperienceMatch != 28 {
		t.Errorf("Expected experience match 28, got %d", scores.ExperienceMatch)
	}
	if scores.SkillsMatch != 33 {
		t.Errorf("Expected skills match 33, got %d", scores.SkillsMatch)
	}
	if scores.EducationMatch != 50 {
		t.Errorf("Expected education match 50, got %d", scores.EducationMatch)
	}
	if scores.OverallScore != 35 {
		t.Errorf("Expected overall score 35, got %d", scores.OverallScore)
	}
}

func TestScoresDeterministic(t *testing.T) {
	scorer := NewScorer(nil, testLogger())

	resume := types.ParsedResume{
		Name:       "John Smith",
		Experience: []string{"5 years of development"},
		Skills:     []string{"Go", "Python", "Docker"},
		Education:  []string{"MSc Software Engineering"},
	}
	requirements := types.JobRequirements{
		Title:              "Platform Engineer",
		RequiredExperience: []string{"3 years experience"},
		RequiredSkills:     []string{"Go", "Kubernetes"},
		RequiredEducation:  []string{"degree in computer science"},
	}

	first := scorer.Scores(context.Background(), resume, requirements)
	for i := 0; i < 5; i++ {
		again := scorer.Scores(context.Background(), resume, requirements)
		if again != first {
			t.Fatalf("Expected identical scores on repeat run, got %+v then %+v", first, again)
		}
	}
}

func BenchmarkKeywordSimilarity(b *testing.B) {
	scorer := NewScorer(nil, testLogger())
	resumeSkills := []string{"Python", "Go", "Docker", "Kubernetes", "PostgreSQL", "Redis"}
	requiredSkills := []string{"Go", "Kubernetes", "Terraform", "AWS"}

	for b.Loop() {
		scorer.KeywordSimilarity(resumeSkills, requiredSkills)
	}
}
