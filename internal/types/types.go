package types

// ParsedResume holds the structured fields extracted from raw resume text.
// The slices preserve the order items appeared in the document.
type ParsedResume struct {
	Name       string   `json:"name"`
	Experience []string `json:"experience"`
	Skills     []string `json:"skills"`
	Education  []string `json:"education"`
}

// NewParsedResume returns a ParsedResume with allocated slices so empty
// sections serialize as [] rather than null.
func NewParsedResume() ParsedResume {
	return ParsedResume{
		Experience: []string{},
		Skills:     []string{},
		Education:  []string{},
	}
}

// JobRequirements holds the structured requirements extracted from a job description.
type JobRequirements struct {
	Title              string   `json:"title"`
	RequiredExperience []string `json:"required_experience"`
	RequiredSkills     []string `json:"required_skills"`
	RequiredEducation  []string `json:"required_education"`
}

// NewJobRequirements returns a JobRequirements with allocated slices.
func NewJobRequirements() JobRequirements {
	return JobRequirements{
		RequiredExperience: []string{},
		RequiredSkills:     []string{},
		RequiredEducation:  []string{},
	}
}

// MatchScores holds the four match percentages, each in [0,100].
type MatchScores struct {
	ExperienceMatch int `json:"experience_match"`
	SkillsMatch     int `json:"skills_match"`
	EducationMatch  int `json:"education_match"`
	OverallScore    int `json:"overall_score"`
}

// MatchDetails carries the structured inputs behind a score for auditability.
// SemanticMatchingUsed reports whether an embedding provider was configured
// for the process, not whether every semantic call succeeded.
type MatchDetails struct {
	ParsedResume         ParsedResume    `json:"parsed_resume"`
	JobRequirements      JobRequirements `json:"job_requirements"`
	SemanticMatchingUsed bool            `json:"semantic_matching_used"`
}

// MatchResult is the full outcome of matching one resume against one job description.
type MatchResult struct {
	CandidateName string       `json:"candidate_name"`
	JobTitle      string       `json:"job_title"`
	MatchScores   MatchScores  `json:"match_scores"`
	Details       MatchDetails `json:"details"`
}

// ScoreRequest is the JSON request body for matching pre-extracted text.
type ScoreRequest struct {
	ResumeText     string `json:"resume_text"`
	JobDescription string `json:"job_description"`
}
