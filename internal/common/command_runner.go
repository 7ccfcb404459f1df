package common

import (
	"context"
	"strings"

	"resumatch/internal/errors"
	"resumatch/internal/extract"
	"resumatch/internal/types"
)

// MatchFunc runs a match once both inputs are loaded.
type MatchFunc func(ctx context.Context, resumeText, jobDescription string) (types.MatchResult, error)

// RunMatchCommand encapsulates the common logic for the file-based match
// command: extract the resume text, read the job description, run the match
// and hand the result to the output handler.
func RunMatchCommand(
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	resumeFile, jobFile string,
	match MatchFunc,
) error {
	fileProcessor := NewFileProcessor(logger)
	outputHandler := NewOutputHandler(logger)
	extractor := extract.New(logger)

	resumeText, err := extractor.Text(resumeFile)
	if err != nil {
		return err
	}
	if strings.TrimSpace(resumeText) == "" {
		return errors.NewValidationError(errors.ErrCodeEmptyDocument,
			"Could not extract text from resume file", nil)
	}

	contents, err := fileProcessor.ValidateAndReadFiles(jobFile)
	if err != nil {
		return err
	}
	jobDescription := contents[0]

	if logger != nil {
		logger.Info("Matching resume against job description",
			"resume_file", resumeFile,
			"job_file", jobFile,
			"resume_chars", len(resumeText))
	}

	result, err := match(ctx, resumeText, jobDescription)
	if err != nil {
		return err
	}

	return outputHandler.HandleOutput(result, cmdConfig)
}
