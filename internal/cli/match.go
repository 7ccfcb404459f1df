package cli

import (
	"fmt"

	"resumatch/internal/common"
	"resumatch/internal/config"
	"resumatch/internal/embedding"
	"resumatch/internal/errors"
	"resumatch/internal/matcher"
	"resumatch/internal/scoring"
	"resumatch/internal/utils"

	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match [resume-file] [job-description-file]",
	Short: "Score a resume against a job description",
	Long: `Score how well a resume matches a job description.
The command takes two arguments: the path to the resume file and the path
to the job description file. Resumes may be plain text, PDF or DOCX files;
the job description should be plain text.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if !utils.IsSupportedResumeFormat(args[0]) {
			return fmt.Errorf("unsupported resume format %q (supported: pdf, docx, txt)",
				utils.GetFileExtension(args[0]))
		}
		cfg := getConfigFromContext(cmd.Context())
		if matchConfig.OutputFormat == "" {
			matchConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(matchConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runMatch,
}

var matchConfig common.CommandConfig

func init() {
	matchCmd.Flags().StringVarP(&matchConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	matchCmd.Flags().StringVar(&matchConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")

	_ = matchCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

// buildMatcher wires the configured embedding provider (if any) into a scorer
// and returns the matcher plus the embedding service for lifecycle management.
// The service is nil when semantic matching is disabled.
func buildMatcher(cfg *config.Config, logger *errors.Logger) (*matcher.Matcher, *embedding.Service, error) {
	embeddingSvc, err := embedding.NewService(&cfg.Embedding, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedding service: %w", err)
	}

	var provider embedding.Provider
	if embeddingSvc.Enabled() {
		provider = embeddingSvc.Provider
	}
	return matcher.New(scoring.NewScorer(provider, logger), logger), embeddingSvc, nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	m, embeddingSvc, err := buildMatcher(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := embeddingSvc.Close(); closeErr != nil {
			logger.Warn("Failed to close embedding service", "error", closeErr)
		}
	}()

	logger.Info("Starting resume match",
		"semantic_matching", m.SemanticEnabled(),
		"output_format", matchConfig.OutputFormat)

	err = common.RunMatchCommand(
		cmd.Context(),
		logger,
		matchConfig,
		args[0],
		args[1],
		m.Match,
	)
	if err != nil {
		return fmt.Errorf("failed to match resume: %w", err)
	}
	logger.Info("Resume match completed successfully")
	return nil
}
