package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/lint"
)

// NewValidateCmd lints a survey definition before it is published.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a survey definition (JSON or YAML) for broken logic and piping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), args[0])
		},
	}
}

func runValidate(out io.Writer, path string) error {
	survey, err := readSurveyFile(path)
	if err != nil {
		return err
	}

	issues := lint.Survey(survey)
	for _, issue := range issues {
		where := issue.QuestionID
		if issue.RuleID != "" {
			where += "/" + issue.RuleID
		}
		if where != "" {
			where = " (" + where + ")"
		}
		fmt.Fprintf(out, "%s: %s%s: %s\n", issue.Severity, issue.Code, where, issue.Message)
	}

	if lint.HasErrors(issues) {
		return fmt.Errorf("survey %s has errors", survey.ID)
	}
	fmt.Fprintf(out, "ok: %d questions, %d warnings\n", len(survey.Questions), len(issues))
	return nil
}

func readSurveyFile(path string) (domain.Survey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Survey{}, err
	}

	var survey domain.Survey
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &survey); err != nil {
			return domain.Survey{}, fmt.Errorf("parse survey: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &survey); err != nil {
			return domain.Survey{}, fmt.Errorf("parse survey: %w", err)
		}
	}
	return survey, nil
}
