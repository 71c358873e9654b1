package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taxrates/taxrates-api/internal/dataset"
	"github.com/taxrates/taxrates-api/internal/services"
)

// ExitError carries a stage's non-zero exit code out of a command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// exitWith turns a stage exit code into the command's error.
func exitWith(code int) error {
	if code == 0 {
		return nil
	}
	return &ExitError{Code: code}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	b, err := dataset.EncodeJSON(v)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(b)
	return err
}

func runScrape(cmd *cobra.Command, args []string) error {
	summary, err := application.ScrapeService().Run(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, summary)
}

func runDiff(cmd *cobra.Command, args []string) error {
	report, verdict, err := application.DiffService().Run(cmd.Context())
	if err != nil {
		return err
	}
	if err := printJSON(cmd, report); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s (%s)\n", report.Summary, verdict)
	return exitWith(verdict.ExitCode())
}

func runGate(cmd *cobra.Command, args []string) error {
	result, err := application.GateService().Run(cmd.Context())
	if err != nil {
		return err
	}
	if err := printJSON(cmd, result); err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	for _, st := range result.States {
		for _, e := range st.Dataset.Errors {
			fmt.Fprintf(stderr, "  ✗ %s: %s\n", strings.ToUpper(st.State), e)
		}
		if st.Diff != nil {
			for _, e := range st.Diff.Errors {
				fmt.Fprintf(stderr, "  ✗ %s: %s\n", strings.ToUpper(st.State), e)
			}
		}
	}

	switch result.Decision {
	case services.GateFail:
		fmt.Fprintf(stderr, "VALIDATION FAILED: %d errors. DO NOT COMMIT. The staged data may be corrupted or tampered with.\n", result.Errors)
	case services.GateNeedsReview:
		fmt.Fprintf(stderr, "MANUAL REVIEW REQUIRED: %.2f%% impact, %d warnings.\n", result.ImpactPercent, result.Warnings)
	default:
		fmt.Fprintf(stderr, "Validation passed: %d warnings.\n", result.Warnings)
	}
	return exitWith(result.Decision.ExitCode())
}

func runApply(cmd *cobra.Command, args []string) error {
	result, err := application.ApplyService().Run(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	pipeline, err := application.Pipeline(cmd.Context())
	if err != nil {
		return err
	}
	result, err := pipeline.Run(cmd.Context())
	if result != nil {
		if printErr := printJSON(cmd, result); printErr != nil {
			return printErr
		}
	}
	if err != nil {
		return err
	}
	return exitWith(result.ExitCode())
}

func runHistory(cmd *cobra.Command, args []string) error {
	records, err := application.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	return printJSON(cmd, records)
}
