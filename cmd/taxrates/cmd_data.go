package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/taxrates/taxrates-api/internal/catalog"
	"github.com/taxrates/taxrates-api/internal/dataset"
	"github.com/taxrates/taxrates-api/internal/services"
	"github.com/taxrates/taxrates-api/internal/types/api/requests"
	"github.com/taxrates/taxrates-api/internal/validation"
	"github.com/taxrates/taxrates-api/internal/ziprates"
)

// rateService loads the committed catalog once for a lookup command.
func rateService(ctx context.Context) (*services.RateService, error) {
	holder := application.Holder()
	if _, err := holder.Reload(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to load committed data")
	}
	return application.RateService(holder), nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(resolveZip) == "" && strings.TrimSpace(resolveState) == "" {
		return errors.New(`either --zip or --state is required`)
	}
	rates, err := rateService(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, rates.Resolve(requests.RateRequest{
		Zip:    resolveZip,
		State:  resolveState,
		City:   resolveCity,
		County: resolveCounty,
	}))
}

func runStates(cmd *cobra.Command, args []string) error {
	rates, err := rateService(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, rates.States())
}

func runJurisdictions(cmd *cobra.Command, args []string) error {
	rates, err := rateService(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, rates.Jurisdictions(args[0]))
}

// stateValidation is the validate command's per-state output.
type stateValidation struct {
	State string `json:"state"`
	validation.Result
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	keys, err := application.Committed.List(ctx, "")
	if err != nil {
		return errors.Wrap(err, "failed to list committed data")
	}
	sort.Strings(keys)

	wanted := make(map[string]bool, len(args))
	for _, a := range args {
		wanted[strings.ToUpper(a)] = true
	}

	results := []stateValidation{}
	invalid := 0
	for _, key := range keys {
		state := catalog.StateFromKey(key)
		if state == "" || (len(wanted) > 0 && !wanted[state]) {
			continue
		}
		b, err := application.Committed.Get(ctx, key)
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", key)
		}

		var result validation.Result
		raw, err := dataset.DecodeRaw(b)
		if err != nil {
			result = validation.Result{Errors: []string{"Invalid JSON: " + err.Error()}, Warnings: []string{}}
		} else {
			result = application.Validator.ValidateDataset(raw, state)
		}
		if !result.Valid {
			invalid++
		}
		results = append(results, stateValidation{State: state, Result: result})
	}

	if err := printJSON(cmd, results); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d datasets checked, %d invalid\n", len(results), invalid)
	if invalid > 0 {
		return exitWith(1)
	}
	return nil
}

func runZipRates(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", args[0])
	}
	defer f.Close()

	tables, err := ziprates.Parse(f, zipDefaultState)
	if err != nil {
		return err
	}
	written, err := ziprates.Import(cmd.Context(), application.Committed, tables)
	if err != nil {
		return err
	}
	return printJSON(cmd, written)
}

func runSeed(cmd *cobra.Command, args []string) error {
	result, err := application.SeedService().Run(cmd.Context(), args, seedEffectiveDate, seedOverwrite)
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}
