package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/miso/internal/analysis"
	"github.com/HendryAvila/miso/internal/metrics"
	"github.com/HendryAvila/miso/internal/service"
)

type analyzeFlags struct {
	input   string
	history string
	users   []string
}

func (a *app) analyzeCmd() *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze scores from a file, or stored users",
		Long: `Analyze scores from a JSON file and print the result, or analyze the
stored assessments of one or more users and store the results.

  miso analyze --input scores.json [--history history.json]
  miso analyze --user u1 --user u2

The input file holds {"dass21_raw": {"D": 10, "A": 8, "S": 12},
"big5_raw": {...}, "via_raw": {...}, "mbti": "INFP"}; every group is optional.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case f.input != "" && len(f.users) > 0:
				return errors.New("--input and --user are mutually exclusive")
			case f.input != "":
				return a.analyzeFile(cmd, f)
			case len(f.users) > 0:
				return a.analyzeUsers(cmd, f.users)
			default:
				return errors.New("one of --input or --user is required")
			}
		},
	}
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Path to a JSON file of raw scores")
	cmd.Flags().StringVar(&f.history, "history", "", "Path to a JSON file of prior administrations")
	cmd.Flags().StringArrayVarP(&f.users, "user", "u", nil, "Stored user to analyze (repeatable)")
	return cmd
}

func (a *app) analyzeFile(cmd *cobra.Command, f analyzeFlags) error {
	e, err := a.load()
	if err != nil {
		return err
	}
	var in analysis.Inputs
	if err := readJSON(f.input, &in); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	var history *analysis.History
	if f.history != "" {
		history = &analysis.History{}
		if err := readJSON(f.history, history); err != nil {
			return fmt.Errorf("reading history: %w", err)
		}
	}
	r := e.engine().Analyze(in, "", history)
	return writeJSON(cmd.OutOrStdout(), r)
}

func (a *app) analyzeUsers(cmd *cobra.Command, users []string) error {
	e, err := a.load()
	if err != nil {
		return err
	}
	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	svc := service.New(e.engine(), st,
		service.WithLogger(e.logger),
		service.WithMetrics(metrics.MustNewMetrics(prometheus.NewRegistry())),
		service.WithParallel(e.cfg.Parallel),
	)
	items := svc.AnalyzeBatch(cmd.Context(), users)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tANALYSIS\tLEVEL\tPROFILE")
	var failed []string
	for _, it := range items {
		if it.Err != nil {
			fmt.Fprintf(w, "%s\t-\terror: %v\t-\n", it.UserID, it.Err)
			failed = append(failed, it.UserID)
			continue
		}
		r := it.Outcome.Result
		code := r.Profile.Code
		if code == "" {
			code = string(r.Profile.Mode)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.UserID, it.Outcome.ID, r.Level(), code)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(failed) > 0 {
		return fmt.Errorf("analysis failed for %s", strings.Join(failed, ", "))
	}
	return nil
}
