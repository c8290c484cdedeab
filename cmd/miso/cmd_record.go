package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/miso/internal/analysis"
)

// timeNow is replaced in tests.
var timeNow = time.Now

func (a *app) recordCmd() *cobra.Command {
	var user, input, at string
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Store a user's assessment scores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user == "" || input == "" {
				return errors.New("--user and --input are required")
			}
			recordedAt := timeNow().UTC()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				recordedAt = t
			}
			var in analysis.Inputs
			if err := readJSON(input, &in); err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			e, err := a.load()
			if err != nil {
				return err
			}
			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ids, err := st.RecordAssessment(cmd.Context(), user, in, recordedAt)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d instrument(s) for %s at %s\n",
				len(ids), user, recordedAt.Format(time.RFC3339))
			return err
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "User id")
	cmd.Flags().StringVarP(&input, "input", "i", "", "Path to a JSON file of raw scores")
	cmd.Flags().StringVar(&at, "at", "", "Administration time, RFC 3339 (default now)")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var (
		user  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a user's stored assessments and analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user == "" {
				return errors.New("--user is required")
			}
			e, err := a.load()
			if err != nil {
				return err
			}
			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			assessments, err := st.Assessments(ctx, user, limit)
			if err != nil {
				return err
			}
			analyses, err := st.RecentAnalyses(ctx, user, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(assessments) == 0 && len(analyses) == 0 {
				_, err := fmt.Fprintf(out, "No history for user %q.\n", user)
				return err
			}
			now := timeNow()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "ASSESSMENTS (%d)\n", len(assessments))
			for _, as := range assessments {
				fmt.Fprintf(w, "  %s\t%s\t%s\n", as.Kind, humanize.RelTime(as.RecordedAt, now, "ago", "from now"), compact(string(as.Payload)))
			}
			fmt.Fprintf(w, "ANALYSES (%d)\n", len(analyses))
			for _, an := range analyses {
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", an.ID, an.Level, an.ProfileCode, humanize.RelTime(an.CreatedAt, now, "ago", "from now"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "User id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum entries per section")
	return cmd
}

// compact shortens a payload for one-line display.
func compact(s string) string {
	const width = 60
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > width {
		return s[:width-3] + "..."
	}
	return s
}
