package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"CTIScraper/internal/app"
	"CTIScraper/internal/domain"
	"CTIScraper/internal/usecase"
)

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id %q", domain.ErrInvalidInput, raw)
	}
	return id, nil
}

func newAnalyzeCmd() *cobra.Command {
	var opts usecase.AnalyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze <article-id>",
		Short: "Chunk and classify one stored article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.Application) error {
				analysis, err := a.Analysis(cmd.Context())
				if err != nil {
					return err
				}
				res, err := analysis.AnalyzeArticle(cmd.Context(), id, opts)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Save, "save", true, "persist chunk results")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "replace existing chunk results")
	return cmd
}

func newBackfillCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Analyze stored articles that have no chunk results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.Application) error {
				analysis, err := a.Analysis(cmd.Context())
				if err != nil {
					return err
				}
				summary, err := analysis.Backfill(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum articles to analyze")
	return cmd
}

func newFeedbackCmd() *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "feedback <chunk-result-id> <huntable|not_huntable>",
		Short: "Record a correction for a chunk classification",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.Application) error {
				analysis, err := a.Analysis(cmd.Context())
				if err != nil {
					return err
				}
				fb, err := analysis.Feedback(cmd.Context(), usecase.FeedbackInput{
					ChunkResultID: id,
					CorrectLabel:  args[1],
					Comment:       comment,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), fb)
			})
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "free-form note")
	return cmd
}
