package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"CTIScraper/internal/app"
	"CTIScraper/internal/chunking"
	"CTIScraper/internal/classifier"
	"CTIScraper/internal/scoring"
)

func newScoreCmd() *cobra.Command {
	var title, summary, file string
	cmd := &cobra.Command{
		Use:   "score [content...]",
		Short: "Compute the hunt score of a text",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := inputText(cmd, args, file)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), scoring.Score(title, summary, content))
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "article title")
	cmd.Flags().StringVar(&summary, "summary", "", "article summary")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read content from file")
	return cmd
}

func newChunkCmd() *cobra.Command {
	var title, file string
	var minWords, maxWords int
	cmd := &cobra.Command{
		Use:   "chunk [content...]",
		Short: "Split content into classification chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := inputText(cmd, args, file)
			if err != nil {
				return err
			}
			var opts []chunking.Option
			if minWords > 0 {
				opts = append(opts, chunking.WithMinWords(minWords))
			}
			if maxWords > 0 {
				opts = append(opts, chunking.WithMaxWords(maxWords))
			}
			return printJSON(cmd.OutOrStdout(), chunking.New(opts...).ChunkArticle(content, title))
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "article title")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read content from file")
	cmd.Flags().IntVar(&minWords, "min-words", 0, "minimum words per chunk")
	cmd.Flags().IntVar(&maxWords, "max-words", 0, "maximum words per chunk")
	return cmd
}

func newClassifyCmd() *cobra.Command {
	var title, file string
	var offline bool
	cmd := &cobra.Command{
		Use:   "classify [text...]",
		Short: "Classify a text with the active model or the rule-based fallback",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args, file)
			if err != nil {
				return err
			}
			if offline {
				cls, err := classifier.New(classifier.Config{UseFallback: true}, nil, slog.New(slog.DiscardHandler))
				if err != nil {
					return err
				}
				res, err := cls.Classify(cmd.Context(), text, title)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			}
			return withApp(cmd, func(a *app.Application) error {
				cls, err := a.Classifier(cmd.Context())
				if err != nil {
					return err
				}
				res, err := cls.Classify(cmd.Context(), text, title)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "article title")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read text from file")
	cmd.Flags().BoolVar(&offline, "offline", false, "use the rule-based tier without opening storage")
	return cmd
}
