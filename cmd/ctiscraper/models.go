package main

import (
	"github.com/spf13/cobra"

	"CTIScraper/internal/app"
	"CTIScraper/internal/domain"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage trained classifier versions",
	}
	cmd.AddCommand(newModelsRegisterCmd(), newModelsActivateCmd(), newModelsListCmd())
	return cmd
}

func newModelsRegisterCmd() *cobra.Command {
	var mv domain.ModelVersion
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a model version (inactive)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.Application) error {
				if mv.Name == "" {
					mv.Name = a.Config().ML.ModelName
				}
				saved, err := a.Models().Register(cmd.Context(), mv)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), saved)
			})
		},
	}
	cmd.Flags().StringVar(&mv.Name, "name", "", "model name (defaults to ml.modelName)")
	cmd.Flags().StringVar(&mv.Version, "version", "", "version label")
	cmd.Flags().StringVar(&mv.ModelKey, "model-key", "", "artifact key of the estimator")
	cmd.Flags().StringVar(&mv.VectorizerKey, "vectorizer-key", "", "artifact key of the vectorizer")
	cmd.Flags().IntVar(&mv.TrainingSamples, "samples", 0, "number of training samples")
	return cmd
}

func newModelsActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <name> <version>",
		Short: "Make a version the active one of its name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.Application) error {
				mv, err := a.Models().Activate(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), mv)
			})
		},
	}
}

func newModelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [name]",
		Short: "List versions of a model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.Application) error {
				name := a.Config().ML.ModelName
				if len(args) == 1 {
					name = args[0]
				}
				versions, err := a.Models().List(cmd.Context(), name)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), versions)
			})
		},
	}
}
