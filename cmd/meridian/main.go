package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"meridian/internal/app/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "meridian",
		Short:         "Multi-source entity resolution and dimension historization pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// Missing .env is fine; environment variables win either way.
			_ = godotenv.Load()
		},
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newRunCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the admin HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.Build("api")
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			return app.Serve(cmd.Context())
		},
	}
}

func newRunCommand() *cobra.Command {
	var entityType string
	var batchID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one pipeline run for an entity type and batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.Build("pipeline")
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			return app.RunBatch(cmd.Context(), entityType, batchID)
		},
	}
	cmd.Flags().StringVar(&entityType, "entity-type", "", "entity type declared in the policy file")
	cmd.Flags().StringVar(&batchID, "batch-id", "", "batch identifier for this load")
	_ = cmd.MarkFlagRequired("entity-type")
	_ = cmd.MarkFlagRequired("batch-id")
	return cmd
}
