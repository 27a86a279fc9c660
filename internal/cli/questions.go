package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quizzy-service/internal/config"
	"quizzy-service/internal/infra/postgres"
	"quizzy-service/internal/infra/provider"
)

// NewQuestionsCmd fetches the question set from the provider once. With --store the
// set is also written to Postgres so the server can run with quiz.source=postgres.
func NewQuestionsCmd(configPath *string) *cobra.Command {
	var store bool
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Fetch the quiz question set from the provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuestions(cmd.Context(), *configPath, store, cmd)
		},
	}
	cmd.Flags().BoolVar(&store, "store", false, "save the fetched set to Postgres")
	return cmd
}

func runQuestions(ctx context.Context, configPath string, store bool, cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client := provider.NewQuestionClient(providerConfig(cfg), nil)
	questions, err := client.FetchQuestions(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "fetched %d questions\n", len(questions))

	if !store {
		return nil
	}
	if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := postgres.NewQuestionStore(pool).ReplaceAll(ctx, questions); err != nil {
		return err
	}
	logger.Info("question set stored", zap.Int("count", len(questions)))
	return nil
}

func providerConfig(cfg config.Config) provider.Config {
	return provider.Config{
		URL:     cfg.Quiz.ProviderURL,
		APIKey:  cfg.Quiz.APIKey,
		APIHost: cfg.Quiz.APIHost,
		Timeout: config.TTLDuration(cfg.Quiz.Timeout, 15*time.Second),
	}
}
