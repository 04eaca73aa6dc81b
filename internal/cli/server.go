package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"survey-flow-service/internal/app"
	"survey-flow-service/internal/config"
	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/events"
	"survey-flow-service/internal/infra/memory"
	pgstore "survey-flow-service/internal/infra/postgres"
	redisstore "survey-flow-service/internal/infra/redis"
	"survey-flow-service/internal/metrics"
	transport "survey-flow-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the survey flow server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Log.Level)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.SurveyLoader = memory.NewStaticSurveyLoader(sampleSurveys())
	if pool != nil {
		loader = pgstore.NewSurveyLoader(pool)
	}

	surveyTTL := config.TTLDuration(cfg.Survey.TTL, 10*time.Minute)
	var surveyRepo app.SurveyRepository
	if redisClient != nil {
		surveyRepo = redisstore.NewSurveyRepository(redisClient, loader, surveyTTL)
	} else {
		surveyRepo = memory.NewSurveyRepository(loader, surveyTTL)
	}

	sessionTTL := config.TTLDuration(cfg.Session.TTL, 24*time.Hour)
	var store app.SessionRepository
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, sessionTTL)
	} else {
		store = memory.NewSessionStore()
	}

	var archive app.ResponseArchiver = memory.NewResponseArchive()
	if pool != nil {
		archive = pgstore.NewResponseArchiver(pool)
	}

	opts := []app.Option{app.WithLogger(logger)}
	if cfg.NATS.URL != "" {
		publisher, err := events.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts = append(opts, app.WithEvents(publisher))
	}

	service := app.NewSessionService(surveyRepo, store, archive, opts...)
	wsHandler := transport.NewWSHandler(service, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting survey flow service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// sampleSurveys provides demo content so the service runs without a
// database; production deployments load definitions from Postgres.
func sampleSurveys() map[string]domain.Survey {
	return map[string]domain.Survey{
		"demo": {
			ID:    "demo",
			Title: "Product feedback",
			Questions: []domain.Question{
				{
					ID:       "name",
					Type:     domain.TypeShortText,
					Prompt:   "What should we call you?",
					Required: true,
				},
				{
					ID:       "satisfaction",
					Type:     domain.TypeRating,
					Prompt:   "Hi {{name}}, how satisfied are you with the product (1-5)?",
					Required: true,
				},
				{
					ID:     "complaint",
					Type:   domain.TypeLongText,
					Prompt: "Sorry to hear that. What went wrong?",
					Logic: &domain.LogicRuleSet{Rules: []domain.Rule{
						{
							ID:        "wait-for-rating",
							Condition: &domain.Condition{QuestionID: "satisfaction", Operator: domain.OpIsEmpty},
							Action:    domain.Action{Type: domain.ActionHide},
						},
						{
							ID:        "hide-when-happy",
							Condition: &domain.Condition{QuestionID: "satisfaction", Operator: domain.OpGreaterThan, Value: 3},
							Action:    domain.Action{Type: domain.ActionHide},
						},
					}},
				},
				{
					ID:     "testimonial",
					Type:   domain.TypeLongText,
					Prompt: "What did you like most?",
					Logic: &domain.LogicRuleSet{Rules: []domain.Rule{
						{
							ID:        "wait-for-rating",
							Condition: &domain.Condition{QuestionID: "satisfaction", Operator: domain.OpIsEmpty},
							Action:    domain.Action{Type: domain.ActionHide},
						},
						{
							ID:        "skip-when-unhappy",
							Condition: &domain.Condition{QuestionID: "satisfaction", Operator: domain.OpLessThanOrEqual, Value: 3},
							Action:    domain.Action{Type: domain.ActionJump, TargetQuestionID: "recontact"},
						},
					}},
				},
				{
					ID:     "recontact",
					Type:   domain.TypeSingleChoice,
					Prompt: "Thanks {{name}}! May we reach out about your feedback?",
					Options: []domain.Option{
						{ID: "yes", Label: "Yes, please"},
						{ID: "no", Label: "No, thanks"},
					},
				},
			},
		},
	}
}
