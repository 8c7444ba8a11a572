package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-rank-service/internal/app"
	"quiz-rank-service/internal/config"
	"quiz-rank-service/internal/domain"
	"quiz-rank-service/internal/infra/memory"
	pgstore "quiz-rank-service/internal/infra/postgres"
	redisstore "quiz-rank-service/internal/infra/redis"
	transport "quiz-rank-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz ranking server",
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

	zone := time.UTC
	if cfg.Ranking.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Ranking.Timezone)
		if err != nil {
			return err
		}
		zone = loc
	}
	topN := cfg.Ranking.TopN
	if topN <= 0 {
		topN = 20
	}

	var attempts app.AttemptStore
	var questions app.QuestionStore
	var profiles app.ProfileDirectory
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		attempts = pgstore.NewAttemptStore(pool)
		lookups := pgstore.NewLookupStore(pool)
		questions = lookups
		profiles = lookups
	} else {
		attempts = memory.NewAttemptStore()
		questions = memory.NewStaticQuestionStore(sampleQuestions())
		profiles = memory.NewStaticProfileDirectory(sampleProfiles())
	}

	ranking := app.NewRankingService(attempts, profiles, zone)
	hub := app.NewLeaderboardHub(ranking, topN)

	observers := []app.AttemptObserver{hub}
	var leaderboards transport.LeaderboardProvider = ranking
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cacheTTL := config.TTLDuration(cfg.Ranking.CacheTTL, time.Minute)
		cache := redisstore.NewLeaderboardCache(redisClient, ranking, zone, cacheTTL)
		leaderboards = cache
		observers = append(observers, cache)
	}

	service := app.NewAttemptService(attempts, questions, observers...)

	auth := transport.NewAuthenticator(cfg.Auth.JWTSecret)
	handler := transport.NewHandler(service, leaderboards, topN)
	wsHandler := transport.NewWSHandler(hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux, auth)
	mux.HandleFunc("/ws/leaderboard", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz rank service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions seeds the no-postgres dev mode; swap for the relational
// store in production.
func sampleQuestions() map[int64]domain.ReviewQuestion {
	explain := "2 + 2 = 4"
	return map[int64]domain.ReviewQuestion{
		1: {
			ID:          1,
			Text:        "What is 2 + 2?",
			Options:     []string{"3", "4", "5"},
			Explanation: &explain,
		},
		2: {
			ID:      2,
			Text:    "Which planet is closest to the sun?",
			Options: []string{"Venus", "Mercury", "Mars"},
		},
	}
}

func sampleProfiles() map[string]string {
	return map[string]string{
		"u1": "Alice",
		"u2": "Bob",
	}
}
