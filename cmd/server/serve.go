package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"quizzems/internal/auth"
	"quizzems/internal/collection"
	"quizzems/internal/config"
	"quizzems/internal/quiz"
	"quizzems/internal/score"
	"quizzems/pkg/websocket"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	defer wsHub.Stop()

	// Initialize repositories
	authRepo := auth.NewRepository(a.db)
	collectionRepo := collection.NewRepository(a.db)
	scoreRepo := score.NewRepository(a.db)

	provider, invalidator, err := a.collectionProvider(ctx, collectionRepo)
	if err != nil {
		return err
	}

	// Initialize services
	jwtSecret := cfg.Auth.JWTSecret
	authService := auth.NewService(authRepo, jwtSecret)
	batchWindow := cfg.Quiz.BatchWindow
	quizService := quiz.NewService(provider, a.scoreReporter(scoreRepo), wsHub, quiz.Settings{
		Threshold:     cfg.Quiz.Threshold,
		BatchWindow:   &batchWindow,
		ReportTimeout: cfg.Quiz.ReportTimeout,
		IdleTimeout:   cfg.Quiz.IdleTimeout,
	})
	wsHub.SetPartyService(quizService)
	go quizService.RunJanitor(ctx)

	// Initialize handlers
	authHandler := auth.NewHandler(authService)
	quizHandler := quiz.NewHandler(quizService)
	collectionHandler := collection.NewHandler(collectionRepo, invalidator)
	scoreHandler := score.NewHandler(scoreRepo, a.scoreCache(), authRepo)

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()

	authHandler.RegisterRoutes(api, jwtSecret)
	quizHandler.RegisterRoutes(api, jwtSecret)
	collectionHandler.RegisterRoutes(api, jwtSecret)
	scoreHandler.RegisterRoutes(api, jwtSecret)

	// WebSocket endpoint
	router.HandleFunc("/ws/{partyCode}", wsHub.HandleWebSocket)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      corsMiddleware.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server shutdown gracefully")
	return nil
}
