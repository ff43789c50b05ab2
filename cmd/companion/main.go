package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"learning-companion/internal/auth"
	"learning-companion/internal/config"
	"learning-companion/internal/httpapi"
	"learning-companion/internal/localcache"
	"learning-companion/internal/realtime"
	"learning-companion/internal/repository"
	"learning-companion/internal/service"
	"learning-companion/internal/token"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	taskRepo := repository.NewTaskRepository(db)
	cache := localcache.NewStore(cfg.CacheDir)
	hub := realtime.NewHub()
	manager := service.NewManager(taskRepo, cache, hub)
	tokens := token.NewService(cfg.ShareSecret, cfg.ShareTTL)
	identity := auth.NewStaticProvider(cfg.AccessTokens)

	scheduler := service.NewScheduler(time.Local)
	if _, err := scheduler.ScheduleInterval(cfg.DrainInterval, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		manager.DrainAll(jobCtx)
	}); err != nil {
		log.Fatalf("schedule drain: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	app := &httpapi.App{
		Manager: manager,
		Tokens:  tokens,
		Auth:    identity,
		Hub:     hub,
		Remote:  taskRepo,
		BaseURL: cfg.BaseURL,
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	httpapi.RegisterRoutes(r, app)

	server := &http.Server{Addr: cfg.ListenAddr, Handler: r}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("[info] companion listening on %s", cfg.ListenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
