package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/ender-blog/internal/api"
	"github.com/isdelr/ender-blog/internal/auth"
	"github.com/isdelr/ender-blog/internal/config"
	"github.com/isdelr/ender-blog/internal/database"
	"github.com/isdelr/ender-blog/internal/logger"
	"github.com/isdelr/ender-blog/internal/markdown"
	"github.com/isdelr/ender-blog/internal/services"
	"github.com/isdelr/ender-blog/internal/views"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg.LogLevel)

	// Set up database
	db, err := database.New(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	renderer, err := views.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse templates")
	}

	// Set up services
	publisher := markdown.NewPublisher(cfg.CodeStyle)
	eventService := services.NewEventService(db)
	postService := services.NewPostService(db, publisher, eventService)
	userService := services.NewUserService(db, eventService)
	composer := services.NewContentComposer(postService, cfg.Location)
	sessions := auth.NewSessions(cfg.SessionSecret, cfg.CookieSecure, userService)

	// Set up router
	router := api.NewRouter(api.Services{
		Posts:     postService,
		Users:     userService,
		Events:    eventService,
		Composer:  composer,
		Publisher: publisher,
	}, renderer, sessions, cfg.CORSOrigin)

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
