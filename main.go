package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coedit/config"
	"coedit/config/database"
	"coedit/internal/document/repository"
	"coedit/pkg/logger"
	"coedit/router"
	"coedit/socket"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from a .env file if present.
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables from OS")
	}

	logger.Init()
	defer logger.Log.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Sugar.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect()
	if err != nil {
		logger.Sugar.Fatalf("%v", err)
	}
	defer db.Close()

	// The hub owns all realtime state: rooms, sessions, pending saves.
	store := repository.NewDocumentRepository(db)
	hub := socket.NewHub(store, socket.Options{
		SaveDelay:      time.Duration(cfg.Collab.SaveDebounceMs) * time.Millisecond,
		SendBufferSize: cfg.Collab.SendBufferSize,
	})
	go hub.Run()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.Setup(db, hub),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Sugar.Infof("Backend listening on :%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Sugar.Info("Shutdown signal received, flushing sessions...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Collab.ShutdownTimeout)*time.Second)
	defer cancel()

	// Stop accepting traffic, then flush every dirty session before the
	// store connection closes.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("HTTP shutdown error: %v", err)
	}
	hub.Shutdown(shutdownCtx)

	logger.Sugar.Info("Server shut down complete")
}
