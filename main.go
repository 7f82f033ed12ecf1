package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/delivery-app/config"
	"github.com/yeremiapane/delivery-app/utils"
)

func main() {
	cfg := config.Load()
	utils.SetJWTSecret(cfg.JWTSecret)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		utils.SetLevel("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		utils.InfoLogger.Infof("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	<-ctx.Done()
	utils.InfoLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.WithError(err).Error("Server shutdown failed")
	}
}
