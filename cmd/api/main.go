package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/attendance"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/config"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/enroll"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/httpapi"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/manualcode"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/queue"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/scan"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "attendance:events")
	}

	enroller := enroll.NewService(st)
	manager := attendance.NewManager(st)
	recorder := attendance.NewRecorder(st)
	codes := manualcode.NewService(st, recorder, cfg.ManualCodeLength)
	processor := scan.NewProcessor(enroller, recorder)

	h := httpapi.New(cfg, st, redisClient, q, enroller, manager, recorder, codes, processor)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}
