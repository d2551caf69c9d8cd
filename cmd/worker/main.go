package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/config"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/model"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/queue"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/store"
)

// report is the blob cached for the teacher-facing reporting views.
type report struct {
	SessionID   string    `json:"session_id"`
	Present     int       `json:"present"`
	Late        int       `json:"late"`
	Absent      int       `json:"absent"`
	Pending     int       `json:"pending"`
	Total       int       `json:"total"`
	GeneratedAt time.Time `json:"generated_at"`
}

// The worker keeps the Redis reporting cache current: live tallies while a
// session runs, a finalized report once it stops.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer st.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "attendance:events")
	}

	events, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for events...")
	for evt := range events {
		switch evt.Type {
		case queue.EventScan:
			if err := redisClient.BumpLiveTally(ctx, evt.SessionID, evt.Status); err != nil {
				log.Printf("live tally for %s failed: %v", evt.SessionID, err)
			}

		case queue.EventSessionStopped:
			if err := buildReport(ctx, st, redisClient, evt.SessionID, cfg.ReportTTL); err != nil {
				log.Printf("report for %s failed: %v", evt.SessionID, err)
				continue
			}
			log.Printf("report for %s cached", evt.SessionID)
		}
	}

	log.Println("worker stopped")
}

func buildReport(ctx context.Context, st *store.Store, rdb *store.Redis, sessionID string, ttl time.Duration) error {
	counts, err := st.CountRecordsByStatus(ctx, sessionID)
	if err != nil {
		return err
	}
	rep := report{
		SessionID:   sessionID,
		Present:     counts[model.StatusPresent],
		Late:        counts[model.StatusLate],
		Absent:      counts[model.StatusAbsent],
		Pending:     counts[model.StatusPending],
		GeneratedAt: time.Now().UTC(),
	}
	rep.Total = rep.Present + rep.Late + rep.Absent + rep.Pending
	blob, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	return rdb.SaveReport(ctx, sessionID, blob, ttl)
}
