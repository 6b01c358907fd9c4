package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"qrattend/internal/config"
	"qrattend/internal/queue"
	"qrattend/internal/report"
	"qrattend/internal/store"
)

// Worker consumes redemption events and persists attendance reports. The
// API never writes reports itself; this is the bookkeeping collaborator.
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

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "qrattend:redemptions")
	}

	reports := report.NewRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for redemptions...")
	for msg := range messages {
		if msg.Type != "redemption" {
			continue
		}

		var rec report.Record
		if err := json.Unmarshal(msg.Body, &rec); err != nil {
			log.Printf("decode redemption failed: %v", err)
			continue
		}

		saved, err := reports.Insert(ctx, rec)
		if err != nil {
			log.Printf("persist report for token %s / %s failed: %v", rec.TokenID, rec.RedeemerID, err)
			continue
		}
		log.Printf("report %s: %s on token %s, verified=%v", saved.ID, saved.RedeemerID, saved.TokenID, saved.Verified)
	}

	log.Println("worker stopped")
}
