package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/whisper/tropo-bridge/internal/calllog"
	"github.com/whisper/tropo-bridge/internal/messaging"
)

func main() {
	log.Println("Starting Tropo call logger...")

	// PostgreSQL setup.
	dsn := "postgres://localhost:5432/tropo?sslmode=disable"
	if v := os.Getenv("DATABASE_URL"); v != "" {
		dsn = v
	}
	db, err := calllog.Open(dsn)
	if err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	if err := calllog.Migrate(db); err != nil {
		log.Fatalf("failed to migrate call log schema: %v", err)
	}

	// NATS setup.
	natsConfig := messaging.DefaultNATSConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsConfig.Name = "tropo-calllogger"
	queue := "tropo-calllogger"
	if v := os.Getenv("QUEUE_GROUP"); v != "" {
		queue = v
	}

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	recorder := calllog.NewRecorder(calllog.NewStore(db))

	// Queue subscription so several loggers share the stream without
	// recording an event twice.
	err = natsClient.QueueSubscribeCallEvents(queue, func(data []byte) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := recorder.Handle(ctx, data); err != nil {
			log.Printf("[calllog] failed to record event: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("failed to subscribe to call events: %v", err)
	}

	log.Printf("Tropo call logger running")
	log.Printf("  nats_url:    %s", natsConfig.URL)
	log.Printf("  queue_group: %s", queue)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	natsClient.Close()
	db.Close()
}
