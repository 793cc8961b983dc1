package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/whisper/tropo-bridge/internal/feed"
	"github.com/whisper/tropo-bridge/internal/messaging"
	"github.com/whisper/tropo-bridge/internal/protocol"
	"github.com/whisper/tropo-bridge/internal/ratelimit"
	"github.com/whisper/tropo-bridge/internal/session"
	"github.com/whisper/tropo-bridge/internal/tropo"
	"github.com/whisper/tropo-bridge/internal/webhook"
)

func main() {
	config := webhook.DefaultServerConfig()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}
	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ReadTimeout = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WriteTimeout = d
		}
	}
	if v := os.Getenv("MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			config.MaxBodyBytes = n
		}
	}
	if v := os.Getenv("TRUST_PROXY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.TrustProxy = b
		}
	}
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.RateLimit.Limit = n
		}
	}
	if v := os.Getenv("RATE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			config.RateLimit.Window = d
		}
	}

	// --- Redis ---
	redisConfig := session.DefaultRedisConfig()
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisConfig.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		redisConfig.Password = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			redisConfig.TTL = d
		}
	}
	sessions, err := session.NewRedisProvider(redisConfig)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}

	// --- NATS ---
	natsConfig := messaging.DefaultNATSConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Live feed ---
	feedConfig := feed.DefaultConfig()
	hub := feed.NewHub(feedConfig)
	hub.StartHeartbeat()

	// Every bridge instance relays every call event, so feed clients see
	// calls regardless of which instance Tropo reached.
	if err := natsClient.SubscribeCallEvents(func(data []byte) {
		if _, err := protocol.ParseCallEvent(data); err != nil {
			log.Printf("[feed] dropping event: %v", err)
			return
		}
		hub.Broadcast(data)
	}); err != nil {
		log.Fatalf("failed to subscribe to call events: %v", err)
	}

	server := webhook.NewServer(config, webhook.Deps{
		Adapter:   tropo.NewAdapter(sessions),
		Publisher: natsClient,
		Limiter:   ratelimit.NewLimiter(sessions.Client()),
		Feed:      hub,
	})

	log.Printf("Tropo bridge starting")
	log.Printf("  listen_addr:    %s", config.ListenAddr)
	log.Printf("  read_timeout:   %s", config.ReadTimeout)
	log.Printf("  write_timeout:  %s", config.WriteTimeout)
	log.Printf("  max_body_bytes: %d", config.MaxBodyBytes)
	log.Printf("  rate_limit:     %d/%s", config.RateLimit.Limit, config.RateLimit.Window)
	log.Printf("  redis_addr:     %s", redisConfig.Addr)
	log.Printf("  session_ttl:    %s", redisConfig.TTL)
	log.Printf("  nats_url:       %s", natsConfig.URL)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		hub.Close()
		natsClient.Close()
		if err := sessions.Close(); err != nil {
			log.Printf("session store close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
