/**
 * @description
 * This is the main entry point for the banking-gateway. It is responsible for
 * initializing all components of the service, including configuration, the
 * upstream core-banking API client, the optional Redis-backed session store, the
 * deposit reversal tracker, the core application service, and the HTTP server.
 * It wires everything together and starts the service.
 *
 * @dependencies
 * - log, log/slog, net/http: Standard Go libraries for logging and HTTP.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/redis/go-redis/v9: Session profile cache.
 * - internal/api, internal/app, internal/config, internal/deposits,
 *   internal/money, internal/session: Internal packages for the service.
 * - pkg/corebank: Client for the core-banking API.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/quetzalbank/banking-gateway/internal/api"
	"github.com/quetzalbank/banking-gateway/internal/app"
	"github.com/quetzalbank/banking-gateway/internal/config"
	"github.com/quetzalbank/banking-gateway/internal/deposits"
	"github.com/quetzalbank/banking-gateway/internal/money"
	"github.com/quetzalbank/banking-gateway/internal/session"
	"github.com/quetzalbank/banking-gateway/pkg/corebank"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}
	if strings.TrimSpace(cfg.CoreAPIBaseURL) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"core banking api url must be configured\" env=CORE_API_BASE_URL")
	}

	log.Printf("level=info component=bootstrap msg=\"starting banking-gateway\" port=%s core_api=%s", cfg.ServerPort, cfg.CoreAPIBaseURL)

	// Initialize the client for the core-banking API.
	coreClient := corebank.NewClient(cfg.CoreAPIBaseURL, cfg.CoreAPIKey)

	// The session store is optional. Without Redis the gateway still serves every
	// request from token claims alone; cached profile enrichment degrades.
	var sessionStore session.Store = session.NewMemoryStore()
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; using in-memory session store\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; using in-memory session store\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; using in-memory session store\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				sessionStore = session.NewRedisStore(redisClient, cfg.SessionKeyPrefix)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// The tracker keeps deposit countdowns live between requests with a 1-second
	// sweep; it idles once every tracked deposit is terminal.
	reversalWindow := time.Duration(cfg.ReversalWindowSeconds) * time.Second
	tracker := deposits.NewTracker(reversalWindow, slog.Default())
	tracker.Start()
	defer tracker.Stop()

	// Initialize the core application service with its dependencies.
	gatewayService := app.NewService(coreClient, tracker, app.Options{
		ReversalWindow:     reversalWindow,
		GrowthFactor:       cfg.GrowthFactor,
		DepositDisplay:     money.Options{Locale: cfg.DepositLocale, Currency: cfg.DepositCurrency},
		TransactionDisplay: money.Options{Locale: cfg.TransactionLocale, Currency: cfg.TransactionCurrency},
		DashboardTxLimit:   cfg.DashboardTxLimit,
	})

	// Initialize the API handlers.
	gatewayHandlers := api.NewGatewayHandlers(gatewayService)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/api", api.GatewayRoutes(gatewayHandlers, cfg.JWTSecret, sessionStore))

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
