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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/x402kit/walletgate/internal/config"
	"github.com/x402kit/walletgate/internal/routes"
	"github.com/x402kit/walletgate/internal/wallet"
)

// sweepInterval drives the periodic cleanup of expired in-memory
// ledger and receipt records. Redis-backed stores expire via key TTLs.
const sweepInterval = time.Minute

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pricing := wallet.Pricing(cfg.Prices)

	// ── Ledger and receipt store ──────────────────────────────────────────────
	var (
		ledger   wallet.Ledger
		receipts wallet.ReceiptStore
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis ping failed", zap.Error(err))
		}
		ledger = wallet.NewRedisLedger(rdb)
		receipts = wallet.NewRedisReceipts(rdb)
		log.Info("using redis nonce ledger", zap.String("addr", cfg.Redis.Addr))
	} else {
		memLedger := wallet.NewMemoryLedger()
		memReceipts := wallet.NewMemoryReceipts()
		ledger = memLedger
		receipts = memReceipts
		go runSweeper(ctx, memLedger, memReceipts, log)
		log.Warn("using in-memory nonce ledger; replay protection does not span instances")
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"*"},
		ExposeHeaders:   []string{"*"},
	}))

	// Mode is fixed for the process lifetime; the mock gate is never a
	// fallback for failed wallet verification.
	if cfg.Wallet.Mock {
		log.Warn("mock mode enabled; signatures are NOT verified")
		r.Use(wallet.NewMockGate(pricing, cfg.Wallet.PayTo, log).Middleware())
	} else {
		issuer := wallet.NewIssuer(pricing, cfg.Wallet.PayTo, cfg.Wallet.TTL())
		verifier := wallet.NewVerifier(pricing, cfg.Wallet.PayTo, ledger)
		r.Use(wallet.NewGate(issuer, verifier, receipts, log).Middleware())
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	routes.NewHandler(receipts, log).Register(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info("HTTP server starting",
			zap.Int("port", cfg.Server.Port),
			zap.Strings("gated_routes", pricing.Routes()),
			zap.Bool("mock", cfg.Wallet.Mock),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}

// runSweeper periodically drops expired in-memory nonce and receipt
// records. Retention windows already include the post-expiry margin, so
// sweeping at now never removes a record still able to block a replay.
func runSweeper(ctx context.Context, ledger *wallet.MemoryLedger, receipts *wallet.MemoryReceipts, log *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			if n := ledger.ExpireBefore(now); n > 0 {
				log.Info("expired nonce records swept", zap.Int("count", n))
			}
			receipts.ExpireBefore(now)
		case <-ctx.Done():
			return
		}
	}
}
