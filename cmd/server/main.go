package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/observatory-global/narrative-flow/internal/cache"
	"github.com/observatory-global/narrative-flow/internal/config"
	"github.com/observatory-global/narrative-flow/internal/downloader"
	"github.com/observatory-global/narrative-flow/internal/errors"
	"github.com/observatory-global/narrative-flow/internal/flow"
	"github.com/observatory-global/narrative-flow/internal/gkg"
	"github.com/observatory-global/narrative-flow/internal/monitoring"
	"github.com/observatory-global/narrative-flow/internal/pipeline"
	sig "github.com/observatory-global/narrative-flow/internal/signal"
	"github.com/observatory-global/narrative-flow/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := monitoring.NewLogger()
	appMetrics := monitoring.NewMetrics()

	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = "narrative-flow.db"
	}
	archive, err := store.Open(dbPath)
	if err != nil {
		slog.Error("Failed to open archive database", "error", err)
		os.Exit(1)
	}

	dlCfg := downloader.Config{
		BaseURL:         cfg.FeedBaseURL,
		CacheDir:        cfg.CacheDir,
		ProcessingDelay: time.Duration(cfg.ProcessingDelayMinutes) * time.Minute,
		RetryAttempts:   cfg.RetryAttempts,
		RetryBaseDelay:  cfg.RetryBaseDelay(),
		CacheMaxAge:     time.Duration(cfg.CacheMaxAgeHours) * time.Hour,
		Timeout:         60 * time.Second,
	}
	dl := downloader.New(dlCfg, appLogger, appMetrics)
	parser := gkg.NewParser(appLogger, cfg.ErrorRateAlertPct)
	converter := sig.NewConverter(cfg.FallbackCountry, appLogger)
	detector := flow.NewDetector(cfg.HalflifeHours, cfg.FlowThreshold, appLogger)
	pipe := pipeline.New(dl, parser, converter, detector, archive, appLogger, appMetrics)

	// Hourly maintenance: rebuild rollups, prune the archive, purge
	// stale snapshot files.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			if _, err := archive.AggregateHourly(7 * 24 * time.Hour); err != nil {
				slog.Error("Hourly aggregation failed", "error", err)
			}
			if removed, err := archive.PruneSignals(7 * 24 * time.Hour); err != nil {
				slog.Error("Archive pruning failed", "error", err)
			} else if removed > 0 {
				slog.Info("Pruned archived signals", "removed", removed)
			}
			if removed := dl.CleanupOldFiles(); removed > 0 {
				slog.Info("Purged stale snapshot files", "removed", removed)
			}
		}
	}()

	r := gin.New()

	r.Use(requestLogging(appLogger, appMetrics))
	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	r.Use(cors.New(corsConfig))

	responseCache := cache.New(cfg.ResponseCacheTTL())
	r.Use(responseCache.Middleware(appMetrics, "/v1/"))

	r.GET("/healthz", func(c *gin.Context) {
		files, bytes := dl.CacheStats()
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"metrics":   appMetrics.GetStats(),
			"snapshot_cache": gin.H{
				"files":       files,
				"total_bytes": bytes,
			},
			"response_cache": responseCache.Stats(),
		})
	})

	r.GET("/v1/flows", func(c *gin.Context) {
		windowStr := c.DefaultQuery("time_window", "24h")
		window, err := flow.ParseTimeWindow(windowStr)
		if err != nil {
			c.Error(err)
			return
		}

		countries := parseCountries(c.Query("countries"))
		result, err := pipe.Run(c.Request.Context(), countries, window)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, result)
	})

	r.GET("/v1/signals", func(c *gin.Context) {
		windowStr := c.DefaultQuery("time_window", "24h")
		window, err := flow.ParseTimeWindow(windowStr)
		if err != nil {
			c.Error(err)
			return
		}

		cutoff := time.Now().UTC().Add(-time.Duration(window * float64(time.Hour)))
		rows, err := archive.SignalsSince(cutoff)
		if err != nil {
			c.Error(err)
			return
		}
		aggs, err := archive.AggregationsSince(cutoff)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"signals":      rows,
			"aggregations": aggs,
			"generated_at": time.Now().UTC(),
		})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

func requestLogging(logger *monitoring.Logger, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		metrics.IncrementRequest()
		if c.Writer.Status() >= http.StatusInternalServerError {
			metrics.IncrementError()
		}
		logger.RequestLogger(c.Request.Method, c.Request.URL.Path, c.ClientIP(),
			c.Writer.Status(), time.Since(start))
	}
}

func parseCountries(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	countries := make([]string, 0, len(parts))
	for _, p := range parts {
		code := strings.ToUpper(strings.TrimSpace(p))
		if len(code) == 2 {
			countries = append(countries, code)
		}
	}
	return countries
}
