package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"food-ordering-api/config"
	"food-ordering-api/events"
	"food-ordering-api/handlers"
	"food-ordering-api/middleware"
	"food-ordering-api/notify"
	"food-ordering-api/payment"
	"food-ordering-api/routes"
	"food-ordering-api/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	_ "time/tzdata"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration")
	}
	log.Logger = config.NewLogger(cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)
	loc, _ := cfg.Location()

	db, err := config.OpenDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	if err := config.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("database")
	}

	var limits middleware.RateStore = middleware.NewMemoryStore()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("REDIS_URL")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		limits = middleware.NewRedisStore(rdb)
		log.Info().Str("addr", opts.Addr).Msg("rate limits shared through redis")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		publisher = events.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		log.Info().Strs("brokers", brokers).Str("topic", cfg.KafkaTopic).Msg("publishing order events")
	}
	defer publisher.Close()

	files, err := storage.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL+"/uploads", cfg.PublicBaseURL+"/api/uploads")
	if err != nil {
		log.Fatal().Err(err).Msg("upload directory")
	}

	hub := notify.NewHub(cfg.FrontendURL)
	defer hub.Close()

	h := &handlers.Handler{
		DB:        db,
		Payments:  payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.PaymentTimeout),
		Events:    publisher,
		Notifier:  notify.NewService(hub),
		Hub:       hub,
		Files:     files,
		Location:  loc,
		JWTSecret: []byte(cfg.JWTSecret),
		TokenTTL:  cfg.TokenTTL,
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(), middleware.Recovery(), middleware.Metrics(), middleware.ErrorHandler())
	r.Use(cors.New(corsConfig(cfg.FrontendURL)))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(middleware.MetricsHandler()))
	for _, bucket := range storage.PublicBuckets() {
		r.Static("/uploads/"+bucket, filepath.Join(cfg.UploadDir, bucket))
	}
	routes.SetupRoutes(r, h, limits)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
}

func corsConfig(frontendURL string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "Stripe-Signature"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if frontendURL == "" || frontendURL == "*" {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = []string{frontendURL}
	cfg.AllowCredentials = true
	return cfg
}
