package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/evermart/storefront-api/internal/config"
	"github.com/evermart/storefront-api/internal/database"
	"github.com/evermart/storefront-api/internal/handler"
	"github.com/evermart/storefront-api/internal/logger"
	"github.com/evermart/storefront-api/internal/payment"
	"github.com/evermart/storefront-api/internal/repository"
	"github.com/evermart/storefront-api/internal/router"
	"github.com/evermart/storefront-api/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log := logger.New(cfg.Env, os.Getenv("LOG_LEVEL"))

		db, err := database.Open(database.Options{
			User: cfg.DBUser, Pass: cfg.DBPass,
			Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
			MaxOpenConns:    cfg.DBMaxOpen,
			MaxIdleConns:    cfg.DBMaxIdle,
			ConnMaxLifetime: time.Duration(cfg.DBConnLifeMin) * time.Minute,
		})
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		// The session store lives in Redis; without it nobody can log
		// in, so an unreachable Redis is fatal here. The featured
		// cache and rate limiter would have degraded gracefully.
		rdb := config.NewRedisClient()
		if rdb == nil {
			return fmt.Errorf("redis unavailable: refresh-token sessions require it")
		}

		images, err := storage.NewMinioStore(cmd.Context(), storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			return fmt.Errorf("init image store: %w", err)
		}

		processor := payment.NewClient(cfg.PaymentAPIURL, cfg.PaymentAPIKey)

		users := repository.NewUserRepo(db)
		products := repository.NewProductRepo(db)
		cart := repository.NewCartRepo(db)
		coupons := repository.NewCouponRepo(db)
		orders := repository.NewOrderRepo(db)
		analytics := repository.NewAnalyticsRepo(db)
		sessions := repository.NewSessionStore(rdb)
		featured := repository.NewFeaturedCache(rdb)

		h := router.Handlers{
			Auth:      handler.NewAuthHandler(cfg, users, sessions, log),
			Products:  handler.NewProductHandler(products, featured, images, log),
			Cart:      handler.NewCartHandler(cart, log),
			Checkout:  handler.NewCheckoutHandler(&cfg, coupons, orders, processor, log),
			Analytics: handler.NewAnalyticsHandler(analytics, users, products, log),
		}

		e := echo.New()
		e.HideBanner = true
		router.RegisterRoutes(e, h, cfg.AccessSecret, users, rdb)

		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
