package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"local-delivery/internal/auth"
	"local-delivery/internal/config"
	"local-delivery/internal/database"
	"local-delivery/internal/models"
	"local-delivery/internal/modules/admin"
	"local-delivery/internal/modules/logistics"
	"local-delivery/internal/modules/order"
	"local-delivery/internal/modules/partner"
	"local-delivery/pkg/notify"
	"local-delivery/pkg/payment"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.SetLevel(cfg.GommonLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatalf("Failed to migrate: %v", err)
		}
	}

	events := notify.NewDispatcher(buildPublisher(ctx, cfg))
	defer func() {
		if err := events.Close(); err != nil {
			log.Warnf("Closing notifier: %v", err)
		}
	}()

	// Repositories
	orderRepo := order.NewRepository(pool)
	partnerRepo := partner.NewRepository(pool)
	logisticsRepo := logistics.NewRepository(pool)

	// Services
	resolver := auth.NewPartnerResolver(partnerRepo)
	paymentSvc := payment.NewStripeService(cfg.StripeAPIKey, cfg.StripeCurrency)
	orderSvc := order.NewService(orderRepo, partnerRepo, partnerRepo, resolver, paymentSvc, events, cfg.DeliveryFee)
	logisticsSvc := logistics.NewService(logisticsRepo, orderRepo, events, cfg.Location)
	partnerSvc := partner.NewService(partnerRepo, orderRepo, resolver, events, cfg.Location)
	adminSvc := admin.NewService(orderRepo, partnerRepo, logisticsRepo, partnerRepo, cfg.Location)

	// Handlers
	orderHandler := order.NewHandler(orderSvc)
	logisticsHandler := logistics.NewHandler(logisticsSvc)
	partnerHandler := partner.NewHandler(partnerSvc)
	adminHandler := admin.NewHandler(adminSvc)

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(cfg.GommonLevel())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.ClientOrigin},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := log.JSON{"method": v.Method, "uri": v.URI, "status": v.Status, "latency": v.Latency.String()}
			if v.Error != nil {
				fields["error"] = v.Error.Error()
			}
			log.Infoj(fields)
			return nil
		},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, models.Failure("database unreachable"))
		}
		return c.JSON(http.StatusOK, models.Success("ok"))
	})

	api := e.Group("/api/v1", auth.JWTMiddleware(cfg.JWTSecret))
	orderHandler.RegisterRoutes(api)
	logisticsHandler.RegisterRoutes(api)
	partnerHandler.RegisterRoutes(api)

	adminGroup := api.Group("/admin", auth.RequireRole(models.RoleAdmin))
	orderHandler.RegisterAdminRoutes(adminGroup)
	logisticsHandler.RegisterAdminRoutes(adminGroup)
	partnerHandler.RegisterAdminRoutes(adminGroup)
	adminHandler.RegisterRoutes(adminGroup)

	go func() {
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Shutting down the server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server shutdown: %v", err)
	}
}

// buildPublisher fans events out to every configured destination. A
// destination that fails to connect is skipped, not fatal.
func buildPublisher(ctx context.Context, cfg *config.Config) notify.Publisher {
	var pubs notify.Multi
	if cfg.AMQPURL != "" {
		p, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Warnf("RabbitMQ notifications disabled: %v", err)
		} else {
			pubs = append(pubs, p)
		}
	}
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		p, err := notify.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		if err != nil {
			log.Warnf("Kafka notifications disabled: %v", err)
		} else {
			pubs = append(pubs, p)
		}
	}
	if to := cfg.SESRecipients(); cfg.SESFrom != "" && len(to) > 0 {
		p, err := notify.NewEmailPublisher(ctx, cfg.AWSRegion, cfg.SESFrom, to)
		if err != nil {
			log.Warnf("Email notifications disabled: %v", err)
		} else {
			pubs = append(pubs, p)
		}
	}
	if len(pubs) == 0 {
		return notify.Noop{}
	}
	return pubs
}
