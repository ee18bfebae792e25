package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/vitrine/internal/calls"
	"github.com/example/vitrine/internal/catalog"
	"github.com/example/vitrine/internal/config"
	"github.com/example/vitrine/internal/database"
	"github.com/example/vitrine/internal/flows"
	"github.com/example/vitrine/internal/gateway"
	"github.com/example/vitrine/internal/payment"
	"github.com/example/vitrine/internal/routes"
	"github.com/example/vitrine/internal/services"
)

const sweepInterval = time.Minute

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("failed to load catalog: %v", err)
	}

	pix := gateway.NewPushinPay(gateway.PushinPayConfig{
		BaseURL:    cfg.PushinPay.BaseURL,
		Token:      cfg.PushinPay.Token,
		WebhookURL: cfg.PushinPay.WebhookURL,
		Timeout:    cfg.PushinPay.Timeout,
	})
	ledger := services.NewChargeLedger(db)
	telegramService := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	callManager := calls.NewManager(calls.Config{})

	registry := flows.NewRegistry(flows.Dependencies{
		Gateway:  pix,
		Catalog:  cat,
		Calls:    callManager,
		Ledger:   ledger,
		Notifier: telegramService,
		Session: payment.Options{
			GatewayTimeout:    cfg.PushinPay.Timeout,
			PaidResetDelay:    cfg.PaidResetDelay,
			MinVerifyInterval: cfg.MinVerifyInterval,
			PollInterval:      cfg.PollInterval,
			PollMaxAttempts:   cfg.PollMaxAttempts,
		},
		WhatsAppPhone: cfg.WhatsAppPhone,
	}, cfg.SessionTTL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go registry.Run(ctx, sweepInterval)

	app := fiber.New(fiber.Config{
		AppName: "Vitrine Pix",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, routes.Dependencies{
		Config:   cfg,
		Registry: registry,
		Catalog:  cat,
		Calls:    callManager,
		Charges:  ledger,
	})

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}

	registry.Close()
	telegramService.Wait()
}
