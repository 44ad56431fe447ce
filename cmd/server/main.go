package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/Blackstocks/Inlane/internal/config"
	httpd "github.com/Blackstocks/Inlane/internal/delivery/http"
	"github.com/Blackstocks/Inlane/internal/gateway"
	"github.com/Blackstocks/Inlane/internal/protocol"
	"github.com/Blackstocks/Inlane/internal/repository"
	"github.com/Blackstocks/Inlane/internal/usecase"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	repo, err := repository.NewSQLiteRepo(cfg.SQLiteDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer repo.Close()

	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayTimeout)

	svc, err := usecase.NewPaymentService(usecase.Settings{
		Variant:        protocol.Variant(cfg.GatewayVariant),
		MerchantID:     cfg.MerchantID,
		TerminalID:     cfg.TerminalID,
		BankID:         cfg.BankID,
		AggregatorID:   cfg.AggregatorID,
		SignSecret:     cfg.SignSecret,
		EncSecret:      cfg.EncSecret,
		CurrencyCode:   cfg.CurrencyCode,
		CallbackURL:    cfg.CallbackURL,
		SuccessURL:     cfg.SuccessURL,
		FailureURL:     cfg.FailureURL,
		PostURL:        cfg.GatewayPostURL,
		SuccessCodes:   cfg.SuccessCodes,
		RetryMax:       cfg.RetryMax,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
	}, repo, gw)
	if err != nil {
		log.Fatalf("payment service: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := &usecase.Reconciler{
		Service:    svc,
		Interval:   cfg.ReconcileInterval,
		PendingAge: cfg.ReconcileAfter,
		BatchSize:  cfg.ReconcileBatch,
	}
	go rec.Run(ctx)

	h := httpd.NewHandler(svc, repo)
	r := h.Routes(httpd.SigConfig{
		Secret:        cfg.APIHMACSecret,
		MaxAgeSeconds: cfg.SigMaxAgeSeconds,
	}, cfg.AllowedOrigins)

	addr := ":" + cfg.AppPort
	log.Printf("Server listening on %s (variant %s)", addr, cfg.GatewayVariant)
	log.Fatal(http.ListenAndServe(addr, r))
}
