package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"courier/internal/config"
	courierhttp "courier/internal/http"
	"courier/internal/infra"
	"courier/internal/logger"
	"courier/internal/metrics"
	"courier/internal/modules/agent"
	"courier/internal/modules/dispatch"
	"courier/internal/modules/notify"
	"courier/internal/modules/order"
	"courier/internal/modules/payment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		panic(err)
	}
	log := logger.Log
	defer log.Sync()

	metrics.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	defer pool.Close()

	var broker notify.Broker
	if cfg.Redis.Addr != "" {
		broker = notify.NewRedisBroker(infra.NewRedis(cfg.Redis.Addr))
		log.Info("using redis notification broker", zap.String("addr", cfg.Redis.Addr))
	} else {
		broker = notify.NewMemBroker()
		log.Info("using in-memory notification broker")
	}

	var sms payment.SMSGateway
	if cfg.OTP.SenderURL != "" {
		sms = payment.NewHTTPSMSGateway(cfg.OTP.SenderURL, cfg.OTP.SenderAPIKey)
	} else {
		sms = payment.LogSMSGateway{Log: log}
		log.Warn("no SMS provider configured, OTP codes are logged")
	}
	var qr payment.QRGateway
	if cfg.Payments.QRGatewayURL != "" {
		qr = payment.NewHTTPQRGateway(cfg.Payments.QRGatewayURL, cfg.Payments.QRGatewayKey)
	} else {
		qr = payment.StaticQRGateway{}
		log.Warn("no QR provider configured, QR payments auto-complete")
	}

	payments := payment.NewService(payment.NewPgStore(pool), sms, qr, cfg.OTP.TTL, cfg.OTP.ResendEvery, log)
	orders := order.NewService(order.NewPgStore(pool), payments)
	agents := agent.NewService(agent.NewPgStore(pool), cfg.Dispatch.MaxOrdersPerAgent)
	fanout := notify.NewFanout(broker, log)
	dispatcher := dispatch.NewService(orders, agents, fanout, log)

	router := courierhttp.NewRouter(courierhttp.RouterDeps{
		Orders:    orders,
		Agents:    agents,
		Dispatch:  dispatcher,
		Broker:    broker,
		Log:       log,
		JWTSecret: cfg.Auth.JWTSecret,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
		os.Exit(1)
	}
}
