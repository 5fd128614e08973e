package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/danmainah/resolveit-app/internal/config"
	"github.com/danmainah/resolveit-app/internal/events"
	httpHandlers "github.com/danmainah/resolveit-app/internal/http/handlers"
	httpRouter "github.com/danmainah/resolveit-app/internal/http/router"
	"github.com/danmainah/resolveit-app/internal/logger"
	"github.com/danmainah/resolveit-app/internal/service"
	"github.com/danmainah/resolveit-app/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Хранилище записей и миграции.
	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("main: ошибка подготовки хранилища: %v", err)
	}
	defer st.close()

	// Вебсокеты и публикация событий.
	hub := ws.NewHub(ctx, 0)
	go hub.Run()

	var publisher events.Publisher = hub
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("main: некорректный REDIS_URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		relay := ws.NewRedisRelay(redisClient, cfg.RealtimeChannel, hub)
		go relay.Run(ctx)
		publisher = relay
	}

	var audit events.AuditSink = events.NopSink{}
	if len(cfg.KafkaBrokers) > 0 {
		audit = events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaCaseEventsTopic)
		logger.L().WithFields(logrus.Fields{
			"brokers": cfg.KafkaBrokers,
			"topic":   cfg.KafkaCaseEventsTopic,
		}).Info("поток событий дел включён")
	}

	// Сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	notificationService := service.NewNotificationService(st.notifications, publisher, cfg.FanoutConcurrency, cfg.StoreTimeout)
	caseMachine := service.NewCaseStateMachine(service.CaseStateMachineDeps{
		Cases:        st.cases,
		Panels:       st.panels,
		Users:        st.users,
		Notifier:     notificationService,
		Publisher:    publisher,
		Audit:        audit,
		StoreTimeout: cfg.StoreTimeout,
	})
	panelService := service.NewPanelService(caseMachine, st.panels, st.users)
	agreementService := service.NewAgreementService(caseMachine, st.agreements, notificationService)
	userService := service.NewUserService(st.users, notificationService, cfg.StoreTimeout)
	authService := service.NewAuthService(st.users, tokenManager)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService, userService)
	caseHandler := httpHandlers.NewCaseHandler(caseMachine, panelService)
	adminHandler := httpHandlers.NewAdminHandler(caseMachine, panelService, userService)
	agreementHandler := httpHandlers.NewAgreementHandler(agreementService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager, caseMachine)
	healthHandler := httpHandlers.NewHealthHandler(st.pinger, cfg.StoreDriver)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, tokenManager, authHandler, caseHandler, adminHandler, agreementHandler, notificationHandler, wsHandler, healthHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.L().WithError(err).Error("main: ошибка остановки http сервера")
		}
	}()

	logger.L().WithFields(logrus.Fields{
		"port":  cfg.HTTPPort,
		"store": cfg.StoreDriver,
	}).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}

	// Дожидаемся фоновых рассылок и событий аудита, начатых до остановки.
	caseMachine.Wait()
	notificationService.Wait()
	if err := audit.Close(); err != nil {
		logger.L().WithError(err).Warn("main: ошибка закрытия потока событий")
	}
	logger.L().Info("main: сервер остановлен")
}
