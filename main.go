package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"backend_cmms/api"
	"backend_cmms/config"
	"backend_cmms/database"
	"backend_cmms/logger"
	"backend_cmms/services"
)

func main() {
	// Переменные окружения из .env загружает LoadConfig
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Log.WithError(err).Fatal("Ошибка загрузки конфигурации")
	}
	if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File); err != nil {
		logger.Log.WithError(err).Warn("Не удалось открыть файл логов")
	}
	cfg.LogConfig()

	// Инициализируем базу данных
	if err := database.CreateDatabaseIfNotExists(cfg.Database); err != nil {
		logger.Log.WithError(err).Fatal("Ошибка при создании базы данных")
	}
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Ошибка подключения к базе данных")
	}
	logger.Log.Info("База данных успешно инициализирована")

	redisClient, err := database.InitRedis(cfg.Redis)
	if err != nil {
		logger.Log.WithError(err).Warn("Redis недоступен, кэш и rate limit отключены")
		redisClient = nil
	}

	var sender services.MessageSender
	if cfg.External.TelegramBotToken != "" {
		telegram, err := services.NewTelegramClient(cfg.External.TelegramBotToken)
		if err != nil {
			logger.Log.WithError(err).Warn("Telegram недоступен, уведомления только записываются в журнал")
		} else {
			sender = telegram
		}
	}

	svc := api.NewServices(cfg, db, redisClient, sender)

	var scheduler *services.MaintenanceScheduler
	if cfg.Maintenance.SchedulerEnabled {
		scheduler = services.NewMaintenanceScheduler(db, svc.Inventory, svc.Audit, svc.Notifications,
			cfg.Maintenance.SchedulerCron, cfg.Maintenance.PreventiveLeadDays)
		if err := scheduler.Start(); err != nil {
			logger.Log.WithError(err).Fatal("Ошибка запуска планировщика")
		}
	}

	router := api.SetupRouter(cfg, db, redisClient, svc)
	server := &http.Server{
		Addr:         cfg.App.Host + ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  cfg.Security.RequestTimeout,
		WriteTimeout: cfg.Security.ResponseTimeout,
	}

	go func() {
		logger.Log.Infof("Сервер запущен на %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("Ошибка HTTP сервера")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Остановка сервера...")

	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Ошибка остановки сервера")
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
