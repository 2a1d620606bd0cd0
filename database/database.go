package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"backend_cmms/config"
	"backend_cmms/logger"
	"backend_cmms/models"
)

// CreateDatabaseIfNotExists создает базу данных PostgreSQL, если она не существует
func CreateDatabaseIfNotExists(cfg config.DatabaseConfig) error {
	if cfg.Driver != "postgres" {
		return nil
	}

	// Подключаемся к PostgreSQL без указания конкретной БД (к postgres по умолчанию)
	adminDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=postgres sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.SSLMode)

	db, err := sql.Open("postgres", adminDSN)
	if err != nil {
		return fmt.Errorf("не удалось подключиться к PostgreSQL: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("не удалось проверить подключение к PostgreSQL: %w", err)
	}

	var exists bool
	query := "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1);"
	if err := db.QueryRow(query, cfg.Name).Scan(&exists); err != nil {
		return fmt.Errorf("ошибка при проверке существования базы данных: %w", err)
	}

	if exists {
		logger.Log.Infof("База данных '%s' уже существует", cfg.Name)
		return nil
	}

	if _, err := db.Exec(fmt.Sprintf("CREATE DATABASE %q;", cfg.Name)); err != nil {
		return fmt.Errorf("не удалось создать базу данных '%s': %w", cfg.Name, err)
	}

	logger.Log.Infof("База данных '%s' успешно создана", cfg.Name)
	return nil
}

// Connect открывает подключение к базе данных по настройкам и выполняет миграции
func Connect(cfg *config.Config) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.IsDevelopment() {
		level = gormlogger.Info
	}
	gormConfig := &gorm.Config{Logger: gormlogger.Default.LogMode(level)}

	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "sqlite":
		// Внешние ключи и ожидание блокировки для файловой БД
		dialector = sqlite.Open(cfg.Database.Path + "?_foreign_keys=on&_busy_timeout=5000")
	default:
		dialector = postgres.Open(cfg.GetDatabaseDSN())
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к базе данных: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пула соединений: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		// sqlite допускает одного писателя
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}

	logger.Log.WithField("driver", cfg.Database.Driver).Info("Успешно подключено к базе данных")

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("ошибка автомиграции: %w", err)
	}
	if err := CreatePerformanceIndexes(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Models все модели, которые мигрируются автоматически
func Models() []interface{} {
	return []interface{}{
		&models.Company{},
		&models.User{},
		&models.Location{},
		&models.Machine{},
		&models.PreventiveTask{},
		&models.WorkOrder{},
		&models.MaintenanceLog{},
		&models.WorkOrderPart{},
		&models.ExternalService{},
		&models.WorkOrderCost{},
		&models.LaborRate{},
		&models.SparePart{},
		&models.Stock{},
		&models.InventoryTransaction{},
		&models.StockAlert{},
		&models.PlanningSlot{},
		&models.TechnicianAvailability{},
		&models.PlannedShutdown{},
		&models.ProductionRun{},
		&models.DowntimeCategory{},
		&models.Downtime{},
		&models.NotificationLog{},
		&models.AuditLog{},
	}
}

// AutoMigrate выполняет автомиграцию всех моделей
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}

	logger.Log.Info("Автомиграция моделей выполнена успешно")
	return nil
}
