package logger

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Log общий логгер приложения
var Log = log.New()

// Setup настраивает уровень и формат логов
func Setup(level, format, file string) error {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	Log.SetLevel(lvl)

	if strings.ToLower(format) == "text" {
		Log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		Log.SetFormatter(&log.JSONFormatter{})
	}

	if file == "" {
		Log.SetOutput(os.Stdout)
		return nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	Log.SetOutput(io.MultiWriter(os.Stdout, f))
	return nil
}

// Silence отключает вывод, используется в тестах
func Silence() {
	Log.SetOutput(io.Discard)
}

// WithCompany возвращает запись лога с company_id
func WithCompany(companyID uint) *log.Entry {
	return Log.WithField("company_id", companyID)
}
