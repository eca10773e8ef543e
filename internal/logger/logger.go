package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New инициализирует логгер. level - уровень логирования в формате logrus (debug, info, warn...). Если level
// пустой или не распознан, используется info в продакшн окружении и debug в остальных.
func New(output io.Writer, level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(output)
	l.SetFormatter(new(logrus.JSONFormatter))
	l.SetLevel(logrus.InfoLevel)

	// перезаписываем ряд настроек для окружений отличных от продакшн
	if os.Getenv("GIN_MODE") != "release" {
		l.SetLevel(logrus.DebugLevel)
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if parsed, err := logrus.ParseLevel(level); err == nil && level != "" {
		l.SetLevel(parsed)
	}

	return l
}
