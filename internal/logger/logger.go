package logger

import (
	"context"
	"github.com/maxaizer/car-tracker/internal/config"
	"github.com/maxaizer/car-tracker/internal/metrics"
	"github.com/maxaizer/car-tracker/pkg/loki"
	log "github.com/sirupsen/logrus"
	"io"
	"os"
	"path/filepath"
)

const ErrorTypeField = "error_type"

const (
	ErrorTypeStorage = "storage"
	ErrorTypeScraper = "scraper"
	ErrorTypeTgApi   = "tg_api"
	ErrorTypeImport  = "import"
	ErrorTypeApi     = "api"
)

var logFile *os.File

// errorsHook counts error entries by their error type.
type errorsHook struct{}

func (h *errorsHook) Fire(entry *log.Entry) error {
	metrics.ErrorsCounter.WithLabelValues(errorTypeOf(entry)).Inc()
	return nil
}

func (h *errorsHook) Levels() []log.Level {
	return []log.Level{
		log.ErrorLevel,
		log.FatalLevel,
		log.PanicLevel,
	}
}

func errorTypeOf(entry *log.Entry) string {
	if errorType, ok := entry.Data[ErrorTypeField].(string); ok {
		return errorType
	}
	return "unknown"
}

func Setup(ctx context.Context, cfg config.LoggerConfig) {

	logDir := filepath.Dir(cfg.OutputFile)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	var err error
	logFile, err = os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(multiWriter)

	customFormatter := &log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000 -0700",
	}
	log.SetFormatter(customFormatter)
	level := toLogrusLevel(cfg.LogLevel)
	log.SetLevel(level)

	log.AddHook(&errorsHook{})

	if cfg.LokiURL == "" {
		return
	}
	lokiCfg := loki.Config{
		Url:      cfg.LokiURL,
		Username: cfg.LokiUser,
		Password: cfg.LokiPassword,
		Labels:   map[string]string{"app": cfg.AppName},
	}
	if err = addLokiHook(ctx, lokiCfg, level); err != nil {
		log.Errorf("Failed to enable Loki logging: %v", err)
	}
}

func toLogrusLevel(level config.LogLevel) log.Level {
	switch level {
	case config.LevelInfo:
		return log.InfoLevel
	case config.LevelDebug:
		return log.DebugLevel
	case config.LevelWarning:
		return log.WarnLevel
	case config.LevelError:
		return log.ErrorLevel
	case config.LevelFatal:
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

func Cleanup() {
	stopLoki()
	if logFile != nil {
		_ = logFile.Close()
	}
}
