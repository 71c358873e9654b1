package logger

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/taxrates/taxrates-api/internal/helpers"
)

// Log is the process logger. It discards everything until InitLogger runs.
var Log = zap.NewNop()

// Config selects the encoding and verbosity of the process logger.
type Config struct {
	Stage string
	// Level is a zap level name; unknown names fall back to info.
	Level string
	// JSON selects the production encoder used by deployed stages.
	JSON bool
	// Output defaults to stderr so stdout stays free for command results.
	Output []string
}

// InitLogger configures Log for a stage. prod and dev log JSON for
// CloudWatch, local logs colored console lines and test stays silent.
func InitLogger(stage string) {
	if stage == helpers.StageTest {
		Log = zap.NewNop()
		return
	}
	Log = New(Config{
		Stage: stage,
		Level: os.Getenv("LOG_LEVEL"),
		JSON:  stage == helpers.StageProd || stage == helpers.StageDev,
	})
}

// New builds a logger from cfg. It panics when zap rejects the output
// paths, which only happens on misconfiguration at startup.
func New(cfg Config) *zap.Logger {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || cfg.Level == "" {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.JSON {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.MessageKey = "message"
		zc.InitialFields = map[string]interface{}{
			"service": "taxrates-api",
			"stage":   cfg.Stage,
		}
		zc.DisableStacktrace = level > zapcore.DebugLevel
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.OutputPaths = cfg.Output
	if len(zc.OutputPaths) == 0 {
		zc.OutputPaths = []string{"stderr"}
	}

	l, err := zc.Build()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return l
}

// State tags an entry with an upper-cased state code.
func State(code string) zap.Field {
	return zap.String("state", strings.ToUpper(code))
}

// RunID tags an entry with an update run.
func RunID(id uuid.UUID) zap.Field {
	return zap.String("run_id", id.String())
}

// ForState is a child of Log scoped to one state.
func ForState(code string) *zap.Logger {
	return Log.With(State(code))
}

func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

// Fatal logs and exits with status 1.
func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
}

func With(fields ...zap.Field) *zap.Logger {
	return Log.With(fields...)
}

// Sync flushes buffered entries.
func Sync() error {
	return Log.Sync()
}
