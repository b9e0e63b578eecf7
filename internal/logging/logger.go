package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"designsense-go/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init builds the application logger: one rotating JSON file per level plus
// an optional console core. The returned AtomicLevel gates every core and can
// be changed at runtime.
func Init(projectRoot string, conf config.LoggingConfig) (*zap.Logger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevel()
	if err := SetLevel(level, conf.Level); err != nil {
		return nil, level, err
	}

	// Base encoder configuration for file logs (JSON format)
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:   "message",
		LevelKey:     "level",
		TimeKey:      "time",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}

	logDir := conf.Directory
	if !filepath.IsAbs(logDir) {
		logDir = filepath.Join(projectRoot, logDir)
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, level, fmt.Errorf("could not create log directory: %w", err)
	}

	var cores []zapcore.Core
	for _, l := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel} {
		cores = append(cores, newFileCore(logDir, l, level, conf, encoderConfig))
	}
	if conf.Console {
		cores = append(cores, newConsoleCore(level))
	}

	// A log entry is sent to every core; each decides whether to write it.
	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return logger, level, nil
}

// SetLevel parses name and applies it. An empty name means info.
func SetLevel(level zap.AtomicLevel, name string) error {
	if name == "" {
		name = "info"
	}
	parsed, err := zapcore.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	level.SetLevel(parsed)
	return nil
}

// newFileCore creates a core that writes exactly one level to a rotating file
// named like '2025-07-30-info.log'.
func newFileCore(logDir string, fileLevel zapcore.Level, min zap.AtomicLevel, conf config.LoggingConfig, encoderConfig zapcore.EncoderConfig) zapcore.Core {
	fileName := filepath.Join(logDir, fmt.Sprintf("%s-%s.log", time.Now().Format("2006-01-02"), fileLevel.String()))

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    conf.MaxSize,
		MaxBackups: conf.MaxBackups,
		MaxAge:     conf.MaxAge,
		Compress:   conf.Compress,
	})

	levelEnabler := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l == fileLevel && min.Enabled(l)
	})

	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), writer, levelEnabler)
}

// newConsoleCore creates a colored, human-readable core on stdout.
func newConsoleCore(min zap.AtomicLevel) zapcore.Core {
	consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
	consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfig),
		zapcore.AddSync(os.Stdout),
		min,
	)
}
