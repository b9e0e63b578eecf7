package logger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"designsense-go/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestInitWritesLevelFiles(t *testing.T) {
	root := t.TempDir()
	log, level, err := Init(root, config.LoggingConfig{Directory: "logs", Level: "warn", MaxSize: 1})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if level.Level() != zapcore.WarnLevel {
		t.Fatalf("level=%v, want warn", level.Level())
	}

	log.Info("dropped")
	log.Warn("kept")
	_ = log.Sync()

	day := time.Now().Format("2006-01-02")
	if _, err := os.Stat(filepath.Join(root, "logs", day+"-warn.log")); err != nil {
		t.Fatalf("warn log missing: %v", err)
	}
	if data, _ := os.ReadFile(filepath.Join(root, "logs", day+"-info.log")); len(data) != 0 {
		t.Fatalf("info log should be empty at warn level, got %q", data)
	}
}

func TestSetLevel(t *testing.T) {
	level := zap.NewAtomicLevel()
	if err := SetLevel(level, "debug"); err != nil || level.Level() != zapcore.DebugLevel {
		t.Fatalf("SetLevel(debug): level=%v err=%v", level.Level(), err)
	}
	if err := SetLevel(level, "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if err := SetLevel(level, ""); err != nil || level.Level() != zapcore.InfoLevel {
		t.Fatalf("SetLevel(\"\"): level=%v err=%v", level.Level(), err)
	}
}

func TestGormTraceLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormZapLogger(zap.New(core))
	sql := func() (string, int64) { return "SELECT 1", 1 }

	gl.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	gl.Trace(context.Background(), time.Now(), sql, errors.New("connection reset"))
	gl.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	gl.Trace(context.Background(), time.Now(), sql, nil) // below Info: not traced

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	want := []zapcore.Level{zapcore.DebugLevel, zapcore.ErrorLevel, zapcore.WarnLevel}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Fatalf("entry %d level=%v, want %v", i, e.Level, want[i])
		}
	}

	silent := gl.LogMode(logger.Silent)
	silent.Trace(context.Background(), time.Now(), sql, errors.New("ignored"))
	if logs.Len() != 3 {
		t.Fatalf("silent logger wrote an entry")
	}
}
