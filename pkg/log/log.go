// Package log 基于 zerolog 的全局日志，输出到终端并可选写入 lumberjack 轮转文件.
package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yeisme/flowvault/pkg/configs"
)

var (
	logger   zerolog.Logger
	initOnce sync.Once
)

// Init 按当前配置初始化全局 logger，并注册级别热更新.
func Init() {
	initOnce.Do(initLogger)
}

func initLogger() {
	cfg := configs.GetConfig()

	setLevel(cfg.Log.Level)

	ctx := zerolog.New(output(&cfg.Log)).With().Timestamp().Str("service", "flowvault")
	if cfg.Server.Debug {
		ctx = ctx.Caller()
	}

	logger = ctx.Logger()
	log.Logger = logger

	configs.OnReload(func(c *configs.AppConfig) {
		setLevel(c.Log.Level)
	})
}

// output 终端按 Format 输出，开启文件时同时写 JSON 到轮转文件.
func output(cfg *configs.LogConfig) io.Writer {
	var term io.Writer = os.Stderr
	if cfg.Format != "json" {
		term = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = time.DateTime
		})
	}

	if !cfg.EnableFile || cfg.FilePath == "" {
		return term
	}

	return zerolog.MultiLevelWriter(term, &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}

func setLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if lvl != zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(lvl)
	}
}

// Logger 返回全局 logger，首次调用时初始化.
func Logger() *zerolog.Logger {
	initOnce.Do(initLogger)

	return &logger
}

// Component 带 component 字段的子 logger，例如 ingest、render、purge.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// GinWriter 把 gin 的调试与错误输出转成 zerolog 事件.
type GinWriter struct {
	logger *zerolog.Logger
	level  zerolog.Level
}

func NewGinWriter(logger *zerolog.Logger, level zerolog.Level) *GinWriter {
	return &GinWriter{logger: logger, level: level}
}

func (w *GinWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}

	w.logger.WithLevel(w.level).Str("component", "gin").Msg(msg)

	return len(p), nil
}
