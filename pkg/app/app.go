// Package app 提供应用程序的初始化和配置功能.
package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/flowvault/pkg/api"
	"github.com/yeisme/flowvault/pkg/cache"
	"github.com/yeisme/flowvault/pkg/configs"
	ctxPkg "github.com/yeisme/flowvault/pkg/context"
	"github.com/yeisme/flowvault/pkg/internal/jobs"
	"github.com/yeisme/flowvault/pkg/internal/model"
	"github.com/yeisme/flowvault/pkg/internal/service"
	"github.com/yeisme/flowvault/pkg/internal/storage"
	"github.com/yeisme/flowvault/pkg/log"
	"github.com/yeisme/flowvault/pkg/metrics"
	"github.com/yeisme/flowvault/pkg/middleware"
	"github.com/yeisme/flowvault/pkg/rule"
	"github.com/yeisme/flowvault/pkg/scheduler"
	"github.com/yeisme/flowvault/pkg/tracing"
)

type App struct {
	Engine  *gin.Engine
	Manager *storage.Manager
	Sched   *scheduler.Scheduler
	config  *configs.AppConfig
}

// ValidateConfig 按段名顺序校验配置，返回第一个不合法的段.
func ValidateConfig(config *configs.AppConfig) error {
	sections := config.Sections()

	for _, name := range slices.Sorted(maps.Keys(sections)) {
		if err := rule.ValidateStruct(sections[name]); err != nil {
			return fmt.Errorf("invalid config %s: %v", name, rule.Errors(err))
		}
	}

	return nil
}

// Bootstrap 加载配置并初始化日志、存储，完成表迁移与部门种子写入. 命令行工具与服务共用.
func Bootstrap(ctx context.Context, configPath string) (*configs.AppConfig, *storage.Manager, error) {
	if err := configs.InitConfig(configPath); err != nil {
		return nil, nil, fmt.Errorf("init config: %w", err)
	}

	log.Init()

	config := configs.GetConfig()

	if err := ValidateConfig(config); err != nil {
		return nil, nil, err
	}

	manager, err := storage.Init(ctx, config)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	if err := manager.GetDBClient().Migrate(ctx, model.Models()...); err != nil {
		_ = manager.Close()
		return nil, nil, err
	}

	n, err := service.NewSectorService(ctxPkg.WithStorageManager(ctx, manager)).Seed(ctx, config.Bundle.Sectors)
	if err != nil {
		_ = manager.Close()
		return nil, nil, fmt.Errorf("seed sectors: %w", err)
	}

	if n > 0 {
		log.Logger().Info().Int("created", n).Msg("sectors seeded")
	}

	return config, manager, nil
}

// NewApp 构建 HTTP 服务：追踪、监控、存储、定时任务与路由.
func NewApp(configPath string) (*App, error) {
	ctx := context.Background()

	config, manager, err := Bootstrap(ctx, configPath)
	if err != nil {
		return nil, err
	}

	// 初始化追踪
	if err := tracing.InitTracer(config.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// 初始化监控
	if err := metrics.InitMetrics(config.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	if config.Metrics.Enabled {
		if err := manager.GetDBClient().RegisterGORMMetrics(config.DB.Database, config.Metrics.DBRefreshSeconds); err != nil {
			log.Logger().Warn().Err(err).Msg("gorm metrics disabled")
		}
	}

	sched, err := scheduler.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	if err := jobs.RegisterCronJobs(sched, manager, config.Bundle); err != nil {
		return nil, fmt.Errorf("register jobs: %w", err)
	}

	if !config.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	engine := gin.New()
	engine.MaxMultipartMemory = config.Bundle.MaxArchiveBytes
	engine.Use(middleware.Stack(config, manager, sched)...)
	engine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`/assets/`, `/metrics`})))

	var renderMW []gin.HandlerFunc

	if kvc := manager.GetKVClient(); kvc != nil {
		if mw := middleware.RenderCache(cache.NewCache(kvc.KVStore), config.Bundle.RenderCacheTTL); mw != nil {
			renderMW = append(renderMW, mw)
		}
	}

	api.RegisterGroup(engine, renderMW...)

	if kvc := manager.GetKVClient(); kvc != nil {
		api.RegisterPeers(engine, kvc.KVStore)
	}

	if err := metrics.StartMetricsServer(config.Metrics, engine); err != nil {
		return nil, fmt.Errorf("start metrics: %w", err)
	}

	return &App{
		Engine:  engine,
		Manager: manager,
		Sched:   sched,
		config:  config,
	}, nil
}

// Run 启动定时任务与 HTTP 服务，ctx 取消后优雅退出.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.config.Server.Addr(),
		Handler:           a.Engine,
		ReadHeaderTimeout: a.config.Server.ReadHeaderTimeout,
		WriteTimeout:      a.config.Server.WriteTimeout,
		IdleTimeout:       a.config.Server.IdleTimeout,
	}

	a.Sched.Start()

	errCh := make(chan error, 1)

	go func() {
		log.Logger().Info().Str("addr", srv.Addr).Msg("http server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		a.close(context.Background())
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	a.close(shutdownCtx)

	return err
}

func (a *App) close(ctx context.Context) {
	l := log.Logger()

	if err := a.Sched.Shutdown(); err != nil {
		l.Warn().Err(err).Msg("scheduler shutdown")
	}

	if err := tracing.ShutdownTracer(ctx); err != nil {
		l.Warn().Err(err).Msg("tracer shutdown")
	}

	if err := a.Manager.Close(); err != nil {
		l.Warn().Err(err).Msg("storage close")
	}
}
