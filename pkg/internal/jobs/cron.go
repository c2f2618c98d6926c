// Package jobs 负责注册与实现业务定时任务（基于 scheduler）。
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/yeisme/flowvault/pkg/configs"
	ctxPkg "github.com/yeisme/flowvault/pkg/context"
	"github.com/yeisme/flowvault/pkg/internal/service"
	"github.com/yeisme/flowvault/pkg/internal/storage"
	"github.com/yeisme/flowvault/pkg/internal/types"
	"github.com/yeisme/flowvault/pkg/log"
	"github.com/yeisme/flowvault/pkg/scheduler"
)

// RegisterCronJobs 配置业务定时任务：
//   - 按 bundle.purge_cron 清理超过宽限期的软删除文件及其存储对象
func RegisterCronJobs(sched *scheduler.Scheduler, mgr *storage.Manager, cfg configs.BundleConfig) error {
	if sched == nil {
		return fmt.Errorf("scheduler is nil")
	}

	if mgr == nil {
		return fmt.Errorf("storage manager is nil")
	}

	if cfg.PurgeCron == "" {
		return nil
	}

	// 将 storage manager 注入到 context，便于 service 使用
	baseCtx := ctxPkg.WithStorageManager(context.Background(), mgr)

	grace := cfg.PurgeGrace
	if grace <= 0 {
		grace = configs.DefaultPurgeGrace
	}

	return sched.AddCron(JobPurgeDeleted, cfg.PurgeCron, func(ctx context.Context) error {
		_, err := RunPurge(ctx, time.Now().Add(-grace))
		return err
	}, baseCtx)
}

// RunPurge 清理 before 之前软删除的记录，ctx 需携带 storage manager.
func RunPurge(ctx context.Context, before time.Time) (*types.PurgeReport, error) {
	l := log.Component("purge").With().Str("job", JobPurgeDeleted).Logger()

	report, err := service.NewFileService(ctx).PurgeDeleted(ctx, before)
	if err != nil {
		return nil, fmt.Errorf("purge before %s: %w", before.Format(time.RFC3339), err)
	}

	if report.Objects > 0 || report.Failed > 0 || report.Flows > 0 {
		l.Info().
			Int("objects", report.Objects).
			Int("failed", report.Failed).
			Int64("versions", report.Versions).
			Int64("flows", report.Flows).
			Time("before", before).
			Msg("purged deleted bundles")
	}

	if report.Failed > 0 {
		return report, fmt.Errorf("%d objects failed to delete", report.Failed)
	}

	return report, nil
}
