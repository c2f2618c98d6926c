package jobs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/internal/jobs"
	"github.com/yeisme/flowvault/pkg/internal/storage"
	"github.com/yeisme/flowvault/pkg/scheduler"
)

func TestRegisterCronJobs(t *testing.T) {
	sched, err := scheduler.NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Shutdown() })

	mgr := &storage.Manager{}

	require.Error(t, jobs.RegisterCronJobs(nil, mgr, configs.DefaultBundleConfig()))
	require.Error(t, jobs.RegisterCronJobs(sched, nil, configs.DefaultBundleConfig()))

	disabled := configs.DefaultBundleConfig()
	disabled.PurgeCron = ""
	require.NoError(t, jobs.RegisterCronJobs(sched, mgr, disabled))

	_, err = sched.GetJobInfoByName(jobs.JobPurgeDeleted)
	require.Error(t, err)

	require.NoError(t, jobs.RegisterCronJobs(sched, mgr, configs.DefaultBundleConfig()))

	info, err := sched.GetJobInfoByName(jobs.JobPurgeDeleted)
	require.NoError(t, err)
	assert.Equal(t, configs.DefaultPurgeCron, info.CronExpr)

	// 重复注册同名任务失败
	assert.Error(t, jobs.RegisterCronJobs(sched, mgr, configs.DefaultBundleConfig()))

	bad := configs.DefaultBundleConfig()
	bad.PurgeCron = "not a cron"

	other, err := scheduler.NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Shutdown() })

	assert.Error(t, jobs.RegisterCronJobs(other, mgr, bad))
}
