package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yeisme/flowvault/pkg/middleware"
	"github.com/yeisme/flowvault/pkg/scheduler"
)

// schedulerFrom 取出调度器，未启用时返回 503.
func schedulerFrom(c *gin.Context) (*scheduler.Scheduler, bool) {
	sched := middleware.GetScheduler(c)
	if sched == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not running"})
		return nil, false
	}

	return sched, true
}

// SchedulerJobs 列出后台任务及其最近运行状态.
//
//	@Summary	后台任务列表
//	@Tags		调度
//	@Produce	json
//	@Success	200	{object}	map[string][]scheduler.JobInfo
//	@Failure	503	{object}	map[string]string
//	@Router		/api/v1/scheduler/jobs [get]
func SchedulerJobs(c *gin.Context) {
	sched, ok := schedulerFrom(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":    sched.GetJobInfos(),
		"waiting": sched.JobsWaitingInQueue(),
	})
}

// SchedulerRunJob 立即执行一次指定任务，例如 bundle.purge_deleted.
//
//	@Summary	立即执行任务
//	@Tags		调度
//	@Produce	json
//	@Param		name	path		string	true	"任务名称"
//	@Success	202		{object}	map[string]string
//	@Failure	404		{object}	map[string]string
//	@Router		/api/v1/scheduler/jobs/{name}/run [post]
func SchedulerRunJob(c *gin.Context) {
	sched, ok := schedulerFrom(c)
	if !ok {
		return
	}

	name := c.Param("name")

	if _, err := sched.GetJobInfoByName(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	if err := sched.RunNow(name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "job triggered", "job": name})
}

// SchedulerStopJobs 暂停所有定时触发.
//
//	@Summary	暂停任务
//	@Tags		调度
//	@Success	200	{object}	map[string]string
//	@Router		/api/v1/scheduler/jobs/stop [post]
func SchedulerStopJobs(c *gin.Context) {
	sched, ok := schedulerFrom(c)
	if !ok {
		return
	}

	if err := sched.StopJobs(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "jobs stopped"})
}

// SchedulerRemoveJob 按 id 移除任务.
//
//	@Summary	移除任务
//	@Tags		调度
//	@Param		id	path	string	true	"任务 UUID"
//	@Success	204
//	@Failure	400	{object}	map[string]string
//	@Router		/api/v1/scheduler/jobs/{id} [delete]
func SchedulerRemoveJob(c *gin.Context) {
	sched, ok := schedulerFrom(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	if err := sched.RemoveJob(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
