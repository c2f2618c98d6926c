// Package scheduler 包装 gocron/v2，按名称管理后台任务并记录每个任务的运行状态.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yeisme/flowvault/pkg/log"
)

// JobStatus 表示任务的状态类型.
type JobStatus string

const (
	StatusScheduled JobStatus = "scheduled" // 等待下次触发
	StatusRunning   JobStatus = "running"   // 正在运行
	StatusError     JobStatus = "error"     // 上次运行返回错误或 panic
)

// Job 任务函数，返回的错误记录到 JobInfo.Error.
type Job func(ctx context.Context) error

// JobInfo 任务信息，用于 /scheduler/jobs 展示.
type JobInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CronExpr    string    `json:"cron_expr"`
	NextRun     time.Time `json:"next_run"`
	LastRun     time.Time `json:"last_run"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	Runs        int       `json:"runs"`
	Status      JobStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type entry struct {
	job  gocron.Job
	info JobInfo
}

// Scheduler 按名称登记的 cron 任务集合. 同名任务不会并发执行.
type Scheduler struct {
	cron   gocron.Scheduler
	mu     sync.RWMutex
	byName map[string]*entry
	byID   map[uuid.UUID]string
	logger *zerolog.Logger
}

// NewScheduler 创建调度器，需调用 Start 后任务才会触发.
func NewScheduler() (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	l := log.Component("scheduler")

	return &Scheduler{
		cron:   cron,
		byName: make(map[string]*entry),
		byID:   make(map[uuid.UUID]string),
		logger: &l,
	}, nil
}

// AddCron 按 cron 表达式登记任务，ctx 作为每次运行的父 context.
func (s *Scheduler) AddCron(name string, cronExpr string, job Job, ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[name]; exists {
		return fmt.Errorf("job with name %s already exists", name)
	}

	j, err := s.cron.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func(ctx context.Context) error { return job(ctx) }, ctx),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithEventListeners(
			gocron.BeforeJobRuns(func(_ uuid.UUID, jobName string) {
				s.update(jobName, func(info *JobInfo) {
					info.Status = StatusRunning
					info.LastRun = time.Now()
				})
			}),
			gocron.AfterJobRuns(func(_ uuid.UUID, jobName string) {
				s.update(jobName, func(info *JobInfo) {
					info.Status = StatusScheduled
					info.Error = ""
					info.LastSuccess = time.Now()
				})
			}),
			gocron.AfterJobRunsWithError(func(_ uuid.UUID, jobName string, err error) {
				s.logger.Error().Err(err).Str("job", jobName).Msg("job failed")
				s.update(jobName, func(info *JobInfo) {
					info.Status = StatusError
					info.Error = err.Error()
				})
			}),
			gocron.AfterJobRunsWithPanic(func(_ uuid.UUID, jobName string, recovered any) {
				s.logger.Error().Str("job", jobName).Interface("panic", recovered).Msg("job panicked")
				s.update(jobName, func(info *JobInfo) {
					info.Status = StatusError
					info.Error = fmt.Sprintf("panic: %v", recovered)
				})
			}),
		),
	)
	if err != nil {
		return fmt.Errorf("add job %s: %w", name, err)
	}

	now := time.Now()
	s.byName[name] = &entry{job: j, info: JobInfo{
		ID:        j.ID().String(),
		Name:      name,
		CronExpr:  cronExpr,
		Status:    StatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	s.byID[j.ID()] = name

	s.logger.Info().Str("job", name).Str("cron", cronExpr).Msg("cron job added")

	return nil
}

// update 在锁内修改任务信息，并递增运行次数（仅 Running 状态）.
func (s *Scheduler) update(name string, fn func(*JobInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byName[name]
	if !ok {
		return
	}

	fn(&e.info)

	if e.info.Status == StatusRunning {
		e.info.Runs++
	}

	e.info.UpdatedAt = time.Now()
}

// RunNow 立即触发一次任务，不影响下次定时.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	e, ok := s.byName[name]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("job with name %s does not exist", name)
	}

	return e.job.RunNow()
}

// RemoveJobByName 通过名称移除任务.
func (s *Scheduler) RemoveJobByName(name string) error {
	s.mu.Lock()
	e, ok := s.byName[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("job with name %s does not exist", name)
	}

	return s.RemoveJob(e.job.ID())
}

// RemoveJob 通过 id 移除任务.
func (s *Scheduler) RemoveJob(id uuid.UUID) error {
	if err := s.cron.RemoveJob(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if name, ok := s.byID[id]; ok {
		delete(s.byName, name)
		delete(s.byID, id)
		s.logger.Info().Str("job", name).Msg("job removed")
	}

	return nil
}

// GetJobInfoByName 返回任务信息副本.
func (s *Scheduler) GetJobInfoByName(name string) (*JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("job with name %s does not exist", name)
	}

	info := s.snapshot(e)

	return &info, nil
}

// GetJobInfos 返回按名称排序的全部任务信息.
func (s *Scheduler) GetJobInfos() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.byName))
	for _, e := range s.byName {
		out = append(out, s.snapshot(e))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// snapshot 复制信息并补上 gocron 计算的下次运行时间，调用方持有读锁.
func (s *Scheduler) snapshot(e *entry) JobInfo {
	info := e.info
	if next, err := e.job.NextRun(); err == nil {
		info.NextRun = next
	}

	return info
}

// Start 启动调度器.
func (s *Scheduler) Start() {
	s.logger.Info().Int("jobs", len(s.GetJobInfos())).Msg("scheduler started")
	s.cron.Start()
}

// StopJobs 停止触发任务，已登记的任务保留，可再次 Start.
func (s *Scheduler) StopJobs() error {
	return s.cron.StopJobs()
}

// Shutdown 停止调度器并等待运行中的任务结束.
func (s *Scheduler) Shutdown() error {
	return s.cron.Shutdown()
}

// JobsWaitingInQueue 等待执行的任务数.
func (s *Scheduler) JobsWaitingInQueue() int {
	return s.cron.JobsWaitingInQueue()
}
