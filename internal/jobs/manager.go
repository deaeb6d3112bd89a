package jobs

import (
	"fmt"
	"sync"
	"time"

	"ermpipeline/internal/log"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job tracks one pipeline stage.
type Job struct {
	ID          string
	Stage       string
	Status      JobStatus
	StartTime   time.Time
	EndTime     *time.Time
	Error       error
	Result      any
	Description string
	Logs        []string
	mu          sync.RWMutex
}

// Manager records stages in the order they were created.
type Manager struct {
	jobs  map[string]*Job
	order []string
	mu    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		jobs: make(map[string]*Job),
	}
}

func (m *Manager) CreateJob(stage, description string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobID := fmt.Sprintf("%02d_%s", len(m.order)+1, stage)
	job := &Job{
		ID:          jobID,
		Stage:       stage,
		Status:      JobPending,
		Description: description,
		Logs:        []string{},
	}

	m.jobs[jobID] = job
	m.order = append(m.order, jobID)
	return job
}

// Run executes fn as a tracked stage. The stage fails with fn's error, which is
// returned unchanged.
func (m *Manager) Run(stage, description string, fn func(job *Job) error) error {
	job := m.CreateJob(stage, description)
	job.SetStatus(JobRunning)
	logger := log.WithStage(stage)
	logger.Debug(description)

	if err := fn(job); err != nil {
		job.SetError(err)
		logger.WithField("duration", job.Duration().String()).WithError(err).Error("stage failed")
		return err
	}

	job.SetStatus(JobCompleted)
	logger.WithField("duration", job.Duration().String()).Info("stage completed")
	return nil
}

func (m *Manager) GetJob(jobID string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[jobID]
	return job, exists
}

func (m *Manager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.order))
	for _, id := range m.order {
		jobs = append(jobs, m.jobs[id])
	}
	return jobs
}

func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	now := time.Now()
	if status == JobRunning {
		j.StartTime = now
	}
	if status == JobCompleted || status == JobFailed {
		j.EndTime = &now
	}
}

func (j *Job) AddLog(message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	timestamp := time.Now().Format("15:04:05")
	j.Logs = append(j.Logs, fmt.Sprintf("[%s] %s", timestamp, message))
}

func (j *Job) SetError(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Error = err
	j.Status = JobFailed
	now := time.Now()
	j.EndTime = &now
}

func (j *Job) SetResult(result any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Result = result
}

func (j *Job) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Duration is the elapsed time of a finished stage, or the time so far.
func (j *Job) Duration() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.StartTime.IsZero() {
		return 0
	}
	if j.EndTime != nil {
		return j.EndTime.Sub(j.StartTime)
	}
	return time.Since(j.StartTime)
}

func (j *Job) GetLogs() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	logs := make([]string, len(j.Logs))
	copy(logs, j.Logs)
	return logs
}
