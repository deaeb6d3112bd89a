package jobs

import (
	"errors"
	"testing"

	"ermpipeline/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTracksStagesInOrder(t *testing.T) {
	require.NoError(t, log.InitLogger("/dev/null", "debug"))
	a := assert.New(t)
	m := NewManager()

	err := m.Run("load", "read input", func(job *Job) error {
		job.AddLog("1000 rows")
		job.SetResult(1000)
		return nil
	})
	a.NoError(err)

	boom := errors.New("boom")
	err = m.Run("split", "partition rows", func(*Job) error { return boom })
	a.ErrorIs(err, boom)

	jobs := m.ListJobs()
	require.Len(t, jobs, 2)
	a.Equal("01_load", jobs[0].ID)
	a.Equal(JobCompleted, jobs[0].GetStatus())
	a.Equal(1000, jobs[0].Result)
	a.Len(jobs[0].GetLogs(), 1)
	a.NotNil(jobs[0].EndTime)

	a.Equal("02_split", jobs[1].ID)
	a.Equal(JobFailed, jobs[1].GetStatus())
	a.ErrorIs(jobs[1].Error, boom)
	a.GreaterOrEqual(int64(jobs[1].Duration()), int64(0))

	job, ok := m.GetJob("02_split")
	a.True(ok)
	a.Equal("split", job.Stage)
}

func TestPendingJobHasNoDuration(t *testing.T) {
	job := NewManager().CreateJob("train", "")
	assert.Equal(t, JobPending, job.GetStatus())
	assert.Zero(t, job.Duration())
}
