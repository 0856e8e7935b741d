package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftops/rosterd/internal/events"
)

type fakeJob struct {
	name string
	err  error
	runs atomic.Int64
	done chan struct{}
}

func (j *fakeJob) Name() string { return j.name }

func (j *fakeJob) Run() error {
	j.runs.Add(1)
	if j.done != nil {
		select {
		case j.done <- struct{}{}:
		default:
		}
	}
	return j.err
}

func TestScheduler_RunNowEmitsLifecycleEvents(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	var types []events.EventType
	bus.SubscribeAll(func(e events.EventWithData) {
		types = append(types, e.Type)
	})

	s := New(bus, zerolog.Nop())

	job := &fakeJob{name: "nightly-maintenance"}
	require.NoError(t, s.RunNow(job))
	assert.EqualValues(t, 1, job.runs.Load())
	assert.Equal(t, []events.EventType{events.JobStarted, events.JobCompleted}, types)

	types = nil
	failing := &fakeJob{name: "broken", err: errors.New("disk full")}
	err := s.RunNow(failing)
	require.Error(t, err)
	assert.Equal(t, []events.EventType{events.JobStarted, events.JobFailed}, types)
}

func TestScheduler_RunNowWithoutBus(t *testing.T) {
	s := New(nil, zerolog.Nop())

	job := &fakeJob{name: "quiet"}
	require.NoError(t, s.RunNow(job))
	assert.EqualValues(t, 1, job.runs.Load())
}

func TestScheduler_AddJobRejectsBadSchedule(t *testing.T) {
	s := New(nil, zerolog.Nop())

	err := s.AddJob("every once in a while", &fakeJob{name: "never"})
	require.Error(t, err)
}

func TestScheduler_RunsJobOnSchedule(t *testing.T) {
	s := New(nil, zerolog.Nop())

	job := &fakeJob{name: "ticker", done: make(chan struct{}, 1)}
	require.NoError(t, s.AddJob("@every 50ms", job))

	s.Start()
	defer s.Stop()

	select {
	case <-job.done:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run within 3s")
	}
}
