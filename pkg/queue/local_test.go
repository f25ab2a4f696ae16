package queue

import (
	"context"
	stderr "errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/voidshard/vidpipe/pkg/errors"
	"github.com/voidshard/vidpipe/pkg/structs"
)

// reports records outcomes sent to it
type reports struct {
	lock     sync.Mutex
	outcomes []*structs.Outcome
}

func (r *reports) Report(ctx context.Context, o *structs.Outcome) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

func (r *reports) all() []*structs.Outcome {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]*structs.Outcome{}, r.outcomes...)
}

func startLocal(t *testing.T, workers int, handler func(ctx context.Context, m *Meta)) (*Local, *reports) {
	rep := &reports{}
	q := NewLocalQueue(zerolog.Nop(), rep, &Options{Workers: workers})
	assert.Nil(t, q.Register(handler))

	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run()
	}()
	t.Cleanup(func() {
		q.Close()
		<-done
	})
	return q, rep
}

func TestLocalRunsHandler(t *testing.T) {
	q, rep := startLocal(t, 2, func(ctx context.Context, m *Meta) {
		m.SetOutput(m.Job.ID + ".wav")
	})

	id, err := q.Enqueue(&structs.Job{ID: "a", Attempt: 1})
	assert.Nil(t, err)
	assert.Equal(t, "a:1", id)

	assert.Eventually(t, func() bool { return len(rep.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, &structs.Outcome{JobID: "a", Attempt: 1, OutputRef: "a.wav"}, rep.all()[0])
}

func TestLocalKillRunning(t *testing.T) {
	started := make(chan struct{})
	q, rep := startLocal(t, 1, func(ctx context.Context, m *Meta) {
		close(started)
		<-ctx.Done()
		m.SetError(errors.Canceled(ctx.Err()))
	})

	id, err := q.Enqueue(&structs.Job{ID: "a", Attempt: 1})
	assert.Nil(t, err)
	<-started

	assert.Nil(t, q.Kill(id))

	assert.Eventually(t, func() bool { return len(rep.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "CANCELED", rep.all()[0].Failure)
}

func TestLocalKillWaiting(t *testing.T) {
	release := make(chan struct{})
	ran := make(chan string, 2)
	q, rep := startLocal(t, 1, func(ctx context.Context, m *Meta) {
		ran <- m.Job.ID
		<-release
		m.SetOutput("out")
	})

	_, err := q.Enqueue(&structs.Job{ID: "a", Attempt: 1})
	assert.Nil(t, err)
	assert.Equal(t, "a", <-ran) // the only worker is now busy

	id, err := q.Enqueue(&structs.Job{ID: "b", Attempt: 1})
	assert.Nil(t, err)
	assert.Nil(t, q.Kill(id))
	close(release)

	assert.Eventually(t, func() bool { return len(rep.all()) == 2 }, time.Second, 5*time.Millisecond)
	byJob := map[string]*structs.Outcome{}
	for _, o := range rep.all() {
		byJob[o.JobID] = o
	}
	assert.Equal(t, "out", byJob["a"].OutputRef)
	assert.Equal(t, "CANCELED", byJob["b"].Failure)
	assert.Len(t, ran, 0) // b never ran
}

func TestLocalKillUnknown(t *testing.T) {
	q, _ := startLocal(t, 1, func(ctx context.Context, m *Meta) {})

	err := q.Kill("nope:1")

	assert.True(t, stderr.Is(err, errors.ErrNotFound))
}

func TestLocalEnqueueAfterClose(t *testing.T) {
	q := NewLocalQueue(zerolog.Nop(), &reports{}, &Options{Workers: 1})
	q.Close()

	_, err := q.Enqueue(&structs.Job{ID: "a"})

	assert.True(t, stderr.Is(err, errors.ErrClosed))
}

func TestLocalRunWithoutHandler(t *testing.T) {
	q := NewLocalQueue(zerolog.Nop(), &reports{}, &Options{Workers: 1})
	defer q.Close()

	err := q.Run()

	assert.True(t, stderr.Is(err, errors.ErrInvalidArg))
}
