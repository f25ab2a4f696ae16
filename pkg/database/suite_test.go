package database

import (
	"context"
	stderr "errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidshard/vidpipe/pkg/errors"
	"github.com/voidshard/vidpipe/pkg/structs"
)

// storeSuite runs the behaviour every Database implementation must share.
func storeSuite(t *testing.T, open func(t *testing.T) Database) {
	var clock int64 = 1000
	orig := timeNow
	timeNow = func() int64 { return atomic.AddInt64(&clock, 1) }
	t.Cleanup(func() { timeNow = orig })

	t.Run("InsertAndGet", func(t *testing.T) { suiteInsertAndGet(t, open(t)) })
	t.Run("GetMissing", func(t *testing.T) { suiteGetMissing(t, open(t)) })
	t.Run("InsertDuplicate", func(t *testing.T) { suiteInsertDuplicate(t, open(t)) })
	t.Run("CompareAndSwap", func(t *testing.T) { suiteCompareAndSwap(t, open(t)) })
	t.Run("RacingWriters", func(t *testing.T) { suiteRacingWriters(t, open(t)) })
	t.Run("OutputRefInvariant", func(t *testing.T) { suiteOutputRefInvariant(t, open(t)) })
	t.Run("ListByOwnerPaged", func(t *testing.T) { suiteListByOwnerPaged(t, open(t)) })
	t.Run("ListByState", func(t *testing.T) { suiteListByState(t, open(t)) })
}

func newTestJob(owner string) *structs.Job {
	return &structs.Job{
		JobSpec: structs.JobSpec{
			Owner:        owner,
			InputRef:     "uploads/in.mp4",
			InputFormat:  "mp4",
			OutputFormat: "wav",
		},
	}
}

func suiteInsertAndGet(t *testing.T, db Database) {
	ctx := context.Background()
	in := newTestJob("alice")

	id, err := db.InsertJob(ctx, in)
	require.Nil(t, err)

	out, err := db.Job(ctx, id)
	require.Nil(t, err)

	assert.Equal(t, id, out.ID)
	assert.Equal(t, in.JobSpec, out.JobSpec)
	assert.Equal(t, structs.QUEUED, out.State)
	assert.Equal(t, int64(0), out.Attempt)
	assert.Equal(t, "", out.OutputRef)
	assert.Equal(t, "", out.Error)
	assert.NotZero(t, out.CreatedAt)
}

func suiteGetMissing(t *testing.T, db Database) {
	_, err := db.Job(context.Background(), "does-not-exist")

	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func suiteInsertDuplicate(t *testing.T, db Database) {
	ctx := context.Background()
	j := newTestJob("alice")
	_, err := db.InsertJob(ctx, j)
	require.Nil(t, err)

	dupe := newTestJob("mallory")
	dupe.ID = j.ID
	_, err = db.InsertJob(ctx, dupe)

	assert.NotNil(t, err)
	got, err := db.Job(ctx, j.ID)
	require.Nil(t, err)
	assert.Equal(t, "alice", got.Owner)
}

func suiteCompareAndSwap(t *testing.T, db Database) {
	ctx := context.Background()
	id, err := db.InsertJob(ctx, newTestJob("alice"))
	require.Nil(t, err)

	// right expectation
	j, err := db.UpdateJobState(ctx, id, structs.QUEUED, structs.RUNNING, &structs.Fields{Attempt: 1})
	require.Nil(t, err)
	assert.Equal(t, structs.RUNNING, j.State)
	assert.Equal(t, int64(1), j.Attempt)

	// stale expectation
	_, err = db.UpdateJobState(ctx, id, structs.QUEUED, structs.CANCELED, &structs.Fields{})
	assert.ErrorIs(t, err, errors.ErrConflict)

	// unknown id
	_, err = db.UpdateJobState(ctx, "nope", structs.QUEUED, structs.RUNNING, &structs.Fields{Attempt: 1})
	assert.ErrorIs(t, err, errors.ErrNotFound)

	// finish
	j, err = db.UpdateJobState(ctx, id, structs.RUNNING, structs.SUCCEEDED, &structs.Fields{Attempt: 1, OutputRef: id + ".wav"})
	require.Nil(t, err)
	assert.Equal(t, id+".wav", j.OutputRef)

	// end states are sticky
	_, err = db.UpdateJobState(ctx, id, structs.SUCCEEDED, structs.QUEUED, &structs.Fields{Attempt: 1})
	assert.ErrorIs(t, err, errors.ErrInvalidState)

	got, err := db.Job(ctx, id)
	require.Nil(t, err)
	assert.Equal(t, structs.SUCCEEDED, got.State)
	assert.GreaterOrEqual(t, got.UpdatedAt, got.CreatedAt)
}

func suiteRacingWriters(t *testing.T, db Database) {
	ctx := context.Background()
	id, err := db.InsertJob(ctx, newTestJob("alice"))
	require.Nil(t, err)

	racers := 8
	var wins, conflicts int64
	start := make(chan struct{})
	wg := sync.WaitGroup{}
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := db.UpdateJobState(ctx, id, structs.QUEUED, structs.RUNNING, &structs.Fields{Attempt: 1})
			if err == nil {
				atomic.AddInt64(&wins, 1)
			} else if assert.ErrorIs(t, err, errors.ErrConflict) {
				atomic.AddInt64(&conflicts, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), wins)
	assert.Equal(t, int64(racers-1), conflicts)
}

func suiteOutputRefInvariant(t *testing.T, db Database) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for n := 0; n < 20; n++ {
		id, err := db.InsertJob(ctx, newTestJob("prop"))
		require.Nil(t, err)

		for step := 0; step < 10; step++ {
			cur, err := db.Job(ctx, id)
			require.Nil(t, err)
			assert.Equal(t, cur.State == structs.SUCCEEDED, cur.OutputRef != "", "job %s in %s", id, cur.State)

			next := structs.AllStatuses[rng.Intn(len(structs.AllStatuses))]
			ref := ""
			if rng.Intn(2) == 0 {
				ref = "out.wav"
			}
			_, err = db.UpdateJobState(ctx, id, cur.State, next, &structs.Fields{Attempt: cur.Attempt, OutputRef: ref})
			if err != nil {
				// illegal proposals are refused outright
				assert.True(t, stderr.Is(err, errors.ErrInvalidState) || stderr.Is(err, errors.ErrInvalidArg), err)
			}
		}
	}
}

func suiteListByOwnerPaged(t *testing.T, db Database) {
	ctx := context.Background()
	want := []string{}
	for i := 0; i < 5; i++ {
		id, err := db.InsertJob(ctx, newTestJob("alice"))
		require.Nil(t, err)
		want = append(want, id)
		_, err = db.InsertJob(ctx, newTestJob("bob"))
		require.Nil(t, err)
	}

	got := []string{}
	q := &structs.Query{Owner: "alice", Limit: 2}
	pages := 0
	for {
		jobs, next, err := db.Jobs(ctx, q)
		require.Nil(t, err)
		pages++
		for _, j := range jobs {
			assert.Equal(t, "alice", j.Owner)
			got = append(got, j.ID)
		}
		if next == "" {
			break
		}
		q.PageToken = next
		require.Less(t, pages, 10)
	}

	assert.Equal(t, want, got)
	assert.Equal(t, 3, pages)

	// restartable: the same token yields the same page
	first, tok, err := db.Jobs(ctx, &structs.Query{Owner: "alice", Limit: 2})
	require.Nil(t, err)
	again, _, err := db.Jobs(ctx, &structs.Query{Owner: "alice", Limit: 2, PageToken: tok})
	require.Nil(t, err)
	again2, _, err := db.Jobs(ctx, &structs.Query{Owner: "alice", Limit: 2, PageToken: tok})
	require.Nil(t, err)
	assert.Equal(t, want[:2], []string{first[0].ID, first[1].ID})
	assert.Equal(t, again, again2)

	_, _, err = db.Jobs(ctx, &structs.Query{Owner: "alice", PageToken: "%%%"})
	assert.ErrorIs(t, err, errors.ErrInvalidArg)
}

func suiteListByState(t *testing.T, db Database) {
	ctx := context.Background()
	a, err := db.InsertJob(ctx, newTestJob("carol"))
	require.Nil(t, err)
	b, err := db.InsertJob(ctx, newTestJob("carol"))
	require.Nil(t, err)
	_, err = db.UpdateJobState(ctx, b, structs.QUEUED, structs.CANCELED, &structs.Fields{})
	require.Nil(t, err)

	jobs, next, err := db.Jobs(ctx, &structs.Query{Owner: "carol", States: []structs.Status{structs.QUEUED}})
	require.Nil(t, err)

	assert.Equal(t, "", next)
	require.Equal(t, 1, len(jobs))
	assert.Equal(t, a, jobs[0].ID)
}
