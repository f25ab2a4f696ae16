package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/voidshard/vidpipe/pkg/errors"
	"github.com/voidshard/vidpipe/pkg/structs"
)

// Memory is a Database held in process memory. Nothing survives a restart; it's
// intended for tests & local development.
type Memory struct {
	lock sync.RWMutex
	jobs map[string]*structs.Job
}

// NewMemory returns an empty in memory database.
func NewMemory() *Memory {
	return &Memory{jobs: map[string]*structs.Job{}}
}

func (m *Memory) Close() error {
	return nil
}

// InsertJob records a copy of the given job
func (m *Memory) InsertJob(ctx context.Context, j *structs.Job) (string, error) {
	if err := prepareInsert(j); err != nil {
		return "", err
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.jobs[j.ID]; ok {
		return "", fmt.Errorf("%w job %s already exists", errors.ErrConflict, j.ID)
	}
	cpy := *j
	m.jobs[j.ID] = &cpy
	return j.ID, nil
}

func (m *Memory) Job(ctx context.Context, id string) (*structs.Job, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w job %s", errors.ErrNotFound, id)
	}
	cpy := *j
	return &cpy, nil
}

func (m *Memory) UpdateJobState(ctx context.Context, id string, expect, next structs.Status, f *structs.Fields) (*structs.Job, error) {
	if err := validateUpdate(expect, next, f); err != nil {
		return nil, err
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w job %s", errors.ErrNotFound, id)
	}
	if j.State != expect {
		return nil, fmt.Errorf("%w job %s is %s, expected %s", errors.ErrConflict, id, j.State, expect)
	}

	j.State = next
	j.Attempt = f.Attempt
	j.Timeouts = f.Timeouts
	j.OutputRef = f.OutputRef
	j.Error = f.Error
	j.UpdatedAt = timeNow()

	cpy := *j
	return &cpy, nil
}

func (m *Memory) Jobs(ctx context.Context, q *structs.Query) ([]*structs.Job, string, error) {
	q.Sanitize()
	after, err := decodeCursor(q.PageToken)
	if err != nil {
		return nil, "", err
	}
	states := map[structs.Status]bool{}
	for _, s := range q.States {
		states[s] = true
	}

	m.lock.RLock()
	found := []*structs.Job{}
	for _, j := range m.jobs {
		if q.Owner != "" && j.Owner != q.Owner {
			continue
		}
		if len(states) > 0 && !states[j.State] {
			continue
		}
		if !after.after(j) {
			continue
		}
		cpy := *j
		found = append(found, &cpy)
	}
	m.lock.RUnlock()

	sort.Slice(found, func(i, j int) bool {
		if found[i].CreatedAt != found[j].CreatedAt {
			return found[i].CreatedAt < found[j].CreatedAt
		}
		return found[i].ID < found[j].ID
	})

	if len(found) > q.Limit {
		found = found[:q.Limit]
		return found, encodeCursor(found[len(found)-1]), nil
	}
	return found, "", nil
}
