package core

// fairQueue holds job ids awaiting admission.
//
// Each owner has a FIFO; Pop serves owners round robin. With fair unset every
// job goes into a single FIFO.
type fairQueue struct {
	fair bool

	owners  []string
	next    int
	byOwner map[string][]string
	members map[string]string // job id -> owner key
	owner   map[string]string // job id -> owner, kept when not fair
}

func newFairQueue(fair bool) *fairQueue {
	return &fairQueue{
		fair:    fair,
		owners:  []string{},
		byOwner: map[string][]string{},
		members: map[string]string{},
		owner:   map[string]string{},
	}
}

func (q *fairQueue) key(owner string) string {
	if q.fair {
		return owner
	}
	return ""
}

// Push adds a job to the back of its owner's queue. Returns false if the job is
// already queued.
func (q *fairQueue) Push(owner, id string) bool {
	if _, ok := q.members[id]; ok {
		return false
	}
	k := q.key(owner)
	ids, ok := q.byOwner[k]
	if !ok {
		q.owners = append(q.owners, k)
	}
	q.byOwner[k] = append(ids, id)
	q.members[id] = k
	if !q.fair {
		q.owner[id] = owner
	}
	return true
}

// Pop returns the next job to admit & its owner.
func (q *fairQueue) Pop() (string, string, bool) {
	if len(q.owners) == 0 {
		return "", "", false
	}
	if q.next >= len(q.owners) {
		q.next = 0
	}
	k := q.owners[q.next]
	ids := q.byOwner[k]
	id := ids[0]

	owner := k
	if !q.fair {
		owner = q.owner[id]
	}
	delete(q.members, id)
	delete(q.owner, id)
	if len(ids) == 1 {
		q.dropOwner(q.next)
		// next now points at the following owner already
	} else {
		q.byOwner[k] = ids[1:]
		q.next++
	}
	return id, owner, true
}

// Remove takes a job out of the queue. Returns true if it was queued.
func (q *fairQueue) Remove(id string) bool {
	k, ok := q.members[id]
	if !ok {
		return false
	}
	delete(q.members, id)
	delete(q.owner, id)

	ids := q.byOwner[k]
	for i, v := range ids {
		if v == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) > 0 {
		q.byOwner[k] = ids
		return true
	}
	for i, o := range q.owners {
		if o == k {
			q.dropOwner(i)
			break
		}
	}
	return true
}

func (q *fairQueue) dropOwner(i int) {
	delete(q.byOwner, q.owners[i])
	q.owners = append(q.owners[:i:i], q.owners[i+1:]...)
	if i < q.next {
		q.next--
	}
}

func (q *fairQueue) Len() int {
	return len(q.members)
}
