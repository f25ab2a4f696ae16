package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voidshard/vidpipe/pkg/structs"
)

func TestMemory(t *testing.T) {
	storeSuite(t, func(t *testing.T) Database {
		return NewMemory()
	})
}

func TestMemoryReturnsCopies(t *testing.T) {
	db := NewMemory()
	ctx := context.Background()
	id, err := db.InsertJob(ctx, newTestJob("alice"))
	assert.Nil(t, err)

	j, err := db.Job(ctx, id)
	assert.Nil(t, err)
	j.State = structs.SUCCEEDED

	again, err := db.Job(ctx, id)
	assert.Nil(t, err)
	assert.Equal(t, structs.QUEUED, again.State)
}
