package services

import (
	"testing"
	"time"

	"github.com/qianlnk/werewolf-session/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxPushFlush(t *testing.T) {
	o := NewOutbox()

	for i := 0; i < 100; i++ {
		require.True(t, o.Push(models.Notice{Type: "phase", Round: i}))
	}

	select {
	case <-o.Wait():
	case <-time.After(time.Second):
		t.Fatal("outbox not signalled")
	}

	notices, open := o.Flush()
	assert.True(t, open)
	require.Len(t, notices, 100)
	for i, n := range notices {
		assert.Equal(t, i, n.Round)
	}

	notices, open = o.Flush()
	assert.True(t, open)
	assert.Empty(t, notices)
}

func TestOutboxClose(t *testing.T) {
	o := NewOutbox()
	require.True(t, o.Push(models.Notice{Type: "welcome"}))

	o.Close()
	o.Close()

	assert.False(t, o.Push(models.Notice{Type: "late"}))

	select {
	case <-o.Wait():
	case <-time.After(time.Second):
		t.Fatal("closed outbox should be readable")
	}

	notices, open := o.Flush()
	assert.False(t, open)
	require.Len(t, notices, 1)
	assert.Equal(t, "welcome", notices[0].Type)
}
