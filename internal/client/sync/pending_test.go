package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPendingConsumeIsOneShot(t *testing.T) {
	p := NewPendingActions()
	token := pendingToken("saved", 42)

	assert.False(t, p.Consume(token))

	p.Add(token)
	assert.True(t, p.Consume(token))
	assert.False(t, p.Consume(token))
}

func TestPendingTokensAreDistinct(t *testing.T) {
	p := NewPendingActions()

	p.Add(pendingToken("saved", 1))
	assert.False(t, p.Consume(pendingToken("deleted", 1)))
	assert.False(t, p.Consume(pendingToken("saved", 2)))
	assert.True(t, p.Consume(pendingToken("saved", 1)))
	assert.Equal(t, "saved:7", pendingToken("saved", 7))
}
