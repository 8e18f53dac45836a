package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/watchalong/syncengine/internal/domain"
)

func TestChatLogDedupByID(t *testing.T) {
	c := newChatLog()

	msg := domain.ChatMessage{ID: "m1", Author: "alice@x.com", Text: "hi", Timestamp: 1000}
	assert.True(t, c.Add(msg))
	assert.False(t, c.Add(msg), "same id delivered over the second transport")

	assert.Len(t, c.Messages(), 1)
}

func TestChatLogDedupByAuthorTextAndNearTimestamp(t *testing.T) {
	c := newChatLog()

	assert.True(t, c.Add(domain.ChatMessage{ID: "m1", Author: "alice@x.com", Text: "hi", Timestamp: 1000}))

	// relayed copy lost its id and drifted 800ms
	assert.False(t, c.Add(domain.ChatMessage{Author: "alice@x.com", Text: "hi", Timestamp: 1800}))

	// same text two seconds later is a genuine repeat
	assert.True(t, c.Add(domain.ChatMessage{Author: "alice@x.com", Text: "hi", Timestamp: 3200}))

	// same text from someone else is not a duplicate
	assert.True(t, c.Add(domain.ChatMessage{Author: "bob@y.com", Text: "hi", Timestamp: 1000}))
}

func TestChatLogClear(t *testing.T) {
	c := newChatLog()
	c.Add(domain.ChatMessage{ID: "m1", Author: "alice@x.com", Text: "hi", Timestamp: 1000})

	c.Clear()

	assert.Empty(t, c.Messages())
	assert.True(t, c.Add(domain.ChatMessage{ID: "m1", Author: "alice@x.com", Text: "hi", Timestamp: 1000}))
}

func TestChatLogSeed(t *testing.T) {
	c := newChatLog()
	c.Seed([]domain.ChatMessage{
		{ID: "m1", Author: "alice@x.com", Text: "hello", Timestamp: 1000},
		{ID: "m2", Author: "bob@y.com", Text: "hey", Timestamp: 2000},
	})

	assert.Len(t, c.Messages(), 2)
	assert.False(t, c.Add(domain.ChatMessage{ID: "m2", Author: "bob@y.com", Text: "hey", Timestamp: 2000}))
}
