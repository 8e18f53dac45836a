package engine

import (
	"sync"

	"github.com/watchalong/syncengine/internal/domain"
)

// recentWindow bounds the near-duplicate scan for messages that lost their
// id in relaying.
const recentWindow = 64

// chatLog holds the room chat history and absorbs duplicate deliveries
// racing across the two transports.
type chatLog struct {
	mu       sync.Mutex
	messages []domain.ChatMessage
	seenIDs  map[string]struct{}
}

func newChatLog() *chatLog {
	return &chatLog{seenIDs: make(map[string]struct{})}
}

// Add appends the message unless it is a duplicate. It reports whether the
// message was new.
func (c *chatLog) Add(msg domain.ChatMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if msg.ID != "" {
		if _, ok := c.seenIDs[msg.ID]; ok {
			return false
		}
	}

	start := len(c.messages) - recentWindow
	if start < 0 {
		start = 0
	}
	for _, existing := range c.messages[start:] {
		if existing.SameAs(msg) {
			return false
		}
	}

	c.messages = append(c.messages, msg)
	if msg.ID != "" {
		c.seenIDs[msg.ID] = struct{}{}
	}

	return true
}

func (c *chatLog) Seed(messages []domain.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = make([]domain.ChatMessage, 0, len(messages))
	c.seenIDs = make(map[string]struct{})
	for _, msg := range messages {
		c.messages = append(c.messages, msg)
		if msg.ID != "" {
			c.seenIDs[msg.ID] = struct{}{}
		}
	}
}

func (c *chatLog) Messages() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.ChatMessage, len(c.messages))
	copy(out, c.messages)

	return out
}

func (c *chatLog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = nil
	c.seenIDs = make(map[string]struct{})
}
