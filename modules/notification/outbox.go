package notification

import (
	"sync"
	"time"
)

// Notification is one message queued for a customer or operator.
type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Channel   string    `json:"channel"`
	Recipient string    `json:"recipient,omitempty"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}

// Outbox keeps the most recent notifications, dropping the oldest beyond its
// capacity.
type Outbox struct {
	mu    sync.RWMutex
	items []Notification
	limit int
	total uint64
}

// NewOutbox creates an outbox holding up to limit notifications.
func NewOutbox(limit int) *Outbox {
	if limit < 1 {
		limit = 200
	}
	return &Outbox{items: make([]Notification, 0, limit), limit: limit}
}

// Add appends n, evicting the oldest entry when full.
func (o *Outbox) Add(n Notification) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.items) == o.limit {
		copy(o.items, o.items[1:])
		o.items = o.items[:len(o.items)-1]
	}
	o.items = append(o.items, n)
	o.total++
}

// Recent returns up to n notifications, newest first. n <= 0 returns all.
func (o *Outbox) Recent(n int) []Notification {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if n <= 0 || n > len(o.items) {
		n = len(o.items)
	}
	out := make([]Notification, 0, n)
	for i := len(o.items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, o.items[i])
	}
	return out
}

// Total returns how many notifications were ever added.
func (o *Outbox) Total() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.total
}
