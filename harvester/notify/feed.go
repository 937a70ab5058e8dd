package notify

import (
	"sync"
	"time"
)

// Feed keeps the most recent notifications in memory for the API.
type Feed struct {
	mu       sync.Mutex
	capacity int
	nextID   uint64
	items    []Notification
	now      func() time.Time
}

// NewFeed creates a feed keeping at most capacity messages.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = 100
	}
	return &Feed{capacity: capacity, now: time.Now}
}

func (f *Feed) push(level Level, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.items = append(f.items, Notification{ID: f.nextID, Level: level, Message: message, Time: f.now()})
	if len(f.items) > f.capacity {
		f.items = append([]Notification(nil), f.items[len(f.items)-f.capacity:]...)
	}
}

func (f *Feed) Success(message string) { f.push(LevelSuccess, message) }
func (f *Feed) Error(message string)   { f.push(LevelError, message) }
func (f *Feed) Info(message string)    { f.push(LevelInfo, message) }

// Since returns notifications with an id greater than afterID, oldest first.
func (f *Feed) Since(afterID uint64) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notification, 0, len(f.items))
	for _, n := range f.items {
		if n.ID > afterID {
			out = append(out, n)
		}
	}
	return out
}

// All returns every retained notification.
func (f *Feed) All() []Notification {
	return f.Since(0)
}
