// Package notify carries the short human readable messages users see for
// claims and swaps. Rendering is up to the surface (API feed, console, logs).
package notify

import (
	"fmt"
	"time"
)

// Level is the kind of notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is one message
type Notification struct {
	ID      uint64    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifier receives user facing messages.
type Notifier interface {
	Success(message string)
	Error(message string)
	Info(message string)
}

// Successf formats and sends a success message.
func Successf(n Notifier, format string, args ...any) {
	n.Success(fmt.Sprintf(format, args...))
}

// Errorf formats and sends an error message.
func Errorf(n Notifier, format string, args ...any) {
	n.Error(fmt.Sprintf(format, args...))
}

// Infof formats and sends an info message.
func Infof(n Notifier, format string, args ...any) {
	n.Info(fmt.Sprintf(format, args...))
}

// Multi fans every message out to all notifiers.
type Multi []Notifier

func (m Multi) Success(message string) {
	for _, n := range m {
		n.Success(message)
	}
}

func (m Multi) Error(message string) {
	for _, n := range m {
		n.Error(message)
	}
}

func (m Multi) Info(message string) {
	for _, n := range m {
		n.Info(message)
	}
}

// Discard drops everything.
type Discard struct{}

func (Discard) Success(string) {}
func (Discard) Error(string)   {}
func (Discard) Info(string)    {}
