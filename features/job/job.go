// Package job keeps queue tasks that ran out of retries so an operator can
// inspect them and push them back onto the topic they failed on.
package job

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("dead letter not found")
	ErrNoPublisher    = errors.New("no publisher configured")
	ErrPublishTimeout = errors.New("timeout waiting for NSQ publish")
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Job is a dead-lettered queue task. Handler is the topic the task came from;
// Retry republishes Payload there unchanged. Retries is zero for payloads that
// were buried on first sight.
type Job struct {
	ID        string          `json:"id"`
	SourceID  string          `json:"source_id"`
	Handler   string          `json:"handler"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}

// Filter narrows a listing to one topic. A zero Limit means DefaultListLimit.
type Filter struct {
	Topic string
	Limit int
}

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}
