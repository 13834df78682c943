package testutils

import (
	"sync"
	"time"

	"github.com/nsqio/go-nsq"
)

// Delegate records how a consumer responded to an *nsq.Message.
type Delegate struct {
	mu        sync.Mutex
	Finished  int
	Requeued  int
	Touched   int
	LastDelay time.Duration
	Backoff   bool
}

func (d *Delegate) OnFinish(m *nsq.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Finished++
}

func (d *Delegate) OnRequeue(m *nsq.Message, delay time.Duration, backoff bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Requeued++
	d.LastDelay = delay
	d.Backoff = backoff
}

func (d *Delegate) OnTouch(m *nsq.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Touched++
}

func (d *Delegate) Touches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Touched
}

// NewMessage builds a message as the nsq consumer would hand it over on the
// given delivery attempt.
func NewMessage(body []byte, attempts uint16) (*nsq.Message, *Delegate) {
	var id nsq.MessageID
	copy(id[:], "0123456789abcdef")
	m := nsq.NewMessage(id, body)
	m.Attempts = attempts
	d := &Delegate{}
	m.Delegate = d
	return m, d
}
