// Package progress records the forward-only processing state of one task so
// external dashboards can follow it.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"
)

var (
	ErrNotFound           = errors.New("progress record not found")
	ErrBackwardTransition = errors.New("progress cannot move backwards")
)

const DefaultTTL = time.Hour

type Step string

const (
	StepInitializing Step = "initializing"
	StepConverting   Step = "converting"
	StepSegmenting   Step = "segmenting"
	StepAnalyzing    Step = "analyzing"
	StepUploading    Step = "uploading"
	StepCompleted    Step = "completed"
	StepFailed       Step = "failed"
)

var stepRank = map[Step]int{
	StepInitializing: 0,
	StepConverting:   1,
	StepSegmenting:   2,
	StepAnalyzing:    3,
	StepUploading:    4,
	StepCompleted:    5,
}

var stepPercent = map[Step]int{
	StepInitializing: 5,
	StepConverting:   20,
	StepSegmenting:   50,
	StepAnalyzing:    80,
	StepUploading:    95,
	StepCompleted:    100,
	StepFailed:       0,
}

func (s Step) Percent() int { return stepPercent[s] }

func (s Step) Terminal() bool { return s == StepCompleted || s == StepFailed }

type StepEntry struct {
	Step            Step           `json:"step"`
	Message         string         `json:"message"`
	StartedAt       time.Time      `json:"started_at"`
	EndedAt         *time.Time     `json:"ended_at,omitempty"`
	DurationSeconds *float64       `json:"duration_seconds,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
}

type ErrorEntry struct {
	Step    Step      `json:"step"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Record struct {
	TaskID            string       `json:"task_id"`
	CurrentStep       Step         `json:"current_step"`
	OverallProgress   int          `json:"overall_progress"`
	TotalPages        int          `json:"total_pages"`
	ProcessedPages    int          `json:"processed_pages"`
	TotalArticles     int          `json:"total_articles"`
	ProcessedArticles int          `json:"processed_articles"`
	StartTime         time.Time    `json:"start_time"`
	Steps             []StepEntry  `json:"steps"`
	Errors            []ErrorEntry `json:"errors"`
}

type Store interface {
	Save(ctx context.Context, rec Record, ttl time.Duration) error
	Load(ctx context.Context, taskID string) (*Record, error)
}

// Tracker owns the record of one task. Every mutation is written through to
// the store; store failures are logged and otherwise ignored.
type Tracker struct {
	mu    sync.Mutex
	store Store
	ttl   time.Duration
	now   func() time.Time
	rec   Record
	began bool
	seq   uint64

	// saveMu orders writes to the store; t.mu is never held while saving.
	saveMu sync.Mutex
	saved  uint64
}

// pending is a record copy waiting to be written, tagged with the
// mutation sequence that produced it.
type pending struct {
	rec Record
	seq uint64
}

type Option func(*Tracker)

func WithTTL(ttl time.Duration) Option {
	return func(t *Tracker) { t.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(store Store, taskID string, opts ...Option) *Tracker {
	t := &Tracker{store: store, ttl: DefaultTTL, now: time.Now}
	for _, o := range opts {
		o(t)
	}
	t.rec = Record{
		TaskID:      taskID,
		CurrentStep: StepInitializing,
		StartTime:   t.now(),
		Steps:       []StepEntry{},
		Errors:      []ErrorEntry{},
	}
	return t
}

// Start moves the task to step, closing the open step entry. Moving to an
// earlier step, or out of completed or failed, returns ErrBackwardTransition.
func (t *Tracker) Start(ctx context.Context, step Step, message string, details map[string]any) error {
	t.mu.Lock()
	if err := t.transition(step); err != nil {
		t.mu.Unlock()
		return err
	}
	now := t.now()
	t.closeOpen(now, "")
	t.rec.CurrentStep = step
	t.rec.OverallProgress = step.Percent()
	t.rec.Steps = append(t.rec.Steps, StepEntry{
		Step:      step,
		Message:   message,
		StartedAt: now,
		Details:   maps.Clone(details),
	})
	t.began = true
	p := t.stage()
	t.mu.Unlock()

	t.persist(ctx, p)
	slog.InfoContext(ctx, "progress step started", "step", step, "message", message)
	return nil
}

func (t *Tracker) transition(to Step) error {
	from := t.rec.CurrentStep
	if t.began && from.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, from, to)
	}
	if to == StepFailed {
		return nil
	}
	rank, ok := stepRank[to]
	if !ok {
		return fmt.Errorf("unknown progress step %q", to)
	}
	if rank < stepRank[from] {
		return fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, from, to)
	}
	return nil
}

func (t *Tracker) closeOpen(now time.Time, message string) {
	if len(t.rec.Steps) == 0 {
		return
	}
	last := &t.rec.Steps[len(t.rec.Steps)-1]
	if last.EndedAt != nil {
		return
	}
	ended := now
	d := now.Sub(last.StartedAt).Seconds()
	last.EndedAt, last.DurationSeconds = &ended, &d
	if message != "" {
		last.Message = message
	}
}

// CompleteStep closes the current step entry without changing step.
func (t *Tracker) CompleteStep(ctx context.Context, message string) {
	t.mu.Lock()
	t.closeOpen(t.now(), message)
	p := t.stage()
	t.mu.Unlock()

	t.persist(ctx, p)
}

func (t *Tracker) SetPages(ctx context.Context, total int) {
	t.update(ctx, func(r *Record) { r.TotalPages = total })
}

func (t *Tracker) PageProcessed(ctx context.Context) {
	t.update(ctx, func(r *Record) { r.ProcessedPages++ })
}

func (t *Tracker) SetArticles(ctx context.Context, total int) {
	t.update(ctx, func(r *Record) { r.TotalArticles = total })
}

func (t *Tracker) ArticleProcessed(ctx context.Context) {
	t.update(ctx, func(r *Record) { r.ProcessedArticles++ })
}

// AddError appends to the error log. An empty step records the current one.
func (t *Tracker) AddError(ctx context.Context, step Step, message string) {
	t.mu.Lock()
	if step == "" {
		step = t.rec.CurrentStep
	}
	t.rec.Errors = append(t.rec.Errors, ErrorEntry{Step: step, Message: message, At: t.now()})
	p := t.stage()
	t.mu.Unlock()

	t.persist(ctx, p)
	slog.WarnContext(ctx, "progress error recorded", "step", step, "message", message)
}

func (t *Tracker) Complete(ctx context.Context) error {
	if err := t.Start(ctx, StepCompleted, "processing completed", nil); err != nil {
		return err
	}
	t.CompleteStep(ctx, "")
	return nil
}

func (t *Tracker) Fail(ctx context.Context, cause error) error {
	msg := "processing failed"
	if cause != nil {
		msg = cause.Error()
	}
	t.AddError(ctx, "", msg)
	if err := t.Start(ctx, StepFailed, msg, nil); err != nil {
		return err
	}
	t.CompleteStep(ctx, "")
	return nil
}

// Snapshot returns a copy of the current record.
func (t *Tracker) Snapshot() Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rec.clone()
}

func (t *Tracker) update(ctx context.Context, fn func(*Record)) {
	t.mu.Lock()
	fn(&t.rec)
	p := t.stage()
	t.mu.Unlock()

	t.persist(ctx, p)
}

// stage copies the record for persist. Callers hold t.mu.
func (t *Tracker) stage() pending {
	t.seq++
	if t.store == nil {
		return pending{seq: t.seq}
	}
	return pending{rec: t.rec.clone(), seq: t.seq}
}

// persist writes p unless a later mutation has already been written.
func (t *Tracker) persist(ctx context.Context, p pending) {
	if t.store == nil {
		return
	}
	t.saveMu.Lock()
	defer t.saveMu.Unlock()
	if p.seq <= t.saved {
		return
	}
	t.saved = p.seq
	if err := t.store.Save(ctx, p.rec, t.ttl); err != nil {
		slog.WarnContext(ctx, "failed to persist progress", "task_id", p.rec.TaskID, "error", err)
	}
}

func (r Record) clone() Record {
	c := r
	c.Steps = make([]StepEntry, len(r.Steps))
	for i, s := range r.Steps {
		s.Details = maps.Clone(s.Details)
		c.Steps[i] = s
	}
	c.Errors = append([]ErrorEntry{}, r.Errors...)
	return c
}
