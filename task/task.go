// Package task provides cooperative cancellation and weighted progress
// reporting for long running computations.
package task

import (
	"context"
)

// Task carries the cancellation signal and progress state of one computation.
// A nil *Task is valid: it is never canceled and reports no progress.
type Task struct {
	ctx        context.Context
	onProgress func(fraction float64)
	value      int
	maximum    int
	lastReport int
	frames     []frame
}

// frame stores the enclosing progress range while sub-steps run.
type frame struct {
	weights []int
	step    int
	value   int
	maximum int
}

// Option configures a Task.
type Option func(*Task)

// WithProgress registers fn to receive the overall completed fraction
// in [0,1] whenever the progress value changes.
func WithProgress(fn func(fraction float64)) Option {
	return func(t *Task) { t.onProgress = fn }
}

// New returns a task bound to ctx.
func New(ctx context.Context, opts ...Option) *Task {
	t := &Task{ctx: ctx}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Context returns the context the task is bound to.
func (t *Task) Context() context.Context {
	if t == nil {
		return context.Background()
	}
	return t.ctx
}

// Canceled reports whether the task's context is done.
func (t *Task) Canceled() bool {
	return t != nil && t.ctx.Err() != nil
}

// Err returns the context error, if any.
func (t *Task) Err() error {
	if t == nil {
		return nil
	}
	return t.ctx.Err()
}

// SetMaximum sets the progress range of the current step and resets the value.
func (t *Task) SetMaximum(maximum int) {
	if t == nil {
		return
	}
	t.maximum = maximum
	t.value = 0
	t.lastReport = 0
	t.report()
}

// Maximum returns the progress range of the current step.
func (t *Task) Maximum() int {
	if t == nil {
		return 0
	}
	return t.maximum
}

// Value returns the progress value of the current step.
func (t *Task) Value() int {
	if t == nil {
		return 0
	}
	return t.value
}

// SetValue updates the progress value and returns false if the task was canceled.
func (t *Task) SetValue(value int) bool {
	if t == nil {
		return true
	}
	t.value = value
	t.lastReport = value
	t.report()
	return !t.Canceled()
}

// SetValueIntermittent is like SetValue but only reports progress every
// updateEvery units. Cancellation is checked on every call.
func (t *Task) SetValueIntermittent(value, updateEvery int) bool {
	if t == nil {
		return true
	}
	if value-t.lastReport >= updateEvery || value < t.lastReport {
		return t.SetValue(value)
	}
	t.value = value
	return !t.Canceled()
}

// Increment advances the progress value by n and returns false if the task was canceled.
func (t *Task) Increment(n int) bool {
	if t == nil {
		return true
	}
	return t.SetValue(t.value + n)
}

// BeginSubSteps splits the current step into weighted sub-steps and enters the first one.
func (t *Task) BeginSubSteps(weights ...int) {
	if t == nil {
		return
	}
	if len(weights) == 0 {
		panic("bug: sub-steps need at least one weight")
	}
	t.frames = append(t.frames, frame{weights: weights, value: t.value, maximum: t.maximum})
	t.value, t.maximum, t.lastReport = 0, 0, 0
	t.report()
}

// NextSubStep finishes the current sub-step and enters the next one.
func (t *Task) NextSubStep() {
	if t == nil {
		return
	}
	if len(t.frames) == 0 {
		panic("bug: not inside sub-steps")
	}
	f := &t.frames[len(t.frames)-1]
	if f.step+1 >= len(f.weights) {
		panic("bug: no sub-steps left")
	}
	f.step++
	t.value, t.maximum, t.lastReport = 0, 0, 0
	t.report()
}

// EndSubSteps leaves the innermost sub-step sequence and restores the enclosing progress range.
func (t *Task) EndSubSteps() {
	if t == nil {
		return
	}
	if len(t.frames) == 0 {
		panic("bug: not inside sub-steps")
	}
	f := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	t.value, t.maximum, t.lastReport = f.value, f.maximum, f.value
	t.report()
}

// Fraction returns the overall completed fraction taking sub-step weights into account.
func (t *Task) Fraction() float64 {
	if t == nil {
		return 0
	}
	var frac float64
	if t.maximum > 0 {
		frac = float64(t.value) / float64(t.maximum)
		if frac > 1 {
			frac = 1
		}
	}
	for i := len(t.frames) - 1; i >= 0; i-- {
		f := t.frames[i]
		total, done := 0, 0
		for j, w := range f.weights {
			total += w
			if j < f.step {
				done += w
			}
		}
		if total == 0 {
			frac = 0
			continue
		}
		frac = (float64(done) + float64(f.weights[f.step])*frac) / float64(total)
	}
	return frac
}

func (t *Task) report() {
	if t.onProgress != nil {
		t.onProgress(t.Fraction())
	}
}
