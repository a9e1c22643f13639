package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilTask(t *testing.T) {
	var tk *Task
	assert.False(t, tk.Canceled())
	assert.True(t, tk.SetValue(3))
	assert.True(t, tk.Increment(1))
	assert.NoError(t, tk.Err())
	tk.BeginSubSteps(1, 2)
	tk.NextSubStep()
	tk.EndSubSteps()
	assert.Zero(t, tk.Fraction())
}

func TestCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tk := New(ctx)
	tk.SetMaximum(10)
	assert.True(t, tk.Increment(1))
	cancel()
	assert.True(t, tk.Canceled())
	assert.False(t, tk.Increment(1))
	assert.False(t, tk.SetValueIntermittent(5, 100))
	assert.ErrorIs(t, tk.Err(), context.Canceled)
}

func TestSubStepFraction(t *testing.T) {
	var last float64
	tk := New(context.Background(), WithProgress(func(f float64) { last = f }))
	tk.BeginSubSteps(1, 3)
	tk.SetMaximum(4)
	tk.SetValue(2)
	assert.InDelta(t, 0.125, last, 1e-12)
	tk.NextSubStep()
	assert.InDelta(t, 0.25, last, 1e-12)
	tk.SetMaximum(2)
	tk.SetValue(1)
	assert.InDelta(t, 0.625, last, 1e-12)

	tk.BeginSubSteps(1, 1)
	tk.NextSubStep()
	assert.InDelta(t, 0.625, tk.Fraction(), 1e-12)
	tk.EndSubSteps()
	assert.Equal(t, 1, tk.Value())
	tk.EndSubSteps()
	assert.Panics(t, func() { tk.NextSubStep() })
}

func TestSetValueIntermittent(t *testing.T) {
	reports := 0
	tk := New(context.Background(), WithProgress(func(float64) { reports++ }))
	tk.SetMaximum(100)
	reports = 0
	for i := 1; i <= 100; i++ {
		tk.SetValueIntermittent(i, 10)
	}
	assert.Equal(t, 10, reports)
	assert.Equal(t, 100, tk.Value())
}
