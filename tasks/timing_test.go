package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeModeReader struct{ mode string }

func (f *fakeModeReader) Current() string { return f.mode }

func TestTimingReadsCurrentMode(t *testing.T) {
	sm := &fakeModeReader{mode: "NOMINAL"}
	tk := NewTiming(sm, nil, nil)

	tk.Run(context.Background())
	assert.Equal(t, "TIMING", tk.Name())
	assert.Equal(t, IDTiming, tk.ID())
}
