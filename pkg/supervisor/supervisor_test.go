package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagehq/provisiond/pkg/status"
)

func TestRunStartup_OrderAndFailure(t *testing.T) {
	var order []string
	steps := []Step{
		{Name: "a", Run: func(ctx context.Context) error { order = append(order, "a"); return nil }},
		{Name: "b", Run: func(ctx context.Context) error { order = append(order, "b"); return errors.New("boom") }},
		{Name: "c", Run: func(ctx context.Context) error { order = append(order, "c"); return nil }},
	}

	err := RunStartup(steps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
	assert.Equal(t, []string{"a", "b"}, order, "step c must not run after b fails")
}

type fixedStatusSource struct{ s status.Status }

func (f fixedStatusSource) Current() status.Status { return f.s }

func TestWaitForQuiescence_ReturnsImmediatelyWhenNotConnecting(t *testing.T) {
	src := fixedStatusSource{s: status.Idle()}
	start := time.Now()
	ok := WaitForQuiescence(src, time.Second)
	assert.True(t, ok)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestWaitForQuiescence_TimesOutWhileConnecting(t *testing.T) {
	src := fixedStatusSource{s: status.Connecting("HomeNet", 1)}
	ok := WaitForQuiescence(src, 150*time.Millisecond)
	assert.False(t, ok)
}
