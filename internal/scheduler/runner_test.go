package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_ReplacesSameID(t *testing.T) {
	r := New(context.Background())
	calls := map[string]int{}

	require.NoError(t, r.Register("price_updater", "@every 5m", func(context.Context) { calls["first"]++ }))
	require.NoError(t, r.Register("price_updater", "@every 5m", func(context.Context) { calls["second"]++ }))
	require.NoError(t, r.Register("other", "@every 1h", func(context.Context) {}))

	assert.Equal(t, 2, r.Len())
	assert.True(t, r.Trigger("price_updater"))
	assert.Equal(t, 0, calls["first"])
	assert.Equal(t, 1, calls["second"])
}

func TestRegister_InvalidSpec(t *testing.T) {
	r := New(context.Background())
	err := r.Register("bad", "every tuesday", func(context.Context) {})
	assert.Error(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestTrigger_RecoversPanic(t *testing.T) {
	r := New(context.Background())
	require.NoError(t, r.Register("boom", "@every 5m", func(context.Context) { panic("storage gone") }))
	assert.NotPanics(t, func() { r.Trigger("boom") })
	assert.False(t, r.Trigger("missing"))
}

func TestTrigger_PassesBaseContext(t *testing.T) {
	type ctxKey struct{}
	base := context.WithValue(context.Background(), ctxKey{}, "base")
	r := New(base)
	var got interface{}
	require.NoError(t, r.Register("ctx", "@every 5m", func(ctx context.Context) { got = ctx.Value(ctxKey{}) }))
	r.Trigger("ctx")
	assert.Equal(t, "base", got)
}

func TestStartStop(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register("noop", "@every 5m", func(context.Context) {}))
	r.Start()
	r.Stop()
}
