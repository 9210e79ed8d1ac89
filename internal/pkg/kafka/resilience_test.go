package kafka

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() *Policy {
	return &Policy{
		MaxRetries:       2,
		BaseBackoff:      time.Millisecond,
		FailureThreshold: 2,
		OpenTimeout:      20 * time.Millisecond,
	}
}

func TestPolicy_RetriesUntilSuccess(t *testing.T) {
	p := fastPolicy()

	calls := 0
	err := p.Execute(func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_ExhaustedRetriesReturnLastError(t *testing.T) {
	p := fastPolicy()
	boom := errors.New("boom")

	calls := 0
	err := p.Execute(func() error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, p.MaxRetries+1, calls)
}

func TestPolicy_OpensAfterThresholdAndRejects(t *testing.T) {
	p := fastPolicy()
	boom := errors.New("boom")
	fail := func() error { return boom }

	// 连续两次最终失败触发熔断
	assert.ErrorIs(t, p.Execute(fail), boom)
	assert.ErrorIs(t, p.Execute(fail), boom)

	// 打开期间直接拒绝，不触碰下游
	calls := 0
	err := p.Execute(func() error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 0, calls)
}

func TestPolicy_HalfOpenProbeRecovers(t *testing.T) {
	p := fastPolicy()
	fail := func() error { return errors.New("boom") }

	require.Error(t, p.Execute(fail))
	require.Error(t, p.Execute(fail))
	require.ErrorIs(t, p.Execute(fail), ErrCircuitOpen)

	// 冷却到期后放行一次探测，成功即恢复
	time.Sleep(p.OpenTimeout + 5*time.Millisecond)
	require.NoError(t, p.Execute(func() error { return nil }))

	// 恢复后正常放行
	assert.NoError(t, p.Execute(func() error { return nil }))
}

func TestPolicy_HalfOpenProbeFailureReopens(t *testing.T) {
	p := fastPolicy()
	boom := errors.New("boom")
	fail := func() error { return boom }

	require.Error(t, p.Execute(fail))
	require.Error(t, p.Execute(fail))

	time.Sleep(p.OpenTimeout + 5*time.Millisecond)

	// 探测仍失败，立刻回到打开状态
	assert.ErrorIs(t, p.Execute(fail), boom)
	assert.ErrorIs(t, p.Execute(func() error { return nil }), ErrCircuitOpen)
}
