package notify

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/xdr-console/internal/infra"
	"go.uber.org/zap"
)

func TestQueue_SequentialIDsAndOrder(t *testing.T) {
	q := NewQueue(nil, zap.NewNop())

	a := q.Add("first", TypeInfo, 0)
	b := q.Add("second", TypeWarning, 0)
	c := q.Error("third")

	assert.Equal(t, uint64(1), a)
	assert.Equal(t, uint64(2), b)
	assert.Equal(t, uint64(3), c)

	toasts := q.Toasts()
	require.Len(t, toasts, 3)
	assert.Equal(t, "first", toasts[0].Message)
	assert.Equal(t, TypeWarning, toasts[1].Type)
	assert.Equal(t, TypeError, toasts[2].Type)
}

func TestQueue_AutoRemoveAfterDuration(t *testing.T) {
	q := NewQueue(nil, zap.NewNop())

	id := q.Add("saved", TypeSuccess, 50*time.Millisecond)
	keep := q.Add("sticky", TypeInfo, 0)
	assert.Equal(t, 2, q.Len())

	assert.Eventually(t, func() bool { return q.Len() == 1 }, time.Second, 10*time.Millisecond)
	toasts := q.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, keep, toasts[0].ID)
	assert.NotEqual(t, id, toasts[0].ID)
}

func TestQueue_RemoveIsIdempotent(t *testing.T) {
	q := NewQueue(nil, zap.NewNop())

	id := q.Add("gone early", TypeSuccess, 30*time.Millisecond)
	other := q.Add("stays", TypeInfo, 0)

	q.Remove(id)
	q.Remove(id)
	assert.Equal(t, 1, q.Len())

	// поздний таймер не трогает чужие уведомления
	time.Sleep(80 * time.Millisecond)
	toasts := q.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, other, toasts[0].ID)
}

func TestQueue_ClearAllKeepsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := infra.NewMetrics(reg)
	q := NewQueue(metrics, zap.NewNop())

	q.Add("a", TypeInfo, 20*time.Millisecond)
	q.Add("b", TypeInfo, 0)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ToastsActive))

	q.ClearAll()
	assert.Empty(t, q.Toasts())
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ToastsActive))

	id := q.Add("c", TypeInfo, 0)
	assert.Equal(t, uint64(3), id)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_SnapshotIsACopy(t *testing.T) {
	q := NewQueue(nil, zap.NewNop())
	q.Add("a", TypeInfo, 0)

	snap := q.Toasts()
	snap[0].Message = "mutated"
	assert.Equal(t, "a", q.Toasts()[0].Message)
}

func TestQueue_DefaultDurations(t *testing.T) {
	q := NewQueue(nil, zap.NewNop())

	scheduled := map[uint64]time.Duration{}
	fire := map[uint64]func(){}
	var last uint64
	q.afterFunc = func(d time.Duration, f func()) {
		last++
		scheduled[last] = d
		fire[last] = f
	}

	ok := q.Success("saved")
	bad := q.Error("failed")
	warn := q.Warning("careful")
	info := q.Info("fyi")

	assert.Equal(t, DefaultDuration, scheduled[ok])
	assert.Equal(t, 7*time.Second, scheduled[bad])
	assert.Equal(t, 5*time.Second, scheduled[warn])
	assert.Equal(t, 5*time.Second, scheduled[info])
	assert.Equal(t, 4, q.Len())

	// срабатывание таймера снимает ровно свое уведомление
	fire[ok]()
	toasts := q.Toasts()
	require.Len(t, toasts, 3)
	assert.Equal(t, bad, toasts[0].ID)

	fire[bad]()
	assert.Equal(t, 2, q.Len())
}

func TestQueue_ZeroDurationNotScheduled(t *testing.T) {
	q := NewQueue(nil, zap.NewNop())
	calls := 0
	q.afterFunc = func(time.Duration, func()) { calls++ }

	q.Add("sticky", TypeWarning, 0)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, q.Len())
}
