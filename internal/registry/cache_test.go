package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Capeo/SupplAI/internal/metrics"
)

// countingLookup records how often the register is consulted.
type countingLookup struct {
	approved map[string]bool
	err      error
	calls    int
}

func (c *countingLookup) Lookup(_ context.Context, companyName string) (bool, error) {
	c.calls++
	if c.err != nil {
		return false, c.err
	}
	return c.approved[NormalizeCompanyName(companyName)], nil
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestNewCachingLookup_Defaults(t *testing.T) {
	c := NewCachingLookup(nil, 0, &countingLookup{}, "", nil)
	assert.Equal(t, 6*time.Hour, c.ttl)
	assert.Equal(t, "staffing-approval", c.namespace)

	c = NewCachingLookup(nil, time.Minute, &countingLookup{}, "custom", nil)
	assert.Equal(t, time.Minute, c.ttl)
	assert.Equal(t, "custom", c.namespace)
}

func TestCachingLookup_NilClientBypassesCache(t *testing.T) {
	inner := &countingLookup{approved: map[string]bool{"qwert as": true}}
	c := NewCachingLookup(nil, time.Hour, inner, "", nil)

	for i := 0; i < 2; i++ {
		ok, err := c.Lookup(context.Background(), "Qwert AS")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 2, inner.calls)
}

func TestCachingLookup_MissThenHit(t *testing.T) {
	mr, rdb := newMiniredis(t)
	inner := &countingLookup{approved: map[string]bool{"qwert as": true}}
	c := NewCachingLookup(rdb, time.Hour, inner, "", nil)
	ctx := context.Background()

	hits := testutil.ToFloat64(metrics.StatusLookupCache.WithLabelValues("hit"))

	ok, err := c.Lookup(ctx, "Qwert AS")
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := mr.Get("staffing-approval:qwert as")
	require.NoError(t, err)
	assert.Equal(t, "1", stored)
	assert.Equal(t, time.Hour, mr.TTL("staffing-approval:qwert as"))

	// Same company, different spelling: served from cache.
	ok, err = c.Lookup(ctx, "  QWERT   as")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, hits+1, testutil.ToFloat64(metrics.StatusLookupCache.WithLabelValues("hit")))
}

func TestCachingLookup_CachesNegativeAnswers(t *testing.T) {
	mr, rdb := newMiniredis(t)
	inner := &countingLookup{}
	c := NewCachingLookup(rdb, time.Hour, inner, "", nil)

	for i := 0; i < 2; i++ {
		ok, err := c.Lookup(context.Background(), "Asdf AS")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 1, inner.calls)

	stored, err := mr.Get("staffing-approval:asdf as")
	require.NoError(t, err)
	assert.Equal(t, "0", stored)
}

func TestCachingLookup_ErrorsAreNotCached(t *testing.T) {
	mr, rdb := newMiniredis(t)
	inner := &countingLookup{err: &LookupError{Company: "Qwert AS", Err: errors.New("register offline")}}
	c := NewCachingLookup(rdb, time.Hour, inner, "", nil)

	_, err := c.Lookup(context.Background(), "Qwert AS")
	var lookupErr *LookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.False(t, mr.Exists("staffing-approval:qwert as"))
}

func TestCachingLookup_CorruptEntryIsReplaced(t *testing.T) {
	mr, rdb := newMiniredis(t)
	require.NoError(t, mr.Set("staffing-approval:qwert as", "garbage"))

	inner := &countingLookup{approved: map[string]bool{"qwert as": true}}
	c := NewCachingLookup(rdb, time.Hour, inner, "", nil)

	ok, err := c.Lookup(context.Background(), "Qwert AS")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, inner.calls)

	stored, err := mr.Get("staffing-approval:qwert as")
	require.NoError(t, err)
	assert.Equal(t, "1", stored)
}

func TestCachingLookup_RedisReadErrorFallsBack(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	inner := &countingLookup{approved: map[string]bool{"qwert as": true}}
	c := NewCachingLookup(rdb, time.Hour, inner, "", nil)

	mock.ExpectGet("staffing-approval:qwert as").SetErr(errors.New("i/o timeout"))
	mock.ExpectSet("staffing-approval:qwert as", "1", time.Hour).SetVal("OK")

	ok, err := c.Lookup(context.Background(), "Qwert AS")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, inner.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingLookup_SimilarNamesDoNotShareEntries(t *testing.T) {
	mr, rdb := newMiniredis(t)
	inner := &countingLookup{approved: map[string]bool{"a b": true}}
	c := NewCachingLookup(rdb, time.Hour, inner, "", nil)
	ctx := context.Background()

	ok, err := c.Lookup(ctx, "A B")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, name := range []string{"a_b", "a:b"} {
		ok, err = c.Lookup(ctx, name)
		require.NoError(t, err)
		assert.False(t, ok, name)
	}
	assert.Equal(t, 3, inner.calls)

	assert.NotEqual(t, c.cacheKey("a b"), c.cacheKey("a_b"))
	assert.True(t, mr.Exists("staffing-approval:a b"))
	assert.True(t, mr.Exists("staffing-approval:a_b"))
	assert.True(t, mr.Exists("staffing-approval:a:b"))
}

func TestCachingLookup_Invalidate(t *testing.T) {
	mr, rdb := newMiniredis(t)
	require.NoError(t, mr.Set("staffing-approval:qwert as", "1"))
	require.NoError(t, mr.Set("staffing-approval:asdf as", "0"))
	require.NoError(t, mr.Set("other:key", "x"))

	c := NewCachingLookup(rdb, time.Hour, &countingLookup{}, "", nil)
	require.NoError(t, c.Invalidate(context.Background()))

	assert.False(t, mr.Exists("staffing-approval:qwert as"))
	assert.False(t, mr.Exists("staffing-approval:asdf as"))
	assert.True(t, mr.Exists("other:key"))
}
