package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/internal/domain/entity"
	"github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
)

// fakeRedis keeps string keys in memory. Only the commands RedisCache issues are implemented.
type fakeRedis struct {
	redis.Cmdable
	values  map[string]string
	ttls    map[string]time.Duration
	execErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	pipe := &fakePipe{pending: map[string]string{}, ttls: map[string]time.Duration{}}
	if err := fn(pipe); err != nil {
		return nil, err
	}
	if f.execErr != nil {
		return nil, f.execErr
	}
	for k, v := range pipe.pending {
		f.values[k] = v
		f.ttls[k] = pipe.ttls[k]
	}
	return nil, nil
}

type fakePipe struct {
	redis.Pipeliner
	pending map[string]string
	ttls    map[string]time.Duration
}

func (p *fakePipe) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		p.pending[key] = string(v)
	case string:
		p.pending[key] = v
	}
	p.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func sampleDocument(t *testing.T, runID string) *Document {
	snap := sampleSnapshot()
	return NewDocument(sampleMeta(t, runID, snap, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)), snap)
}

func TestRedisCache_PublishThenCurrent(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	cache := NewRedisCache(fake, "eco:snap", time.Hour)

	require.NoError(t, cache.Publish(ctx, sampleDocument(t, "run-1")))
	require.NoError(t, cache.Publish(ctx, sampleDocument(t, "run-2")))

	assert.Equal(t, "run-2", fake.values["eco:snap:current"])
	assert.Equal(t, time.Hour, fake.ttls["eco:snap:run:run-2"])
	assert.Equal(t, time.Duration(0), fake.ttls["eco:snap:current"])
	assert.Contains(t, fake.values, "eco:snap:run:run-1")

	doc, err := cache.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", doc.RunID)
	assert.Len(t, doc.Hotspots, 3)
	assert.Len(t, doc.Suggested, 2)
}

func TestRedisCache_FailedExecLeavesCurrentUntouched(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	cache := NewRedisCache(fake, "eco:snap", 0)
	require.NoError(t, cache.Publish(ctx, sampleDocument(t, "run-1")))

	fake.execErr = errors.New("EXECABORT")
	err := cache.Publish(ctx, sampleDocument(t, "run-2"))
	assert.ErrorContains(t, err, "EXECABORT")
	assert.Equal(t, "run-1", fake.values["eco:snap:current"])
}

func TestRedisCache_CurrentWithoutSnapshot(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	cache := NewRedisCache(fake, "eco:snap", 0)

	_, err := cache.Current(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	fake.values["eco:snap:current"] = "gone"
	_, err = cache.Current(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

type recordedMessage struct {
	subject string
	data    []byte
}

type fakeConn struct {
	messages   []recordedMessage
	publishErr error
	closed     bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.messages = append(c.messages, recordedMessage{subject: subject, data: data})
	return nil
}

func (c *fakeConn) FlushTimeout(time.Duration) error { return nil }

func (c *fakeConn) Close() { c.closed = true }

func testNATSConfig() appconfig.NATSConfig {
	return appconfig.Default().Publish.NATS
}

func TestNATSNotifier_PublishSendsCounts(t *testing.T) {
	conn := &fakeConn{}
	dials := 0
	n := newNATSNotifier(testNATSConfig(), func() (natsConn, error) {
		dials++
		return conn, nil
	})

	doc := sampleDocument(t, "run-1")
	require.NoError(t, n.Publish(context.Background(), doc))
	require.NoError(t, n.Publish(context.Background(), doc))
	assert.Equal(t, 1, dials)
	require.Len(t, conn.messages, 2)
	assert.Equal(t, "ecoroute.snapshot.published", conn.messages[0].subject)

	var event PublishedEvent
	require.NoError(t, json.Unmarshal(conn.messages[0].data, &event))
	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, 3, event.Bins)
	assert.Equal(t, map[string]int{"charles-river": 2, "fenway": 1}, event.Suggested)

	n.Close()
	assert.True(t, conn.closed)
}

func TestNATSNotifier_DialFailure(t *testing.T) {
	n := newNATSNotifier(testNATSConfig(), func() (natsConn, error) {
		return nil, errors.New("connection refused")
	})
	err := n.Publish(context.Background(), sampleDocument(t, "run-1"))
	assert.ErrorContains(t, err, "connection refused")
	n.Close()
}

func TestNATSNotifier_NotifyJobCompletion(t *testing.T) {
	conn := &fakeConn{}
	n := newNATSNotifier(testNATSConfig(), func() (natsConn, error) { return conn, nil })

	end := time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	je := &model.JobExecution{
		ID:         "exec-7",
		JobName:    "hotspotSnapshotJob",
		StartTime:  end.Add(-time.Minute),
		EndTime:    &end,
		Status:     model.BatchStatusFailed,
		ExitStatus: model.ExitStatusFailed,
	}
	require.NoError(t, n.NotifyJobCompletion(context.Background(), je))
	require.Len(t, conn.messages, 1)
	assert.Equal(t, "ecoroute.job.finished", conn.messages[0].subject)

	var event JobFinishedEvent
	require.NoError(t, json.Unmarshal(conn.messages[0].data, &event))
	assert.Equal(t, "exec-7", event.JobExecutionID)
	assert.Equal(t, "FAILED", event.Status)
	assert.True(t, event.FinishedAt.Equal(end))

	cfg := testNATSConfig()
	cfg.JobSubject = ""
	silent := newNATSNotifier(cfg, func() (natsConn, error) { return conn, nil })
	require.NoError(t, silent.NotifyJobCompletion(context.Background(), je))
	assert.Len(t, conn.messages, 1)
}

type stubPublisher struct {
	name  string
	err   error
	calls int
}

func (s *stubPublisher) Name() string { return s.name }

func (s *stubPublisher) Publish(context.Context, *Document) error {
	s.calls++
	return s.err
}

func TestPublishAll_RunsEveryPublisher(t *testing.T) {
	first := &stubPublisher{name: "redis", err: errors.New("down")}
	second := &stubPublisher{name: "nats"}

	err := PublishAll(context.Background(), []Publisher{first, second}, sampleDocument(t, "run-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: down")
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)

	assert.NoError(t, PublishAll(context.Background(), nil, sampleDocument(t, "run-1")))
}

func TestNewDocument_CopiesMeta(t *testing.T) {
	snap := sampleSnapshot()
	doc := NewDocument(entity.SnapshotMeta{RunID: "r", JobExecutionID: "j"}, snap)
	assert.Equal(t, "r", doc.RunID)
	assert.Equal(t, "j", doc.JobExecutionID)
	assert.Equal(t, snap.Summary, doc.Summary)
}
