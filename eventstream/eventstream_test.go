package eventstream_test

import (
	"context"
	"sync"
	"testing"

	"github.com/agentcore/agentcore/event"
	"github.com/agentcore/agentcore/eventstream"
	"github.com/agentcore/agentcore/filestore"
	"github.com/agentcore/agentcore/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStream(t *testing.T) *eventstream.EventStream {
	t.Helper()
	s, err := eventstream.Open(context.Background(), "sess-1", filestore.NewMemory(), telemetry.NoopLogger{})
	require.NoError(t, err)
	return s
}

func TestFirstEventGetsIDZero(t *testing.T) {
	s := newStream(t)
	id, err := s.Add(context.Background(), &event.MessageAction{Content: "hi"}, event.SourceUser)
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)
	assert.Equal(t, int64(0), s.GetLatestEventID())
}

func TestIDsAreContiguous(t *testing.T) {
	s := newStream(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		id, err := s.Add(ctx, &event.MessageAction{Content: "x"}, event.SourceUser)
		require.NoError(t, err)
		assert.Equal(t, int64(i), id)
	}
}

func TestSubscribersDeliveredInRegistrationOrder(t *testing.T) {
	s := newStream(t)
	ctx := context.Background()
	var order []string
	var mu sync.Mutex
	record := func(name string) eventstream.Subscriber {
		return eventstream.SubscriberFunc(func(_ context.Context, _ event.Event) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, s.Subscribe("a", record("a"), false))
	require.NoError(t, s.Subscribe("b", record("b"), false))

	_, err := s.Add(ctx, &event.MessageAction{Content: "hi"}, event.SourceUser)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, order)
}

func TestSubscribeDuplicateNameRejectedUnlessAppend(t *testing.T) {
	s := newStream(t)
	noop := eventstream.SubscriberFunc(func(context.Context, event.Event) error { return nil })
	require.NoError(t, s.Subscribe("parent", noop, false))

	err := s.Subscribe("parent", noop, false)
	assert.ErrorIs(t, err, eventstream.ErrSubscriberNameTaken)

	assert.NoError(t, s.Subscribe("parent", noop, true))
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	s := newStream(t)
	noop := eventstream.SubscriberFunc(func(context.Context, event.Event) error { return nil })
	require.NoError(t, s.Subscribe("a", noop, false))
	s.Unsubscribe("a")
	s.Unsubscribe("a")
	require.NoError(t, s.Subscribe("a", noop, false), "name must be free again after unsubscribe")
}

func TestSubscriberErrorIsSwallowedAndOthersStillRun(t *testing.T) {
	s := newStream(t)
	ctx := context.Background()
	var secondRan bool
	failing := eventstream.SubscriberFunc(func(context.Context, event.Event) error {
		return assertError
	})
	require.NoError(t, s.Subscribe("failing", failing, false))
	require.NoError(t, s.Subscribe("second", eventstream.SubscriberFunc(func(context.Context, event.Event) error {
		secondRan = true
		return nil
	}), false))

	_, err := s.Add(ctx, &event.MessageAction{Content: "hi"}, event.SourceUser)
	require.NoError(t, err, "a subscriber error must not surface from Add")
	assert.True(t, secondRan)
}

var assertError = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestReentrantAddIsQueuedNotReentered(t *testing.T) {
	s := newStream(t)
	ctx := context.Background()
	var seenOrder []int64
	var mu sync.Mutex
	appended := false

	require.NoError(t, s.Subscribe("reentrant", eventstream.SubscriberFunc(func(c context.Context, evt event.Event) error {
		mu.Lock()
		seenOrder = append(seenOrder, evt.ID)
		mu.Unlock()
		if !appended && evt.ID == 0 {
			appended = true
			_, err := s.Add(c, &event.MessageAction{Content: "second"}, event.SourceAgent)
			require.NoError(t, err)
		}
		return nil
	}), false))

	_, err := s.Add(ctx, &event.MessageAction{Content: "first"}, event.SourceUser)
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 1}, seenOrder)
}

func TestGetEventsFilterAndReverse(t *testing.T) {
	s := newStream(t)
	ctx := context.Background()
	_, _ = s.Add(ctx, &event.MessageAction{Content: "1"}, event.SourceUser)
	_, _ = s.Add(ctx, &event.CmdRunAction{Command: "ls"}, event.SourceAgent)
	_, _ = s.Add(ctx, &event.MessageAction{Content: "2"}, event.SourceUser)

	onlyMessages := s.GetEvents(0, -1, func(e event.Event) bool {
		_, ok := e.Action.(*event.MessageAction)
		return ok
	}, false)
	require.Len(t, onlyMessages, 2)
	assert.Equal(t, int64(0), onlyMessages[0].ID)
	assert.Equal(t, int64(2), onlyMessages[1].ID)

	reversed := s.GetEvents(0, -1, nil, true)
	require.Len(t, reversed, 3)
	assert.Equal(t, int64(2), reversed[0].ID)
}

func TestOpenExistingSessionContinuesIDSequence(t *testing.T) {
	ctx := context.Background()
	store := filestore.NewMemory()
	s1, err := eventstream.Open(ctx, "sess-2", store, telemetry.NoopLogger{})
	require.NoError(t, err)
	_, err = s1.Add(ctx, &event.MessageAction{Content: "hi"}, event.SourceUser)
	require.NoError(t, err)
	_, err = s1.Add(ctx, &event.MessageAction{Content: "again"}, event.SourceUser)
	require.NoError(t, err)

	s2, err := eventstream.Open(ctx, "sess-2", store, telemetry.NoopLogger{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), s2.GetLatestEventID())

	id, err := s2.Add(ctx, &event.MessageAction{Content: "third"}, event.SourceUser)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
}
