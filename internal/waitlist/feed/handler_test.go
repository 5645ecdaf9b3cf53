package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"gatehouse/internal/platform/kafka/consumer"
	"gatehouse/internal/waitlist"
	"gatehouse/internal/waitlist/metrics"
)

type failingDeduper struct{}

func (failingDeduper) MarkSeen(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func (failingDeduper) Forget(context.Context, string) error {
	return errors.New("redis: connection refused")
}

// flakySink fails MemberJoined while broken is set and otherwise delegates.
type flakySink struct {
	Sink
	broken bool
}

func (f *flakySink) MemberJoined(ctx context.Context, m waitlist.MemberStatus) error {
	if f.broken {
		return waitlist.ErrRegistryUnavailable
	}
	return f.Sink.MemberJoined(ctx, m)
}

type HandlerSuite struct {
	suite.Suite
	ctx      context.Context
	registry *waitlist.Registry
	metrics  *metrics.Metrics
	sink     *flakySink
	handler  *Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctx = context.Background()
	s.registry = waitlist.NewRegistry()
	s.metrics = metrics.New(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	synchronizer, err := waitlist.NewSynchronizer(s.registry, waitlist.WithLogger(logger))
	s.Require().NoError(err)
	s.sink = &flakySink{Sink: synchronizer}

	s.handler, err = NewHandler(s.sink, WithLogger(logger), WithMetrics(s.metrics))
	s.Require().NoError(err)
}

func record(eventID, eventType, data string) *consumer.Message {
	return recordAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), eventID, eventType, data)
}

func recordAt(occurredAt time.Time, eventID, eventType, data string) *consumer.Message {
	value := fmt.Sprintf(`{"event_id":%q,"event_type":%q,"occurred_at":%q,"data":%s}`,
		eventID, eventType, occurredAt.Format(time.RFC3339Nano), data)
	return &consumer.Message{Topic: "guild.members", Value: []byte(value)}
}

func (s *HandlerSuite) pending() []waitlist.PendingMember {
	members, err := s.registry.Snapshot()
	s.Require().NoError(err)
	return members
}

func (s *HandlerSuite) notifications(eventType, result string) float64 {
	return testutil.ToFloat64(s.metrics.Notifications.WithLabelValues(eventType, result))
}

func (s *HandlerSuite) TestSnapshotJoinLeave() {
	s.Require().NoError(s.handler.Handle(s.ctx, record("e1", EventMemberSnapshot,
		`{"members":[{"id":"1","display_name":"A"},{"id":"2","display_name":"B","verified":true},{"id":"3","display_name":"C"}]}`)))
	s.Equal([]waitlist.PendingMember{{ID: 1, DisplayName: "A"}, {ID: 3, DisplayName: "C"}}, s.pending())

	s.Require().NoError(s.handler.Handle(s.ctx, record("e2", EventMemberJoined, `{"id":"4","display_name":"D"}`)))
	s.Require().NoError(s.handler.Handle(s.ctx, record("e3", EventMemberLeft, `{"id":"1"}`)))
	s.Equal([]waitlist.PendingMember{{ID: 3, DisplayName: "C"}, {ID: 4, DisplayName: "D"}}, s.pending())

	s.Equal(1.0, s.notifications(EventMemberJoined, resultApplied))
}

func (s *HandlerSuite) TestRedeliveredJoinDoesNotResurrect() {
	joined := record("join-7", EventMemberJoined, `{"id":"7","display_name":"G"}`)
	s.Require().NoError(s.handler.Handle(s.ctx, joined))
	s.Require().NoError(s.handler.Handle(s.ctx, record("left-7", EventMemberLeft, `{"id":"7"}`)))
	s.Require().NoError(s.handler.Handle(s.ctx, joined))

	s.Empty(s.pending())
	s.Equal(1.0, s.notifications(EventMemberJoined, resultDuplicate))
}

func (s *HandlerSuite) TestMalformedAndUnknownAreSwallowed() {
	s.NoError(s.handler.Handle(s.ctx, &consumer.Message{Value: []byte("not json")}))
	s.NoError(s.handler.Handle(s.ctx, record("e1", EventMemberJoined, `{"id":"abc"}`)))
	s.NoError(s.handler.Handle(s.ctx, record("e2", "member.renamed", `{}`)))

	s.Empty(s.pending())
	s.Equal(1.0, s.notifications("unknown", resultMalformed))
	s.Equal(1.0, s.notifications(EventMemberJoined, resultMalformed))
	s.Equal(1.0, s.notifications("member.renamed", resultSkipped))
}

func (s *HandlerSuite) TestSinkFailureIsReturnedAndIsolated() {
	s.sink.broken = true
	err := s.handler.Handle(s.ctx, record("e1", EventMemberJoined, `{"id":"8","display_name":"H"}`))
	s.ErrorIs(err, waitlist.ErrRegistryUnavailable)
	s.Equal(1.0, s.notifications(EventMemberJoined, resultFailed))

	s.sink.broken = false
	s.NoError(s.handler.Handle(s.ctx, record("e2", EventMemberJoined, `{"id":"9","display_name":"I"}`)))
	s.Equal([]waitlist.PendingMember{{ID: 9, DisplayName: "I"}}, s.pending())
}

func (s *HandlerSuite) TestFailedEventIsRetriedOnRedelivery() {
	joined := record("join-8", EventMemberJoined, `{"id":"8","display_name":"H"}`)

	s.sink.broken = true
	s.Error(s.handler.Handle(s.ctx, joined))
	s.Empty(s.pending())

	s.sink.broken = false
	s.Require().NoError(s.handler.Handle(s.ctx, joined))
	s.Equal([]waitlist.PendingMember{{ID: 8, DisplayName: "H"}}, s.pending())
	s.Zero(s.notifications(EventMemberJoined, resultDuplicate))
}

func (s *HandlerSuite) TestEventsOlderThanStartupResyncAreSkipped() {
	baseline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h, err := NewHandler(s.sink,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithBaseline(baseline),
	)
	s.Require().NoError(err)

	// live listing at startup: A was verified after the old snapshot was published
	s.Require().NoError(s.sink.Resync(s.ctx, []waitlist.MemberStatus{
		{ID: 1, DisplayName: "A", Verified: true},
		{ID: 2, DisplayName: "B"},
	}))

	s.Require().NoError(h.Handle(s.ctx, recordAt(baseline.Add(-time.Hour), "snap-old", EventMemberSnapshot,
		`{"members":[{"id":"1","display_name":"A"},{"id":"2","display_name":"B"}]}`)))
	s.Require().NoError(h.Handle(s.ctx, recordAt(baseline.Add(-time.Minute), "join-old", EventMemberJoined,
		`{"id":"1","display_name":"A"}`)))
	s.Equal([]waitlist.PendingMember{{ID: 2, DisplayName: "B"}}, s.pending())
	s.Equal(1.0, s.notifications(EventMemberSnapshot, resultStale))
	s.Equal(1.0, s.notifications(EventMemberJoined, resultStale))

	s.Require().NoError(h.Handle(s.ctx, recordAt(baseline.Add(time.Second), "join-new", EventMemberJoined,
		`{"id":"3","display_name":"C"}`)))
	s.Equal([]waitlist.PendingMember{{ID: 2, DisplayName: "B"}, {ID: 3, DisplayName: "C"}}, s.pending())
}

func (s *HandlerSuite) TestDedupeFailureFailsOpen() {
	synchronizer, err := waitlist.NewSynchronizer(s.registry,
		waitlist.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	h, err := NewHandler(synchronizer,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithDeduper(failingDeduper{}),
	)
	s.Require().NoError(err)

	s.NoError(h.Handle(s.ctx, record("e1", EventMemberJoined, `{"id":"5","display_name":"E"}`)))
	s.Equal([]waitlist.PendingMember{{ID: 5, DisplayName: "E"}}, s.pending())
}

func TestNewHandlerRequiresSink(t *testing.T) {
	_, err := NewHandler(nil)
	if err == nil {
		t.Fatal("expected error for nil sink")
	}
}

func TestMemoryDeduperExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewMemoryDeduper(time.Minute)
	d.now = func() time.Time { return now }

	first, _ := d.MarkSeen(context.Background(), "e1")
	again, _ := d.MarkSeen(context.Background(), "e1")
	if !first || again {
		t.Fatalf("first=%v again=%v, want true/false", first, again)
	}

	now = now.Add(2 * time.Minute)
	expired, _ := d.MarkSeen(context.Background(), "e1")
	if !expired {
		t.Fatal("expected id to be accepted again after ttl")
	}
}

func TestMemoryDeduperForget(t *testing.T) {
	d := NewMemoryDeduper(time.Minute)
	ctx := context.Background()

	_, _ = d.MarkSeen(ctx, "e1")
	if err := d.Forget(ctx, "e1"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	first, _ := d.MarkSeen(ctx, "e1")
	if !first {
		t.Fatal("expected forgotten id to be accepted again")
	}
}
