package waitlist_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"gatehouse/internal/waitlist"
	"gatehouse/internal/waitlist/metrics"
	"gatehouse/pkg/platform/audit"
	"gatehouse/pkg/platform/audit/publisher"
	"gatehouse/pkg/platform/audit/store/memory"
)

type SynchronizerSuite struct {
	suite.Suite
	ctx      context.Context
	registry *waitlist.Registry
	metrics  *metrics.Metrics
	audit    *memory.InMemoryStore
	sync     *waitlist.Synchronizer
}

func TestSynchronizerSuite(t *testing.T) {
	suite.Run(t, new(SynchronizerSuite))
}

func (s *SynchronizerSuite) SetupTest() {
	s.ctx = context.Background()
	s.registry = waitlist.NewRegistry()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.audit = memory.NewInMemoryStore()

	var err error
	s.sync, err = waitlist.NewSynchronizer(s.registry,
		waitlist.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		waitlist.WithMetrics(s.metrics),
		waitlist.WithAuditPublisher(publisher.NewPublisher(s.audit)),
	)
	s.Require().NoError(err)
}

func (s *SynchronizerSuite) TestNew() {
	_, err := waitlist.NewSynchronizer(nil)
	s.ErrorContains(err, "waitlist store is required")
}

func (s *SynchronizerSuite) TestResync() {
	s.Run("keeps only unverified members", func() {
		err := s.sync.Resync(s.ctx, []waitlist.MemberStatus{
			{ID: 1, DisplayName: "A", Verified: false},
			{ID: 2, DisplayName: "B", Verified: true},
			{ID: 3, DisplayName: "C", Verified: false},
		})
		s.Require().NoError(err)

		members, err := s.registry.Snapshot()
		s.Require().NoError(err)
		s.Equal([]waitlist.PendingMember{
			{ID: 1, DisplayName: "A"},
			{ID: 3, DisplayName: "C"},
		}, members)
		s.Equal(2.0, testutil.ToFloat64(s.metrics.PendingMembers))
	})

	s.Run("replaces previous contents", func() {
		s.Require().NoError(s.registry.Insert(50, "stale"))
		s.Require().NoError(s.sync.Resync(s.ctx, []waitlist.MemberStatus{{ID: 4, DisplayName: "D"}}))

		members, err := s.registry.Snapshot()
		s.Require().NoError(err)
		s.Equal([]waitlist.PendingMember{{ID: 4, DisplayName: "D"}}, members)
	})

	s.Run("records an operations audit event", func() {
		events, err := s.audit.ListRecent(s.ctx, 10)
		s.Require().NoError(err)
		s.Require().NotEmpty(events)
		last := events[len(events)-1]
		s.Equal(string(audit.EventWaitlistResynced), last.Action)
		s.Equal(audit.CategoryOperations, last.Category)
	})
}

func (s *SynchronizerSuite) TestMemberJoined() {
	s.Run("unverified member is added", func() {
		s.Require().NoError(s.sync.MemberJoined(s.ctx, waitlist.MemberStatus{ID: 10, DisplayName: "new"}))
		ok, err := s.registry.Contains(10)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("verified member is a no-op", func() {
		s.Require().NoError(s.sync.MemberJoined(s.ctx, waitlist.MemberStatus{ID: 11, DisplayName: "vip", Verified: true}))
		ok, err := s.registry.Contains(11)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("unavailable registry is reported", func() {
		_ = waitlist.PoisonRegistry(s.registry)
		err := s.sync.MemberJoined(s.ctx, waitlist.MemberStatus{ID: 12, DisplayName: "late"})
		s.ErrorIs(err, waitlist.ErrRegistryUnavailable)
	})
}

func (s *SynchronizerSuite) TestMemberLeft() {
	s.Run("pending member is removed", func() {
		s.Require().NoError(s.registry.Insert(20, "leaver"))
		s.Require().NoError(s.sync.MemberLeft(s.ctx, 20))
		ok, err := s.registry.Contains(20)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("unknown member is a silent no-op", func() {
		s.NoError(s.sync.MemberLeft(s.ctx, 404))
	})

	s.Run("one failed notification does not block the next", func() {
		_ = waitlist.PoisonRegistry(s.registry)
		s.ErrorIs(s.sync.MemberLeft(s.ctx, 21), waitlist.ErrRegistryUnavailable)

		s.Require().NoError(s.sync.Resync(s.ctx, []waitlist.MemberStatus{{ID: 22, DisplayName: "x"}}))
		s.NoError(s.sync.MemberLeft(s.ctx, 22))
	})
}
