package waitlist_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"gatehouse/internal/waitlist"
)

type RegistrySuite struct {
	suite.Suite
	registry *waitlist.Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.registry = waitlist.NewRegistry()
}

func (s *RegistrySuite) TestInsertAndContains() {
	s.Run("inserted member is pending", func() {
		s.Require().NoError(s.registry.Insert(101, "alice"))
		ok, err := s.registry.Contains(101)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("unknown member is not pending", func() {
		ok, err := s.registry.Contains(999)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("re-insert renames without moving", func() {
		s.Require().NoError(s.registry.Insert(102, "bob"))
		s.Require().NoError(s.registry.Insert(101, "alice2"))

		members, err := s.registry.Snapshot()
		s.Require().NoError(err)
		s.Equal([]waitlist.PendingMember{
			{ID: 101, DisplayName: "alice2"},
			{ID: 102, DisplayName: "bob"},
		}, members)
	})
}

func (s *RegistrySuite) TestRemove() {
	s.Require().NoError(s.registry.Insert(1, "a"))

	removed, err := s.registry.Remove(1)
	s.Require().NoError(err)
	s.True(removed)

	removed, err = s.registry.Remove(1)
	s.Require().NoError(err)
	s.False(removed, "second remove reports absence without error")
}

func (s *RegistrySuite) TestSnapshotIsInsertionOrderedCopy() {
	for _, id := range []waitlist.MemberID{30, 10, 20} {
		s.Require().NoError(s.registry.Insert(id, "m"+id.String()))
	}

	members, err := s.registry.Snapshot()
	s.Require().NoError(err)
	s.Require().Len(members, 3)
	s.Equal(waitlist.MemberID(30), members[0].ID)
	s.Equal(waitlist.MemberID(10), members[1].ID)
	s.Equal(waitlist.MemberID(20), members[2].ID)

	members[0].DisplayName = "mutated"
	again, err := s.registry.Snapshot()
	s.Require().NoError(err)
	s.Equal("m30", again[0].DisplayName)
}

func (s *RegistrySuite) TestPoisonedRegistryFailsFast() {
	s.Require().NoError(s.registry.Insert(1, "a"))

	err := waitlist.PoisonRegistry(s.registry)
	s.ErrorIs(err, waitlist.ErrRegistryUnavailable)

	s.Run("every operation reports unavailable", func() {
		s.ErrorIs(s.registry.Insert(2, "b"), waitlist.ErrRegistryUnavailable)

		_, err := s.registry.Remove(1)
		s.ErrorIs(err, waitlist.ErrRegistryUnavailable)

		_, err = s.registry.Contains(1)
		s.ErrorIs(err, waitlist.ErrRegistryUnavailable)

		_, err = s.registry.Len()
		s.ErrorIs(err, waitlist.ErrRegistryUnavailable)

		members, err := s.registry.Snapshot()
		s.ErrorIs(err, waitlist.ErrRegistryUnavailable)
		s.Nil(members, "no stale data is returned")
	})

	s.Run("replace installs fresh contents and clears the failure", func() {
		s.Require().NoError(s.registry.Replace([]waitlist.PendingMember{{ID: 7, DisplayName: "g"}}))

		members, err := s.registry.Snapshot()
		s.Require().NoError(err)
		s.Equal([]waitlist.PendingMember{{ID: 7, DisplayName: "g"}}, members)
	})
}

func (s *RegistrySuite) TestReplaceDropsDuplicates() {
	s.Require().NoError(s.registry.Insert(99, "old"))
	s.Require().NoError(s.registry.Replace([]waitlist.PendingMember{
		{ID: 1, DisplayName: "first"},
		{ID: 1, DisplayName: "dup"},
		{ID: 2, DisplayName: "second"},
	}))

	n, err := s.registry.Len()
	s.Require().NoError(err)
	s.Equal(2, n)

	ok, err := s.registry.Contains(99)
	s.Require().NoError(err)
	s.False(ok, "replace discards entries not in the new listing")
}

// Concurrent insert/remove on disjoint ids: the final contents are exactly the
// ids with a net positive insert count.
func (s *RegistrySuite) TestConcurrentDisjointUpdates() {
	const workers = 64
	var wg sync.WaitGroup

	for i := range workers {
		id := waitlist.MemberID(i + 1)
		wg.Go(func() {
			for range 50 {
				s.NoError(s.registry.Insert(id, "member"))
				_, err := s.registry.Contains(id)
				s.NoError(err)
				_, err = s.registry.Remove(id)
				s.NoError(err)
			}
			// Even ids end inserted, odd ids end removed.
			if id%2 == 0 {
				s.NoError(s.registry.Insert(id, "member"))
			}
		})
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 100 {
			_, err := s.registry.Snapshot()
			s.NoError(err)
		}
	}()
	wg.Wait()

	members, err := s.registry.Snapshot()
	s.Require().NoError(err)
	s.Len(members, workers/2)
	for _, m := range members {
		s.Zero(m.ID%2, "member %s should have been removed", m.ID)
	}
}
