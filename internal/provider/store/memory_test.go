package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mindlink/internal/provider/models"
	id "mindlink/pkg/domain"
	"mindlink/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) submit(name string) *models.Application {
	app, err := models.NewApplication(id.NewProviderID(), name, "desc", "5 years", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, app))
	return app
}

func (s *InMemoryStoreSuite) approve(providerID id.ProviderID) (*models.Application, error) {
	return s.store.Execute(s.ctx, providerID,
		func(a *models.Application) error { return a.CanApprove() },
		func(a *models.Application) { a.ApplyApproval(time.Now()) },
	)
}

func (s *InMemoryStoreSuite) ids(apps []*models.Application) []id.ProviderID {
	out := make([]id.ProviderID, 0, len(apps))
	for _, a := range apps {
		out = append(out, a.ID)
	}
	return out
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	s.Run("finds created application", func() {
		app := s.submit("Dr. X")
		found, err := s.store.FindByID(s.ctx, app.ID)
		s.Require().NoError(err)
		s.Equal(app.Name, found.Name)
		s.Equal(models.StatusPending, found.Status)
	})

	s.Run("rejects duplicate ids", func() {
		app := s.submit("Dr. Y")
		s.ErrorIs(s.store.Create(s.ctx, app), sentinel.ErrConflict)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.FindByID(s.ctx, id.NewProviderID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned records are copies", func() {
		app := s.submit("Dr. Z")
		found, err := s.store.FindByID(s.ctx, app.ID)
		s.Require().NoError(err)
		found.Name = "mutated"

		again, err := s.store.FindByID(s.ctx, app.ID)
		s.Require().NoError(err)
		s.Equal("Dr. Z", again.Name)
	})
}

func (s *InMemoryStoreSuite) TestApproveMovesBetweenCollections() {
	a := s.submit("A")
	b := s.submit("B")
	c := s.submit("C")

	_, err := s.approve(b.ID)
	s.Require().NoError(err)
	_, err = s.approve(a.ID)
	s.Require().NoError(err)

	apps, _ := s.store.ListApplications(s.ctx)
	approved, _ := s.store.ListApproved(s.ctx)
	s.Equal([]id.ProviderID{c.ID}, s.ids(apps))
	s.Equal([]id.ProviderID{b.ID, a.ID}, s.ids(approved), "approved keeps approval order")
}

func (s *InMemoryStoreSuite) TestRejectStaysInApplications() {
	a := s.submit("A")
	b := s.submit("B")

	rejected, err := s.store.Execute(s.ctx, a.ID,
		func(app *models.Application) error { return app.CanReject() },
		func(app *models.Application) { app.ApplyRejection(time.Now()) },
	)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, rejected.Status)

	apps, _ := s.store.ListApplications(s.ctx)
	s.Equal([]id.ProviderID{a.ID, b.ID}, s.ids(apps), "rejection keeps insertion order")
	s.Equal(models.StatusRejected, apps[0].Status)
}

func (s *InMemoryStoreSuite) TestExecuteValidationFailureLeavesRecord() {
	a := s.submit("A")
	boom := errors.New("nope")

	_, err := s.store.Execute(s.ctx, a.ID,
		func(*models.Application) error { return boom },
		func(app *models.Application) { app.ApplyApproval(time.Now()) },
	)
	s.ErrorIs(err, boom)

	found, err := s.store.FindByID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, found.Status)

	_, err = s.store.Execute(s.ctx, id.NewProviderID(),
		func(*models.Application) error { return nil },
		func(*models.Application) {},
	)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestDeleteFromEitherCollection() {
	pending := s.submit("pending")
	approved := s.submit("approved")
	_, err := s.approve(approved.ID)
	s.Require().NoError(err)

	for _, target := range []id.ProviderID{pending.ID, approved.ID} {
		deleted, err := s.store.Delete(s.ctx, target)
		s.Require().NoError(err)
		s.Equal(target, deleted.ID)

		_, err = s.store.FindByID(s.ctx, target)
		s.ErrorIs(err, sentinel.ErrNotFound)
	}

	_, err = s.store.Delete(s.ctx, pending.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	apps, _ := s.store.ListApplications(s.ctx)
	list, _ := s.store.ListApproved(s.ctx)
	s.Empty(apps)
	s.Empty(list)
}

func (s *InMemoryStoreSuite) TestConcurrentApproveAndDelete() {
	const n = 50
	apps := make([]*models.Application, n)
	for i := range apps {
		apps[i] = s.submit("P")
	}

	var wg sync.WaitGroup
	for _, app := range apps {
		wg.Add(2)
		go func(pid id.ProviderID) {
			defer wg.Done()
			_, _ = s.approve(pid)
		}(app.ID)
		go func(pid id.ProviderID) {
			defer wg.Done()
			_, _ = s.store.Delete(s.ctx, pid)
		}(app.ID)
	}
	wg.Wait()

	pending, _ := s.store.ListApplications(s.ctx)
	approved, _ := s.store.ListApproved(s.ctx)
	seen := map[id.ProviderID]int{}
	for _, a := range append(pending, approved...) {
		seen[a.ID]++
	}
	for pid, count := range seen {
		s.Equalf(1, count, "provider %s appears in more than one collection", pid)
	}
	s.Empty(seen, "every provider was deleted")
}
