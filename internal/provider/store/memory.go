// Package store persists provider applications in two ordered collections:
// applications (pending and rejected) and approved providers.
package store

import (
	"context"
	"sync"

	"mindlink/internal/provider/models"
	id "mindlink/pkg/domain"
	"mindlink/pkg/platform/sentinel"
)

// InMemory keeps both registry collections behind one lock.
// An id lives in at most one of the two slices.
type InMemory struct {
	mu           sync.RWMutex
	applications []*models.Application
	approved     []*models.Application
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, _, ok := s.locate(app.ID); ok {
		return sentinel.ErrConflict
	}
	stored := app.Clone()
	if stored.IsApproved() {
		s.approved = append(s.approved, stored)
	} else {
		s.applications = append(s.applications, stored)
	}
	return nil
}

func (s *InMemory) FindByID(_ context.Context, providerID id.ProviderID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, idx, ok := s.locate(providerID)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return list[idx].Clone(), nil
}

// Execute runs validate then mutate on the record under the write lock.
// A record that becomes approved moves to the tail of the approved collection.
func (s *InMemory) Execute(
	_ context.Context,
	providerID id.ProviderID,
	validate func(*models.Application) error,
	mutate func(*models.Application),
) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, idx, ok := s.locate(providerID)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	app := list[idx].Clone()
	if err := validate(app); err != nil {
		return nil, err
	}
	wasApproved := list[idx].IsApproved()
	mutate(app)

	if app.IsApproved() && !wasApproved {
		s.applications = remove(s.applications, idx)
		s.approved = append(s.approved, app)
	} else {
		list[idx] = app
	}
	return app.Clone(), nil
}

// Delete removes the record from whichever collection holds it and returns it.
func (s *InMemory) Delete(_ context.Context, providerID id.ProviderID) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := indexOf(s.applications, providerID); idx >= 0 {
		app := s.applications[idx]
		s.applications = remove(s.applications, idx)
		return app, nil
	}
	if idx := indexOf(s.approved, providerID); idx >= 0 {
		app := s.approved[idx]
		s.approved = remove(s.approved, idx)
		return app, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListApplications(_ context.Context) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot(s.applications), nil
}

func (s *InMemory) ListApproved(_ context.Context) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot(s.approved), nil
}

// CountByStatus tallies both collections under one read lock.
func (s *InMemory) CountByStatus(_ context.Context) (models.StatusCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var counts models.StatusCounts
	for _, app := range s.applications {
		counts.Tally(app.Status)
	}
	for _, app := range s.approved {
		counts.Tally(app.Status)
	}
	return counts, nil
}

// locate must be called with the lock held.
func (s *InMemory) locate(providerID id.ProviderID) ([]*models.Application, int, bool) {
	if idx := indexOf(s.applications, providerID); idx >= 0 {
		return s.applications, idx, true
	}
	if idx := indexOf(s.approved, providerID); idx >= 0 {
		return s.approved, idx, true
	}
	return nil, -1, false
}

func indexOf(list []*models.Application, providerID id.ProviderID) int {
	for i, app := range list {
		if app.ID == providerID {
			return i
		}
	}
	return -1
}

func remove(list []*models.Application, idx int) []*models.Application {
	return append(list[:idx:idx], list[idx+1:]...)
}

func snapshot(list []*models.Application) []*models.Application {
	out := make([]*models.Application, 0, len(list))
	for _, app := range list {
		out = append(out, app.Clone())
	}
	return out
}
