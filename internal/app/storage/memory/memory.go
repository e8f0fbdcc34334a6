// Package memory provides an in-memory store implementation. It is safe for
// concurrent use and is primarily intended for tests and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CalcStack/calc_service/internal/app/domain/calculation"
	"github.com/CalcStack/calc_service/internal/app/domain/principal"
	"github.com/CalcStack/calc_service/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces.
type Store struct {
	mu           sync.RWMutex
	principals   map[string]principal.Principal
	byUsername   map[string]string
	byEmail      map[string]string
	calculations map[string]calculation.Calculation
	calcOrder    []string // insertion order == creation order
}

var _ storage.PrincipalStore = (*Store)(nil)
var _ storage.CalculationStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		principals:   make(map[string]principal.Principal),
		byUsername:   make(map[string]string),
		byEmail:      make(map[string]string),
		calculations: make(map[string]calculation.Calculation),
	}
}

// PrincipalStore implementation ----------------------------------------------

func (s *Store) CreatePrincipal(_ context.Context, p principal.Principal) (principal.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[p.Username]; taken {
		return principal.Principal{}, storage.ErrConflict
	}
	if _, taken := s.byEmail[p.Email]; taken {
		return principal.Principal{}, storage.ErrConflict
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()

	s.principals[p.ID] = p
	s.byUsername[p.Username] = p.ID
	s.byEmail[p.Email] = p.ID
	return p, nil
}

func (s *Store) GetPrincipal(_ context.Context, id string) (principal.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.principals[id]
	if !ok {
		return principal.Principal{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetPrincipalByUsername(_ context.Context, username string) (principal.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return principal.Principal{}, storage.ErrNotFound
	}
	return s.principals[id], nil
}

func (s *Store) DeletePrincipal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.principals[id]
	if !ok {
		return storage.ErrNotFound
	}

	delete(s.principals, id)
	delete(s.byUsername, p.Username)
	delete(s.byEmail, p.Email)

	kept := s.calcOrder[:0]
	for _, calcID := range s.calcOrder {
		if s.calculations[calcID].OwnerID == id {
			delete(s.calculations, calcID)
			continue
		}
		kept = append(kept, calcID)
	}
	s.calcOrder = kept
	return nil
}

// CalculationStore implementation ----------------------------------------------

func (s *Store) CreateCalculation(_ context.Context, calc calculation.Calculation) (calculation.Calculation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if calc.ID == "" {
		calc.ID = uuid.NewString()
	} else if _, exists := s.calculations[calc.ID]; exists {
		return calculation.Calculation{}, storage.ErrConflict
	}
	calc.CreatedAt = time.Now().UTC()

	s.calculations[calc.ID] = calc
	s.calcOrder = append(s.calcOrder, calc.ID)
	return calc, nil
}

func (s *Store) ListCalculations(_ context.Context, ownerID string, offset, limit int) ([]calculation.Calculation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owned []calculation.Calculation
	for _, id := range s.calcOrder {
		if calc := s.calculations[id]; calc.OwnerID == ownerID {
			owned = append(owned, calc)
		}
	}

	if offset < 0 {
		offset = 0
	}
	if offset >= len(owned) {
		return nil, nil
	}
	owned = owned[offset:]
	if limit > 0 && limit < len(owned) {
		owned = owned[:limit]
	}
	return owned, nil
}

func (s *Store) GetCalculation(_ context.Context, ownerID, id string) (calculation.Calculation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calc, ok := s.calculations[id]
	if !ok || calc.OwnerID != ownerID {
		return calculation.Calculation{}, storage.ErrNotFound
	}
	return calc, nil
}

func (s *Store) UpdateCalculation(_ context.Context, calc calculation.Calculation) (calculation.Calculation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.calculations[calc.ID]
	if !ok || existing.OwnerID != calc.OwnerID {
		return calculation.Calculation{}, storage.ErrNotFound
	}

	calc.CreatedAt = existing.CreatedAt
	s.calculations[calc.ID] = calc
	return calc, nil
}

func (s *Store) DeleteCalculation(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	calc, ok := s.calculations[id]
	if !ok || calc.OwnerID != ownerID {
		return storage.ErrNotFound
	}

	delete(s.calculations, id)
	for i, calcID := range s.calcOrder {
		if calcID == id {
			s.calcOrder = append(s.calcOrder[:i], s.calcOrder[i+1:]...)
			break
		}
	}
	return nil
}
