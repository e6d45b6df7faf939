// Package persona implements persona CRUD with ownership enforcement.
package persona

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/persona-lab/internal/domain"
)

// Store is the persistence the persona service needs.
type Store interface {
	CreatePersona(ctx context.Context, p *domain.Persona) (*domain.Persona, error)
	GetPersona(ctx context.Context, id string) (*domain.Persona, error)
	ListPersonas(ctx context.Context, userID string) ([]*domain.Persona, error)
	UpdatePersona(ctx context.Context, id string, upd domain.PersonaUpdate) (*domain.Persona, error)
	DeletePersona(ctx context.Context, id string) error
}

// CreateInput holds the fields of a new persona.
type CreateInput struct {
	Name            string
	Description     string
	Characteristics []string
}

// Service provides persona operations on behalf of an authenticated user.
type Service struct {
	store Store
}

// NewService creates a new persona service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create stores a persona owned by ownerID. Characteristics default to an empty list.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*domain.Persona, error) {
	p := &domain.Persona{
		Name:            strings.TrimSpace(in.Name),
		Description:     strings.TrimSpace(in.Description),
		Characteristics: trimAll(in.Characteristics),
		UserID:          ownerID,
	}

	created, err := s.store.CreatePersona(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create persona: %w", err)
	}

	slog.Info("Persona created", "persona_id", created.ID, "user_id", ownerID)
	return created, nil
}

// List returns the personas owned by ownerID, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]*domain.Persona, error) {
	personas, err := s.store.ListPersonas(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	return personas, nil
}

// Get returns a persona by ID without an ownership check.
func (s *Service) Get(ctx context.Context, id string) (*domain.Persona, error) {
	p, err := s.store.GetPersona(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get persona: %w", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// GetOwned returns a persona only if actorID owns it.
func (s *Service) GetOwned(ctx context.Context, id, actorID string) (*domain.Persona, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckOwner(p, actorID); err != nil {
		slog.Warn("Persona access denied", "persona_id", id, "user_id", actorID)
		return nil, err
	}
	return p, nil
}

// Update applies upd to a persona owned by ownerID and refreshes updatedAt.
func (s *Service) Update(ctx context.Context, id, ownerID string, upd domain.PersonaUpdate) (*domain.Persona, error) {
	if _, err := s.GetOwned(ctx, id, ownerID); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdatePersona(ctx, id, trimUpdate(upd))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update persona: %w", err)
	}

	slog.Info("Persona updated", "persona_id", id, "user_id", ownerID)
	return updated, nil
}

// Delete removes a persona owned by ownerID.
func (s *Service) Delete(ctx context.Context, id, ownerID string) error {
	if _, err := s.GetOwned(ctx, id, ownerID); err != nil {
		return err
	}

	if err := s.store.DeletePersona(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete persona: %w", err)
	}

	slog.Info("Persona deleted", "persona_id", id, "user_id", ownerID)
	return nil
}

// VerifyOwnership reports whether ownerID owns the persona.
// A missing persona yields false without an error.
func (s *Service) VerifyOwnership(ctx context.Context, id, ownerID string) (bool, error) {
	p, err := s.store.GetPersona(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get persona: %w", err)
	}
	if p == nil {
		return false, nil
	}
	return domain.CheckOwner(p, ownerID) == nil, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

func trimUpdate(upd domain.PersonaUpdate) domain.PersonaUpdate {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		upd.Name = &name
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		upd.Description = &desc
	}
	if upd.Characteristics != nil {
		traits := trimAll(*upd.Characteristics)
		upd.Characteristics = &traits
	}
	return upd
}
