package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Contact is the addressing data needed to email a user.
type Contact struct {
	UserID uuid.UUID
	Name   string
	Email  string
}

// Directory resolves user ids into contacts.
type Directory struct {
	repo *Repository
}

// NewDirectory returns a directory backed by the users repository.
func NewDirectory(repo *Repository) (*Directory, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &Directory{repo: repo}, nil
}

// Contacts returns the contacts that exist for ids, preserving input order and
// skipping unknown or inactive users and duplicates.
func (d *Directory) Contacts(ctx context.Context, ids []uuid.UUID) ([]Contact, error) {
	found, err := d.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]Contact, 0, len(found))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		user, ok := found[id]
		if !ok || user.Email == "" {
			continue
		}
		out = append(out, Contact{UserID: user.ID, Name: user.Name, Email: user.Email})
	}
	return out, nil
}
