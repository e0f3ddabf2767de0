package discount

import (
	"context"

	"github.com/go-faster/errors"
)

// Lookup resolves a user supplied code to its record.
type Lookup interface {
	Lookup(ctx context.Context, code string) (*Code, error)
}

// RepoLookup implements Lookup on top of a Repository.
type RepoLookup struct {
	repo Repository
}

// NewRepoLookup creates a RepoLookup backed by the given Repository.
func NewRepoLookup(repo Repository) *RepoLookup {
	return &RepoLookup{repo: repo}
}

// Lookup normalizes code and fetches it. Inactive codes are returned as is;
// Apply decides what they are worth.
func (l *RepoLookup) Lookup(ctx context.Context, code string) (*Code, error) {
	normalized := Normalize(code)
	if normalized == "" {
		return nil, ErrNotFound
	}

	c, err := l.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup discount")
	}
	return c, nil
}
