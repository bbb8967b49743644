// Package store defines blueprint persistence. Implementations live in the
// sub-packages: redisstore and pgstore back the relay server, httpstore is
// the client used by editing sessions.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dyluth/blueprints/pkg/blueprint"
)

var (
	// ErrNotFound is returned when a blueprint (or every blueprint of an
	// author) does not exist.
	ErrNotFound = errors.New("blueprint not found")

	// ErrExists is returned when creating a blueprint whose key is taken.
	ErrExists = errors.New("blueprint already exists")
)

// Repository stores blueprints by (author, name).
type Repository interface {
	List(ctx context.Context) ([]*blueprint.Blueprint, error)
	// ListByAuthor returns ErrNotFound when the author has no blueprints.
	ListByAuthor(ctx context.Context, author string) ([]*blueprint.Blueprint, error)
	Get(ctx context.Context, key blueprint.Key) (*blueprint.Blueprint, error)
	Create(ctx context.Context, bp *blueprint.Blueprint) error
	// Update replaces the points of an existing blueprint.
	Update(ctx context.Context, bp *blueprint.Blueprint) error
	Delete(ctx context.Context, key blueprint.Key) error
}

// IsNotFound reports whether err means the blueprint does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsExists reports whether err means the blueprint already exists.
func IsExists(err error) bool {
	return errors.Is(err, ErrExists)
}

// SortByKey orders blueprints by author, then name.
func SortByKey(bps []*blueprint.Blueprint) {
	sort.Slice(bps, func(i, j int) bool {
		if bps[i].Author != bps[j].Author {
			return bps[i].Author < bps[j].Author
		}
		return bps[i].Name < bps[j].Name
	})
}

// Reasons carried in REST error bodies.
const (
	ReasonNotFound = "not_found"
	ReasonExists   = "exists"
	ReasonInvalid  = "invalid"
	ReasonInternal = "internal"
)

// APIError is the JSON body of a failed REST call.
type APIError struct {
	Status  int    `json:"-"`
	Reason  string `json:"reason"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// Unwrap maps the reason back onto the package sentinels.
func (e *APIError) Unwrap() error {
	switch e.Reason {
	case ReasonNotFound:
		return ErrNotFound
	case ReasonExists:
		return ErrExists
	default:
		return nil
	}
}
