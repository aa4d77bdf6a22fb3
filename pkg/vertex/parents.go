package vertex

import (
	"context"
	"errors"
	"fmt"
	"slices"

	derrors "github.com/matzehuels/segdag/pkg/errors"
)

// Parents supplies the parent list of a vertex. Implementations must be
// deterministic and may be called from a single goroutine at a time.
type Parents interface {
	ParentNames(ctx context.Context, name Name) ([]Name, error)
}

// ParentsFunc adapts a function to Parents.
type ParentsFunc func(ctx context.Context, name Name) ([]Name, error)

// ParentNames calls f.
func (f ParentsFunc) ParentNames(ctx context.Context, name Name) ([]Name, error) {
	return f(ctx, name)
}

// ErrUnknownVertex is returned by ParentMap for names it does not hold.
var ErrUnknownVertex = errors.New("unknown vertex")

// ParentMap is an in-memory Parents.
type ParentMap map[Name][]Name

// ParentNames returns the recorded parents.
func (m ParentMap) ParentNames(_ context.Context, name Name) ([]Name, error) {
	ps, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVertex, name)
	}
	return slices.Clone(ps), nil
}

// Overlay consults each Parents in order and returns the first answer that
// is not ErrUnknownVertex.
type Overlay []Parents

// ParentNames implements Parents.
func (o Overlay) ParentNames(ctx context.Context, name Name) ([]Name, error) {
	var lastErr error = fmt.Errorf("%w: %s", ErrUnknownVertex, name)
	for _, p := range o {
		ps, err := p.ParentNames(ctx, name)
		if err == nil {
			return ps, nil
		}
		lastErr = err
		if !isUnknown(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// isUnknown reports whether err says the vertex is absent.
func isUnknown(err error) bool {
	return errors.Is(err, ErrUnknownVertex) || derrors.IsNotFound(err)
}
