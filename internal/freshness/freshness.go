// Package freshness decides whether a task's pinned image version is the
// newest fully-qualified version its registry publishes.
package freshness

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmgilman/driftwatch/internal/image"
	"github.com/jmgilman/driftwatch/internal/registry"
)

// ErrIndeterminate is returned when no freshness verdict can be reached,
// e.g. when the registry publishes no comparable tags. Callers skip the
// task and move on.
var ErrIndeterminate = errors.New("freshness indeterminate")

// Result is the closed union of freshness verdicts: UpToDate or OutOfDate.
type Result interface {
	result()
}

// UpToDate reports that the pinned version is the newest published one.
type UpToDate struct {
	Version string
}

// OutOfDate reports that a newer fully-qualified version is published.
type OutOfDate struct {
	Current string
	Newest  string
}

func (UpToDate) result()  {}
func (OutOfDate) result() {}

// Resolver classifies image references as up to date or out of date.
type Resolver struct {
	registry registry.Client
}

// NewResolver creates a Resolver that lists tags through the given client.
func NewResolver(reg registry.Client) *Resolver {
	return &Resolver{registry: reg}
}

// Resolve classifies the reference. References pinned to "latest"
// short-circuit to up to date without any registry call, since a floating
// tag cannot be meaningfully compared. Partial candidate tags ("1", "1.2")
// are excluded from the comparison pool.
func (r *Resolver) Resolve(ctx context.Context, ref image.Reference) (Result, error) {
	current, err := ref.Tag.Version()
	if err != nil {
		return nil, fmt.Errorf("parse pinned tag: %w", err)
	}

	if current.Latest {
		return UpToDate{Version: current.String()}, nil
	}

	tags, err := r.registry.ListTags(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("list tags for %s: %w", ref.Repository(), err)
	}

	var newest image.Version
	found := false
	for _, tag := range tags {
		v, err := image.RawTag(tag).Version()
		if err != nil || !v.FullyQualified() {
			continue
		}
		if !found || v.Compare(newest) > 0 {
			newest = v
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: no fully-qualified tags for %s", ErrIndeterminate, ref.Repository())
	}

	if newest.Compare(current) > 0 {
		return OutOfDate{Current: current.String(), Newest: newest.String()}, nil
	}
	return UpToDate{Version: current.String()}, nil
}
