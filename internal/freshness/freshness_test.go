package freshness

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/driftwatch/internal/image"
	"github.com/jmgilman/driftwatch/internal/registry"
)

// stubRegistry implements registry.Client from a fixed tag list.
type stubRegistry struct {
	tags  []string
	err   error
	calls int
}

func (s *stubRegistry) ListTags(_ context.Context, _ image.Reference) ([]string, error) {
	s.calls++
	return s.tags, s.err
}

func mustRef(t *testing.T, raw string) image.Reference {
	t.Helper()
	ref, err := image.ParseReference(raw)
	require.NoError(t, err)
	return ref
}

func TestResolver_Resolve_OutOfDate(t *testing.T) {
	reg := &stubRegistry{tags: []string{"1.2.3", "1.3.0", "1.2"}}
	resolver := NewResolver(reg)

	result, err := resolver.Resolve(context.Background(), mustRef(t, "user/app:1.2.3"))

	require.NoError(t, err)
	// The partial tag "1.2" is excluded from the candidate pool.
	assert.Equal(t, OutOfDate{Current: "1.2.3", Newest: "1.3.0"}, result)
}

func TestResolver_Resolve_UpToDate(t *testing.T) {
	reg := &stubRegistry{tags: []string{"1.2.3", "1.3.0", "latest"}}
	resolver := NewResolver(reg)

	result, err := resolver.Resolve(context.Background(), mustRef(t, "user/app:1.3.0"))

	require.NoError(t, err)
	assert.Equal(t, UpToDate{Version: "1.3.0"}, result)
}

func TestResolver_Resolve_LatestShortCircuits(t *testing.T) {
	reg := &stubRegistry{tags: []string{"999.0.0"}}
	resolver := NewResolver(reg)

	result, err := resolver.Resolve(context.Background(), mustRef(t, "user/app:latest"))

	require.NoError(t, err)
	assert.Equal(t, UpToDate{Version: "latest"}, result)
	assert.Zero(t, reg.calls, "no registry call for a latest-pinned image")
}

func TestResolver_Resolve_UnparsableTag(t *testing.T) {
	reg := &stubRegistry{}
	resolver := NewResolver(reg)

	_, err := resolver.Resolve(context.Background(), mustRef(t, "user/app:alpine"))

	require.Error(t, err)
	assert.ErrorIs(t, err, image.ErrInvalidVersion)
	assert.Zero(t, reg.calls)
}

func TestResolver_Resolve_ListerFailure(t *testing.T) {
	reg := &stubRegistry{err: registry.ErrFailedAuth}
	resolver := NewResolver(reg)

	_, err := resolver.Resolve(context.Background(), mustRef(t, "user/app:1.2.3"))

	assert.ErrorIs(t, err, registry.ErrFailedAuth)
}

func TestResolver_Resolve_NoCandidates(t *testing.T) {
	// Only partial or unparsable tags: nothing is a reliable upper bound.
	reg := &stubRegistry{tags: []string{"1", "1.2", "alpine", "stable"}}
	resolver := NewResolver(reg)

	_, err := resolver.Resolve(context.Background(), mustRef(t, "user/app:1.2.3"))

	assert.ErrorIs(t, err, ErrIndeterminate)
}

func TestResolver_Resolve_NewerThanPublished(t *testing.T) {
	// A pinned version ahead of everything published is not out of date.
	reg := &stubRegistry{tags: []string{"1.0.0", "1.1.0"}}
	resolver := NewResolver(reg)

	result, err := resolver.Resolve(context.Background(), mustRef(t, "user/app:2.0.0"))

	require.NoError(t, err)
	assert.Equal(t, UpToDate{Version: "2.0.0"}, result)
}

func TestResolver_Resolve_ErrorsAreNotResults(t *testing.T) {
	reg := &stubRegistry{tags: nil}
	resolver := NewResolver(reg)

	result, err := resolver.Resolve(context.Background(), mustRef(t, "user/app:1.2.3"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndeterminate))
	assert.Nil(t, result)
}
