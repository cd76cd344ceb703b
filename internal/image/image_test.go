package image

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Reference
	}{
		{
			name: "namespaced image on default registry",
			raw:  "user/test:version",
			want: Reference{Registry: DefaultRegistry, Namespace: "user", Name: "test", Tag: "version"},
		},
		{
			name: "bare image on default registry",
			raw:  "test:version",
			want: Reference{Registry: DefaultRegistry, Name: "test", Tag: "version"},
		},
		{
			name: "explicit registry host",
			raw:  "test.com/user/test:version",
			want: Reference{Registry: "test.com", Namespace: "user", Name: "test", Tag: "version"},
		},
		{
			name: "missing tag defaults to latest",
			raw:  "user/test",
			want: Reference{Registry: DefaultRegistry, Namespace: "user", Name: "test", Tag: "latest"},
		},
		{
			name: "explicit registry without namespace",
			raw:  "test.com/test:1.2.3",
			want: Reference{Registry: "test.com", Name: "test", Tag: "1.2.3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseReference(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ref)
		})
	}
}

func TestParseReference_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "unexpanded template variable", raw: "user/${IMAGE}:latest"},
		{name: "too many path segments", raw: "a/b/c/d:latest"},
		{name: "too many segments after registry", raw: "test.com/a/b/c:latest"},
		{name: "empty name", raw: ":latest"},
		{name: "empty segment", raw: "user//test:latest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReference(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidReference)

			// The raw input survives as the error payload.
			var invalidErr *InvalidReferenceError
			require.ErrorAs(t, err, &invalidErr)
			assert.Equal(t, tt.raw, invalidErr.Raw)
		})
	}
}

func TestParseReference_RoundTrip(t *testing.T) {
	// Parsing a fully spelled-out reference and reconstructing it yields
	// the same string, and re-parsing yields the same fields.
	raws := []string{
		"registry.hub.docker.com/user/test:version",
		"registry.hub.docker.com/test:1.2.3",
		"test.com/user/test:v2.0.1",
	}

	for _, raw := range raws {
		t.Run(raw, func(t *testing.T) {
			ref, err := ParseReference(raw)
			require.NoError(t, err)
			assert.Equal(t, raw, ref.String())

			again, err := ParseReference(ref.String())
			require.NoError(t, err)
			assert.Equal(t, ref, again)
		})
	}
}

func TestReference_Repository(t *testing.T) {
	ref, err := ParseReference("nginx:1.25.3")
	require.NoError(t, err)
	assert.Equal(t, "library/nginx", ref.Repository())

	ref, err = ParseReference("grafana/grafana:10.0.0")
	require.NoError(t, err)
	assert.Equal(t, "grafana/grafana", ref.Repository())
}
