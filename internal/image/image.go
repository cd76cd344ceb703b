// Package image parses container image references and models the versions
// encoded in their tags. References follow the common
// registry/namespace/name:tag shape; tags are either the floating "latest"
// or a dot-delimited numeric sequence with an optional "v" prefix.
package image

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultRegistry is the registry host assumed when a reference does not
// name one explicitly.
const DefaultRegistry = "registry.hub.docker.com"

// DefaultNamespace is the namespace the public registry uses for official
// images that carry no namespace of their own.
const DefaultNamespace = "library"

// Sentinel errors for image parsing.
var (
	// ErrInvalidReference is returned when an image reference cannot be parsed.
	ErrInvalidReference = errors.New("invalid image reference")

	// ErrInvalidVersion is returned when a tag does not encode a version.
	ErrInvalidVersion = errors.New("invalid version tag")
)

// InvalidReferenceError reports an unparsable image reference and carries
// the original raw string. It matches ErrInvalidReference via errors.Is.
type InvalidReferenceError struct {
	Raw string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid image reference: %q", e.Raw)
}

func (e *InvalidReferenceError) Unwrap() error {
	return ErrInvalidReference
}

// Reference is a parsed container image reference.
type Reference struct {
	// Registry is the registry host. Defaults to DefaultRegistry when the
	// reference names none.
	Registry string

	// Namespace is the path segment before the name, if any. Empty means
	// the reference had a bare name (an official image on the public hub).
	Namespace string

	// Name is the image name.
	Name string

	// Tag is the raw tag. Defaults to "latest" when the reference has none.
	Tag RawTag
}

// ParseReference parses a raw image reference string.
//
// References containing "$" (an unexpanded template placeholder), more than
// two path segments after the registry host, or an empty segment are
// rejected with an *InvalidReferenceError carrying the raw input.
func ParseReference(raw string) (Reference, error) {
	if strings.Contains(raw, "$") {
		return Reference{}, &InvalidReferenceError{Raw: raw}
	}

	name := raw
	tag := RawTag("latest")
	if i := strings.LastIndex(raw, ":"); i >= 0 {
		name = raw[:i]
		tag = RawTag(raw[i+1:])
	}

	parts := strings.Split(name, "/")

	// A leading segment containing a dot is an explicit registry host.
	registry := DefaultRegistry
	if strings.Contains(parts[0], ".") {
		registry = parts[0]
		parts = parts[1:]
	}

	for _, p := range parts {
		if p == "" {
			return Reference{}, &InvalidReferenceError{Raw: raw}
		}
	}

	switch len(parts) {
	case 1:
		return Reference{Registry: registry, Name: parts[0], Tag: tag}, nil
	case 2:
		return Reference{Registry: registry, Namespace: parts[0], Name: parts[1], Tag: tag}, nil
	default:
		return Reference{}, &InvalidReferenceError{Raw: raw}
	}
}

// Repository returns the registry-side repository path, substituting the
// public registry's "library" namespace when the reference has none.
func (r Reference) Repository() string {
	ns := r.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	return ns + "/" + r.Name
}

// String reconstructs the reference in registry/namespace/name:tag form.
func (r Reference) String() string {
	var b strings.Builder
	b.WriteString(r.Registry)
	b.WriteString("/")
	if r.Namespace != "" {
		b.WriteString(r.Namespace)
		b.WriteString("/")
	}
	b.WriteString(r.Name)
	b.WriteString(":")
	b.WriteString(string(r.Tag))
	return b.String()
}
