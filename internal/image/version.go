package image

import (
	"fmt"
	"strconv"
	"strings"
)

// RawTag is an unparsed image tag.
type RawTag string

// Version is a parsed tag: either the floating "latest" or a semantic
// version with an always-present major component and independently optional
// minor and patch components (modeling partial tags like "1" or "1.2").
type Version struct {
	// Latest marks the floating "latest" tag. When set the numeric
	// components are meaningless.
	Latest bool

	Major uint64
	Minor *uint64
	Patch *uint64
}

// Version parses the tag into a Version.
//
// "latest" (exact, case-sensitive) parses to the Latest variant. Anything
// else is stripped of an optional leading "v" and split on "."; the first
// component must be a non-negative integer. A present but non-numeric minor
// or patch component is treated as absent rather than an error. That
// laxness is load-bearing: it decides which tags count as fully qualified.
func (t RawTag) Version() (Version, error) {
	if string(t) == "latest" {
		return Version{Latest: true}, nil
	}

	parts := strings.Split(strings.TrimPrefix(string(t), "v"), ".")

	major, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, string(t))
	}

	v := Version{Major: major}
	if len(parts) > 1 {
		if n, err := strconv.ParseUint(parts[1], 10, 64); err == nil {
			v.Minor = &n
		}
	}
	if len(parts) > 2 {
		if n, err := strconv.ParseUint(parts[2], 10, 64); err == nil {
			v.Patch = &n
		}
	}
	return v, nil
}

// FullyQualified reports whether the version pins down every component.
// Partial versions like "1" or "1.2" could be moving aliases and are not
// reliable upper bounds for freshness comparisons.
func (v Version) FullyQualified() bool {
	if v.Latest {
		return true
	}
	return v.Minor != nil && v.Patch != nil
}

// Compare defines the total order over versions: Latest sorts before every
// semantic version (callers special-case Latest before comparing), semantic
// versions compare major, then minor, then patch, and a missing component
// sorts before a present one at the same position.
func (v Version) Compare(o Version) int {
	switch {
	case v.Latest && o.Latest:
		return 0
	case v.Latest:
		return -1
	case o.Latest:
		return 1
	}

	if c := compareUint64(v.Major, o.Major); c != 0 {
		return c
	}
	if c := compareOptional(v.Minor, o.Minor); c != 0 {
		return c
	}
	return compareOptional(v.Patch, o.Patch)
}

// String renders the version the way a tag would spell it, omitting
// missing components.
func (v Version) String() string {
	if v.Latest {
		return "latest"
	}

	var b strings.Builder
	b.WriteString(strconv.FormatUint(v.Major, 10))
	if v.Minor == nil {
		return b.String()
	}
	b.WriteString(".")
	b.WriteString(strconv.FormatUint(*v.Minor, 10))
	if v.Patch == nil {
		return b.String()
	}
	b.WriteString(".")
	b.WriteString(strconv.FormatUint(*v.Patch, 10))
	return b.String()
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareOptional(a, b *uint64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return compareUint64(*a, *b)
	}
}
