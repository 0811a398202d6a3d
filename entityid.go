package kventity

import (
	"fmt"
	"strings"
)

type entityKind uint8

const (
	kindEntity entityKind = iota
	kindResource
	kindEmpty
	kindMax
)

// EntityID identifies an entity in the store.
//
// Besides regular entities there is a singleton "resource" entity, plus two
// sentinel forms used exclusively as scan bounds: the empty id (which sorts
// before every real id) and the max id ("~", which sorts after every real
// id). Sentinels are never persisted.
//
// The textual form of a regular entity is "e-<id>"; the "e-" prefix keeps
// the entity keyspace disjoint from the resource row and lets scanned keys
// be recognised defensively.
type EntityID struct {
	kind entityKind
	id   string
}

// ResourceID is the id of the singleton resource entity.
var ResourceID = EntityID{kind: kindResource}

// Scan sentinels. Lower/upper bounds for the trailing entity segment of a
// key range.
var (
	emptyID = EntityID{kind: kindEmpty}
	maxID   = EntityID{kind: kindMax}
)

// NewEntityID validates id and returns the entity id for it. The id must
// not contain '/': it is embedded verbatim between key separators.
func NewEntityID(id string) (EntityID, error) {
	if strings.Contains(id, "/") {
		return EntityID{}, fmt.Errorf("%w: %q contains '/'", ErrInvalidEntityID, id)
	}
	return EntityID{kind: kindEntity, id: id}, nil
}

// MustEntityID is [NewEntityID] but panics on an invalid id. An id
// containing '/' is a programmer error, not a runtime condition.
func MustEntityID(id string) EntityID {
	e, err := NewEntityID(id)
	if err != nil {
		panic(err)
	}
	return e
}

// ParseEntityID parses the textual form found in scanned keys and index-row
// values ("e-<id>" or "resource").
func ParseEntityID(s string) (EntityID, error) {
	switch {
	case s == "resource":
		return ResourceID, nil
	case strings.HasPrefix(s, "e-"):
		return NewEntityID(strings.TrimPrefix(s, "e-"))
	default:
		return EntityID{}, fmt.Errorf("%w: %q", ErrInvalidEntityID, s)
	}
}

// String renders the id in its persisted textual form.
func (e EntityID) String() string {
	switch e.kind {
	case kindResource:
		return "resource"
	case kindEmpty:
		return ""
	case kindMax:
		return "~"
	default:
		return "e-" + e.id
	}
}

// ID returns the raw user-supplied id, without the "e-" prefix.
// It is empty for the resource entity and the sentinels.
func (e EntityID) ID() string {
	return e.id
}

// IsResource reports whether e is the singleton resource entity.
func (e EntityID) IsResource() bool {
	return e.kind == kindResource
}
