package kventity

import (
	"encoding/json"
	"fmt"
)

// ComponentArchetype records, for one component type attached to an entity,
// the last encoded value written to the secondary index per indexed field.
// An empty string means the field has never been indexed.
//
// The archetype is what makes re-attach safe: the previous encoded value is
// the only way to find, and retire, the stale index row.
type ComponentArchetype struct {
	IndexKeys map[string]string `json:"index_keys"`
}

// EntityMetadata is the per-entity record mapping component type path to
// [ComponentArchetype]. It is the single source of truth for which index
// rows exist for the entity: every index write updates it, every index
// deletion reads it.
//
// Metadata is always JSON-encoded, independently of the payload codec: it
// is a core-owned record, not user data.
type EntityMetadata struct {
	ComponentArchetypes map[string]ComponentArchetype `json:"component_archetypes"`
}

func newEntityMetadata() *EntityMetadata {
	return &EntityMetadata{ComponentArchetypes: make(map[string]ComponentArchetype)}
}

func (m *EntityMetadata) encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("kventity: encode metadata: %w", err)
	}
	return data, nil
}

func decodeEntityMetadata(data []byte) (*EntityMetadata, error) {
	m := newEntityMetadata()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("kventity: decode metadata: %w", err)
	}
	if m.ComponentArchetypes == nil {
		m.ComponentArchetypes = make(map[string]ComponentArchetype)
	}
	return m, nil
}
