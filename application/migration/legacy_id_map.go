package migration

import (
	"fmt"
	"strings"

	"inventory/application/ports"
)

// LegacyIDMap indexes every inventory record by internal id and by UUID.
// It is filled completely before any document is rewritten. A key claimed
// by more than one record is ambiguous and maps to nothing safely.
type LegacyIDMap struct {
	byInternal     map[int64]ports.ObjectRecord
	byUUID         map[string]int64
	ambiguousIDs   map[int64]struct{}
	ambiguousUUIDs map[string]struct{}
}

// NewLegacyIDMap creates an empty map
func NewLegacyIDMap() *LegacyIDMap {
	return &LegacyIDMap{
		byInternal:     make(map[int64]ports.ObjectRecord),
		byUUID:         make(map[string]int64),
		ambiguousIDs:   make(map[int64]struct{}),
		ambiguousUUIDs: make(map[string]struct{}),
	}
}

// Add indexes one record. When the record claims an internal id or a UUID
// that is already taken, that key is marked ambiguous and an error naming
// the collision is returned; the record's other key is still indexed.
func (m *LegacyIDMap) Add(rec ports.ObjectRecord) error {
	var collisions []string

	if rec.InternalID != 0 {
		if prev, exists := m.byInternal[rec.InternalID]; exists {
			m.ambiguousIDs[rec.InternalID] = struct{}{}
			collisions = append(collisions,
				fmt.Sprintf("internal id %d claimed by %s and %s", rec.InternalID, prev.ClassName, rec.ClassName))
		} else {
			m.byInternal[rec.InternalID] = rec
		}
	}
	if rec.UUID != "" {
		if prev, exists := m.byUUID[rec.UUID]; exists {
			m.ambiguousUUIDs[rec.UUID] = struct{}{}
			collisions = append(collisions,
				fmt.Sprintf("uuid %s claimed by internal ids %d and %d", rec.UUID, prev, rec.InternalID))
		} else {
			m.byUUID[rec.UUID] = rec.InternalID
		}
	}

	if len(collisions) > 0 {
		return fmt.Errorf("%s", strings.Join(collisions, "; "))
	}
	return nil
}

// Lookup returns the first record that claimed internal id
func (m *LegacyIDMap) Lookup(internalID int64) (ports.ObjectRecord, bool) {
	rec, ok := m.byInternal[internalID]
	return rec, ok
}

// InternalID returns the internal id of the first record carrying uuid
func (m *LegacyIDMap) InternalID(uuid string) (int64, bool) {
	id, ok := m.byUUID[uuid]
	return id, ok
}

// HasUUID reports whether some record carries uuid
func (m *LegacyIDMap) HasUUID(uuid string) bool {
	_, ok := m.byUUID[uuid]
	return ok
}

// AmbiguousID reports whether several records claimed internal id
func (m *LegacyIDMap) AmbiguousID(internalID int64) bool {
	_, ok := m.ambiguousIDs[internalID]
	return ok
}

// AmbiguousUUID reports whether several records claimed uuid
func (m *LegacyIDMap) AmbiguousUUID(uuid string) bool {
	_, ok := m.ambiguousUUIDs[uuid]
	return ok
}

// Len returns the number of indexed records
func (m *LegacyIDMap) Len() int {
	n := len(m.byInternal)
	for _, id := range m.byUUID {
		if id == 0 {
			n++
		}
	}
	return n
}
