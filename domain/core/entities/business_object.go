package entities

import (
	"strconv"

	"inventory/domain/core/valueobjects"
)

// BusinessObject is the light form of a live inventory object as reported
// by the object directory. Records created before the UUID migration may
// have an empty ID.
type BusinessObject struct {
	ClassName string `json:"className" yaml:"class"`
	ID        string `json:"id,omitempty" yaml:"uuid,omitempty"`
	LegacyID  int64  `json:"legacyId,omitempty" yaml:"legacy_id,omitempty"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Identity returns the key used to compare live objects. The UUID wins
// over the legacy id when both are known.
func (o BusinessObject) Identity() string {
	if o.ID != "" {
		return "uuid:" + o.ID
	}
	return "legacy:" + strconv.FormatInt(o.LegacyID, 10)
}

// Ref returns the reference a view document should use for this object
func (o BusinessObject) Ref() valueobjects.NodeRef {
	if o.ID != "" {
		if ref, err := valueobjects.NewUUIDRef(o.ID); err == nil {
			return ref
		}
	}
	return valueobjects.NewLegacyRef(o.LegacyID)
}

// HasUUID reports whether the object carries a persistent UUID
func (o BusinessObject) HasUUID() bool {
	return o.ID != ""
}

// Matches reports whether a view reference designates this object
func (o BusinessObject) Matches(ref valueobjects.NodeRef) bool {
	if id, ok := ref.UUID(); ok {
		return o.ID != "" && o.ID == id
	}
	if id, ok := ref.LegacyID(); ok {
		return o.LegacyID == id
	}
	return false
}

// Connection is a live physical or logical link between two objects
type Connection struct {
	Object BusinessObject `json:"object"`
	ASide  BusinessObject `json:"aSide"`
	BSide  BusinessObject `json:"bSide"`
}
