package valueobjects

import (
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// RefKind tells which identifier scheme a NodeRef uses
type RefKind int

const (
	RefKindNone RefKind = iota
	RefKindLegacy
	RefKindUUID
)

// String returns the name of the kind
func (k RefKind) String() string {
	switch k {
	case RefKindLegacy:
		return "legacy"
	case RefKindUUID:
		return "uuid"
	default:
		return "none"
	}
}

// NodeRef identifies a business object inside a view document.
// It is either a legacy numeric id or a UUID string, never both.
// NodeRef is comparable and can be used as a map key.
type NodeRef struct {
	kind   RefKind
	legacy int64
	uuid   string
}

// NewLegacyRef creates a reference to a pre-migration numeric id
func NewLegacyRef(id int64) NodeRef {
	return NodeRef{kind: RefKindLegacy, legacy: id}
}

// NewUUIDRef creates a reference to a persistent UUID
func NewUUIDRef(id string) (NodeRef, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return NodeRef{}, errors.New("node reference cannot be empty")
	}
	return NodeRef{kind: RefKindUUID, uuid: id}, nil
}

// NewRandomRef creates a reference to a freshly generated UUID
func NewRandomRef() NodeRef {
	return NodeRef{kind: RefKindUUID, uuid: uuid.New().String()}
}

// ParseNodeRef classifies a serialized token. A token that parses as a
// base-10 integer is a legacy id; any other non-empty token is a UUID.
func ParseNodeRef(token string) (NodeRef, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return NodeRef{}, errors.New("node reference cannot be empty")
	}
	if id, err := strconv.ParseInt(token, 10, 64); err == nil {
		return NewLegacyRef(id), nil
	}
	return NodeRef{kind: RefKindUUID, uuid: token}, nil
}

// Kind returns the identifier scheme
func (r NodeRef) Kind() RefKind {
	return r.kind
}

// IsLegacy reports whether the reference is a numeric id
func (r NodeRef) IsLegacy() bool {
	return r.kind == RefKindLegacy
}

// IsUUID reports whether the reference is a UUID string
func (r NodeRef) IsUUID() bool {
	return r.kind == RefKindUUID
}

// IsZero checks if the NodeRef is the zero value
func (r NodeRef) IsZero() bool {
	return r.kind == RefKindNone
}

// LegacyID returns the numeric id when the reference is legacy
func (r NodeRef) LegacyID() (int64, bool) {
	return r.legacy, r.kind == RefKindLegacy
}

// UUID returns the UUID string when the reference is UUID based
func (r NodeRef) UUID() (string, bool) {
	return r.uuid, r.kind == RefKindUUID
}

// IsCanonicalUUID reports whether a UUID reference holds an RFC 4122 value.
// Documents may carry other opaque tokens; they are still UUID references.
func (r NodeRef) IsCanonicalUUID() bool {
	if r.kind != RefKindUUID {
		return false
	}
	_, err := uuid.Parse(r.uuid)
	return err == nil
}

// String returns the serialized form of the reference
func (r NodeRef) String() string {
	switch r.kind {
	case RefKindLegacy:
		return strconv.FormatInt(r.legacy, 10)
	case RefKindUUID:
		return r.uuid
	default:
		return ""
	}
}

// Equals checks if two references are equal
func (r NodeRef) Equals(other NodeRef) bool {
	return r == other
}

// MarshalText implements encoding.TextMarshaler
func (r NodeRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *NodeRef) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*r = NodeRef{}
		return nil
	}
	ref, err := ParseNodeRef(string(data))
	if err != nil {
		return err
	}
	*r = ref
	return nil
}
