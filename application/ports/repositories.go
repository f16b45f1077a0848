package ports

import (
	"context"
	"fmt"
	"time"

	"inventory/domain/core/entities"
	"inventory/domain/core/valueobjects"
)

// ObjectKey designates a parent object. ID is the object UUID or, for
// records that predate UUIDs, its numeric id.
type ObjectKey struct {
	ClassName string `json:"className" validate:"required"`
	ID        string `json:"id" validate:"required"`
}

// Ref returns the reference form of the key
func (k ObjectKey) Ref() (valueobjects.NodeRef, error) {
	return valueobjects.ParseNodeRef(k.ID)
}

func (k ObjectKey) String() string {
	return fmt.Sprintf("%s/%s", k.ClassName, k.ID)
}

// ObjectDirectory answers questions about live business objects
// This is a port in hexagonal architecture - the engine doesn't know about the implementation
type ObjectDirectory interface {
	// LookupLight finds an object by class and reference; NOT_FOUND when it no longer exists
	LookupLight(ctx context.Context, className string, ref valueobjects.NodeRef) (entities.BusinessObject, error)

	// GetChildren lists the objects contained in parent, in a stable order
	GetChildren(ctx context.Context, parent ObjectKey) ([]entities.BusinessObject, error)

	// GetConnections lists the connections held by parent, in a stable order
	GetConnections(ctx context.Context, parent ObjectKey) ([]entities.Connection, error)
}

// StoredView is a persisted view as the store returns it
type StoredView struct {
	ID         string
	Owner      ObjectKey
	ViewClass  string
	Structure  []byte
	Background []byte
	UpdatedAt  time.Time
}

// ViewStore persists the views of an object
type ViewStore interface {
	// GetView returns the view of the given kind; NOT_FOUND when none was saved
	GetView(ctx context.Context, owner ObjectKey, viewClass string) (*StoredView, error)

	// CreateView stores a new view and returns its id
	CreateView(ctx context.Context, owner ObjectKey, viewClass string, structure, background []byte) (string, error)

	// UpdateView replaces the content of an existing view
	UpdateView(ctx context.Context, viewID string, structure, background []byte) error
}

// ObjectRecord is one inventory record as seen by a full scan
type ObjectRecord struct {
	InternalID int64  `yaml:"id"`
	ClassName  string `yaml:"class"`
	UUID       string `yaml:"uuid"`
	Name       string `yaml:"name"`
}

// StoredDocument is one persisted view structure as seen by a full scan
type StoredDocument struct {
	ViewID    string
	Owner     ObjectKey
	ViewClass string
	Structure []byte
}

// InventoryStore gives bulk access to every record and view document
type InventoryStore interface {
	// ScanObjects calls fn for each inventory record; scanning stops on the first error
	ScanObjects(ctx context.Context, fn func(ObjectRecord) error) error

	// ScanViewDocuments calls fn for each stored view; scanning stops on the first error
	ScanViewDocuments(ctx context.Context, fn func(StoredDocument) error) error

	// SaveViewDocuments writes the structures of existing views
	SaveViewDocuments(ctx context.Context, docs []StoredDocument) error
}

// NotificationLevel grades a user-facing notification
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "INFO"
	LevelWarning NotificationLevel = "WARNING"
	LevelError   NotificationLevel = "ERROR"
)

// Notification is a message for the user looking at a view
type Notification struct {
	Level     NotificationLevel
	Title     string
	Message   string
	Subject   ObjectKey
	ViewClass string
}

// Notifier delivers notifications. Delivery is fire-and-forget: failures
// are logged by the implementation and never reach the caller.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// ReleaseFunc gives back a lock obtained from a JobLock
type ReleaseFunc func(ctx context.Context) error

// JobLock serializes a named job across processes sharing one store.
// Acquire fails with CONFLICT while another holder's lease is live.
type JobLock interface {
	Acquire(ctx context.Context, job string, lease time.Duration) (ReleaseFunc, error)
}
