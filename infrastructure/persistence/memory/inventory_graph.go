package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"inventory/application/ports"
	"inventory/domain/core/entities"
	"inventory/domain/core/valueobjects"
	pkgerrors "inventory/pkg/errors"
	"github.com/google/uuid"
)

// InventoryGraph is an in-memory inventory: objects, containment,
// connections and saved views. It implements ObjectDirectory, ViewStore
// and InventoryStore.
type InventoryGraph struct {
	mu sync.RWMutex

	objects  map[string]entities.BusinessObject // identity -> object
	byUUID   map[string]string                  // uuid -> identity
	byLegacy map[int64]string                   // legacy id -> identity
	order    []string                           // identities in insertion order

	children    map[string][]string               // parent identity -> child identities
	connections map[string][]entities.Connection // parent identity -> connections

	views     map[string]*ports.StoredView // view id -> view
	viewIndex map[string]string            // owner identity + view class -> view id

	now func() time.Time
}

// NewInventoryGraph creates an empty graph
func NewInventoryGraph() *InventoryGraph {
	return &InventoryGraph{
		objects:     make(map[string]entities.BusinessObject),
		byUUID:      make(map[string]string),
		byLegacy:    make(map[int64]string),
		children:    make(map[string][]string),
		connections: make(map[string][]entities.Connection),
		views:       make(map[string]*ports.StoredView),
		viewIndex:   make(map[string]string),
		now:         time.Now,
	}
}

// AddObject registers obj as a child of parent. An empty parent token adds
// a root object.
func (g *InventoryGraph) AddObject(obj entities.BusinessObject, parent string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var parentIdentity string
	if parent != "" {
		p, err := g.findLocked(parent)
		if err != nil {
			return err
		}
		parentIdentity = p.Identity()
	}
	if err := g.addLocked(obj); err != nil {
		return err
	}
	if parentIdentity != "" {
		g.children[parentIdentity] = append(g.children[parentIdentity], obj.Identity())
	}
	return nil
}

// AddConnection registers a connection held by parent. Both endpoints must
// already exist.
func (g *InventoryGraph) AddConnection(conn entities.Connection, parent string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.findLocked(parent)
	if err != nil {
		return err
	}
	for _, side := range []entities.BusinessObject{conn.ASide, conn.BSide} {
		if _, ok := g.objects[side.Identity()]; !ok {
			return pkgerrors.NewNotFoundError(fmt.Sprintf("endpoint %s", side.Identity()))
		}
	}
	if err := g.addLocked(conn.Object); err != nil {
		return err
	}
	g.connections[p.Identity()] = append(g.connections[p.Identity()], conn)
	return nil
}

func (g *InventoryGraph) addLocked(obj entities.BusinessObject) error {
	if obj.ClassName == "" {
		return pkgerrors.NewValidationError("object class is required")
	}
	if obj.ID == "" && obj.LegacyID == 0 {
		return pkgerrors.NewValidationError("object needs a uuid or a legacy id")
	}

	identity := obj.Identity()
	if _, exists := g.objects[identity]; exists {
		return pkgerrors.NewConflictError(fmt.Sprintf("object %s already exists", identity))
	}

	g.objects[identity] = obj
	g.order = append(g.order, identity)
	if obj.ID != "" {
		g.byUUID[obj.ID] = identity
	}
	if obj.LegacyID != 0 {
		g.byLegacy[obj.LegacyID] = identity
	}
	return nil
}

// RemoveObject deletes an object and detaches it from its parent and from
// every connection that used it
func (g *InventoryGraph) RemoveObject(token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	obj, err := g.findLocked(token)
	if err != nil {
		return err
	}
	identity := obj.Identity()

	delete(g.objects, identity)
	delete(g.byUUID, obj.ID)
	delete(g.byLegacy, obj.LegacyID)
	g.order = without(g.order, identity)
	delete(g.children, identity)
	for parent, kids := range g.children {
		g.children[parent] = without(kids, identity)
	}
	for parent, conns := range g.connections {
		kept := conns[:0]
		for _, c := range conns {
			if c.Object.Identity() == identity || c.ASide.Identity() == identity || c.BSide.Identity() == identity {
				continue
			}
			kept = append(kept, c)
		}
		g.connections[parent] = kept
	}
	return nil
}

// LookupLight finds an object by class and reference
func (g *InventoryGraph) LookupLight(ctx context.Context, className string, ref valueobjects.NodeRef) (entities.BusinessObject, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	obj, ok := g.lookupLocked(ref)
	if !ok || (className != "" && obj.ClassName != className) {
		return entities.BusinessObject{}, pkgerrors.NewNotFoundError(fmt.Sprintf("%s %s", className, ref))
	}
	return obj, nil
}

// GetChildren lists the objects contained in parent
func (g *InventoryGraph) GetChildren(ctx context.Context, parent ports.ObjectKey) ([]entities.BusinessObject, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	p, err := g.parentLocked(parent)
	if err != nil {
		return nil, err
	}

	kids := g.children[p.Identity()]
	result := make([]entities.BusinessObject, 0, len(kids))
	for _, id := range kids {
		result = append(result, g.objects[id])
	}
	return result, nil
}

// GetConnections lists the connections held by parent
func (g *InventoryGraph) GetConnections(ctx context.Context, parent ports.ObjectKey) ([]entities.Connection, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	p, err := g.parentLocked(parent)
	if err != nil {
		return nil, err
	}
	return append([]entities.Connection(nil), g.connections[p.Identity()]...), nil
}

// GetView returns the view of the given kind saved for owner
func (g *InventoryGraph) GetView(ctx context.Context, owner ports.ObjectKey, viewClass string) (*ports.StoredView, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	p, err := g.parentLocked(owner)
	if err != nil {
		return nil, err
	}
	id, ok := g.viewIndex[viewKey(p.Identity(), viewClass)]
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("%s of %s", viewClass, owner))
	}
	return copyView(g.views[id]), nil
}

// CreateView stores a new view
func (g *InventoryGraph) CreateView(ctx context.Context, owner ports.ObjectKey, viewClass string, structure, background []byte) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.parentLocked(owner)
	if err != nil {
		return "", err
	}
	key := viewKey(p.Identity(), viewClass)
	if _, exists := g.viewIndex[key]; exists {
		return "", pkgerrors.NewConflictError(fmt.Sprintf("%s of %s already exists", viewClass, owner))
	}

	id := uuid.New().String()
	g.views[id] = &ports.StoredView{
		ID:         id,
		Owner:      owner,
		ViewClass:  viewClass,
		Structure:  append([]byte(nil), structure...),
		Background: append([]byte(nil), background...),
		UpdatedAt:  g.now(),
	}
	g.viewIndex[key] = id
	return id, nil
}

// UpdateView replaces the content of an existing view
func (g *InventoryGraph) UpdateView(ctx context.Context, viewID string, structure, background []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	view, ok := g.views[viewID]
	if !ok {
		return pkgerrors.NewNotFoundError("view " + viewID)
	}
	view.Structure = append([]byte(nil), structure...)
	view.Background = append([]byte(nil), background...)
	view.UpdatedAt = g.now()
	return nil
}

// ScanObjects calls fn for every object in insertion order
func (g *InventoryGraph) ScanObjects(ctx context.Context, fn func(ports.ObjectRecord) error) error {
	g.mu.RLock()
	records := make([]ports.ObjectRecord, 0, len(g.order))
	for _, id := range g.order {
		obj := g.objects[id]
		records = append(records, ports.ObjectRecord{
			InternalID: obj.LegacyID,
			ClassName:  obj.ClassName,
			UUID:       obj.ID,
			Name:       obj.Name,
		})
	}
	g.mu.RUnlock()

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// ScanViewDocuments calls fn for every saved view, ordered by view id
func (g *InventoryGraph) ScanViewDocuments(ctx context.Context, fn func(ports.StoredDocument) error) error {
	g.mu.RLock()
	docs := make([]ports.StoredDocument, 0, len(g.views))
	for _, v := range g.views {
		docs = append(docs, ports.StoredDocument{
			ViewID:    v.ID,
			Owner:     v.Owner,
			ViewClass: v.ViewClass,
			Structure: append([]byte(nil), v.Structure...),
		})
	}
	g.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].ViewID < docs[j].ViewID })
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

// SaveViewDocuments replaces the structures of existing views. Either every
// view is updated or none is.
func (g *InventoryGraph) SaveViewDocuments(ctx context.Context, docs []ports.StoredDocument) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, d := range docs {
		if _, ok := g.views[d.ViewID]; !ok {
			return pkgerrors.NewNotFoundError("view " + d.ViewID)
		}
	}
	now := g.now()
	for _, d := range docs {
		view := g.views[d.ViewID]
		view.Structure = append([]byte(nil), d.Structure...)
		view.UpdatedAt = now
	}
	return nil
}

func (g *InventoryGraph) findLocked(token string) (entities.BusinessObject, error) {
	ref, err := valueobjects.ParseNodeRef(token)
	if err != nil {
		return entities.BusinessObject{}, pkgerrors.NewValidationError(err.Error())
	}
	obj, ok := g.lookupLocked(ref)
	if !ok {
		return entities.BusinessObject{}, pkgerrors.NewNotFoundError("object " + token)
	}
	return obj, nil
}

func (g *InventoryGraph) parentLocked(key ports.ObjectKey) (entities.BusinessObject, error) {
	obj, err := g.findLocked(key.ID)
	if err != nil {
		return entities.BusinessObject{}, err
	}
	if obj.ClassName != key.ClassName {
		return entities.BusinessObject{}, pkgerrors.NewNotFoundError("object " + key.String())
	}
	return obj, nil
}

func (g *InventoryGraph) lookupLocked(ref valueobjects.NodeRef) (entities.BusinessObject, bool) {
	var identity string
	var ok bool
	if id, isUUID := ref.UUID(); isUUID {
		identity, ok = g.byUUID[id]
	} else if id, isLegacy := ref.LegacyID(); isLegacy {
		identity, ok = g.byLegacy[id]
	}
	if !ok {
		return entities.BusinessObject{}, false
	}
	obj, ok := g.objects[identity]
	return obj, ok
}

func viewKey(ownerIdentity, viewClass string) string {
	return ownerIdentity + "#" + viewClass
}

func copyView(v *ports.StoredView) *ports.StoredView {
	c := *v
	c.Structure = append([]byte(nil), v.Structure...)
	c.Background = append([]byte(nil), v.Background...)
	return &c
}

func without(ids []string, id string) []string {
	kept := ids[:0]
	for _, x := range ids {
		if x != id {
			kept = append(kept, x)
		}
	}
	return kept
}
