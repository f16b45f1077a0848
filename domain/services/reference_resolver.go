package services

import (
	"context"
	"fmt"

	"inventory/domain/core/aggregates"
	"inventory/domain/core/entities"
	"inventory/domain/core/valueobjects"
	pkgerrors "inventory/pkg/errors"
)

// ObjectLookup finds a live object by class and reference. A missing
// object is reported with a NOT_FOUND AppError; any other error means the
// directory could not answer.
type ObjectLookup interface {
	LookupLight(ctx context.Context, className string, ref valueobjects.NodeRef) (entities.BusinessObject, error)
}

// DropReason explains why a view element was left out of the scene
type DropReason string

const (
	ReasonObjectNotFound  DropReason = "object_not_found"
	ReasonDuplicate       DropReason = "duplicate"
	ReasonMissingEndpoint DropReason = "missing_endpoint"
	ReasonEndpointPruned  DropReason = "endpoint_pruned"
)

// DroppedNode is a saved node that could not be placed
type DroppedNode struct {
	Node   aggregates.ViewNode
	Reason DropReason
}

// DroppedEdge is a saved edge that could not be drawn
type DroppedEdge struct {
	Edge   aggregates.ViewEdge
	Reason DropReason
}

// Resolution is the outcome of resolving one document
type Resolution struct {
	Scene         *aggregates.Scene
	OrphanedNodes []DroppedNode
	DroppedEdges  []DroppedEdge
	Dirty         bool
}

// ReferenceResolver maps the references of a parsed document onto live
// business objects
type ReferenceResolver struct {
	directory ObjectLookup
}

// NewReferenceResolver creates a resolver over the given directory
func NewReferenceResolver(directory ObjectLookup) *ReferenceResolver {
	return &ReferenceResolver{directory: directory}
}

// Resolve processes every node, then every edge. Edge endpoints are looked
// up in the index of nodes placed by the node pass, never in the
// directory, so an edge may name a node serialized after it.
func (r *ReferenceResolver) Resolve(ctx context.Context, doc *aggregates.ViewDocument) (*Resolution, error) {
	res := &Resolution{Scene: &aggregates.Scene{}}
	index := newNodeIndex()

	for _, node := range doc.Nodes {
		obj, err := r.directory.LookupLight(ctx, node.ClassName, node.Ref)
		if err != nil {
			if pkgerrors.IsNotFound(err) {
				res.OrphanedNodes = append(res.OrphanedNodes, DroppedNode{Node: node, Reason: ReasonObjectNotFound})
				res.Dirty = true
				continue
			}
			return nil, lookupFailed(node.ClassName, node.Ref, err)
		}

		element := aggregates.NodeElement{Node: node, Object: obj}
		if !index.add(element) {
			res.OrphanedNodes = append(res.OrphanedNodes, DroppedNode{Node: node, Reason: ReasonDuplicate})
			res.Dirty = true
			continue
		}
		res.Scene.Nodes = append(res.Scene.Nodes, element)
	}

	drawn := make(map[string]bool, len(doc.Edges))
	for _, edge := range doc.Edges {
		aSide, okA := index.find(edge.ASide.Ref)
		bSide, okB := index.find(edge.BSide.Ref)
		if !okA || !okB {
			res.DroppedEdges = append(res.DroppedEdges, DroppedEdge{Edge: edge, Reason: ReasonMissingEndpoint})
			res.Dirty = true
			continue
		}

		obj, err := r.directory.LookupLight(ctx, edge.ClassName, edge.Ref)
		if err != nil {
			if pkgerrors.IsNotFound(err) {
				res.DroppedEdges = append(res.DroppedEdges, DroppedEdge{Edge: edge, Reason: ReasonObjectNotFound})
				res.Dirty = true
				continue
			}
			return nil, lookupFailed(edge.ClassName, edge.Ref, err)
		}

		if drawn[obj.Identity()] {
			res.DroppedEdges = append(res.DroppedEdges, DroppedEdge{Edge: edge, Reason: ReasonDuplicate})
			res.Dirty = true
			continue
		}
		drawn[obj.Identity()] = true

		res.Scene.Edges = append(res.Scene.Edges, aggregates.EdgeElement{
			Edge:   edge,
			Object: obj,
			ASide:  aSide.Object,
			BSide:  bSide.Object,
		})
	}

	return res, nil
}

func lookupFailed(className string, ref valueobjects.NodeRef, err error) error {
	return pkgerrors.NewUnavailableError("object directory", err).
		WithDetails(map[string]interface{}{
			"class": className,
			"ref":   ref.String(),
		})
}

// nodeIndex finds placed nodes by the reference written in the document
// and by every identifier of the object they resolved to, so documents
// mixing numeric and UUID references still connect.
type nodeIndex struct {
	byRef      map[valueobjects.NodeRef]aggregates.NodeElement
	identities map[string]bool
}

func newNodeIndex() *nodeIndex {
	return &nodeIndex{
		byRef:      make(map[valueobjects.NodeRef]aggregates.NodeElement),
		identities: make(map[string]bool),
	}
}

// add returns false when the object is already placed
func (i *nodeIndex) add(el aggregates.NodeElement) bool {
	identity := el.Object.Identity()
	if i.identities[identity] {
		return false
	}
	i.identities[identity] = true

	i.byRef[el.Node.Ref] = el
	if el.Object.HasUUID() {
		if ref, err := valueobjects.NewUUIDRef(el.Object.ID); err == nil {
			i.byRef[ref] = el
		}
	}
	if el.Object.LegacyID != 0 {
		i.byRef[valueobjects.NewLegacyRef(el.Object.LegacyID)] = el
	}
	return true
}

func (i *nodeIndex) find(ref valueobjects.NodeRef) (aggregates.NodeElement, bool) {
	el, ok := i.byRef[ref]
	return el, ok
}

func (d DroppedNode) String() string {
	return fmt.Sprintf("%s %s (%s)", d.Node.ClassName, d.Node.Ref, d.Reason)
}

func (d DroppedEdge) String() string {
	return fmt.Sprintf("%s %s (%s)", d.Edge.ClassName, d.Edge.Ref, d.Reason)
}
