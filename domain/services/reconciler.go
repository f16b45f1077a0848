package services

import (
	"inventory/domain/core/aggregates"
	"inventory/domain/core/entities"
)

// ReconcilePolicy holds the knobs of the reconciliation pass
type ReconcilePolicy struct {
	// PruneStale removes resolved elements whose object is no longer a
	// live child or connection. When false they are rendered and the view
	// is only flagged dirty.
	PruneStale bool

	// SkipUnplaceableConnections keeps placing connections after one of
	// them has an endpoint missing from the scene. When false placement
	// stops at the first such connection.
	SkipUnplaceableConnections bool
}

// ReconciliationResult reports how a view diverged from the live objects
type ReconciliationResult struct {
	Dirty bool

	AddedNodes []aggregates.NodeElement
	AddedEdges []aggregates.EdgeElement

	OrphanedNodes []DroppedNode
	DroppedEdges  []DroppedEdge

	StaleNodes []aggregates.NodeElement
	StaleEdges []aggregates.EdgeElement

	// UnplacedConnections are live connections that could not be drawn
	// because an endpoint is not on the scene.
	UnplacedConnections []entities.Connection
}

// Changed reports whether any element was added, dropped or found stale
func (r *ReconciliationResult) Changed() bool {
	return len(r.AddedNodes) > 0 || len(r.AddedEdges) > 0 ||
		len(r.OrphanedNodes) > 0 || len(r.DroppedEdges) > 0 ||
		len(r.StaleNodes) > 0 || len(r.StaleEdges) > 0
}

// Reconciler merges a resolved view with the live children and
// connections of its parent object
type Reconciler struct {
	layout RowLayout
	policy ReconcilePolicy
}

// NewReconciler creates a reconciler
func NewReconciler(layout RowLayout, policy ReconcilePolicy) *Reconciler {
	return &Reconciler{layout: layout, policy: policy}
}

// Reconcile returns the renderable scene and the divergence report. The
// resolution is not modified.
func (r *Reconciler) Reconcile(
	res *Resolution,
	children []entities.BusinessObject,
	connections []entities.Connection,
) (*aggregates.Scene, *ReconciliationResult) {
	result := &ReconciliationResult{
		OrphanedNodes: res.OrphanedNodes,
		DroppedEdges:  res.DroppedEdges,
	}

	scene := &aggregates.Scene{}
	if res.Scene != nil {
		scene.Nodes = append(scene.Nodes, res.Scene.Nodes...)
		scene.Edges = append(scene.Edges, res.Scene.Edges...)
	}

	liveChildren := make(map[string]bool, len(children))
	for _, c := range children {
		liveChildren[c.Identity()] = true
	}
	liveConnections := make(map[string]bool, len(connections))
	for _, c := range connections {
		liveConnections[c.Object.Identity()] = true
	}

	r.markStale(scene, liveChildren, liveConnections, result)

	result.AddedNodes = r.placeNodes(scene, children)
	result.AddedEdges, result.UnplacedConnections = r.placeConnections(scene, connections)

	result.Dirty = res.Dirty || result.Changed()
	return scene, result
}

// BuildDefault lays out a parent that has no saved view
func (r *Reconciler) BuildDefault(
	children []entities.BusinessObject,
	connections []entities.Connection,
) (*aggregates.Scene, *ReconciliationResult) {
	scene := &aggregates.Scene{}
	result := &ReconciliationResult{}
	result.AddedNodes = r.placeNodes(scene, children)
	result.AddedEdges, result.UnplacedConnections = r.placeConnections(scene, connections)
	return scene, result
}

func (r *Reconciler) markStale(
	scene *aggregates.Scene,
	liveChildren, liveConnections map[string]bool,
	result *ReconciliationResult,
) {
	keptNodes := scene.Nodes[:0:0]
	for _, n := range scene.Nodes {
		if liveChildren[n.Object.Identity()] {
			keptNodes = append(keptNodes, n)
			continue
		}
		result.StaleNodes = append(result.StaleNodes, n)
		if !r.policy.PruneStale {
			keptNodes = append(keptNodes, n)
		}
	}
	scene.Nodes = keptNodes

	keptEdges := scene.Edges[:0:0]
	for _, e := range scene.Edges {
		if !liveConnections[e.Object.Identity()] {
			result.StaleEdges = append(result.StaleEdges, e)
			if !r.policy.PruneStale {
				keptEdges = append(keptEdges, e)
			}
			continue
		}
		if r.policy.PruneStale && !r.endpointsPlaced(scene, e) {
			result.DroppedEdges = append(result.DroppedEdges, DroppedEdge{Edge: e.Edge, Reason: ReasonEndpointPruned})
			continue
		}
		keptEdges = append(keptEdges, e)
	}
	scene.Edges = keptEdges
}

func (r *Reconciler) endpointsPlaced(scene *aggregates.Scene, e aggregates.EdgeElement) bool {
	_, okA := scene.FindNode(e.ASide.Identity())
	_, okB := scene.FindNode(e.BSide.Identity())
	return okA && okB
}

// placeNodes appends every live child missing from the scene
func (r *Reconciler) placeNodes(scene *aggregates.Scene, children []entities.BusinessObject) []aggregates.NodeElement {
	placed := make(map[string]bool, len(scene.Nodes))
	for _, n := range scene.Nodes {
		placed[n.Object.Identity()] = true
	}

	var missing []entities.BusinessObject
	for _, c := range children {
		if placed[c.Identity()] {
			continue
		}
		placed[c.Identity()] = true
		missing = append(missing, c)
	}

	positions := r.layout.Positions(len(missing))
	added := make([]aggregates.NodeElement, 0, len(missing))
	for i, c := range missing {
		el := aggregates.NodeElement{
			Node: aggregates.ViewNode{
				Ref:       c.Ref(),
				ClassName: c.ClassName,
				Position:  positions[i],
			},
			Object: c,
		}
		scene.Nodes = append(scene.Nodes, el)
		added = append(added, el)
	}
	return added
}

// placeConnections draws every live connection missing from the scene
// between the nodes already placed for its endpoints
func (r *Reconciler) placeConnections(
	scene *aggregates.Scene,
	connections []entities.Connection,
) ([]aggregates.EdgeElement, []entities.Connection) {
	var added []aggregates.EdgeElement
	var unplaced []entities.Connection

	for i, conn := range connections {
		if scene.HasEdge(conn.Object.Identity()) {
			continue
		}

		aNode, okA := scene.FindNode(conn.ASide.Identity())
		bNode, okB := scene.FindNode(conn.BSide.Identity())
		if !okA || !okB {
			if !r.policy.SkipUnplaceableConnections {
				for _, rest := range connections[i:] {
					if !scene.HasEdge(rest.Object.Identity()) {
						unplaced = append(unplaced, rest)
					}
				}
				break
			}
			unplaced = append(unplaced, conn)
			continue
		}

		el := aggregates.EdgeElement{
			Edge: aggregates.ViewEdge{
				Ref:       conn.Object.Ref(),
				ClassName: conn.Object.ClassName,
				ASide:     endpointFor(aNode),
				BSide:     endpointFor(bNode),
			},
			Object: conn.Object,
			ASide:  aNode.Object,
			BSide:  bNode.Object,
		}
		scene.Edges = append(scene.Edges, el)
		added = append(added, el)
	}
	return added, unplaced
}

// endpointFor points at the reference the node carries in the document.
// Class-qualified endpoints are only written for UUID references.
func endpointFor(node aggregates.NodeElement) aggregates.Endpoint {
	ep := aggregates.Endpoint{Ref: node.Node.Ref}
	if node.Node.Ref.IsUUID() {
		ep.ClassName = node.Object.ClassName
	}
	return ep
}
