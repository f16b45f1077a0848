package aggregates

import (
	"inventory/domain/core/entities"
)

// Element is anything on the render set that wraps a business object
type Element interface {
	BusinessObject() entities.BusinessObject
	isElement()
}

// NodeElement is a view node whose reference resolved to a live object
type NodeElement struct {
	Node   ViewNode
	Object entities.BusinessObject
}

// BusinessObject returns the wrapped object
func (n NodeElement) BusinessObject() entities.BusinessObject { return n.Object }

func (NodeElement) isElement() {}

// EdgeElement is a view edge whose reference and both endpoints resolved
type EdgeElement struct {
	Edge   ViewEdge
	Object entities.BusinessObject
	ASide  entities.BusinessObject
	BSide  entities.BusinessObject
}

// BusinessObject returns the wrapped connection object
func (e EdgeElement) BusinessObject() entities.BusinessObject { return e.Object }

func (EdgeElement) isElement() {}

// Scene is the render set produced from a view document
type Scene struct {
	Nodes []NodeElement
	Edges []EdgeElement
}

// Elements returns nodes followed by edges
func (s *Scene) Elements() []Element {
	elements := make([]Element, 0, len(s.Nodes)+len(s.Edges))
	for _, n := range s.Nodes {
		elements = append(elements, n)
	}
	for _, e := range s.Edges {
		elements = append(elements, e)
	}
	return elements
}

// FindNode looks a node up by the identity of its business object
func (s *Scene) FindNode(identity string) (NodeElement, bool) {
	for _, n := range s.Nodes {
		if n.Object.Identity() == identity {
			return n, true
		}
	}
	return NodeElement{}, false
}

// HasEdge reports whether a connection object is already drawn
func (s *Scene) HasEdge(identity string) bool {
	for _, e := range s.Edges {
		if e.Object.Identity() == identity {
			return true
		}
	}
	return false
}

// ToDocument serializes the scene back into a document. Header fields
// (version, class, zoom, center, background) are copied from header.
func (s *Scene) ToDocument(header *ViewDocument) *ViewDocument {
	var doc *ViewDocument
	if header == nil {
		doc = NewViewDocument(ViewClassDefault)
	} else {
		doc = header.Clone()
		doc.Nodes = nil
		doc.Edges = nil
	}
	for _, n := range s.Nodes {
		doc.Nodes = append(doc.Nodes, n.Node)
	}
	for _, e := range s.Edges {
		edge := e.Edge
		if edge.ControlPoints != nil {
			edge.ControlPoints = append(edge.ControlPoints[:0:0], edge.ControlPoints...)
		}
		doc.Edges = append(doc.Edges, edge)
	}
	doc.Version = doc.HeaderVersion()
	return doc
}

// Origin tells how a rendered view came to be
type Origin string

const (
	// OriginLoaded means the scene was rebuilt from a saved document
	OriginLoaded Origin = "loaded"
	// OriginGenerated means no document existed and a default layout was built
	OriginGenerated Origin = "generated"
)

// ViewState is either a loaded document or the absence of one
type ViewState interface {
	isViewState()
}

// Loaded carries a saved view that parsed successfully
type Loaded struct {
	ViewID   string
	Document *ViewDocument
}

// Absent means the parent has no saved view of the requested kind
type Absent struct{}

func (Loaded) isViewState() {}
func (Absent) isViewState() {}
