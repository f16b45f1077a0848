package aggregates

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"inventory/domain/core/valueobjects"
)

// Known format versions. Documents below VersionUUID reference objects by
// numeric id, VersionUUID documents by UUID only.
const (
	Version10   = "1.0"
	Version11   = "1.1"
	VersionUUID = "1.2"

	CurrentVersion = VersionUUID
)

// CompareVersions orders two "major.minor" version strings numerically.
// Missing or non-numeric parts count as zero.
func CompareVersions(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(pa) || i < len(pb); i++ {
		x, y := versionPart(pa, i), versionPart(pb, i)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
	if err != nil {
		return 0
	}
	return n
}

// IsUUIDVersion reports whether documents of version v reference objects
// by UUID only
func IsUUIDVersion(v string) bool {
	return CompareVersions(v, VersionUUID) >= 0
}

// Known view kinds
const (
	ViewClassDefault   = "DefaultView"
	ViewClassSDHModule = "SDHModuleView"
	ViewClassEndToEnd  = "EndToEndView"
	ViewClassTopology  = "TopologyView"
)

// ViewNode places one business object on the canvas
type ViewNode struct {
	Ref       valueobjects.NodeRef
	ClassName string
	Position  valueobjects.Point
}

// Endpoint is one side of a ViewEdge. ClassName is empty in documents
// written with the legacy aside/bside attributes.
type Endpoint struct {
	Ref       valueobjects.NodeRef
	ClassName string
}

// ViewEdge draws one connection between two ViewNodes
type ViewEdge struct {
	Ref           valueobjects.NodeRef
	ClassName     string
	ASide         Endpoint
	BSide         Endpoint
	ControlPoints []valueobjects.Point
}

// ViewDocument is the in-memory form of a saved diagram. Background
// travels beside the XML structure and is never part of it.
type ViewDocument struct {
	Version    string
	ViewClass  string
	Zoom       *int
	Center     *valueobjects.Center
	Nodes      []ViewNode
	Edges      []ViewEdge
	Background []byte
}

// NewViewDocument creates an empty document of the current version
func NewViewDocument(viewClass string) *ViewDocument {
	return &ViewDocument{
		Version:   CurrentVersion,
		ViewClass: viewClass,
	}
}

// AddNode appends a node
func (d *ViewDocument) AddNode(node ViewNode) error {
	if node.Ref.IsZero() {
		return errors.New("node reference required")
	}
	d.Nodes = append(d.Nodes, node)
	return nil
}

// AddEdge appends an edge
func (d *ViewDocument) AddEdge(edge ViewEdge) error {
	if edge.Ref.IsZero() {
		return errors.New("edge reference required")
	}
	if edge.ASide.Ref.IsZero() || edge.BSide.Ref.IsZero() {
		return errors.New("edge endpoints required")
	}
	d.Edges = append(d.Edges, edge)
	return nil
}

// FindNode returns the first node carrying the given reference
func (d *ViewDocument) FindNode(ref valueobjects.NodeRef) (ViewNode, bool) {
	for _, n := range d.Nodes {
		if n.Ref == ref {
			return n, true
		}
	}
	return ViewNode{}, false
}

// UsesLegacyIDs reports whether any reference in the document is numeric
func (d *ViewDocument) UsesLegacyIDs() bool {
	for _, n := range d.Nodes {
		if n.Ref.IsLegacy() {
			return true
		}
	}
	for _, e := range d.Edges {
		if e.Ref.IsLegacy() || e.ASide.Ref.IsLegacy() || e.BSide.Ref.IsLegacy() {
			return true
		}
	}
	return false
}

// HeaderVersion is the version a writer must put in the header. A UUID
// version is only valid while every reference is a UUID; otherwise the
// document is written as Version11 so the id migration picks it up.
func (d *ViewDocument) HeaderVersion() string {
	v := d.Version
	if v == "" {
		v = CurrentVersion
	}
	if IsUUIDVersion(v) && d.UsesLegacyIDs() {
		return Version11
	}
	return v
}

// IsCurrent reports whether the document needs no id migration
func (d *ViewDocument) IsCurrent() bool {
	return IsUUIDVersion(d.Version) && !d.UsesLegacyIDs()
}

// Clone returns a deep copy
func (d *ViewDocument) Clone() *ViewDocument {
	clone := &ViewDocument{
		Version:   d.Version,
		ViewClass: d.ViewClass,
	}
	if d.Zoom != nil {
		zoom := *d.Zoom
		clone.Zoom = &zoom
	}
	if d.Center != nil {
		center := *d.Center
		clone.Center = &center
	}
	if d.Nodes != nil {
		clone.Nodes = append([]ViewNode(nil), d.Nodes...)
	}
	if d.Edges != nil {
		clone.Edges = make([]ViewEdge, len(d.Edges))
		for i, e := range d.Edges {
			clone.Edges[i] = e
			if e.ControlPoints != nil {
				clone.Edges[i].ControlPoints = append([]valueobjects.Point(nil), e.ControlPoints...)
			}
		}
	}
	if d.Background != nil {
		clone.Background = append([]byte(nil), d.Background...)
	}
	return clone
}

// Equal compares two documents structurally
func (d *ViewDocument) Equal(other *ViewDocument) bool {
	if d == nil || other == nil {
		return d == other
	}
	if d.Version != other.Version || d.ViewClass != other.ViewClass {
		return false
	}
	if (d.Zoom == nil) != (other.Zoom == nil) || (d.Zoom != nil && *d.Zoom != *other.Zoom) {
		return false
	}
	if (d.Center == nil) != (other.Center == nil) || (d.Center != nil && !d.Center.Equals(*other.Center)) {
		return false
	}
	if len(d.Nodes) != len(other.Nodes) || len(d.Edges) != len(other.Edges) {
		return false
	}
	for i := range d.Nodes {
		if d.Nodes[i] != other.Nodes[i] {
			return false
		}
	}
	for i := range d.Edges {
		if !edgesEqual(d.Edges[i], other.Edges[i]) {
			return false
		}
	}
	return bytes.Equal(d.Background, other.Background)
}

func edgesEqual(a, b ViewEdge) bool {
	if a.Ref != b.Ref || a.ClassName != b.ClassName || a.ASide != b.ASide || a.BSide != b.BSide {
		return false
	}
	if len(a.ControlPoints) != len(b.ControlPoints) {
		return false
	}
	for i := range a.ControlPoints {
		if a.ControlPoints[i] != b.ControlPoints[i] {
			return false
		}
	}
	return true
}
