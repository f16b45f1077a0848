package fixtures

import (
	"fmt"

	"inventory/domain/core/aggregates"
	"inventory/domain/core/entities"
	"inventory/domain/core/valueobjects"
	"github.com/google/uuid"
)

// ObjectBuilder helps create test business objects with default values
type ObjectBuilder struct {
	className string
	id        string
	legacyID  int64
	name      string
}

func NewObjectBuilder() *ObjectBuilder {
	return &ObjectBuilder{
		className: "Rack",
		id:        uuid.New().String(),
		name:      "Test Object",
	}
}

func (b *ObjectBuilder) WithClass(className string) *ObjectBuilder {
	b.className = className
	return b
}

func (b *ObjectBuilder) WithUUID(id string) *ObjectBuilder {
	b.id = id
	return b
}

// WithLegacyID sets the numeric id. Combine with WithoutUUID for objects
// that predate UUID assignment.
func (b *ObjectBuilder) WithLegacyID(id int64) *ObjectBuilder {
	b.legacyID = id
	return b
}

func (b *ObjectBuilder) WithoutUUID() *ObjectBuilder {
	b.id = ""
	return b
}

func (b *ObjectBuilder) WithName(name string) *ObjectBuilder {
	b.name = name
	return b
}

func (b *ObjectBuilder) Build() entities.BusinessObject {
	return entities.BusinessObject{
		ClassName: b.className,
		ID:        b.id,
		LegacyID:  b.legacyID,
		Name:      b.name,
	}
}

// Connect builds a connection object between two endpoints
func Connect(className string, legacyID int64, aSide, bSide entities.BusinessObject) entities.Connection {
	return entities.Connection{
		Object: NewObjectBuilder().
			WithClass(className).
			WithLegacyID(legacyID).
			WithName(fmt.Sprintf("%s-%d", className, legacyID)).
			Build(),
		ASide: aSide,
		BSide: bSide,
	}
}

// DocumentBuilder assembles view documents referencing test objects
type DocumentBuilder struct {
	doc *aggregates.ViewDocument
}

func NewDocumentBuilder() *DocumentBuilder {
	return &DocumentBuilder{doc: aggregates.NewViewDocument(aggregates.ViewClassDefault)}
}

func (b *DocumentBuilder) WithVersion(version string) *DocumentBuilder {
	b.doc.Version = version
	return b
}

// WithNode places obj at (x, y) under the reference the object exposes
func (b *DocumentBuilder) WithNode(obj entities.BusinessObject, x, y int) *DocumentBuilder {
	return b.WithNodeRef(obj.Ref(), obj.ClassName, x, y)
}

func (b *DocumentBuilder) WithNodeRef(ref valueobjects.NodeRef, className string, x, y int) *DocumentBuilder {
	b.doc.Nodes = append(b.doc.Nodes, aggregates.ViewNode{
		Ref:       ref,
		ClassName: className,
		Position:  valueobjects.NewPoint(x, y),
	})
	return b
}

// WithEdge draws conn between the references its endpoints expose
func (b *DocumentBuilder) WithEdge(conn entities.Connection, controlPoints ...valueobjects.Point) *DocumentBuilder {
	b.doc.Edges = append(b.doc.Edges, aggregates.ViewEdge{
		Ref:           conn.Object.Ref(),
		ClassName:     conn.Object.ClassName,
		ASide:         endpoint(conn.ASide),
		BSide:         endpoint(conn.BSide),
		ControlPoints: controlPoints,
	})
	return b
}

func (b *DocumentBuilder) Build() *aggregates.ViewDocument {
	return b.doc
}

func endpoint(obj entities.BusinessObject) aggregates.Endpoint {
	ep := aggregates.Endpoint{Ref: obj.Ref()}
	if ep.Ref.IsUUID() {
		ep.ClassName = obj.ClassName
	}
	return ep
}
