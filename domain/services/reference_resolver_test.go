package services

import (
	"context"
	"errors"
	"testing"

	"inventory/domain/core/entities"
	"inventory/domain/core/valueobjects"
	pkgerrors "inventory/pkg/errors"
	"inventory/tests/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockObjectLookup is a mock implementation of ObjectLookup
type MockObjectLookup struct {
	mock.Mock
}

func (m *MockObjectLookup) LookupLight(ctx context.Context, className string, ref valueobjects.NodeRef) (entities.BusinessObject, error) {
	args := m.Called(ctx, className, ref)
	return args.Get(0).(entities.BusinessObject), args.Error(1)
}

func (m *MockObjectLookup) expect(obj entities.BusinessObject) {
	m.On("LookupLight", mock.Anything, obj.ClassName, obj.Ref()).Return(obj, nil)
}

func (m *MockObjectLookup) expectMissing(className string, ref valueobjects.NodeRef) {
	m.On("LookupLight", mock.Anything, className, ref).
		Return(entities.BusinessObject{}, pkgerrors.NewNotFoundError(className))
}

func TestReferenceResolver_Resolve_AllReferencesLive(t *testing.T) {
	ctx := context.Background()
	rackA := fixtures.NewObjectBuilder().WithoutUUID().WithLegacyID(1).Build()
	rackB := fixtures.NewObjectBuilder().WithoutUUID().WithLegacyID(2).Build()
	link := fixtures.Connect("Link", 10, rackA, rackB)

	doc := fixtures.NewDocumentBuilder().
		WithVersion("1.1").
		WithNode(rackA, 0, 0).
		WithNode(rackB, 100, 0).
		WithEdge(link, valueobjects.NewPoint(50, 20)).
		Build()

	lookup := new(MockObjectLookup)
	lookup.expect(rackA)
	lookup.expect(rackB)
	lookup.expect(link.Object)

	res, err := NewReferenceResolver(lookup).Resolve(ctx, doc)

	require.NoError(t, err)
	assert.False(t, res.Dirty)
	assert.Len(t, res.Scene.Nodes, 2)
	require.Len(t, res.Scene.Edges, 1)
	assert.Equal(t, rackA, res.Scene.Edges[0].ASide)
	assert.Equal(t, rackB, res.Scene.Edges[0].BSide)
	assert.Equal(t, []valueobjects.Point{{X: 50, Y: 20}}, res.Scene.Edges[0].Edge.ControlPoints)
	lookup.AssertExpectations(t)
}

func TestReferenceResolver_Resolve_OrphanedNodeDropsItsEdges(t *testing.T) {
	ctx := context.Background()
	rackA := fixtures.NewObjectBuilder().WithoutUUID().WithLegacyID(1).Build()
	gone := fixtures.NewObjectBuilder().WithoutUUID().WithLegacyID(2).Build()
	link := fixtures.Connect("Link", 10, rackA, gone)

	doc := fixtures.NewDocumentBuilder().
		WithNode(rackA, 0, 0).
		WithNode(gone, 100, 0).
		WithEdge(link).
		Build()

	lookup := new(MockObjectLookup)
	lookup.expect(rackA)
	lookup.expectMissing(gone.ClassName, gone.Ref())

	res, err := NewReferenceResolver(lookup).Resolve(ctx, doc)

	require.NoError(t, err)
	assert.True(t, res.Dirty)
	assert.Len(t, res.Scene.Nodes, 1)
	assert.Empty(t, res.Scene.Edges)
	require.Len(t, res.OrphanedNodes, 1)
	assert.Equal(t, ReasonObjectNotFound, res.OrphanedNodes[0].Reason)
	require.Len(t, res.DroppedEdges, 1)
	assert.Equal(t, ReasonMissingEndpoint, res.DroppedEdges[0].Reason)

	// the edge object is never looked up once an endpoint is missing
	lookup.AssertNotCalled(t, "LookupLight", mock.Anything, "Link", link.Object.Ref())
}

func TestReferenceResolver_Resolve_EdgeObjectGone(t *testing.T) {
	ctx := context.Background()
	rackA := fixtures.NewObjectBuilder().Build()
	rackB := fixtures.NewObjectBuilder().Build()
	link := fixtures.Connect("Link", 10, rackA, rackB)

	doc := fixtures.NewDocumentBuilder().
		WithNode(rackA, 0, 0).
		WithNode(rackB, 100, 0).
		WithEdge(link).
		Build()

	lookup := new(MockObjectLookup)
	lookup.expect(rackA)
	lookup.expect(rackB)
	lookup.expectMissing("Link", link.Object.Ref())

	res, err := NewReferenceResolver(lookup).Resolve(ctx, doc)

	require.NoError(t, err)
	assert.True(t, res.Dirty)
	assert.Len(t, res.Scene.Nodes, 2)
	assert.Empty(t, res.Scene.Edges)
	require.Len(t, res.DroppedEdges, 1)
	assert.Equal(t, ReasonObjectNotFound, res.DroppedEdges[0].Reason)
}

func TestReferenceResolver_Resolve_DuplicateNode(t *testing.T) {
	ctx := context.Background()
	rack := fixtures.NewObjectBuilder().Build()

	doc := fixtures.NewDocumentBuilder().
		WithNode(rack, 0, 0).
		WithNode(rack, 300, 300).
		Build()

	lookup := new(MockObjectLookup)
	lookup.expect(rack)

	res, err := NewReferenceResolver(lookup).Resolve(ctx, doc)

	require.NoError(t, err)
	assert.True(t, res.Dirty)
	require.Len(t, res.Scene.Nodes, 1)
	assert.Equal(t, valueobjects.NewPoint(0, 0), res.Scene.Nodes[0].Node.Position)
	require.Len(t, res.OrphanedNodes, 1)
	assert.Equal(t, ReasonDuplicate, res.OrphanedNodes[0].Reason)
}

func TestReferenceResolver_Resolve_EndpointByObjectIdentifier(t *testing.T) {
	ctx := context.Background()
	// Node written with its numeric id, edge endpoint with its UUID
	rackA := fixtures.NewObjectBuilder().WithLegacyID(1).Build()
	rackB := fixtures.NewObjectBuilder().WithLegacyID(2).Build()
	link := fixtures.Connect("Link", 10, rackA, rackB)

	doc := fixtures.NewDocumentBuilder().
		WithNodeRef(valueobjects.NewLegacyRef(1), rackA.ClassName, 0, 0).
		WithNode(rackB, 100, 0).
		WithEdge(link).
		Build()

	lookup := new(MockObjectLookup)
	lookup.On("LookupLight", mock.Anything, rackA.ClassName, valueobjects.NewLegacyRef(1)).Return(rackA, nil)
	lookup.expect(rackB)
	lookup.expect(link.Object)

	res, err := NewReferenceResolver(lookup).Resolve(ctx, doc)

	require.NoError(t, err)
	assert.False(t, res.Dirty)
	assert.Len(t, res.Scene.Edges, 1)
}

func TestReferenceResolver_Resolve_EdgeBeforeItsNodes(t *testing.T) {
	ctx := context.Background()
	rackA := fixtures.NewObjectBuilder().WithoutUUID().WithLegacyID(1).Build()
	rackB := fixtures.NewObjectBuilder().WithoutUUID().WithLegacyID(2).Build()
	link := fixtures.Connect("Link", 10, rackA, rackB)

	// Edges are resolved after every node regardless of document order
	doc := fixtures.NewDocumentBuilder().WithEdge(link).Build()
	doc.Nodes = append(doc.Nodes,
		fixtures.NewDocumentBuilder().WithNode(rackB, 1, 1).WithNode(rackA, 2, 2).Build().Nodes...)

	lookup := new(MockObjectLookup)
	lookup.expect(rackA)
	lookup.expect(rackB)
	lookup.expect(link.Object)

	res, err := NewReferenceResolver(lookup).Resolve(ctx, doc)

	require.NoError(t, err)
	assert.False(t, res.Dirty)
	assert.Len(t, res.Scene.Edges, 1)
}

func TestReferenceResolver_Resolve_DirectoryUnavailable(t *testing.T) {
	ctx := context.Background()
	rack := fixtures.NewObjectBuilder().Build()
	doc := fixtures.NewDocumentBuilder().WithNode(rack, 0, 0).Build()

	lookup := new(MockObjectLookup)
	lookup.On("LookupLight", mock.Anything, rack.ClassName, rack.Ref()).
		Return(entities.BusinessObject{}, errors.New("connection reset"))

	res, err := NewReferenceResolver(lookup).Resolve(ctx, doc)

	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsUnavailable(err))
}

func TestDropped_String(t *testing.T) {
	node := DroppedNode{Reason: ReasonDuplicate}
	node.Node.ClassName = "Rack"
	node.Node.Ref = valueobjects.NewLegacyRef(7)
	assert.Equal(t, "Rack 7 (duplicate)", node.String())
}
