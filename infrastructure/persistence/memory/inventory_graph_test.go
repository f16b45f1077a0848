package memory

import (
	"context"
	"strings"
	"testing"

	"inventory/application/ports"
	"inventory/domain/core/entities"
	"inventory/domain/core/valueobjects"
	pkgerrors "inventory/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var room = ports.ObjectKey{ClassName: "Room", ID: "1"}

func loadTestGraph(t *testing.T) *InventoryGraph {
	t.Helper()
	g, err := LoadFixturesFile("testdata/inventory.yaml")
	require.NoError(t, err)
	return g
}

func TestLoadFixtures(t *testing.T) {
	ctx := context.Background()
	g := loadTestGraph(t)

	children, err := g.GetChildren(ctx, room)
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, int64(10), children[0].LegacyID)
	assert.Equal(t, "2f4c8d16-3a5b-4c7d-8e9f-0a1b2c3d4e5f", children[1].ID)
	assert.False(t, children[2].HasUUID())

	connections, err := g.GetConnections(ctx, room)
	require.NoError(t, err)
	require.Len(t, connections, 1)
	assert.Equal(t, int64(10), connections[0].ASide.LegacyID)
	assert.Equal(t, int64(11), connections[0].BSide.LegacyID)

	view, err := g.GetView(ctx, room, "DefaultView")
	require.NoError(t, err)
	assert.Contains(t, string(view.Structure), `<view version="1.1">`)
}

func TestLoadFixtures_UnknownParent(t *testing.T) {
	_, err := LoadFixtures(strings.NewReader(`
objects:
  - class: Rack
    legacy_id: 5
    parent: "404"
`))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestInventoryGraph_LookupLight(t *testing.T) {
	ctx := context.Background()
	g := loadTestGraph(t)

	byLegacy, err := g.LookupLight(ctx, "Rack", valueobjects.NewLegacyRef(10))
	require.NoError(t, err)
	byUUID, err := g.LookupLight(ctx, "Rack", byLegacy.Ref())
	require.NoError(t, err)
	assert.Equal(t, byLegacy, byUUID)

	_, err = g.LookupLight(ctx, "Shelf", valueobjects.NewLegacyRef(10))
	assert.True(t, pkgerrors.IsNotFound(err), "class mismatch is not found")

	_, err = g.LookupLight(ctx, "Rack", valueobjects.NewLegacyRef(999))
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestInventoryGraph_RemoveObject(t *testing.T) {
	ctx := context.Background()
	g := loadTestGraph(t)

	require.NoError(t, g.RemoveObject("11"))

	children, err := g.GetChildren(ctx, room)
	require.NoError(t, err)
	assert.Len(t, children, 2)

	connections, err := g.GetConnections(ctx, room)
	require.NoError(t, err)
	assert.Empty(t, connections, "connections touching the removed object go with it")

	_, err = g.LookupLight(ctx, "Rack", valueobjects.NewLegacyRef(11))
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestInventoryGraph_Views(t *testing.T) {
	ctx := context.Background()
	g := NewInventoryGraph()
	require.NoError(t, g.AddObject(entities.BusinessObject{ClassName: "Room", LegacyID: 1}, ""))

	_, err := g.GetView(ctx, room, "DefaultView")
	assert.True(t, pkgerrors.IsNotFound(err))

	id, err := g.CreateView(ctx, room, "DefaultView", []byte("<view/>"), []byte{1, 2})
	require.NoError(t, err)

	_, err = g.CreateView(ctx, room, "DefaultView", nil, nil)
	assert.True(t, pkgerrors.IsConflict(err))

	require.NoError(t, g.UpdateView(ctx, id, []byte("<view></view>"), nil))
	view, err := g.GetView(ctx, room, "DefaultView")
	require.NoError(t, err)
	assert.Equal(t, "<view></view>", string(view.Structure))

	// returned views are copies
	view.Structure[1] = 'X'
	again, err := g.GetView(ctx, room, "DefaultView")
	require.NoError(t, err)
	assert.Equal(t, "<view></view>", string(again.Structure))

	assert.True(t, pkgerrors.IsNotFound(g.UpdateView(ctx, "missing", nil, nil)))
}

func TestInventoryGraph_Scans(t *testing.T) {
	ctx := context.Background()
	g := loadTestGraph(t)

	var records []ports.ObjectRecord
	require.NoError(t, g.ScanObjects(ctx, func(r ports.ObjectRecord) error {
		records = append(records, r)
		return nil
	}))
	require.Len(t, records, 5)
	assert.Equal(t, int64(1), records[0].InternalID)
	assert.Equal(t, "Link", records[4].ClassName)

	var docs []ports.StoredDocument
	require.NoError(t, g.ScanViewDocuments(ctx, func(d ports.StoredDocument) error {
		docs = append(docs, d)
		return nil
	}))
	require.Len(t, docs, 1)

	docs[0].Structure = []byte("<view/>")
	require.NoError(t, g.SaveViewDocuments(ctx, docs))
	view, err := g.GetView(ctx, room, "DefaultView")
	require.NoError(t, err)
	assert.Equal(t, "<view/>", string(view.Structure))

	err = g.SaveViewDocuments(ctx, []ports.StoredDocument{{ViewID: "missing"}})
	assert.True(t, pkgerrors.IsNotFound(err))
}
