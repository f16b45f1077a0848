package migration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"inventory/application/ports"
	"inventory/application/services"
	"inventory/domain/core/aggregates"
	"inventory/domain/core/valueobjects"
	domainservices "inventory/domain/services"
	"inventory/domain/viewxml"
	"inventory/infrastructure/messaging"
	"inventory/infrastructure/persistence/memory"
	pkgerrors "inventory/pkg/errors"
	"inventory/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	uuidRack10 = "0b7e9a52-1c2d-4e3f-9a4b-5c6d7e8f9012"
	uuidRack11 = "2f4c8d16-3a5b-4c7d-8e9f-0a1b2c3d4e5f"
	uuidLink   = "9e8d7c6b-5a49-4382-a1b0-c9d8e7f6a5b4"
)

const inventoryYAML = `
objects:
  - {class: Room, uuid: 6d1f0c1a-2b3c-4d5e-8f90-a1b2c3d4e5f6, legacy_id: 1}
  - {class: Rack, uuid: ` + uuidRack10 + `, legacy_id: 10, parent: "1"}
  - {class: Rack, uuid: ` + uuidRack11 + `, legacy_id: 11, parent: "1"}
  - {class: Rack, legacy_id: 12, name: reused, parent: "1"}
  - {class: Shelf, uuid: 7a6b5c4d-3e2f-4a1b-9c8d-7e6f5a4b3c2d, legacy_id: 13, parent: "1"}
connections:
  - {class: Link, uuid: ` + uuidLink + `, legacy_id: 100, parent: "1", a_side: "10", b_side: "11"}
  - {class: Link, uuid: 1c2d3e4f-5a6b-4c7d-8e9f-a0b1c2d3e4f5, legacy_id: 101, parent: "1", a_side: "10", b_side: "12"}
views:
  - owner_class: Room
    owner: "1"
    view_class: DefaultView
    structure: |
      <view version="1.1">
        <class>DefaultView</class>
        <zoom>3</zoom>
        <nodes>
          <node x="10" y="10" class="Rack">10</node>
          <node x="110" y="10" class="Rack">11</node>
          <node x="210" y="10" class="Rack">12</node>
          <node x="310" y="10" class="Rack">13</node>
          <node x="410" y="10" class="Rack">99</node>
        </nodes>
        <edges>
          <edge id="100" class="Link" aside="10" bside="11"><controlpoint x="60" y="30"/></edge>
          <edge id="101" class="Link" aside="10" bside="12"/>
        </edges>
      </view>
  - owner_class: Rack
    owner: "10"
    view_class: DefaultView
    structure: <view version="1.2"><class>DefaultView</class><nodes></nodes><edges></edges></view>
  - owner_class: Rack
    owner: "11"
    view_class: DefaultView
    structure: <view version="1.1"><nodes>
`

var roomKey = ports.ObjectKey{ClassName: "Room", ID: "1"}

func newTestGraph(t *testing.T) *memory.InventoryGraph {
	t.Helper()
	g, err := memory.LoadFixtures(strings.NewReader(inventoryYAML))
	require.NoError(t, err)
	return g
}

func newTestMigrator(store ports.InventoryStore) *Migrator {
	return NewMigrator(store, observability.NewCollector("test"), zap.NewNop())
}

func roomView(t *testing.T, g *memory.InventoryGraph) *aggregates.ViewDocument {
	t.Helper()
	stored, err := g.GetView(context.Background(), roomKey, "DefaultView")
	require.NoError(t, err)
	doc, err := viewxml.Parse(stored.Structure)
	require.NoError(t, err)
	return doc
}

func diagnosticsOf(report *Report, kind DiagnosticKind) []Diagnostic {
	var out []Diagnostic
	for _, d := range report.Diagnostics {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func TestMigrator_Run(t *testing.T) {
	g := newTestGraph(t)

	report, err := newTestMigrator(g).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 7, report.ObjectsScanned)
	assert.Equal(t, 3, report.DocumentsScanned)
	assert.Equal(t, 1, report.DocumentsMigrated)
	assert.Equal(t, 1, report.DocumentsAlreadyCurrent)
	assert.Equal(t, 1, report.DocumentsMalformed)
	assert.Equal(t, 1, report.DocumentsCommitted)
	assert.Equal(t, 2, report.NodesRewritten)
	assert.Equal(t, 3, report.NodesSkipped)
	assert.Equal(t, 1, report.EdgesRewritten)
	assert.Equal(t, 1, report.EdgesSkipped)

	require.Len(t, report.Stages, 3)
	for _, s := range report.Stages {
		assert.Equal(t, StageCompleted, s.Status, s.Name)
	}

	doc := roomView(t, g)
	assert.Equal(t, aggregates.VersionUUID, doc.Version)
	assert.False(t, doc.UsesLegacyIDs())
	require.NotNil(t, doc.Zoom)
	assert.Equal(t, 3, *doc.Zoom)

	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, uuidRack10, doc.Nodes[0].Ref.String())
	assert.Equal(t, valueobjects.NewPoint(10, 10), doc.Nodes[0].Position)
	assert.Equal(t, uuidRack11, doc.Nodes[1].Ref.String())

	require.Len(t, doc.Edges, 1)
	edge := doc.Edges[0]
	assert.Equal(t, uuidLink, edge.Ref.String())
	assert.Equal(t, aggregates.Endpoint{Ref: doc.Nodes[0].Ref, ClassName: "Rack"}, edge.ASide)
	assert.Equal(t, aggregates.Endpoint{Ref: doc.Nodes[1].Ref, ClassName: "Rack"}, edge.BSide)
	assert.Equal(t, []valueobjects.Point{{X: 60, Y: 30}}, edge.ControlPoints)
}

func TestMigrator_Run_SkipsReusedIDsAndKeepsGoing(t *testing.T) {
	g := newTestGraph(t)

	report, err := newTestMigrator(g).Run(context.Background(), Options{})
	require.NoError(t, err)

	reuse := diagnosticsOf(report, DiagnosticIDReuse)
	require.Len(t, reuse, 2)
	assert.Equal(t, "12", reuse[0].Ref, "record without uuid")
	assert.Equal(t, "13", reuse[1].Ref, "record of another class")

	dangling := diagnosticsOf(report, DiagnosticDangling)
	require.Len(t, dangling, 1)
	assert.Equal(t, "99", dangling[0].Ref)

	skipped := diagnosticsOf(report, DiagnosticEdgeSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, "101", skipped[0].Ref)

	assert.Len(t, diagnosticsOf(report, DiagnosticMalformed), 1)
}

func TestMigrator_Run_DryRunWritesNothing(t *testing.T) {
	g := newTestGraph(t)
	before := roomView(t, g)

	report, err := newTestMigrator(g).Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.DocumentsMigrated)
	assert.Zero(t, report.DocumentsCommitted)
	require.Len(t, report.Stages, 3)
	assert.Equal(t, StageSkipped, report.Stages[2].Status)

	assert.True(t, before.Equal(roomView(t, g)))
}

func TestMigrator_Run_IsIdempotent(t *testing.T) {
	g := newTestGraph(t)
	m := newTestMigrator(g)

	_, err := m.Run(context.Background(), Options{})
	require.NoError(t, err)
	report, err := m.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Zero(t, report.DocumentsMigrated)
	assert.Equal(t, 2, report.DocumentsAlreadyCurrent)
	assert.Zero(t, report.DocumentsCommitted)
}

// blockingStore parks the prescan until released
type blockingStore struct {
	ports.InventoryStore
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) ScanObjects(ctx context.Context, fn func(ports.ObjectRecord) error) error {
	close(s.entered)
	<-s.release
	return s.InventoryStore.ScanObjects(ctx, fn)
}

func TestMigrator_Run_NotReentrant(t *testing.T) {
	store := &blockingStore{
		InventoryStore: newTestGraph(t),
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	m := newTestMigrator(store)

	done := make(chan error, 1)
	go func() {
		_, err := m.Run(context.Background(), Options{DryRun: true})
		done <- err
	}()

	select {
	case <-store.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never started")
	}
	assert.True(t, m.Running())

	_, err := m.Run(context.Background(), Options{DryRun: true})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))

	close(store.release)
	require.NoError(t, <-done)
	assert.False(t, m.Running())
}

type failingStore struct {
	ports.InventoryStore
	saved bool
}

func (s *failingStore) ScanViewDocuments(ctx context.Context, fn func(ports.StoredDocument) error) error {
	return errors.New("scan interrupted")
}

func (s *failingStore) SaveViewDocuments(ctx context.Context, docs []ports.StoredDocument) error {
	s.saved = true
	return nil
}

func TestMigrator_Run_StageFailureStopsBeforeCommit(t *testing.T) {
	store := &failingStore{InventoryStore: newTestGraph(t)}

	report, err := newTestMigrator(store).Run(context.Background(), Options{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), StageRewrite)
	require.NotNil(t, report)
	require.Len(t, report.Stages, 2)
	assert.Equal(t, StageCompleted, report.Stages[0].Status)
	assert.Equal(t, StageFailed, report.Stages[1].Status)
	assert.False(t, store.saved)
}

func TestLegacyIDMap(t *testing.T) {
	m := NewLegacyIDMap()
	require.NoError(t, m.Add(ports.ObjectRecord{InternalID: 1, ClassName: "Rack", UUID: "u-1"}))
	require.NoError(t, m.Add(ports.ObjectRecord{InternalID: 2, ClassName: "Rack"}))
	require.NoError(t, m.Add(ports.ObjectRecord{ClassName: "Port", UUID: "u-3"}))

	assert.Error(t, m.Add(ports.ObjectRecord{InternalID: 1, ClassName: "Shelf"}))
	assert.Error(t, m.Add(ports.ObjectRecord{InternalID: 9, UUID: "u-1"}))

	rec, ok := m.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "u-1", rec.UUID)
	id, ok := m.InternalID("u-1")
	require.True(t, ok)
	assert.Equal(t, int64(1), id)
	assert.True(t, m.HasUUID("u-3"))

	assert.True(t, m.AmbiguousID(1))
	assert.False(t, m.AmbiguousID(2))
	assert.True(t, m.AmbiguousUUID("u-1"))
	assert.False(t, m.AmbiguousUUID("u-3"))
	assert.Equal(t, 4, m.Len())
}

// sliceStore serves fixed records and documents and keeps what is saved
type sliceStore struct {
	records []ports.ObjectRecord
	docs    []ports.StoredDocument
	saved   []ports.StoredDocument
}

func (s *sliceStore) ScanObjects(ctx context.Context, fn func(ports.ObjectRecord) error) error {
	for _, r := range s.records {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *sliceStore) ScanViewDocuments(ctx context.Context, fn func(ports.StoredDocument) error) error {
	for _, d := range s.docs {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func (s *sliceStore) SaveViewDocuments(ctx context.Context, docs []ports.StoredDocument) error {
	s.saved = append(s.saved, docs...)
	return nil
}

func TestMigrator_Run_CollidingRecordsAreSkippedNotFatal(t *testing.T) {
	const sharedUUID = "5b1c2d3e-4f5a-4b6c-8d7e-9f0a1b2c3d4e"
	store := &sliceStore{
		records: []ports.ObjectRecord{
			{InternalID: 10, ClassName: "Rack", UUID: uuidRack10},
			{InternalID: 11, ClassName: "Rack", UUID: uuidRack11},
			{InternalID: 50, ClassName: "Port", UUID: sharedUUID},
			{InternalID: 51, ClassName: "Port", UUID: sharedUUID},
		},
		docs: []ports.StoredDocument{{
			ViewID:    "view-1",
			Owner:     roomKey,
			ViewClass: "DefaultView",
			Structure: []byte(`<view version="1.1"><class>DefaultView</class><nodes>` +
				`<node x="0" y="0" class="Rack">10</node>` +
				`<node x="100" y="0" class="Rack">11</node>` +
				`<node x="200" y="0" class="Port">50</node>` +
				`<node x="300" y="0" class="Port">` + sharedUUID + `</node>` +
				`</nodes><edges></edges></view>`),
		}},
	}

	report, err := newTestMigrator(store).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, report.ObjectsScanned)
	assert.Equal(t, 1, report.DocumentsMigrated)
	assert.Equal(t, 1, report.DocumentsCommitted)
	assert.Equal(t, 2, report.NodesRewritten)
	assert.Equal(t, 2, report.NodesSkipped)

	ambiguous := diagnosticsOf(report, DiagnosticAmbiguous)
	require.Len(t, ambiguous, 1)
	assert.Equal(t, "51", ambiguous[0].Ref)
	assert.Empty(t, ambiguous[0].ViewID)
	assert.Len(t, diagnosticsOf(report, DiagnosticIDReuse), 2)

	require.Len(t, store.saved, 1)
	doc, err := viewxml.Parse(store.saved[0].Structure)
	require.NoError(t, err)
	assert.True(t, doc.IsCurrent())
	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, uuidRack10, doc.Nodes[0].Ref.String())
	assert.Equal(t, uuidRack11, doc.Nodes[1].Ref.String())
}

func TestMigrator_Run_DuplicateNodesCollapse(t *testing.T) {
	store := &sliceStore{
		records: []ports.ObjectRecord{
			{InternalID: 10, ClassName: "Rack", UUID: uuidRack10},
			{InternalID: 11, ClassName: "Rack", UUID: uuidRack11},
		},
		docs: []ports.StoredDocument{{
			ViewID:    "view-1",
			Owner:     roomKey,
			ViewClass: "DefaultView",
			Structure: []byte(`<view version="1.1"><class>DefaultView</class><nodes>` +
				`<node x="0" y="0" class="Rack">10</node>` +
				`<node x="50" y="50" class="Rack">` + uuidRack10 + `</node>` +
				`<node x="100" y="0" class="Rack">11</node>` +
				`</nodes><edges>` +
				`<edge id="100" class="Link" asideid="` + uuidRack10 + `" asideclass="Rack" bside="11"/>` +
				`</edges></view>`),
		}},
	}
	store.records = append(store.records, ports.ObjectRecord{InternalID: 100, ClassName: "Link", UUID: uuidLink})

	report, err := newTestMigrator(store).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.NodesRewritten)
	assert.Equal(t, 1, report.NodesSkipped)
	dups := diagnosticsOf(report, DiagnosticDuplicate)
	require.Len(t, dups, 1)
	assert.Equal(t, uuidRack10, dups[0].Ref)

	require.Len(t, store.saved, 1)
	doc, err := viewxml.Parse(store.saved[0].Structure)
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, valueobjects.NewPoint(0, 0), doc.Nodes[0].Position)
	require.Len(t, doc.Edges, 1)
	assert.Equal(t, uuidRack10, doc.Edges[0].ASide.Ref.String())
}

func TestMigrator_Run_LegacyIDsUnderUUIDHeader(t *testing.T) {
	store := &sliceStore{
		records: []ports.ObjectRecord{
			{InternalID: 10, ClassName: "Rack", UUID: uuidRack10},
		},
		docs: []ports.StoredDocument{
			{
				ViewID: "stale-header",
				Owner:  roomKey,
				Structure: []byte(`<view version="1.2"><class>DefaultView</class><nodes>` +
					`<node x="0" y="0" class="Rack">10</node></nodes><edges></edges></view>`),
			},
			{
				ViewID: "newer",
				Owner:  ports.ObjectKey{ClassName: "Rack", ID: "10"},
				Structure: []byte(`<view version="1.3"><class>DefaultView</class><nodes>` +
					`<node x="0" y="0" class="Rack">10</node></nodes><edges></edges></view>`),
			},
			{
				ViewID: "current",
				Owner:  ports.ObjectKey{ClassName: "Rack", ID: "11"},
				Structure: []byte(`<view version="1.3"><class>DefaultView</class><nodes>` +
					`<node x="0" y="0" class="Rack">` + uuidRack10 + `</node></nodes><edges></edges></view>`),
			},
		},
	}

	report, err := newTestMigrator(store).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.DocumentsMigrated)
	assert.Equal(t, 1, report.DocumentsAlreadyCurrent)
	require.Len(t, store.saved, 2)

	versions := map[string]string{}
	for _, saved := range store.saved {
		doc, err := viewxml.Parse(saved.Structure)
		require.NoError(t, err)
		assert.True(t, doc.IsCurrent(), saved.ViewID)
		versions[saved.ViewID] = doc.Version
	}
	assert.Equal(t, aggregates.VersionUUID, versions["stale-header"])
	assert.Equal(t, "1.3", versions["newer"])
}

func TestMigrator_Run_MigratesSavedDefaultLayout(t *testing.T) {
	ctx := context.Background()
	before, err := memory.LoadFixtures(strings.NewReader(`
objects:
  - {class: Room, uuid: 6d1f0c1a-2b3c-4d5e-8f90-a1b2c3d4e5f6, legacy_id: 1}
  - {class: Rack, legacy_id: 10, parent: "1"}
  - {class: Rack, legacy_id: 11, parent: "1"}
`))
	require.NoError(t, err)

	views := services.NewViewService(
		before, before,
		messaging.NewLogNotifier(zap.NewNop()),
		domainservices.NewReconciler(domainservices.NewRowLayout(), domainservices.ReconcilePolicy{}),
		observability.NewCollector("test"),
		services.ViewServiceOptions{AutoRepair: true},
		zap.NewNop(),
	)
	generated, err := views.OpenView(ctx, roomKey, "DefaultView")
	require.NoError(t, err)
	require.Equal(t, aggregates.OriginGenerated, generated.Origin)
	_, err = views.SaveView(ctx, roomKey, generated.Document)
	require.NoError(t, err)

	saved, err := before.GetView(ctx, roomKey, "DefaultView")
	require.NoError(t, err)
	version, err := viewxml.DetectVersion(saved.Structure)
	require.NoError(t, err)
	assert.Equal(t, aggregates.Version11, version)

	// the racks have since been given uuids
	after, err := memory.LoadFixtures(strings.NewReader(`
objects:
  - {class: Room, uuid: 6d1f0c1a-2b3c-4d5e-8f90-a1b2c3d4e5f6, legacy_id: 1}
  - {class: Rack, uuid: ` + uuidRack10 + `, legacy_id: 10, parent: "1"}
  - {class: Rack, uuid: ` + uuidRack11 + `, legacy_id: 11, parent: "1"}
`))
	require.NoError(t, err)
	_, err = after.CreateView(ctx, roomKey, "DefaultView", saved.Structure, nil)
	require.NoError(t, err)

	report, err := newTestMigrator(after).Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.DocumentsMigrated)
	assert.Zero(t, report.DocumentsAlreadyCurrent)

	doc := roomView(t, after)
	assert.True(t, doc.IsCurrent())
	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, uuidRack10, doc.Nodes[0].Ref.String())
	assert.Equal(t, uuidRack11, doc.Nodes[1].Ref.String())
}

type fakeLock struct {
	held     bool
	released int
}

func (l *fakeLock) Acquire(ctx context.Context, job string, lease time.Duration) (ports.ReleaseFunc, error) {
	if l.held {
		return nil, pkgerrors.NewConflictError("job " + job + " is already running")
	}
	l.held = true
	return func(context.Context) error {
		l.held = false
		l.released++
		return nil
	}, nil
}

func TestMigrator_Run_HoldsJobLock(t *testing.T) {
	lock := &fakeLock{}
	m := newTestMigrator(newTestGraph(t)).WithLock(lock, time.Minute)

	_, err := m.Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, lock.released)

	lock.held = true
	_, err = m.Run(context.Background(), Options{DryRun: true})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
	assert.False(t, m.Running())
}
