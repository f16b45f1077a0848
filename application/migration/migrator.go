// Package migration rewrites saved views that reference objects by their
// internal numeric id so that they reference the object UUID instead.
package migration

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"inventory/application/ports"
	"inventory/domain/core/aggregates"
	"inventory/domain/core/valueobjects"
	"inventory/domain/viewxml"
	pkgerrors "inventory/pkg/errors"
	"inventory/pkg/observability"
	"go.uber.org/zap"
)

// Stage names
const (
	StagePrescan = "prescan"
	StageRewrite = "rewrite"
	StageCommit  = "commit"
)

// LockName is the job name a migration holds its lock under
const LockName = "view-id-migration"

// DefaultLockLease bounds how long a crashed run keeps others out
const DefaultLockLease = 30 * time.Minute

// DiagnosticKind classifies a reference or document the migration left out
type DiagnosticKind string

const (
	// DiagnosticIDReuse means the numeric id now belongs to a record that
	// cannot be the object the view meant
	DiagnosticIDReuse DiagnosticKind = "id_reuse"
	// DiagnosticDangling means no record carries the reference
	DiagnosticDangling DiagnosticKind = "dangling"
	// DiagnosticEdgeSkipped means an edge lost one of its endpoints
	DiagnosticEdgeSkipped DiagnosticKind = "edge_skipped"
	// DiagnosticMalformed means the stored document could not be parsed
	DiagnosticMalformed DiagnosticKind = "malformed"
	// DiagnosticAmbiguous means several inventory records claim the same
	// internal id or UUID
	DiagnosticAmbiguous DiagnosticKind = "ambiguous"
	// DiagnosticDuplicate means a node maps to an object already placed
	DiagnosticDuplicate DiagnosticKind = "duplicate"
)

// Diagnostic describes one thing the migration skipped
type Diagnostic struct {
	ViewID    string         `json:"viewId,omitempty"`
	Owner     string         `json:"owner,omitempty"`
	Kind      DiagnosticKind `json:"kind"`
	ClassName string         `json:"className,omitempty"`
	Ref       string         `json:"ref,omitempty"`
	Message   string         `json:"message"`
}

// Options control a migration run
type Options struct {
	// DryRun computes the report without writing anything
	DryRun bool
}

// Report summarizes a migration run
type Report struct {
	DryRun     bool          `json:"dryRun"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Stages     []StageRecord `json:"stages"`

	ObjectsScanned          int `json:"objectsScanned"`
	DocumentsScanned        int `json:"documentsScanned"`
	DocumentsMigrated       int `json:"documentsMigrated"`
	DocumentsAlreadyCurrent int `json:"documentsAlreadyCurrent"`
	DocumentsMalformed      int `json:"documentsMalformed"`
	DocumentsCommitted      int `json:"documentsCommitted"`

	NodesRewritten int `json:"nodesRewritten"`
	NodesSkipped   int `json:"nodesSkipped"`
	EdgesRewritten int `json:"edgesRewritten"`
	EdgesSkipped   int `json:"edgesSkipped"`

	Diagnostics []Diagnostic `json:"diagnostics"`
}

// runState is shared by the stages of one run
type runState struct {
	options   Options
	idMap     *LegacyIDMap
	rewritten []ports.StoredDocument
	report    *Report
}

// Migrator runs the id migration over a whole inventory
type Migrator struct {
	store   ports.InventoryStore
	metrics *observability.Collector
	logger  *zap.Logger
	lock    ports.JobLock
	lease   time.Duration
	running atomic.Bool
	now     func() time.Time
}

// NewMigrator creates a new migrator
func NewMigrator(store ports.InventoryStore, metrics *observability.Collector, logger *zap.Logger) *Migrator {
	return &Migrator{
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// WithLock makes every run also hold lock, so that runs in other
// processes sharing the store are refused too
func (m *Migrator) WithLock(lock ports.JobLock, lease time.Duration) *Migrator {
	m.lock = lock
	m.lease = lease
	return m
}

// Run executes prescan, rewrite and commit. Only one run may be active per
// migrator; a concurrent call fails with a CONFLICT error. The report is
// returned even when a stage fails.
func (m *Migrator) Run(ctx context.Context, opts Options) (*Report, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, pkgerrors.NewConflictError("a view migration is already running")
	}
	defer m.running.Store(false)

	if m.lock != nil {
		release, err := m.lock.Acquire(ctx, LockName, m.lease)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release migration lock", zap.Error(err))
			}
		}()
	}

	state := &runState{
		options: opts,
		idMap:   NewLegacyIDMap(),
		report:  &Report{DryRun: opts.DryRun, StartedAt: m.now()},
	}

	m.logger.Info("Starting view id migration", zap.Bool("dry_run", opts.DryRun))

	runner := &stageRunner{
		stages: []Stage{
			{Name: StagePrescan, Execute: m.prescan},
			{Name: StageRewrite, Execute: m.rewriteAll},
			{Name: StageCommit, Execute: m.commit, Skip: func(s *runState) bool { return s.options.DryRun }},
		},
		logger:  m.logger,
		observe: m.observeStage,
		now:     m.now,
	}

	stages, err := runner.run(ctx, state)
	report := state.report
	report.Stages = stages
	report.FinishedAt = m.now()

	if err != nil {
		return report, err
	}

	m.logger.Info("View id migration finished",
		zap.Bool("dry_run", opts.DryRun),
		zap.Int("documents_scanned", report.DocumentsScanned),
		zap.Int("documents_migrated", report.DocumentsMigrated),
		zap.Int("documents_malformed", report.DocumentsMalformed),
		zap.Int("diagnostics", len(report.Diagnostics)),
	)
	return report, nil
}

// Running reports whether a run is in progress
func (m *Migrator) Running() bool {
	return m.running.Load()
}

func (m *Migrator) prescan(ctx context.Context, state *runState) error {
	return m.store.ScanObjects(ctx, func(rec ports.ObjectRecord) error {
		state.report.ObjectsScanned++
		if err := state.idMap.Add(rec); err != nil {
			ref := rec.UUID
			if rec.InternalID != 0 {
				ref = strconv.FormatInt(rec.InternalID, 10)
			}
			state.report.Diagnostics = append(state.report.Diagnostics, Diagnostic{
				Kind:      DiagnosticAmbiguous,
				ClassName: rec.ClassName,
				Ref:       ref,
				Message:   err.Error(),
			})
			m.logger.Warn("Inventory records collide, references to them will be skipped",
				zap.String("class", rec.ClassName),
				zap.String("ref", ref),
				zap.Error(err),
			)
		}
		return nil
	})
}

func (m *Migrator) rewriteAll(ctx context.Context, state *runState) error {
	return m.store.ScanViewDocuments(ctx, func(stored ports.StoredDocument) error {
		state.report.DocumentsScanned++

		doc, err := viewxml.Parse(stored.Structure)
		if err != nil {
			m.malformed(state, stored, err)
			return nil
		}
		if doc.IsCurrent() {
			state.report.DocumentsAlreadyCurrent++
			m.metrics.MigrationDocuments.WithLabelValues("current").Inc()
			return nil
		}

		migrated := rewriteDocument(doc, state.idMap, stored, state.report)
		structure, err := viewxml.Serialize(migrated)
		if err != nil {
			return err
		}

		state.rewritten = append(state.rewritten, ports.StoredDocument{
			ViewID:    stored.ViewID,
			Owner:     stored.Owner,
			ViewClass: stored.ViewClass,
			Structure: structure,
		})
		state.report.DocumentsMigrated++
		m.metrics.MigrationDocuments.WithLabelValues("migrated").Inc()
		return nil
	})
}

func (m *Migrator) commit(ctx context.Context, state *runState) error {
	if len(state.rewritten) == 0 {
		return nil
	}
	if err := m.store.SaveViewDocuments(ctx, state.rewritten); err != nil {
		return err
	}
	state.report.DocumentsCommitted = len(state.rewritten)
	return nil
}

func (m *Migrator) malformed(state *runState, stored ports.StoredDocument, err error) {
	state.report.DocumentsMalformed++
	m.metrics.MigrationDocuments.WithLabelValues("malformed").Inc()
	state.report.Diagnostics = append(state.report.Diagnostics, Diagnostic{
		ViewID:  stored.ViewID,
		Owner:   stored.Owner.String(),
		Kind:    DiagnosticMalformed,
		Message: err.Error(),
	})
	m.logger.Warn("Skipping malformed view document",
		zap.String("view_id", stored.ViewID),
		zap.String("owner", stored.Owner.String()),
		zap.Error(err),
	)
}

func (m *Migrator) observeStage(stage string, status StageStatus, d time.Duration) {
	m.metrics.MigrationStages.WithLabelValues(stage, string(status)).Observe(d.Seconds())
}

// rewriteDocument returns a copy of doc with every reference mapped to a
// UUID, versioned VersionUUID unless doc already carries a later version.
// References that cannot be mapped safely are left out and reported.
func rewriteDocument(doc *aggregates.ViewDocument, idMap *LegacyIDMap, stored ports.StoredDocument, report *Report) *aggregates.ViewDocument {
	out := doc.Clone()
	if !aggregates.IsUUIDVersion(out.Version) {
		out.Version = aggregates.VersionUUID
	}
	out.Nodes = nil
	out.Edges = nil

	diag := func(kind DiagnosticKind, className string, ref valueobjects.NodeRef, format string, args ...interface{}) {
		report.Diagnostics = append(report.Diagnostics, Diagnostic{
			ViewID:    stored.ViewID,
			Owner:     stored.Owner.String(),
			Kind:      kind,
			ClassName: className,
			Ref:       ref.String(),
			Message:   fmt.Sprintf(format, args...),
		})
	}

	survivors := make(map[valueobjects.NodeRef]aggregates.ViewNode, len(doc.Nodes))
	for _, node := range doc.Nodes {
		mapped, kind, reason := mapRef(node.Ref, node.ClassName, idMap)
		if kind != "" {
			diag(kind, node.ClassName, node.Ref, "node skipped: %s", reason)
			report.NodesSkipped++
			continue
		}
		if first, dup := survivors[mapped]; dup {
			survivors[node.Ref] = first
			diag(DiagnosticDuplicate, node.ClassName, node.Ref, "node skipped: %s is already placed", mapped)
			report.NodesSkipped++
			continue
		}
		original := node.Ref
		node.Ref = mapped
		survivors[original] = node
		survivors[mapped] = node
		out.Nodes = append(out.Nodes, node)
		report.NodesRewritten++
	}

	for _, edge := range doc.Edges {
		aSide, okA := survivors[edge.ASide.Ref]
		bSide, okB := survivors[edge.BSide.Ref]
		if !okA || !okB {
			diag(DiagnosticEdgeSkipped, edge.ClassName, edge.Ref, "edge skipped: endpoint was not migrated")
			report.EdgesSkipped++
			continue
		}

		mapped, kind, reason := mapRef(edge.Ref, edge.ClassName, idMap)
		if kind != "" {
			diag(kind, edge.ClassName, edge.Ref, "edge skipped: %s", reason)
			report.EdgesSkipped++
			continue
		}

		edge.Ref = mapped
		edge.ASide = aggregates.Endpoint{Ref: aSide.Ref, ClassName: aSide.ClassName}
		edge.BSide = aggregates.Endpoint{Ref: bSide.Ref, ClassName: bSide.ClassName}
		if edge.ControlPoints != nil {
			edge.ControlPoints = append(edge.ControlPoints[:0:0], edge.ControlPoints...)
		}
		out.Edges = append(out.Edges, edge)
		report.EdgesRewritten++
	}

	return out
}

// mapRef returns the UUID reference for ref, or the diagnostic kind and
// reason why it must be skipped
func mapRef(ref valueobjects.NodeRef, className string, idMap *LegacyIDMap) (valueobjects.NodeRef, DiagnosticKind, string) {
	if id, ok := ref.UUID(); ok {
		if idMap.AmbiguousUUID(id) {
			return valueobjects.NodeRef{}, DiagnosticIDReuse, "uuid claimed by several records"
		}
		if !idMap.HasUUID(id) {
			return valueobjects.NodeRef{}, DiagnosticDangling, "no record carries this uuid"
		}
		return ref, "", ""
	}

	internalID, _ := ref.LegacyID()
	if idMap.AmbiguousID(internalID) {
		return valueobjects.NodeRef{}, DiagnosticIDReuse, "id claimed by several records"
	}
	rec, ok := idMap.Lookup(internalID)
	if !ok {
		return valueobjects.NodeRef{}, DiagnosticDangling, "no record holds this id"
	}
	if rec.UUID == "" {
		return valueobjects.NodeRef{}, DiagnosticIDReuse, fmt.Sprintf("id now held by %s %q which has no uuid", rec.ClassName, rec.Name)
	}
	if className != "" && rec.ClassName != className {
		return valueobjects.NodeRef{}, DiagnosticIDReuse, fmt.Sprintf("id now held by a %s", rec.ClassName)
	}
	if idMap.AmbiguousUUID(rec.UUID) {
		return valueobjects.NodeRef{}, DiagnosticIDReuse, fmt.Sprintf("uuid %s of this record is claimed by several records", rec.UUID)
	}

	mapped, err := valueobjects.NewUUIDRef(rec.UUID)
	if err != nil {
		return valueobjects.NodeRef{}, DiagnosticDangling, err.Error()
	}
	return mapped, "", ""
}
