package services

import (
	"context"
	"fmt"
	"strings"

	"inventory/application/ports"
	"inventory/domain/core/aggregates"
	"inventory/domain/core/entities"
	domainservices "inventory/domain/services"
	"inventory/domain/viewxml"
	pkgerrors "inventory/pkg/errors"
	"inventory/pkg/observability"
	"go.uber.org/zap"
)

// ViewServiceOptions controls what happens after reconciliation
type ViewServiceOptions struct {
	// AutoRepair saves a dirty view back right after it was opened
	AutoRepair bool
}

// RenderedView is what the web UI draws
type RenderedView struct {
	ViewID   string
	Origin   aggregates.Origin
	Scene    *aggregates.Scene
	Document *aggregates.ViewDocument
	Result   *domainservices.ReconciliationResult
}

// ViewService runs the open, reconcile and save cycle of object views
type ViewService struct {
	directory  ports.ObjectDirectory
	views      ports.ViewStore
	notifier   ports.Notifier
	resolver   *domainservices.ReferenceResolver
	reconciler *domainservices.Reconciler
	metrics    *observability.Collector
	options    ViewServiceOptions
	logger     *zap.Logger
}

// NewViewService creates a new view service
func NewViewService(
	directory ports.ObjectDirectory,
	views ports.ViewStore,
	notifier ports.Notifier,
	reconciler *domainservices.Reconciler,
	metrics *observability.Collector,
	options ViewServiceOptions,
	logger *zap.Logger,
) *ViewService {
	return &ViewService{
		directory:  directory,
		views:      views,
		notifier:   notifier,
		resolver:   domainservices.NewReferenceResolver(directory),
		reconciler: reconciler,
		metrics:    metrics,
		options:    options,
		logger:     logger,
	}
}

// OpenView rebuilds the view of parent against the live inventory. A
// parent with no saved view gets the default layout.
func (s *ViewService) OpenView(ctx context.Context, parent ports.ObjectKey, viewClass string) (*RenderedView, error) {
	if err := validateTarget(parent, viewClass); err != nil {
		return nil, err
	}

	state, err := s.loadState(ctx, parent, viewClass)
	if err != nil {
		s.notifyFailure(ctx, parent, viewClass, err)
		return nil, err
	}

	children, connections, err := s.liveObjects(ctx, parent)
	if err != nil {
		s.notifyFailure(ctx, parent, viewClass, err)
		return nil, err
	}

	var view *RenderedView
	switch st := state.(type) {
	case aggregates.Absent:
		scene, result := s.reconciler.BuildDefault(children, connections)
		view = &RenderedView{
			Origin:   aggregates.OriginGenerated,
			Scene:    scene,
			Document: scene.ToDocument(aggregates.NewViewDocument(viewClass)),
			Result:   result,
		}
	case aggregates.Loaded:
		view, err = s.reconcileLoaded(ctx, parent, viewClass, st, children, connections)
		if err != nil {
			s.notifyFailure(ctx, parent, viewClass, err)
			return nil, err
		}
	default:
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("unexpected view state %T", state))
	}

	s.record(viewClass, view)

	s.logger.Debug("View opened",
		zap.String("parent", parent.String()),
		zap.String("view_class", viewClass),
		zap.String("origin", string(view.Origin)),
		zap.Int("nodes", len(view.Scene.Nodes)),
		zap.Int("edges", len(view.Scene.Edges)),
		zap.Bool("dirty", view.Result.Dirty),
	)

	return view, nil
}

func (s *ViewService) reconcileLoaded(
	ctx context.Context,
	parent ports.ObjectKey,
	viewClass string,
	loaded aggregates.Loaded,
	children []entities.BusinessObject,
	connections []entities.Connection,
) (*RenderedView, error) {
	resolution, err := s.resolver.Resolve(ctx, loaded.Document)
	if err != nil {
		return nil, err
	}

	scene, result := s.reconciler.Reconcile(resolution, children, connections)
	view := &RenderedView{
		ViewID:   loaded.ViewID,
		Origin:   aggregates.OriginLoaded,
		Scene:    scene,
		Document: scene.ToDocument(loaded.Document),
		Result:   result,
	}

	if len(result.UnplacedConnections) > 0 {
		s.logger.Info("Connections left off the view",
			zap.String("parent", parent.String()),
			zap.Int("count", len(result.UnplacedConnections)),
		)
	}

	if !result.Dirty {
		return view, nil
	}

	s.notifier.Notify(ctx, ports.Notification{
		Level:     ports.LevelInfo,
		Title:     "View updated",
		Message:   describeChanges(result),
		Subject:   parent,
		ViewClass: viewClass,
	})

	if !s.options.AutoRepair {
		return view, nil
	}

	structure, err := viewxml.Serialize(view.Document)
	if err != nil {
		return nil, err
	}
	if err := s.views.UpdateView(ctx, loaded.ViewID, structure, view.Document.Background); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to save repaired view")
	}
	result.Dirty = false
	s.metrics.ViewsRepaired.Inc()

	return view, nil
}

// SaveView stores doc as the view of parent, creating it when needed, and
// returns the view id
func (s *ViewService) SaveView(ctx context.Context, parent ports.ObjectKey, doc *aggregates.ViewDocument) (string, error) {
	if doc == nil {
		return "", pkgerrors.NewValidationError("view document is required")
	}
	if err := validateTarget(parent, doc.ViewClass); err != nil {
		return "", err
	}

	structure, err := viewxml.Serialize(doc)
	if err != nil {
		return "", err
	}

	existing, err := s.views.GetView(ctx, parent, doc.ViewClass)
	switch {
	case err == nil:
		if err := s.views.UpdateView(ctx, existing.ID, structure, doc.Background); err != nil {
			return "", pkgerrors.Wrap(err, "failed to update view")
		}
		s.logger.Info("View updated", zap.String("view_id", existing.ID), zap.String("parent", parent.String()))
		return existing.ID, nil
	case pkgerrors.IsNotFound(err):
		id, err := s.views.CreateView(ctx, parent, doc.ViewClass, structure, doc.Background)
		if err != nil {
			return "", pkgerrors.Wrap(err, "failed to create view")
		}
		s.logger.Info("View created", zap.String("view_id", id), zap.String("parent", parent.String()))
		return id, nil
	default:
		return "", pkgerrors.Wrap(err, "failed to load view")
	}
}

// GetDocument returns the stored view as saved, without reconciliation
func (s *ViewService) GetDocument(ctx context.Context, parent ports.ObjectKey, viewClass string) (*ports.StoredView, error) {
	if err := validateTarget(parent, viewClass); err != nil {
		return nil, err
	}
	return s.views.GetView(ctx, parent, viewClass)
}

func (s *ViewService) loadState(ctx context.Context, parent ports.ObjectKey, viewClass string) (aggregates.ViewState, error) {
	stored, err := s.views.GetView(ctx, parent, viewClass)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return aggregates.Absent{}, nil
		}
		return nil, pkgerrors.Wrap(err, "failed to load view")
	}

	doc, err := viewxml.Parse(stored.Structure)
	if err != nil {
		s.metrics.DocumentsMalformed.Inc()
		s.logger.Warn("Stored view is malformed",
			zap.String("view_id", stored.ID),
			zap.String("parent", parent.String()),
			zap.Error(err),
		)
		return nil, err
	}
	doc.Background = stored.Background
	if doc.ViewClass == "" {
		doc.ViewClass = viewClass
	}

	return aggregates.Loaded{ViewID: stored.ID, Document: doc}, nil
}

func (s *ViewService) liveObjects(ctx context.Context, parent ports.ObjectKey) ([]entities.BusinessObject, []entities.Connection, error) {
	children, err := s.directory.GetChildren(ctx, parent)
	if err != nil {
		return nil, nil, directoryError(err)
	}
	connections, err := s.directory.GetConnections(ctx, parent)
	if err != nil {
		return nil, nil, directoryError(err)
	}
	return children, connections, nil
}

func (s *ViewService) notifyFailure(ctx context.Context, parent ports.ObjectKey, viewClass string, err error) {
	title := "View could not be opened"
	if pkgerrors.IsMalformedDocument(err) {
		title = "Saved view is corrupted"
	}
	s.notifier.Notify(ctx, ports.Notification{
		Level:     ports.LevelError,
		Title:     title,
		Message:   err.Error(),
		Subject:   parent,
		ViewClass: viewClass,
	})
}

func (s *ViewService) record(viewClass string, view *RenderedView) {
	s.metrics.ViewsOpened.WithLabelValues(viewClass, string(view.Origin)).Inc()

	result := view.Result
	if view.Origin == aggregates.OriginLoaded {
		s.metrics.ElementsAdded.WithLabelValues("node").Add(float64(len(result.AddedNodes)))
		s.metrics.ElementsAdded.WithLabelValues("edge").Add(float64(len(result.AddedEdges)))
	}
	for _, d := range result.OrphanedNodes {
		s.metrics.ElementsDropped.WithLabelValues("node", string(d.Reason)).Inc()
	}
	for _, d := range result.DroppedEdges {
		s.metrics.ElementsDropped.WithLabelValues("edge", string(d.Reason)).Inc()
	}
}

func validateTarget(parent ports.ObjectKey, viewClass string) error {
	if strings.TrimSpace(parent.ClassName) == "" || strings.TrimSpace(parent.ID) == "" {
		return pkgerrors.NewValidationError("parent class and id are required")
	}
	if strings.TrimSpace(viewClass) == "" {
		return pkgerrors.NewValidationError("view class is required")
	}
	return nil
}

func directoryError(err error) error {
	if pkgerrors.IsAppError(err) {
		return err
	}
	return pkgerrors.NewUnavailableError("object directory", err)
}

func describeChanges(r *domainservices.ReconciliationResult) string {
	var parts []string
	add := func(n int, what string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, what))
		}
	}
	add(len(r.AddedNodes), "object(s) added")
	add(len(r.AddedEdges), "connection(s) added")
	add(len(r.OrphanedNodes), "object(s) removed")
	add(len(r.DroppedEdges), "connection(s) removed")
	add(len(r.StaleNodes)+len(r.StaleEdges), "element(s) no longer related")
	if len(parts) == 0 {
		return "The view was out of date"
	}
	return "The view changed since it was last saved: " + strings.Join(parts, ", ")
}
