package handlers

import (
	"context"
	"encoding/base64"
	"net/http"

	"inventory/application/ports"
	"inventory/application/services"
	"inventory/domain/core/aggregates"
	"inventory/domain/viewxml"
	"inventory/pkg/common"
	pkgerrors "inventory/pkg/errors"
	"inventory/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxViewBodyBytes bounds a saved view including its background image
const maxViewBodyBytes = 8 << 20

// ViewService is what the view handler needs from the application layer
type ViewService interface {
	OpenView(ctx context.Context, parent ports.ObjectKey, viewClass string) (*services.RenderedView, error)
	SaveView(ctx context.Context, parent ports.ObjectKey, doc *aggregates.ViewDocument) (string, error)
	GetDocument(ctx context.Context, parent ports.ObjectKey, viewClass string) (*ports.StoredView, error)
}

// ViewHandler handles view-related HTTP requests
type ViewHandler struct {
	views  ViewService
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

// NewViewHandler creates a new view handler
func NewViewHandler(views ViewService, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *ViewHandler {
	return &ViewHandler{
		views:  views,
		errors: errorHandler,
		logger: logger,
	}
}

// OpenView handles GET /objects/{className}/{objectID}/views/{viewClass}
func (h *ViewHandler) OpenView(w http.ResponseWriter, r *http.Request) {
	parent, viewClass := target(r)

	view, err := h.views.OpenView(r.Context(), parent, viewClass)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, r, http.StatusOK, toViewResponse(view))
}

// SaveView handles PUT /objects/{className}/{objectID}/views/{viewClass}
func (h *ViewHandler) SaveView(w http.ResponseWriter, r *http.Request) {
	parent, viewClass := target(r)

	var req SaveViewRequest
	if err := common.ParseJSONBody(w, r, &req, maxViewBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	doc, err := viewxml.Parse([]byte(req.Structure))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if doc.ViewClass == "" {
		doc.ViewClass = viewClass
	}
	if doc.ViewClass != viewClass {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("document class "+doc.ViewClass+" does not match "+viewClass))
		return
	}
	if req.Background != "" {
		doc.Background, err = base64.StdEncoding.DecodeString(req.Background)
		if err != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("background is not valid base64"))
			return
		}
	}

	viewID, err := h.views.SaveView(r.Context(), parent, doc)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Debug("View saved",
		zap.String("view_id", viewID),
		zap.String("parent", parent.String()),
		zap.String("view_class", viewClass),
	)
	common.RespondJSON(w, r, http.StatusOK, SaveViewResponse{ViewID: viewID})
}

// GetDocument handles GET /objects/{className}/{objectID}/views/{viewClass}/document
// and returns the stored XML untouched
func (h *ViewHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	parent, viewClass := target(r)

	stored, err := h.views.GetDocument(r.Context(), parent, viewClass)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("X-View-ID", stored.ID)
	w.WriteHeader(http.StatusOK)
	w.Write(stored.Structure)
}

func target(r *http.Request) (ports.ObjectKey, string) {
	parent := ports.ObjectKey{
		ClassName: chi.URLParam(r, "className"),
		ID:        chi.URLParam(r, "objectID"),
	}
	return parent, chi.URLParam(r, "viewClass")
}
