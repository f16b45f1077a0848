package handlers

import (
	"encoding/base64"

	"inventory/application/services"
	"inventory/domain/core/aggregates"
	"inventory/domain/core/valueobjects"
	domainservices "inventory/domain/services"
)

// SaveViewRequest is the body of PUT .../views/{viewClass}
type SaveViewRequest struct {
	// Structure is the XML view document
	Structure string `json:"structure" validate:"required"`
	// Background is an optional base64 image
	Background string `json:"background,omitempty" validate:"omitempty,base64"`
}

// SaveViewResponse is returned after a save
type SaveViewResponse struct {
	ViewID string `json:"viewId"`
}

// NodeDTO is a placed object
type NodeDTO struct {
	Ref       string             `json:"ref"`
	ClassName string             `json:"className"`
	Position  valueobjects.Point `json:"position"`
}

// EndpointDTO is one side of an edge
type EndpointDTO struct {
	Ref       string `json:"ref"`
	ClassName string `json:"className,omitempty"`
}

// EdgeDTO is a drawn connection
type EdgeDTO struct {
	Ref           string               `json:"ref"`
	ClassName     string               `json:"className"`
	ASide         EndpointDTO          `json:"aSide"`
	BSide         EndpointDTO          `json:"bSide"`
	ControlPoints []valueobjects.Point `json:"controlPoints,omitempty"`
}

// DocumentDTO is the JSON form of a view document
type DocumentDTO struct {
	Version    string               `json:"version"`
	ViewClass  string               `json:"viewClass"`
	Zoom       *int                 `json:"zoom,omitempty"`
	Center     *valueobjects.Center `json:"center,omitempty"`
	Nodes      []NodeDTO            `json:"nodes"`
	Edges      []EdgeDTO            `json:"edges"`
	Background string               `json:"background,omitempty"`
}

// ChangesDTO summarizes what reconciliation changed
type ChangesDTO struct {
	AddedNodes          int      `json:"addedNodes"`
	AddedEdges          int      `json:"addedEdges"`
	OrphanedNodes       []string `json:"orphanedNodes,omitempty"`
	DroppedEdges        []string `json:"droppedEdges,omitempty"`
	StaleNodes          int      `json:"staleNodes"`
	StaleEdges          int      `json:"staleEdges"`
	UnplacedConnections int      `json:"unplacedConnections"`
}

// ViewResponse is returned when a view is opened
type ViewResponse struct {
	ViewID   string      `json:"viewId,omitempty"`
	Origin   string      `json:"origin"`
	Dirty    bool        `json:"dirty"`
	Document DocumentDTO `json:"document"`
	Changes  ChangesDTO  `json:"changes"`
}

func toViewResponse(view *services.RenderedView) ViewResponse {
	return ViewResponse{
		ViewID:   view.ViewID,
		Origin:   string(view.Origin),
		Dirty:    view.Result.Dirty,
		Document: toDocumentDTO(view.Document),
		Changes:  toChangesDTO(view.Result),
	}
}

func toDocumentDTO(doc *aggregates.ViewDocument) DocumentDTO {
	dto := DocumentDTO{
		Version:   doc.Version,
		ViewClass: doc.ViewClass,
		Zoom:      doc.Zoom,
		Center:    doc.Center,
		Nodes:     make([]NodeDTO, 0, len(doc.Nodes)),
		Edges:     make([]EdgeDTO, 0, len(doc.Edges)),
	}
	if len(doc.Background) > 0 {
		dto.Background = base64.StdEncoding.EncodeToString(doc.Background)
	}
	for _, n := range doc.Nodes {
		dto.Nodes = append(dto.Nodes, NodeDTO{Ref: n.Ref.String(), ClassName: n.ClassName, Position: n.Position})
	}
	for _, e := range doc.Edges {
		dto.Edges = append(dto.Edges, EdgeDTO{
			Ref:           e.Ref.String(),
			ClassName:     e.ClassName,
			ASide:         EndpointDTO{Ref: e.ASide.Ref.String(), ClassName: e.ASide.ClassName},
			BSide:         EndpointDTO{Ref: e.BSide.Ref.String(), ClassName: e.BSide.ClassName},
			ControlPoints: e.ControlPoints,
		})
	}
	return dto
}

func toChangesDTO(r *domainservices.ReconciliationResult) ChangesDTO {
	dto := ChangesDTO{
		AddedNodes:          len(r.AddedNodes),
		AddedEdges:          len(r.AddedEdges),
		StaleNodes:          len(r.StaleNodes),
		StaleEdges:          len(r.StaleEdges),
		UnplacedConnections: len(r.UnplacedConnections),
	}
	for _, n := range r.OrphanedNodes {
		dto.OrphanedNodes = append(dto.OrphanedNodes, n.String())
	}
	for _, e := range r.DroppedEdges {
		dto.DroppedEdges = append(dto.DroppedEdges, e.String())
	}
	return dto
}
