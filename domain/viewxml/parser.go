// Package viewxml reads and writes the XML micro-format used to persist
// object views. Versions 1.0 and 1.1 reference objects by numeric id,
// version 1.2 by UUID. The parser accepts both forms in any version and
// tells them apart per token.
package viewxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"inventory/domain/core/aggregates"
	"inventory/domain/core/valueobjects"
	pkgerrors "inventory/pkg/errors"
)

// Element and attribute names of the format
const (
	elemView         = "view"
	elemClass        = "class"
	elemZoom         = "zoom"
	elemCenter       = "center"
	elemNodes        = "nodes"
	elemNode         = "node"
	elemEdges        = "edges"
	elemEdge         = "edge"
	elemControlPoint = "controlpoint"

	attrVersion    = "version"
	attrX          = "x"
	attrY          = "y"
	attrClass      = "class"
	attrID         = "id"
	attrASide      = "aside"
	attrBSide      = "bside"
	attrASideID    = "asideid"
	attrASideClass = "asideclass"
	attrBSideID    = "bsideid"
	attrBSideClass = "bsideclass"
)

// Parse decodes a stored view structure
func Parse(data []byte) (*aggregates.ViewDocument, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a view structure from a stream
func Decode(r io.Reader) (*aggregates.ViewDocument, error) {
	p := &parser{dec: xml.NewDecoder(r)}
	return p.run()
}

// DetectVersion reads the version attribute of the root element without
// decoding the rest of the document
func DetectVersion(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", malformed("view document has no root element", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != elemView {
			return "", malformed(fmt.Sprintf("unexpected root element <%s>", start.Name.Local), nil)
		}
		if v, ok := attr(start, attrVersion); ok {
			return v, nil
		}
		return aggregates.Version10, nil
	}
}

type parser struct {
	dec *xml.Decoder
	doc *aggregates.ViewDocument

	// edge under construction and whether its control point run is open
	edge       *aggregates.ViewEdge
	collecting bool
}

func (p *parser) run() (*aggregates.ViewDocument, error) {
	for {
		tok, err := p.dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformed("view document is not well-formed XML", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := p.start(t); err != nil {
				return nil, err
			}
		case xml.EndElement:
			if t.Name.Local == elemEdge && p.edge != nil {
				p.doc.Edges = append(p.doc.Edges, *p.edge)
				p.edge = nil
				p.collecting = false
			}
		}
	}

	if p.doc == nil {
		return nil, malformed("view document has no <view> root element", nil)
	}
	return p.doc, nil
}

func (p *parser) start(t xml.StartElement) error {
	name := t.Name.Local

	if p.doc == nil {
		if name != elemView {
			return p.skip()
		}
		p.doc = &aggregates.ViewDocument{Version: aggregates.Version10}
		if v, ok := attr(t, attrVersion); ok {
			p.doc.Version = v
		}
		return nil
	}

	if p.edge != nil {
		if name == elemControlPoint && p.collecting {
			point, err := pointFrom(t)
			if err != nil {
				return err
			}
			p.edge.ControlPoints = append(p.edge.ControlPoints, point)
			return p.skip()
		}
		// Any other child closes the control point run.
		p.collecting = false
		return p.skip()
	}

	switch name {
	case elemNodes, elemEdges:
		return nil
	case elemClass:
		text, err := p.text()
		if err != nil {
			return err
		}
		p.doc.ViewClass = strings.TrimSpace(text)
		return nil
	case elemZoom:
		text, err := p.text()
		if err != nil {
			return err
		}
		zoom, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			return malformed("zoom is not an integer", err)
		}
		p.doc.Zoom = &zoom
		return nil
	case elemCenter:
		center, err := centerFrom(t)
		if err != nil {
			return err
		}
		p.doc.Center = &center
		return p.skip()
	case elemNode:
		return p.node(t)
	case elemEdge:
		edge, err := edgeFrom(t)
		if err != nil {
			return err
		}
		p.edge = &edge
		p.collecting = true
		return nil
	default:
		return p.skip()
	}
}

func (p *parser) node(t xml.StartElement) error {
	position, err := pointFrom(t)
	if err != nil {
		return err
	}
	className, _ := attr(t, attrClass)

	text, err := p.text()
	if err != nil {
		return err
	}
	ref, err := valueobjects.ParseNodeRef(text)
	if err != nil {
		return malformed("node without identifier", err)
	}

	p.doc.Nodes = append(p.doc.Nodes, aggregates.ViewNode{
		Ref:       ref,
		ClassName: className,
		Position:  position,
	})
	return nil
}

// text collects the character data of the current element and consumes
// its end tag. Nested elements are skipped.
func (p *parser) text() (string, error) {
	var sb strings.Builder
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return "", malformed("view document is not well-formed XML", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			if err := p.skip(); err != nil {
				return "", err
			}
		case xml.EndElement:
			return sb.String(), nil
		}
	}
}

func (p *parser) skip() error {
	if err := p.dec.Skip(); err != nil {
		return malformed("view document is not well-formed XML", err)
	}
	return nil
}

func edgeFrom(t xml.StartElement) (aggregates.ViewEdge, error) {
	id, _ := attr(t, attrID)
	ref, err := valueobjects.ParseNodeRef(id)
	if err != nil {
		return aggregates.ViewEdge{}, malformed("edge without identifier", err)
	}
	className, _ := attr(t, attrClass)

	aSide, err := endpointFrom(t, attrASideID, attrASideClass, attrASide)
	if err != nil {
		return aggregates.ViewEdge{}, err
	}
	bSide, err := endpointFrom(t, attrBSideID, attrBSideClass, attrBSide)
	if err != nil {
		return aggregates.ViewEdge{}, err
	}

	return aggregates.ViewEdge{
		Ref:       ref,
		ClassName: className,
		ASide:     aSide,
		BSide:     bSide,
	}, nil
}

// endpointFrom prefers the class-qualified attributes and falls back to
// the legacy single attribute
func endpointFrom(t xml.StartElement, idAttr, classAttr, legacyAttr string) (aggregates.Endpoint, error) {
	if id, ok := attr(t, idAttr); ok {
		ref, err := valueobjects.ParseNodeRef(id)
		if err != nil {
			return aggregates.Endpoint{}, malformed(fmt.Sprintf("edge attribute %s is empty", idAttr), err)
		}
		className, _ := attr(t, classAttr)
		return aggregates.Endpoint{Ref: ref, ClassName: className}, nil
	}
	if id, ok := attr(t, legacyAttr); ok {
		ref, err := valueobjects.ParseNodeRef(id)
		if err != nil {
			return aggregates.Endpoint{}, malformed(fmt.Sprintf("edge attribute %s is empty", legacyAttr), err)
		}
		return aggregates.Endpoint{Ref: ref}, nil
	}
	return aggregates.Endpoint{}, malformed(fmt.Sprintf("edge is missing its %s endpoint", legacyAttr), nil)
}

func pointFrom(t xml.StartElement) (valueobjects.Point, error) {
	x, err := coordinate(t, attrX)
	if err != nil {
		return valueobjects.Point{}, err
	}
	y, err := coordinate(t, attrY)
	if err != nil {
		return valueobjects.Point{}, err
	}
	return valueobjects.NewPoint(x, y), nil
}

// coordinate reads an integer coordinate. Decimal values written by older
// clients are truncated; a missing attribute means zero.
func coordinate(t xml.StartElement, name string) (int, error) {
	raw, ok := attr(t, name)
	if !ok {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, malformed(fmt.Sprintf("<%s> attribute %s is not a number", t.Name.Local, name), err)
	}
	c, ok := valueobjects.TruncateCoordinate(v)
	if !ok {
		return 0, malformed(fmt.Sprintf("<%s> attribute %s is out of range", t.Name.Local, name), nil)
	}
	return c, nil
}

func centerFrom(t xml.StartElement) (valueobjects.Center, error) {
	var center valueobjects.Center
	for _, name := range []string{attrX, attrY} {
		raw, ok := attr(t, name)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return valueobjects.Center{}, malformed(fmt.Sprintf("center attribute %s is not a number", name), err)
		}
		if name == attrX {
			center.X = v
		} else {
			center.Y = v
		}
	}
	return center, nil
}

func attr(t xml.StartElement, name string) (string, bool) {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func malformed(message string, cause error) error {
	return pkgerrors.NewStreamFormatError(message, cause)
}
