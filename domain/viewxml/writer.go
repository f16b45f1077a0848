package viewxml

import (
	"bytes"
	"encoding/xml"
	"strconv"

	"inventory/domain/core/aggregates"
	"inventory/domain/core/valueobjects"
	pkgerrors "inventory/pkg/errors"
)

// Serialize encodes a document. Element order is fixed:
// view, class, zoom, center, nodes, edges. A document holding numeric ids
// is never written with a UUID version header.
func Serialize(doc *aggregates.ViewDocument) ([]byte, error) {
	if doc == nil {
		return nil, pkgerrors.NewValidationError("cannot serialize a nil view document")
	}

	version := doc.HeaderVersion()

	var buf bytes.Buffer
	w := &writer{enc: xml.NewEncoder(&buf)}

	w.open(elemView, xml.Attr{Name: xml.Name{Local: attrVersion}, Value: version})
	w.textElement(elemClass, doc.ViewClass)
	if doc.Zoom != nil {
		w.textElement(elemZoom, strconv.Itoa(*doc.Zoom))
	}
	if doc.Center != nil {
		w.open(elemCenter,
			xml.Attr{Name: xml.Name{Local: attrX}, Value: formatFloat(doc.Center.X)},
			xml.Attr{Name: xml.Name{Local: attrY}, Value: formatFloat(doc.Center.Y)},
		)
		w.close(elemCenter)
	}

	w.open(elemNodes)
	for _, node := range doc.Nodes {
		w.open(elemNode,
			xml.Attr{Name: xml.Name{Local: attrX}, Value: strconv.Itoa(node.Position.X)},
			xml.Attr{Name: xml.Name{Local: attrY}, Value: strconv.Itoa(node.Position.Y)},
			xml.Attr{Name: xml.Name{Local: attrClass}, Value: node.ClassName},
		)
		w.chars(node.Ref.String())
		w.close(elemNode)
	}
	w.close(elemNodes)

	w.open(elemEdges)
	for _, edge := range doc.Edges {
		attrs := []xml.Attr{
			{Name: xml.Name{Local: attrID}, Value: edge.Ref.String()},
			{Name: xml.Name{Local: attrClass}, Value: edge.ClassName},
		}
		attrs = append(attrs, endpointAttrs(edge.ASide, attrASideID, attrASideClass, attrASide)...)
		attrs = append(attrs, endpointAttrs(edge.BSide, attrBSideID, attrBSideClass, attrBSide)...)

		w.open(elemEdge, attrs...)
		for _, cp := range edge.ControlPoints {
			w.controlPoint(cp)
		}
		w.close(elemEdge)
	}
	w.close(elemEdges)

	w.close(elemView)

	if w.err == nil {
		w.err = w.enc.Flush()
	}
	if w.err != nil {
		return nil, pkgerrors.NewInternalError("failed to encode view document").WithCause(w.err)
	}
	return buf.Bytes(), nil
}

// endpointAttrs writes the class-qualified form when the endpoint knows
// its class, the legacy form otherwise
func endpointAttrs(ep aggregates.Endpoint, idAttr, classAttr, legacyAttr string) []xml.Attr {
	if ep.ClassName != "" {
		return []xml.Attr{
			{Name: xml.Name{Local: idAttr}, Value: ep.Ref.String()},
			{Name: xml.Name{Local: classAttr}, Value: ep.ClassName},
		}
	}
	return []xml.Attr{{Name: xml.Name{Local: legacyAttr}, Value: ep.Ref.String()}}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writer keeps the first encoding error and ignores later calls
type writer struct {
	enc *xml.Encoder
	err error
}

func (w *writer) open(name string, attrs ...xml.Attr) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
}

func (w *writer) close(name string) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}})
}

func (w *writer) chars(text string) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(xml.CharData(text))
}

func (w *writer) textElement(name, text string) {
	w.open(name)
	w.chars(text)
	w.close(name)
}

func (w *writer) controlPoint(p valueobjects.Point) {
	w.open(elemControlPoint,
		xml.Attr{Name: xml.Name{Local: attrX}, Value: strconv.Itoa(p.X)},
		xml.Attr{Name: xml.Name{Local: attrY}, Value: strconv.Itoa(p.Y)},
	)
	w.close(elemControlPoint)
}
