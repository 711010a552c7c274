package exec

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
)

// XML elements are bridged to the engine's map[string]any value universe
// as nested maps: each attribute is held under "@" plus its name, text
// under "#text",
// children are keyed by tag name with repeated tags collapsed into a
// slice — this is the same shape every language binding of the kernel
// presents for XML (see DESIGN.md for why this is hand-written against
// encoding/xml rather than a third-party mapping library).
const (
	attrPrefix = "@"
	textKey    = "#text"
)

// decodeXML parses an XML document into a map[string]any keyed by the
// root element's tag name.
func decodeXML(data []byte) (map[string]any, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to find root element: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		value, err := decodeElement(dec, start)
		if err != nil {
			return nil, err
		}
		return map[string]any{start.Name.Local: value}, nil
	}
}

func decodeElement(dec *xml.Decoder, start xml.StartElement) (any, error) {
	node := map[string]any{}
	for _, attr := range start.Attr {
		node[attrPrefix+attr.Name.Local] = attr.Value
	}

	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to decode element %q: %w", start.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeElement(dec, t)
			if err != nil {
				return nil, err
			}
			appendChild(node, t.Name.Local, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return finalizeElement(node, text.String()), nil
			}
		}
	}
}

func appendChild(node map[string]any, tag string, value any) {
	existing, ok := node[tag]
	if !ok {
		node[tag] = value
		return
	}
	if seq, ok := existing.([]any); ok {
		node[tag] = append(seq, value)
		return
	}
	node[tag] = []any{existing, value}
}

func finalizeElement(node map[string]any, text string) any {
	trimmed := strings.TrimSpace(text)
	if len(node) == 0 {
		return trimmed
	}
	if trimmed != "" {
		node[textKey] = trimmed
	}
	return node
}

// encodeXML serializes value as an XML document under a root element
// named root ("root" when empty). Unlike decodeXML, it never unwraps a
// single-key map as the root — publish_xml configurations name the root
// explicitly via root_element (spec.md §6) since the source value is
// arbitrary data, not necessarily a prior decodeXML result.
func encodeXML(value any, root string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	if root == "" {
		root = "root"
	}
	if err := encodeElement(&buf, root, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeElement(buf *bytes.Buffer, name string, value any) error {
	m, ok := value.(map[string]any)
	if !ok {
		fmt.Fprintf(buf, "<%s>%s</%s>", name, xmlEscape(fmt.Sprint(value)), name)
		return nil
	}

	attrs, children, text := splitNode(m)
	buf.WriteByte('<')
	buf.WriteString(name)
	for _, k := range sortedKeys(attrs) {
		fmt.Fprintf(buf, ` %s="%s"`, k, xmlEscape(fmt.Sprint(attrs[k])))
	}
	buf.WriteByte('>')

	for _, k := range sortedKeys(children) {
		switch v := children[k].(type) {
		case []any:
			for _, item := range v {
				if err := encodeElement(buf, k, item); err != nil {
					return err
				}
			}
		default:
			if err := encodeElement(buf, k, v); err != nil {
				return err
			}
		}
	}
	if text != "" {
		buf.WriteString(xmlEscape(text))
	}

	buf.WriteString("</")
	buf.WriteString(name)
	buf.WriteByte('>')
	return nil
}

func splitNode(m map[string]any) (attrs, children map[string]any, text string) {
	attrs, children = map[string]any{}, map[string]any{}
	for k, v := range m {
		switch {
		case k == textKey:
			text = fmt.Sprint(v)
		case strings.HasPrefix(k, attrPrefix):
			attrs[strings.TrimPrefix(k, attrPrefix)] = v
		default:
			children[k] = v
		}
	}
	return attrs, children, text
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
