package davxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"

	"github.com/pulsepoint/nextcloud/pkg/models"
)

// PropName identifies a property by namespace URI and local name. Prefix is
// only a hint for the request document.
type PropName struct {
	Space  string
	Local  string
	Prefix string
}

// PropValue is a property with the text content to store
type PropValue struct {
	PropName
	Value string
}

// NameFromDetail converts a folder detail descriptor to a PropName
func NameFromDetail(p models.FolderDetailProperty) PropName {
	return PropName{Space: p.Namespace, Local: p.Element, Prefix: p.NamespaceShort}
}

// NameFromQualified converts a Clark notation name to a PropName
func NameFromQualified(name string) PropName {
	space, local := models.SplitQualifiedName(name)
	return PropName{Space: space, Local: local, Prefix: DefaultPrefix(space)}
}

// DefaultPrefix returns the customary prefix of the well known namespaces
func DefaultPrefix(space string) string {
	switch space {
	case models.NamespaceDAV:
		return "d"
	case models.NamespaceOwnCloud:
		return "oc"
	case models.NamespaceNextCloud:
		return "nc"
	}
	return ""
}

// namespaces assigns a unique prefix to every namespace of a request,
// keeping "d" reserved for DAV:
type namespaces struct {
	prefixes map[string]string
	used     map[string]bool
}

func newNamespaces() *namespaces {
	return &namespaces{
		prefixes: map[string]string{models.NamespaceDAV: "d"},
		used:     map[string]bool{"d": true},
	}
}

func (n *namespaces) prefix(name PropName) string {
	if p, ok := n.prefixes[name.Space]; ok {
		return p
	}
	p := name.Prefix
	if p == "" {
		p = DefaultPrefix(name.Space)
	}
	if p == "" || n.used[p] || p == "xml" || p == "xmlns" {
		for i := len(n.prefixes); ; i++ {
			candidate := fmt.Sprintf("ns%d", i)
			if !n.used[candidate] {
				p = candidate
				break
			}
		}
	}
	n.prefixes[name.Space] = p
	n.used[p] = true
	return p
}

func (n *namespaces) declarations() string {
	spaces := make([]string, 0, len(n.prefixes))
	for space := range n.prefixes {
		spaces = append(spaces, space)
	}
	sort.Slice(spaces, func(i, j int) bool { return n.prefixes[spaces[i]] < n.prefixes[spaces[j]] })

	var buf bytes.Buffer
	for _, space := range spaces {
		fmt.Fprintf(&buf, ` xmlns:%s="%s"`, n.prefixes[space], escape(space))
	}
	return buf.String()
}

func escape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// PropfindBody renders a PROPFIND request. An empty list asks for allprop.
func PropfindBody(props []PropName) []byte {
	ns := newNamespaces()

	var inner bytes.Buffer
	if len(props) == 0 {
		inner.WriteString("<d:allprop/>")
	} else {
		inner.WriteString("<d:prop>")
		for _, p := range props {
			fmt.Fprintf(&inner, "<%s:%s/>", ns.prefix(p), p.Local)
		}
		inner.WriteString("</d:prop>")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	fmt.Fprintf(&buf, "<d:propfind%s>", ns.declarations())
	buf.Write(inner.Bytes())
	buf.WriteString("</d:propfind>")
	return buf.Bytes()
}

// ProppatchBody renders a PROPPATCH request setting text values
func ProppatchBody(props []PropValue) []byte {
	ns := newNamespaces()

	var inner bytes.Buffer
	inner.WriteString("<d:set><d:prop>")
	for _, p := range props {
		prefix := ns.prefix(p.PropName)
		fmt.Fprintf(&inner, "<%s:%s>%s</%s:%s>", prefix, p.Local, escape(p.Value), prefix, p.Local)
	}
	inner.WriteString("</d:prop></d:set>")

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	fmt.Fprintf(&buf, "<d:propertyupdate%s>", ns.declarations())
	buf.Write(inner.Bytes())
	buf.WriteString("</d:propertyupdate>")
	return buf.Bytes()
}

// FileDetailProps are the standard properties of a folder listing
var FileDetailProps = []PropName{
	{Space: models.NamespaceDAV, Local: "getlastmodified", Prefix: "d"},
	{Space: models.NamespaceDAV, Local: "getcontentlength", Prefix: "d"},
	{Space: models.NamespaceDAV, Local: "resourcetype", Prefix: "d"},
	{Space: models.NamespaceDAV, Local: "getcontenttype", Prefix: "d"},
	{Space: models.NamespaceDAV, Local: "getetag", Prefix: "d"},
	{Space: models.NamespaceDAV, Local: "creationdate", Prefix: "d"},
}
