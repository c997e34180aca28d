// Package davxml encodes WebDAV request bodies and decodes Multi-Status and
// OCS envelope responses.
package davxml

import (
	"bytes"
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"

	"github.com/pulsepoint/nextcloud/pkg/errors"
	"github.com/pulsepoint/nextcloud/pkg/models"
)

type rawMultistatus struct {
	XMLName   xml.Name      `xml:"DAV: multistatus"`
	Responses []rawResponse `xml:"DAV: response"`
}

type rawResponse struct {
	Hrefs     []string      `xml:"DAV: href"`
	Status    string        `xml:"DAV: status"`
	Propstats []rawPropstat `xml:"DAV: propstat"`
}

type rawPropstat struct {
	Prop   rawElement `xml:"DAV: prop"`
	Status string     `xml:"DAV: status"`
}

// rawElement captures an arbitrary element, its text and its children
type rawElement struct {
	XMLName  xml.Name
	Attrs    []xml.Attr   `xml:",any,attr"`
	Chardata string       `xml:",chardata"`
	InnerXML string       `xml:",innerxml"`
	Children []rawElement `xml:",any"`
}

// Property is one property value of a resource. Name carries the namespace
// URI, never the prefix the server chose.
type Property struct {
	Name     xml.Name
	Value    string
	Children []xml.Name
	InnerXML string
}

// HasChild reports whether the property contains an element with this name
func (p Property) HasChild(space, local string) bool {
	for _, c := range p.Children {
		if c.Space == space && c.Local == local {
			return true
		}
	}
	return false
}

// Propstat groups properties sharing one status
type Propstat struct {
	Status int
	Props  []Property
}

// Response is one resource of a Multi-Status body
type Response struct {
	Href string
	// Status is the response-level status, 0 when the response carries propstats
	Status    int
	Propstats []Propstat
}

// Found looks up a property among the 200 OK propstats only
func (r *Response) Found(space, local string) (Property, bool) {
	for _, ps := range r.Propstats {
		if ps.Status != http.StatusOK {
			continue
		}
		for _, p := range ps.Props {
			if p.Name.Space == space && p.Name.Local == local {
				return p, true
			}
		}
	}
	return Property{}, false
}

// FoundProps returns every property of the 200 OK propstats
func (r *Response) FoundProps() []Property {
	var out []Property
	for _, ps := range r.Propstats {
		if ps.Status == http.StatusOK {
			out = append(out, ps.Props...)
		}
	}
	return out
}

// IsCollection reports whether resourcetype contains DAV: collection
func (r *Response) IsCollection() bool {
	rt, ok := r.Found(models.NamespaceDAV, "resourcetype")
	return ok && rt.HasChild(models.NamespaceDAV, "collection")
}

// Err classifies a response-level failure status, e.g. a 404 inside a 207
func (r *Response) Err() error {
	if r.Status == 0 || r.Status < 300 {
		return nil
	}
	errType := errors.Classify(r.Status, 0, r.Status)
	if errType == "" {
		return nil
	}
	return &errors.NextcloudError{
		Type:       errType,
		Message:    "resource " + r.Href + " failed",
		StatusCode: r.Status,
	}
}

// ParseStatusLine extracts the code of "HTTP/1.1 200 OK"; 0 when malformed
func ParseStatusLine(line string) int {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return code
}

// ParseMultiStatus decodes a 207 body. Parse failures keep the body.
func ParseMultiStatus(body []byte) ([]Response, error) {
	var ms rawMultistatus
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&ms); err != nil {
		return nil, errors.NewParseError("decode multistatus", body, err)
	}

	out := make([]Response, 0, len(ms.Responses))
	for _, rr := range ms.Responses {
		resp := Response{Status: ParseStatusLine(rr.Status)}
		if len(rr.Hrefs) > 0 {
			resp.Href = strings.TrimSpace(rr.Hrefs[0])
		}
		for _, rps := range rr.Propstats {
			ps := Propstat{Status: ParseStatusLine(rps.Status)}
			for _, el := range rps.Prop.Children {
				ps.Props = append(ps.Props, toProperty(el))
			}
			resp.Propstats = append(resp.Propstats, ps)
		}
		out = append(out, resp)
	}
	return out, nil
}

func toProperty(el rawElement) Property {
	p := Property{
		Name:     el.XMLName,
		Value:    collectText(el),
		InnerXML: el.InnerXML,
	}
	for _, c := range el.Children {
		p.Children = append(p.Children, c.XMLName)
	}
	return p
}

// collectText joins the text of el and its descendants, so that nested
// values such as oc:checksums/oc:checksum still surface as a string
func collectText(el rawElement) string {
	parts := make([]string, 0, len(el.Children)+1)
	if t := strings.TrimSpace(el.Chardata); t != "" {
		parts = append(parts, t)
	}
	for _, c := range el.Children {
		if t := collectText(c); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
