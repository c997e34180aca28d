package mockserver

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
)

const (
	nsDAV       = "DAV:"
	nsOwnCloud  = "http://owncloud.org/ns"
	nsNextCloud = "http://nextcloud.org/ns"
)

// multistatus accumulates a 207 body using the prefixes Nextcloud uses
type multistatus struct {
	buf bytes.Buffer
}

func newMultistatus() *multistatus {
	m := &multistatus{}
	m.buf.WriteString(xml.Header)
	m.buf.WriteString(`<d:multistatus xmlns:d="DAV:" xmlns:s="http://sabredav.org/ns" xmlns:oc="http://owncloud.org/ns" xmlns:nc="http://nextcloud.org/ns">`)
	return m
}

// propstat is a group of rendered property elements sharing a status
type propstat struct {
	status int
	props  []string
}

func (m *multistatus) response(href string, stats ...propstat) {
	m.buf.WriteString("<d:response><d:href>")
	m.buf.WriteString(escapeText(href))
	m.buf.WriteString("</d:href>")
	for _, ps := range stats {
		if len(ps.props) == 0 {
			continue
		}
		m.buf.WriteString("<d:propstat><d:prop>")
		for _, p := range ps.props {
			m.buf.WriteString(p)
		}
		m.buf.WriteString("</d:prop><d:status>")
		m.buf.WriteString(statusLine(ps.status))
		m.buf.WriteString("</d:status></d:propstat>")
	}
	m.buf.WriteString("</d:response>")
}

func (m *multistatus) write(w http.ResponseWriter) {
	m.buf.WriteString("</d:multistatus>")
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	w.Write(m.buf.Bytes())
}

func statusLine(code int) string {
	return fmt.Sprintf("HTTP/1.1 %d %s", code, http.StatusText(code))
}

func escapeText(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// qualified returns the element name for a property, declaring unknown
// namespaces on the element itself
func qualified(name xml.Name) (tag, decl string) {
	switch name.Space {
	case nsDAV:
		return "d:" + name.Local, ""
	case nsOwnCloud:
		return "oc:" + name.Local, ""
	case nsNextCloud:
		return "nc:" + name.Local, ""
	case "":
		return name.Local, ""
	}
	return "x:" + name.Local, fmt.Sprintf(` xmlns:x="%s"`, escapeText(name.Space))
}

// textProp renders <name>text</name>
func textProp(name xml.Name, text string) string {
	tag, decl := qualified(name)
	if text == "" {
		return fmt.Sprintf("<%s%s/>", tag, decl)
	}
	return fmt.Sprintf("<%s%s>%s</%s>", tag, decl, escapeText(text), tag)
}

// rawProp renders <name>inner</name> with inner already being XML
func rawProp(name xml.Name, inner string) string {
	tag, decl := qualified(name)
	if inner == "" {
		return fmt.Sprintf("<%s%s/>", tag, decl)
	}
	return fmt.Sprintf("<%s%s>%s</%s>", tag, decl, inner, tag)
}

// emptyProp renders a property name without value, as used in 404 propstats
func emptyProp(name xml.Name) string {
	return rawProp(name, "")
}
