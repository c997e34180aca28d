package davxml

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/pulsepoint/nextcloud/pkg/errors"
)

// OcsMeta is the meta block of an OCS envelope
type OcsMeta struct {
	Status       string `json:"status"`
	StatusCode   int    `json:"statuscode"`
	Message      string `json:"message"`
	TotalItems   string `json:"totalitems,omitempty"`
	ItemsPerPage string `json:"itemsperpage,omitempty"`
}

// Envelope is a decoded OCS response. Data holds generic values (maps,
// slices, strings, json.Number, bools) whatever the wire format was.
type Envelope struct {
	Meta OcsMeta
	Data interface{}
}

// OK reports whether the meta status code signals success
func (e *Envelope) OK() bool {
	return e.Meta.StatusCode == errors.OcsV1Success || e.Meta.StatusCode == errors.OcsV2Success
}

// Err returns the OCS failure carried by the envelope, or nil
func (e *Envelope) Err() error {
	if e.OK() {
		return nil
	}
	return errors.NewOcsError(e.Meta.StatusCode, e.Meta.Message)
}

type jsonEnvelope struct {
	Ocs struct {
		Meta struct {
			Status       string      `json:"status"`
			StatusCode   json.Number `json:"statuscode"`
			Message      string      `json:"message"`
			TotalItems   string      `json:"totalitems"`
			ItemsPerPage string      `json:"itemsperpage"`
		} `json:"meta"`
		Data interface{} `json:"data"`
	} `json:"ocs"`
}

type xmlEnvelope struct {
	XMLName xml.Name `xml:"ocs"`
	Meta    struct {
		Status       string `xml:"status"`
		StatusCode   string `xml:"statuscode"`
		Message      string `xml:"message"`
		TotalItems   string `xml:"totalitems"`
		ItemsPerPage string `xml:"itemsperpage"`
	} `xml:"meta"`
	Data rawElement `xml:"data"`
}

// ParseOcsEnvelope decodes an OCS body in JSON or XML form. The format is
// sniffed from the first non-blank byte, so a mislabelled Content-Type does
// not matter.
func ParseOcsEnvelope(body []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.NewParseError("empty OCS response", body, nil)
	}
	if trimmed[0] == '{' {
		return parseJSONEnvelope(body)
	}
	return parseXMLEnvelope(body)
}

func parseJSONEnvelope(body []byte) (*Envelope, error) {
	var env jsonEnvelope
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, errors.NewParseError("decode OCS json envelope", body, err)
	}

	code, err := strconv.Atoi(env.Ocs.Meta.StatusCode.String())
	if err != nil {
		return nil, errors.NewParseError("OCS envelope without status code", body, err)
	}

	return &Envelope{
		Meta: OcsMeta{
			Status:       env.Ocs.Meta.Status,
			StatusCode:   code,
			Message:      env.Ocs.Meta.Message,
			TotalItems:   env.Ocs.Meta.TotalItems,
			ItemsPerPage: env.Ocs.Meta.ItemsPerPage,
		},
		Data: env.Ocs.Data,
	}, nil
}

func parseXMLEnvelope(body []byte) (*Envelope, error) {
	var env xmlEnvelope
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&env); err != nil {
		return nil, errors.NewParseError("decode OCS xml envelope", body, err)
	}

	code, err := strconv.Atoi(strings.TrimSpace(env.Meta.StatusCode))
	if err != nil {
		return nil, errors.NewParseError("OCS envelope without status code", body, err)
	}

	return &Envelope{
		Meta: OcsMeta{
			Status:       strings.TrimSpace(env.Meta.Status),
			StatusCode:   code,
			Message:      strings.TrimSpace(env.Meta.Message),
			TotalItems:   env.Meta.TotalItems,
			ItemsPerPage: env.Meta.ItemsPerPage,
		},
		Data: genericValue(env.Data),
	}, nil
}

// genericValue converts an OCS XML subtree to the shape the JSON format
// uses: leaves become strings, <element> children or repeated names become
// slices, everything else a map.
func genericValue(el rawElement) interface{} {
	if len(el.Children) == 0 {
		return strings.TrimSpace(el.Chardata)
	}

	counts := make(map[string]int, len(el.Children))
	for _, c := range el.Children {
		counts[c.XMLName.Local]++
	}

	if len(counts) == 1 && (counts["element"] > 0 || len(el.Children) > 1) {
		list := make([]interface{}, 0, len(el.Children))
		for _, c := range el.Children {
			list = append(list, genericValue(c))
		}
		return list
	}

	m := make(map[string]interface{}, len(el.Children))
	for _, c := range el.Children {
		v := genericValue(c)
		if counts[c.XMLName.Local] > 1 {
			existing, _ := m[c.XMLName.Local].([]interface{})
			m[c.XMLName.Local] = append(existing, v)
			continue
		}
		m[c.XMLName.Local] = v
	}
	return m
}
