package sru

import (
	"encoding/xml"
	"strings"
)

// SearchRetrieveResponse was generated from a Koha searchRetrieve response.
// Elements are matched by local name, so SRU 1.1, 1.2 and 2.0 namespaces
// decode alike.
type SearchRetrieveResponse struct {
	XMLName         xml.Name `xml:"searchRetrieveResponse"`
	Version         string   `xml:"version"`
	NumberOfRecords int      `xml:"numberOfRecords"`
	Records         struct {
		Record []struct {
			RecordSchema  string `xml:"recordSchema"`
			RecordPacking string `xml:"recordPacking"`
			RecordData    struct {
				Record Record `xml:"record"`
			} `xml:"recordData"`
			RecordPosition int `xml:"recordPosition"`
		} `xml:"record"`
	} `xml:"records"`
	Diagnostics struct {
		Diagnostic []struct {
			URI     string `xml:"uri"`
			Details string `xml:"details"`
			Message string `xml:"message"`
		} `xml:"diagnostic"`
	} `xml:"diagnostics"`
	EchoedSearchRetrieveRequest struct {
		Version        string `xml:"version"`
		Query          string `xml:"query"`
		StartRecord    string `xml:"startRecord"`
		MaximumRecords string `xml:"maximumRecords"`
		RecordPacking  string `xml:"recordPacking"`
		RecordSchema   string `xml:"recordSchema"`
	} `xml:"echoedSearchRetrieveRequest"`
}

// Record is a MARC-XML record wrapped in an SRU response.
type Record struct {
	Leader       string         `xml:"leader"`
	Controlfield []ControlField `xml:"controlfield"`
	Datafield    []DataField    `xml:"datafield"`
}

type ControlField struct {
	Tag  string `xml:"tag,attr"`
	Text string `xml:",chardata"`
}

type DataField struct {
	Tag      string     `xml:"tag,attr"`
	Ind1     string     `xml:"ind1,attr"`
	Ind2     string     `xml:"ind2,attr"`
	Subfield []Subfield `xml:"subfield"`
}

type Subfield struct {
	Code string `xml:"code,attr"`
	Text string `xml:",chardata"`
}

// ControlField returns the value of the first control field with tag.
func (r Record) ControlField(tag string) (string, bool) {
	for _, f := range r.Controlfield {
		if f.Tag == tag {
			return strings.TrimSpace(f.Text), true
		}
	}
	return "", false
}

// Subfields returns all values of code in data fields with tag, in order.
func (r Record) Subfields(tag, code string) []string {
	var vs []string
	for _, f := range r.Datafield {
		if f.Tag != tag {
			continue
		}
		for _, s := range f.Subfield {
			if s.Code == code {
				vs = append(vs, s.Text)
			}
		}
	}
	return vs
}

// Diagnostic messages, joined, or the empty string.
func (s *SearchRetrieveResponse) diagnostic() string {
	var msgs []string
	for _, d := range s.Diagnostics.Diagnostic {
		m := d.Message
		if d.Details != "" {
			m += " (" + d.Details + ")"
		}
		if m == "" {
			m = d.URI
		}
		msgs = append(msgs, m)
	}
	return strings.Join(msgs, "; ")
}
