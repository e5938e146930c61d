// Package sru builds CQL queries and searchRetrieve URLs, and queries a Koha
// SRU endpoint.
//
// More on SRU: https://www.loc.gov/standards/sru/
package sru

import (
	"context"
	"encoding/xml"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Alban-Peyrat/Koha-API-interface/apierr"
	"github.com/Alban-Peyrat/Koha-API-interface/transport"
)

// Client queries one SRU endpoint, e.g. http://koha.example.org:9998/biblios.
type Client struct {
	Endpoint  string
	Requester transport.Requester
	Log       logrus.FieldLogger
}

// NewClient returns a client for endpoint.
func NewClient(endpoint string, r transport.Requester, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{Endpoint: endpoint, Requester: r, Log: log}
}

// Result is the outcome of a searchRetrieve request.
type Result struct {
	URL             string
	Params          Params
	NumberOfRecords int
	Records         []Record
	Raw             []byte
}

// RecordIDs returns the 001 of each record, in response order. Records
// without 001 yield an empty string.
func (r *Result) RecordIDs() []string {
	ids := make([]string, 0, len(r.Records))
	for _, rec := range r.Records {
		id, _ := rec.ControlField("001")
		ids = append(ids, id)
	}
	return ids
}

// Search runs a searchRetrieve request.
func (c *Client) Search(ctx context.Context, p Params) (*Result, error) {
	const op = "sru search"
	link, err := p.URL(c.Endpoint)
	if err != nil {
		return nil, err
	}
	log := c.Log.WithFields(logrus.Fields{"op": op, "query": p.Query})
	log.Debug(link)

	req, err := http.NewRequest(http.MethodGet, link, nil)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	// https://stackoverflow.com/q/21147562/89391
	req.Header.Set("Accept-Encoding", "identity")
	resp, err := c.Requester.Do(ctx, op, req)
	if err != nil {
		log.WithField("status", apierr.StatusOf(err)).Error(err)
		return nil, err
	}

	var srr SearchRetrieveResponse
	if err := xml.Unmarshal(resp.Body, &srr); err != nil {
		log.Errorf("cannot decode response: %v", err)
		return nil, apierr.Wrap(apierr.InvalidXML, op, err)
	}
	if msg := srr.diagnostic(); msg != "" {
		log.Errorf("diagnostic: %s", msg)
		return nil, apierr.New(apierr.Diagnostic, op, msg)
	}
	result := &Result{
		URL:             link,
		Params:          p,
		NumberOfRecords: srr.NumberOfRecords,
		Raw:             resp.Body,
	}
	for _, r := range srr.Records.Record {
		result.Records = append(result.Records, r.RecordData.Record)
	}
	log.WithField("count", len(result.Records)).Debug("success")
	return result, nil
}

// Explain fetches the explain document of the endpoint.
func (c *Client) Explain(ctx context.Context, version string) ([]byte, error) {
	const op = "sru explain"
	if version == "" {
		version = Version11
	}
	link := ExplainURL(c.Endpoint, version)
	req, err := http.NewRequest(http.MethodGet, link, nil)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	resp, err := c.Requester.Do(ctx, op, req)
	if err != nil {
		c.Log.WithField("op", op).Error(err)
		return nil, err
	}
	return resp.Body, nil
}
