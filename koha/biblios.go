package koha

import (
	"bytes"
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Alban-Peyrat/Koha-API-interface/marcxml"
)

// ContentType selects the record format of the biblios endpoints.
type ContentType string

const (
	MARCXML    ContentType = "application/marcxml+xml"
	MARCInJSON ContentType = "application/marc-in-json"
	MARC       ContentType = "application/marc"
	Text       ContentType = "text/plain"
)

// Valid reports whether t is one of the four formats Koha serves.
func (t ContentType) Valid() bool {
	switch t {
	case MARCXML, MARCInJSON, MARC, Text:
		return true
	}
	return false
}

// GetBiblio returns record id in format t (MARC-XML if empty).
func (c *Client) GetBiblio(ctx context.Context, id string, t ContentType) ([]byte, error) {
	return c.getBiblio(ctx, "get biblio", "/api/v1/biblios/", id, t, true)
}

// GetPublicBiblio is GetBiblio on the public endpoint, which needs no token.
func (c *Client) GetPublicBiblio(ctx context.Context, id string, t ContentType) ([]byte, error) {
	return c.getBiblio(ctx, "get public biblio", "/api/v1/public/biblios/", id, t, false)
}

func (c *Client) getBiblio(ctx context.Context, op, path, id string, t ContentType, auth bool) ([]byte, error) {
	bibnb, err := ParseID(id)
	if err != nil {
		c.log.WithField("op", op).Error(err)
		return nil, err
	}
	if t == "" {
		t = MARCXML
	}
	req, err := newRequest(http.MethodGet, c.url(path+bibnb), nil, "", string(t))
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	resp, err := c.send(ctx, op, req, auth)
	if err != nil {
		return nil, notFound(err, op, "record biblionumber "+bibnb)
	}
	c.log.WithFields(logrus.Fields{"op": op, "id": bibnb}).Debug("record retrieved")
	return resp.Body, nil
}

// UpdateBiblio replaces record id. The record is validated before the id,
// and nothing is sent unless both are valid.
func (c *Client) UpdateBiblio(ctx context.Context, id string, src marcxml.Source) ([]byte, error) {
	const op = "update biblio"
	data, err := marcxml.Validate(src)
	if err != nil {
		c.log.WithFields(logrus.Fields{"op": op, "id": id}).Error(err)
		return nil, err
	}
	bibnb, err := ParseID(id)
	if err != nil {
		c.log.WithField("op", op).Error(err)
		return nil, err
	}
	req, err := newRequest(http.MethodPut, c.url("/api/v1/biblios/"+bibnb), bytes.NewReader(data), string(MARCXML), "application/json")
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	resp, err := c.send(ctx, op, req, true)
	if err != nil {
		return nil, notFound(err, op, "record biblionumber "+bibnb)
	}
	c.log.WithFields(logrus.Fields{"op": op, "id": bibnb}).Debug("record updated")
	return resp.Body, nil
}

// AddBiblio creates a record and returns Koha's response, which carries the
// new biblionumber.
func (c *Client) AddBiblio(ctx context.Context, src marcxml.Source) ([]byte, error) {
	const op = "add biblio"
	data, err := marcxml.Validate(src)
	if err != nil {
		c.log.WithField("op", op).Error(err)
		return nil, err
	}
	req, err := newRequest(http.MethodPost, c.url("/api/v1/biblios"), bytes.NewReader(data), string(MARCXML), "application/json")
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	resp, err := c.send(ctx, op, req, true)
	if err != nil {
		return nil, err
	}
	c.log.WithField("op", op).Debug("record created")
	return resp.Body, nil
}
