package koha

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"

	"github.com/pkg/errors"

	"github.com/Alban-Peyrat/Koha-API-interface/apierr"
)

// AcqOperation names an acquisitions API operation.
type AcqOperation string

const (
	ListOrders   AcqOperation = "listOrders"
	AddOrder     AcqOperation = "addOrder"
	GetOrder     AcqOperation = "getOrder"
	UpdateOrder  AcqOperation = "updateOrder"
	DeleteOrder  AcqOperation = "deleteOrder"
	ListVendors  AcqOperation = "listVendors"
	AddVendor    AcqOperation = "addVendor"
	GetVendor    AcqOperation = "getVendor"
	UpdateVendor AcqOperation = "updateVendor"
	DeleteVendor AcqOperation = "deleteVendor"
	ListFunds    AcqOperation = "listFunds"
)

type acqRoute struct {
	method   string
	resource string
	byID     bool
}

var acqRoutes = map[AcqOperation]acqRoute{
	ListOrders:   {http.MethodGet, "orders", false},
	AddOrder:     {http.MethodPost, "orders", false},
	GetOrder:     {http.MethodGet, "orders", true},
	UpdateOrder:  {http.MethodPut, "orders", true},
	DeleteOrder:  {http.MethodDelete, "orders", true},
	ListVendors:  {http.MethodGet, "vendors", false},
	AddVendor:    {http.MethodPost, "vendors", false},
	GetVendor:    {http.MethodGet, "vendors", true},
	UpdateVendor: {http.MethodPut, "vendors", true},
	DeleteVendor: {http.MethodDelete, "vendors", true},
	ListFunds:    {http.MethodGet, "funds", false},
}

// AcqOperations returns the supported operations, sorted.
func AcqOperations() []AcqOperation {
	ops := make([]AcqOperation, 0, len(acqRoutes))
	for op := range acqRoutes {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Acquisitions calls an acquisitions endpoint. id is required by the get,
// update and delete operations and ignored otherwise. body, when not nil,
// is sent as JSON. A delete returns a nil message.
func (c *Client) Acquisitions(ctx context.Context, op AcqOperation, id string, body interface{}) (json.RawMessage, error) {
	name := "acquisitions " + string(op)
	route, ok := acqRoutes[op]
	if !ok {
		err := apierr.New(apierr.UnsupportedOperation, "acquisitions", "unsupported operation "+string(op))
		c.log.WithField("op", name).Error(err)
		return nil, err
	}
	link := c.url("/api/v1/acquisitions/" + route.resource)
	if route.byID {
		n, err := ParseID(id)
		if err != nil {
			c.log.WithField("op", name).Error(err)
			return nil, err
		}
		id = n
		link += "/" + n
	}
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, name)
		}
		r = bytes.NewReader(b)
	}
	contentType := ""
	if r != nil {
		contentType = "application/json"
	}
	req, err := newRequest(route.method, link, r, contentType, "application/json")
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	resp, err := c.send(ctx, name, req, true)
	if err != nil {
		if route.byID {
			return nil, notFound(err, name, route.resource+" "+id)
		}
		return nil, err
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, nil
	}
	if !json.Valid(resp.Body) {
		return nil, apierr.New(apierr.InvalidResponse, name, "response is not JSON")
	}
	return json.RawMessage(resp.Body), nil
}
