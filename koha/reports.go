package koha

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Alban-Peyrat/Koha-API-interface/apierr"
)

// ReportRequest runs a saved SQL report.
type ReportRequest struct {
	ID string
	// Params fill the report's <<placeholders>>, in order.
	Params []string
	// Annotated asks for rows keyed by column name instead of arrays.
	Annotated bool
}

// Report holds the rows of a report run.
type Report struct {
	rows []json.RawMessage
}

// Len returns the number of rows.
func (r *Report) Len() int {
	return len(r.rows)
}

// Annotated reports whether rows are objects. An empty report is not
// annotated.
func (r *Report) Annotated() bool {
	if len(r.rows) == 0 {
		return false
	}
	b := bytes.TrimSpace(r.rows[0])
	return len(b) > 0 && b[0] == '{'
}

// Rows decodes positional rows.
func (r *Report) Rows() ([][]interface{}, error) {
	out := make([][]interface{}, 0, len(r.rows))
	for _, raw := range r.rows {
		var row []interface{}
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, errors.Wrap(err, "decode report row")
		}
		out = append(out, row)
	}
	return out, nil
}

// Records decodes annotated rows.
func (r *Report) Records() ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(r.rows))
	for _, raw := range r.rows {
		var rec map[string]interface{}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, errors.Wrap(err, "decode report record")
		}
		out = append(out, rec)
	}
	return out, nil
}

// reportURL builds the report URL. sql_params repeat in the given order.
func (c *Client) reportURL(id string, params []string, annotated bool) string {
	vs := url.Values{}
	vs.Set("id", id)
	vs.Set("userid", c.cfg.UserID)
	vs.Set("password", c.cfg.Password)
	for _, p := range params {
		vs.Add("sql_params", p)
	}
	if annotated {
		vs.Set("annotated", "1")
	}
	return c.url(svcPath + "report?" + vs.Encode())
}

// RunReport runs a report through the JSON reports service.
func (c *Client) RunReport(ctx context.Context, r ReportRequest) (*Report, error) {
	const op = "run report"
	id, err := ParseID(r.ID)
	if err != nil {
		c.log.WithField("op", op).Error(err)
		return nil, err
	}
	req, err := newRequest(http.MethodGet, c.reportURL(id, r.Params, r.Annotated), nil, "", "application/json")
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	resp, err := c.send(ctx, op, req, false)
	if err != nil {
		return nil, notFound(err, op, "report "+id)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return nil, apierr.Wrap(apierr.InvalidResponse, op, errors.Wrap(err, "report did not return a JSON array"))
	}
	c.log.WithFields(logrus.Fields{"op": op, "id": id, "rows": len(rows)}).Debug("report retrieved")
	return &Report{rows: rows}, nil
}
