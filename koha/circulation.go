package koha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/Alban-Peyrat/Koha-API-interface/apierr"
)

// RuleKind describes one circulation rule kind.
type RuleKind struct {
	Scope      []string `json:"scope"`
	CanBeBlank bool     `json:"can_be_blank,omitempty"`
	IsMonetary bool     `json:"is_monetary,omitempty"`
}

// CirculationRuleKinds lists the circulation rule kinds Koha knows, keyed by
// rule name.
func (c *Client) CirculationRuleKinds(ctx context.Context) (map[string]RuleKind, error) {
	const op = "circulation rule kinds"
	req, err := newRequest(http.MethodGet, c.url("/api/v1/circulation-rules/kinds"), nil, "", "application/json")
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	resp, err := c.send(ctx, op, req, true)
	if err != nil {
		return nil, err
	}
	kinds := map[string]RuleKind{}
	if err := json.Unmarshal(resp.Body, &kinds); err != nil {
		return nil, apierr.Wrap(apierr.InvalidResponse, op, err)
	}
	return kinds, nil
}

// RuleFilter narrows CirculationRules. Empty fields are not sent.
type RuleFilter struct {
	LibraryID        string
	PatronCategoryID string
	ItemTypeID       string
	Rules            []string
}

func (f RuleFilter) values() url.Values {
	vs := url.Values{}
	if f.LibraryID != "" {
		vs.Set("library_id", f.LibraryID)
	}
	if f.PatronCategoryID != "" {
		vs.Set("patron_category_id", f.PatronCategoryID)
	}
	if f.ItemTypeID != "" {
		vs.Set("item_type_id", f.ItemTypeID)
	}
	if len(f.Rules) > 0 {
		vs.Set("rules", strings.Join(f.Rules, ","))
	}
	return vs
}

// CirculationRules returns the effective circulation rules for f.
func (c *Client) CirculationRules(ctx context.Context, f RuleFilter) ([]map[string]interface{}, error) {
	const op = "circulation rules"
	link := c.url("/api/v1/circulation_rules")
	if q := f.values().Encode(); q != "" {
		link += "?" + q
	}
	req, err := newRequest(http.MethodGet, link, nil, "", "application/json")
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	resp, err := c.send(ctx, op, req, true)
	if err != nil {
		return nil, err
	}
	var rules []map[string]interface{}
	if err := json.Unmarshal(resp.Body, &rules); err != nil {
		return nil, apierr.Wrap(apierr.InvalidResponse, op, err)
	}
	return rules, nil
}
