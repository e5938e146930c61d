package sru

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Alban-Peyrat/Koha-API-interface/apierr"
)

// Supported protocol versions and record schemas.
const (
	Version11 = "1.1"
	Version12 = "1.2"
	Version20 = "2.0"

	SchemaMARCXML = "marcxml"
	SchemaDC      = "dc"
	SchemaMODS    = "mods"

	OperationSearchRetrieve = "searchRetrieve"
	OperationExplain        = "explain"
)

// Params are the searchRetrieve request parameters.
type Params struct {
	Version        string
	RecordSchema   string
	Operation      string
	Query          string
	StartRecord    int
	MaximumRecords int
}

// DefaultParams returns the parameters the Koha SRU server is usually
// queried with.
func DefaultParams(query string) Params {
	return Params{
		Version:        Version11,
		RecordSchema:   SchemaMARCXML,
		Operation:      OperationSearchRetrieve,
		Query:          query,
		StartRecord:    1,
		MaximumRecords: 100,
	}
}

// URL returns the request URL of p against endpoint.
func (p Params) URL(endpoint string) (string, error) {
	return BuildRequestURL(endpoint, p.Version, p.RecordSchema, p.Operation, p.Query, p.StartRecord, p.MaximumRecords)
}

// BuildRequestURL assembles a searchRetrieve URL. Only query is percent
// encoded, the other values are inserted as given.
func BuildRequestURL(endpoint, version, recordSchema, operation, query string, startRecord, maximumRecords int) (string, error) {
	if startRecord < 1 {
		return "", apierr.New(apierr.InvalidPagination, "build request url",
			fmt.Sprintf("startRecord must be at least 1, got %d", startRecord))
	}
	if maximumRecords <= 0 {
		return "", apierr.New(apierr.InvalidPagination, "build request url",
			fmt.Sprintf("maximumRecords must be positive, got %d", maximumRecords))
	}
	return fmt.Sprintf("%s?version=%s&recordSchema=%s&operation=%s&query=%s&startRecord=%d&maximumRecords=%d",
		endpoint, version, recordSchema, operation, escapeQuery(query), startRecord, maximumRecords), nil
}

// ExplainURL returns the URL of an explain request.
func ExplainURL(endpoint, version string) string {
	return fmt.Sprintf("%s?operation=%s&version=%s", endpoint, OperationExplain, version)
}

// escapeQuery percent-encodes spaces as %20 rather than +, which some SRU
// servers do not decode.
func escapeQuery(q string) string {
	return strings.ReplaceAll(url.QueryEscape(q), "+", "%20")
}
