package main

import (
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Alban-Peyrat/Koha-API-interface/apierr"
	"github.com/Alban-Peyrat/Koha-API-interface/marcxml"
	"github.com/Alban-Peyrat/Koha-API-interface/sru"
)

// harvester pages through a result set and prints what it gets.
type harvester struct {
	client       *sru.Client
	log          logrus.FieldLogger
	re           *regexp.Regexp
	limit        int
	regex        bool
	ids          bool
	check        bool
	ignoreErrors bool
	printer      func(string)

	retrieved int
	rejected  int
}

// run requests pages until the result set or the limit is exhausted.
func (h *harvester) run(ctx context.Context, p sru.Params) error {
	// By how much we progress.
	inc := p.MaximumRecords
	for {
		err := h.fetch(ctx, &p, &inc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	if h.check {
		h.log.WithFields(logrus.Fields{"retrieved": h.retrieved, "rejected": h.rejected}).Info("done")
	}
	return nil
}

// fetch gets one page and advances p. Returns io.EOF when done.
func (h *harvester) fetch(ctx context.Context, p *sru.Params, inc *int) error {
	p.MaximumRecords = *inc
	result, err := h.client.Search(ctx, *p)
	if err != nil {
		if !h.ignoreErrors || !errors.Is(err, apierr.ErrHTTPStatus) {
			return err
		}
		// Crawl forward, so we miss as little as possible.
		*inc = 1
		p.StartRecord++
		h.log.Warnf("ignoring per flag: %v", err)
		return nil
	}

	// Make sure we progress, even in the presence of errors.
	p.StartRecord += *inc

	h.retrieved += len(result.Records)
	switch {
	case h.ids:
		for _, id := range result.RecordIDs() {
			h.printer(id)
		}
	case h.check:
		if err := h.validated(result.Raw); err != nil {
			return err
		}
	case h.regex:
		for _, match := range h.re.FindAllString(string(result.Raw), -1) {
			h.printer(strings.TrimSpace(match))
		}
	default:
		h.printer(string(result.Raw))
	}

	if h.limit > -1 && h.retrieved >= h.limit {
		return io.EOF
	}
	if len(result.Records) == 0 || p.StartRecord > result.NumberOfRecords {
		return io.EOF
	}
	return nil
}

// validated prints the MARC-XML records of a response that pass validation
// and logs the others.
func (h *harvester) validated(raw []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return apierr.Wrap(apierr.InvalidXML, "sru search", err)
	}
	for _, e := range doc.FindElements("//record") {
		if e.NamespaceURI() != marcxml.Namespace {
			continue
		}
		b, err := marcxml.Validate(marcxml.Tree{Element: e})
		if err != nil {
			h.rejected++
			h.log.WithField("kind", apierr.KindOf(err)).Warn(err)
			continue
		}
		h.printer(string(b))
	}
	return nil
}
