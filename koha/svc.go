package koha

import (
	"bytes"
	"context"
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Alban-Peyrat/Koha-API-interface/apierr"
	"github.com/Alban-Peyrat/Koha-API-interface/marcxml"
)

const svcPath = "/cgi-bin/koha/svc/"

// SVCSession is an authenticated session on the legacy SVC interface. The
// session cookies are fixed at login.
type SVCSession struct {
	c       *Client
	cookies []*http.Cookie
}

type svcStatus struct {
	XMLName xml.Name `xml:"response"`
	Status  string   `xml:"status"`
}

// LoginSVC authenticates with the configured userid and password.
//
// The SVC interface takes the credentials in the query string. They are
// redacted from logs but do travel in the URL.
func (c *Client) LoginSVC(ctx context.Context) (*SVCSession, error) {
	const op = "svc login"
	link := c.url(svcPath + "authentication?userid=" + url.QueryEscape(c.cfg.UserID) +
		"&password=" + url.QueryEscape(c.cfg.Password))
	req, err := newRequest(http.MethodGet, link, nil, "", "text/xml")
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	resp, err := c.send(ctx, op, req, false)
	if err != nil {
		return nil, err
	}
	var st svcStatus
	if err := xml.Unmarshal(resp.Body, &st); err != nil {
		return nil, apierr.Wrap(apierr.InvalidXML, op, err)
	}
	if status := strings.TrimSpace(st.Status); status != "ok" {
		c.log.WithField("op", op).Errorf("authentication failed: %s", status)
		return nil, apierr.New(apierr.AuthenticationFailed, op, "authentication failed: "+status)
	}
	c.log.WithField("op", op).Debug("successfully logged in")
	return &SVCSession{c: c, cookies: resp.Cookies}, nil
}

func (s *SVCSession) do(ctx context.Context, op string, req *http.Request, bibnb string) ([]byte, error) {
	for _, ck := range s.cookies {
		req.AddCookie(ck)
	}
	resp, err := s.c.send(ctx, op, req, false)
	if err != nil {
		if bibnb != "" {
			return nil, notFound(err, op, "record biblionumber "+bibnb)
		}
		return nil, err
	}
	return resp.Body, nil
}

// GetBiblio returns the MARC-XML of record id.
func (s *SVCSession) GetBiblio(ctx context.Context, id string) ([]byte, error) {
	const op = "svc get biblio"
	bibnb, err := ParseID(id)
	if err != nil {
		s.c.log.WithField("op", op).Error(err)
		return nil, err
	}
	req, err := newRequest(http.MethodGet, s.c.url(svcPath+"bib/"+bibnb), nil, "", "text/xml")
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return s.do(ctx, op, req, bibnb)
}

// UpdateBiblio replaces record id. With items set, embedded 952/995 item
// fields are updated too.
func (s *SVCSession) UpdateBiblio(ctx context.Context, id string, src marcxml.Source, items bool) ([]byte, error) {
	const op = "svc update biblio"
	data, err := marcxml.Validate(src)
	if err != nil {
		s.c.log.WithFields(logrus.Fields{"op": op, "id": id}).Error(err)
		return nil, err
	}
	bibnb, err := ParseID(id)
	if err != nil {
		s.c.log.WithField("op", op).Error(err)
		return nil, err
	}
	req, err := newRequest(http.MethodPost, s.c.url(svcPath+"bib/"+bibnb+itemsParam(items)), bytes.NewReader(data), "text/xml", "")
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return s.do(ctx, op, req, bibnb)
}

// NewBiblio creates a record.
func (s *SVCSession) NewBiblio(ctx context.Context, src marcxml.Source, items bool) ([]byte, error) {
	const op = "svc new biblio"
	data, err := marcxml.Validate(src)
	if err != nil {
		s.c.log.WithField("op", op).Error(err)
		return nil, err
	}
	req, err := newRequest(http.MethodPost, s.c.url(svcPath+"new_bib"+itemsParam(items)), bytes.NewReader(data), "text/xml", "")
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return s.do(ctx, op, req, "")
}

func itemsParam(items bool) string {
	if items {
		return "?items=1"
	}
	return ""
}
