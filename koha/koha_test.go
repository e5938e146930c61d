package koha_test

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/Alban-Peyrat/Koha-API-interface/apierr"
	"github.com/Alban-Peyrat/Koha-API-interface/koha"
	"github.com/Alban-Peyrat/Koha-API-interface/marcxml"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Identifiers", func() {
	It("Must accept digits surrounded by whitespace", func() {
		id, err := koha.ParseID(" 116741 \n")
		Expect(err).To(BeNil())
		Expect(id).To(Equal("116741"))
	})

	It("Must reject anything that is not a run of digits", func() {
		for _, s := range []string{"12a", "", " ", "-5", "1.5", "１２"} {
			_, err := koha.ParseID(s)
			Expect(errors.Is(err, apierr.ErrInvalidIdentifier)).To(BeTrue(), s)
		}
	})
})

var _ = Describe("Token", func() {
	var (
		fake   *fakeKoha
		client *koha.Client
		ctx    = context.Background()
	)

	BeforeEach(func() {
		fake = newFakeKoha()
		client = fake.client()
	})

	AfterEach(func() {
		fake.srv.Close()
	})

	It("Must post the client credentials grant", func() {
		tok, err := client.Token(ctx)
		Expect(err).To(BeNil())
		Expect(tok.AccessToken).To(Equal("abc"))
		Expect(tok.TokenType).To(Equal("Bearer"))

		calls := fake.calls("/api/v1/oauth/token")
		Expect(calls).To(HaveLen(1))
		Expect(calls[0].Method).To(Equal(http.MethodPost))
		Expect(calls[0].Body).To(ContainSubstring("grant_type=client_credentials"))
		Expect(calls[0].Body).To(ContainSubstring("client_id=client"))
		Expect(calls[0].Body).To(ContainSubstring("client_secret=secret"))
	})

	It("Must cache the token", func() {
		_, err := client.Token(ctx)
		Expect(err).To(BeNil())
		_, err = client.Token(ctx)
		Expect(err).To(BeNil())
		Expect(fake.calls("/api/v1/oauth/token")).To(HaveLen(1))
	})

	It("Must fail on an error field", func() {
		fake.handle("/api/v1/oauth/token", reply(http.StatusOK, "application/json", `{"error":"unauthorized_client"}`))
		_, err := client.Token(ctx)
		Expect(errors.Is(err, apierr.ErrAuthenticationFailed)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("unauthorized_client"))
	})

	It("Must fail when access_token is missing", func() {
		fake.handle("/api/v1/oauth/token", reply(http.StatusOK, "application/json", `{"token_type":"Bearer"}`))
		_, err := client.Token(ctx)
		Expect(errors.Is(err, apierr.ErrAuthenticationFailed)).To(BeTrue())
	})

	It("Must fail on a rejected grant", func() {
		fake.handle("/api/v1/oauth/token", reply(http.StatusBadRequest, "application/json", `{"error":"invalid_client"}`))
		_, err := client.Token(ctx)
		Expect(errors.Is(err, apierr.ErrAuthenticationFailed)).To(BeTrue())
	})
})

var _ = Describe("Biblios", func() {
	var (
		fake   *fakeKoha
		client *koha.Client
		ctx    = context.Background()
	)

	BeforeEach(func() {
		fake = newFakeKoha()
		client = fake.client()
		fake.handle("/api/v1/biblios/1234", reply(http.StatusOK, "application/marcxml+xml", record))
		fake.handle("/api/v1/public/biblios/1234", reply(http.StatusOK, "application/marcxml+xml", record))
	})

	AfterEach(func() {
		fake.srv.Close()
	})

	It("Must get a record with a bearer token", func() {
		b, err := client.GetBiblio(ctx, "1234", koha.MARCXML)
		Expect(err).To(BeNil())
		Expect(string(b)).To(Equal(record))

		calls := fake.calls("/api/v1/biblios/1234")
		Expect(calls).To(HaveLen(1))
		Expect(calls[0].Header.Get("Accept")).To(Equal("application/marcxml+xml"))
		Expect(calls[0].Header.Get("Authorization")).To(Equal("Bearer abc"))
	})

	It("Must ask for the requested format", func() {
		_, err := client.GetBiblio(ctx, "1234", koha.MARCInJSON)
		Expect(err).To(BeNil())
		Expect(fake.calls("/api/v1/biblios/1234")[0].Header.Get("Accept")).To(Equal("application/marc-in-json"))
	})

	It("Must get a public record without a token", func() {
		_, err := client.GetPublicBiblio(ctx, "1234", "")
		Expect(err).To(BeNil())
		calls := fake.calls("/api/v1/public/biblios/1234")
		Expect(calls).To(HaveLen(1))
		Expect(calls[0].Header.Get("Authorization")).To(BeEmpty())
		Expect(fake.calls("/api/v1/oauth/token")).To(BeEmpty())
	})

	It("Must map 404 to not found", func() {
		_, err := client.GetBiblio(ctx, "999", koha.MARCXML)
		Expect(errors.Is(err, apierr.ErrNotFound)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("record biblionumber 999 does not exist"))
	})

	It("Must report other statuses", func() {
		fake.handle("/api/v1/biblios/1234", reply(http.StatusInternalServerError, "", "boom"))
		_, err := client.GetBiblio(ctx, "1234", koha.MARCXML)
		Expect(errors.Is(err, apierr.ErrHTTPStatus)).To(BeTrue())
		Expect(errors.Is(err, apierr.ErrNotFound)).To(BeFalse())
		Expect(apierr.StatusOf(err)).To(Equal(http.StatusInternalServerError))
	})

	It("Must report a rejected token", func() {
		fake.handle("/api/v1/biblios/1234", reply(http.StatusUnauthorized, "", `{"error":"Authentication failure."}`))
		_, err := client.GetBiblio(ctx, "1234", koha.MARCXML)
		Expect(errors.Is(err, apierr.ErrAuthenticationFailed)).To(BeTrue())
	})

	It("Must reject bad identifiers before any request", func() {
		_, err := client.GetBiblio(ctx, "12a", koha.MARCXML)
		Expect(errors.Is(err, apierr.ErrInvalidIdentifier)).To(BeTrue())
		Expect(fake.count()).To(Equal(0))
	})

	It("Must report transport failures", func() {
		fake.srv.Close()
		_, err := client.GetPublicBiblio(ctx, "1234", koha.MARCXML)
		Expect(errors.Is(err, apierr.ErrTransport)).To(BeTrue())
	})

	It("Must put the validated record", func() {
		fake.handle("/api/v1/biblios/1234", reply(http.StatusOK, "application/json", `{"id":1234}`))
		want, err := marcxml.Validate(marcxml.Text(record))
		Expect(err).To(BeNil())

		b, err := client.UpdateBiblio(ctx, " 1234", marcxml.Text(record))
		Expect(err).To(BeNil())
		Expect(string(b)).To(Equal(`{"id":1234}`))

		calls := fake.calls("/api/v1/biblios/1234")
		Expect(calls).To(HaveLen(1))
		Expect(calls[0].Method).To(Equal(http.MethodPut))
		Expect(calls[0].Header.Get("Content-Type")).To(Equal("application/marcxml+xml"))
		Expect(calls[0].Body).To(Equal(string(want)))
	})

	It("Must not send an invalid record", func() {
		_, err := client.UpdateBiblio(ctx, "1234", marcxml.Text(noLeader))
		Expect(errors.Is(err, apierr.ErrMissingOrDuplicateLeader)).To(BeTrue())

		_, err = client.UpdateBiblio(ctx, "abc", marcxml.Text(record))
		Expect(errors.Is(err, apierr.ErrInvalidIdentifier)).To(BeTrue())
		Expect(fake.count()).To(Equal(0))
	})

	It("Must post a new record", func() {
		fake.handle("/api/v1/biblios", reply(http.StatusCreated, "application/json", `{"id":1235}`))
		b, err := client.AddBiblio(ctx, marcxml.Text(record))
		Expect(err).To(BeNil())
		Expect(string(b)).To(Equal(`{"id":1235}`))
		Expect(fake.calls("/api/v1/biblios")[0].Method).To(Equal(http.MethodPost))
	})
})

var _ = Describe("SVC", func() {
	var (
		fake   *fakeKoha
		client *koha.Client
		ctx    = context.Background()
	)

	BeforeEach(func() {
		fake = newFakeKoha()
		client = fake.client()
		fake.handle("/cgi-bin/koha/svc/authentication", func(w http.ResponseWriter, r *http.Request) {
			http.SetCookie(w, &http.Cookie{Name: "CGISESSID", Value: "s1"})
			io.WriteString(w, `<?xml version="1.0"?><response><status>ok</status></response>`)
		})
		fake.handle("/cgi-bin/koha/svc/bib/1234", reply(http.StatusOK, "text/xml", record))
		fake.handle("/cgi-bin/koha/svc/new_bib", reply(http.StatusOK, "text/xml", `<response><status>ok</status><biblionumber>1235</biblionumber></response>`))
	})

	AfterEach(func() {
		fake.srv.Close()
	})

	It("Must log in with the credentials in the query", func() {
		_, err := client.LoginSVC(ctx)
		Expect(err).To(BeNil())
		calls := fake.calls("/cgi-bin/koha/svc/authentication")
		Expect(calls).To(HaveLen(1))
		Expect(calls[0].Query.Get("userid")).To(Equal("librarian"))
		Expect(calls[0].Query.Get("password")).To(Equal("p@ss word"))
	})

	It("Must fail when the status is not ok", func() {
		fake.handle("/cgi-bin/koha/svc/authentication", reply(http.StatusOK, "text/xml", `<response><status>failed</status></response>`))
		_, err := client.LoginSVC(ctx)
		Expect(errors.Is(err, apierr.ErrAuthenticationFailed)).To(BeTrue())
	})

	It("Must send the session cookie", func() {
		s, err := client.LoginSVC(ctx)
		Expect(err).To(BeNil())
		b, err := s.GetBiblio(ctx, "1234")
		Expect(err).To(BeNil())
		Expect(string(b)).To(Equal(record))

		calls := fake.calls("/cgi-bin/koha/svc/bib/1234")
		Expect(calls).To(HaveLen(1))
		Expect(calls[0].Cookies).To(HaveLen(1))
		Expect(calls[0].Cookies[0].Value).To(Equal("s1"))
	})

	It("Must update with items", func() {
		s, err := client.LoginSVC(ctx)
		Expect(err).To(BeNil())
		_, err = s.UpdateBiblio(ctx, "1234", marcxml.Text(record), true)
		Expect(err).To(BeNil())

		calls := fake.calls("/cgi-bin/koha/svc/bib/1234")
		Expect(calls[0].Method).To(Equal(http.MethodPost))
		Expect(calls[0].Query.Get("items")).To(Equal("1"))
		Expect(calls[0].Header.Get("Content-Type")).To(Equal("text/xml"))
	})

	It("Must create records", func() {
		s, err := client.LoginSVC(ctx)
		Expect(err).To(BeNil())
		b, err := s.NewBiblio(ctx, marcxml.Text(record), false)
		Expect(err).To(BeNil())
		Expect(string(b)).To(ContainSubstring("<biblionumber>1235</biblionumber>"))
		Expect(fake.calls("/cgi-bin/koha/svc/new_bib")[0].Query.Get("items")).To(BeEmpty())
	})

	It("Must map 404 to not found", func() {
		s, err := client.LoginSVC(ctx)
		Expect(err).To(BeNil())
		_, err = s.GetBiblio(ctx, "42")
		Expect(errors.Is(err, apierr.ErrNotFound)).To(BeTrue())
	})
})

var _ = Describe("Reports", func() {
	var (
		fake   *fakeKoha
		client *koha.Client
		ctx    = context.Background()
	)

	BeforeEach(func() {
		fake = newFakeKoha()
		client = fake.client()
	})

	AfterEach(func() {
		fake.srv.Close()
	})

	It("Must pass ordered sql params and the annotated flag", func() {
		fake.handle("/cgi-bin/koha/svc/report", reply(http.StatusOK, "application/json", `[{"biblionumber":"1","title":"Le renard"},{"biblionumber":"2","title":"Paysage"}]`))
		r, err := client.RunReport(ctx, koha.ReportRequest{ID: "12", Params: []string{"b", "a", "c"}, Annotated: true})
		Expect(err).To(BeNil())

		q := fake.calls("/cgi-bin/koha/svc/report")[0].Query
		Expect(q.Get("id")).To(Equal("12"))
		Expect(q["sql_params"]).To(Equal([]string{"b", "a", "c"}))
		Expect(q.Get("annotated")).To(Equal("1"))

		Expect(r.Len()).To(Equal(2))
		Expect(r.Annotated()).To(BeTrue())
		recs, err := r.Records()
		Expect(err).To(BeNil())
		Expect(recs[1]["title"]).To(Equal("Paysage"))
	})

	It("Must decode positional rows", func() {
		fake.handle("/cgi-bin/koha/svc/report", reply(http.StatusOK, "application/json", `[["1","Le renard"]]`))
		r, err := client.RunReport(ctx, koha.ReportRequest{ID: "12"})
		Expect(err).To(BeNil())
		Expect(fake.calls("/cgi-bin/koha/svc/report")[0].Query.Get("annotated")).To(BeEmpty())
		Expect(r.Annotated()).To(BeFalse())
		rows, err := r.Rows()
		Expect(err).To(BeNil())
		Expect(rows).To(Equal([][]interface{}{{"1", "Le renard"}}))
	})

	It("Must reject bad report ids before any request", func() {
		_, err := client.RunReport(ctx, koha.ReportRequest{ID: "12; drop"})
		Expect(errors.Is(err, apierr.ErrInvalidIdentifier)).To(BeTrue())
		Expect(fake.count()).To(Equal(0))
	})

	It("Must reject a body that is not an array", func() {
		fake.handle("/cgi-bin/koha/svc/report", reply(http.StatusOK, "text/html", `<html></html>`))
		_, err := client.RunReport(ctx, koha.ReportRequest{ID: "12"})
		Expect(errors.Is(err, apierr.ErrInvalidResponse)).To(BeTrue())
	})
})

var _ = Describe("Circulation rules", func() {
	var (
		fake   *fakeKoha
		client *koha.Client
		ctx    = context.Background()
	)

	BeforeEach(func() {
		fake = newFakeKoha()
		client = fake.client()
	})

	AfterEach(func() {
		fake.srv.Close()
	})

	It("Must list rule kinds", func() {
		fake.handle("/api/v1/circulation-rules/kinds", reply(http.StatusOK, "application/json",
			`{"issuelength":{"scope":["branchcode","categorycode","itemtype"]},"fine":{"scope":["branchcode"],"is_monetary":true}}`))
		kinds, err := client.CirculationRuleKinds(ctx)
		Expect(err).To(BeNil())
		Expect(fake.calls("/api/v1/circulation-rules/kinds")[0].Header.Get("Authorization")).To(Equal("Bearer abc"))
		Expect(kinds).To(HaveKey("issuelength"))
		Expect(kinds["issuelength"].Scope).To(Equal([]string{"branchcode", "categorycode", "itemtype"}))
		Expect(kinds["fine"].IsMonetary).To(BeTrue())
	})

	It("Must filter rules", func() {
		fake.handle("/api/v1/circulation_rules", reply(http.StatusOK, "application/json", `[{"issuelength":"21"}]`))
		rules, err := client.CirculationRules(ctx, koha.RuleFilter{LibraryID: "CPL", Rules: []string{"issuelength", "renewalsallowed"}})
		Expect(err).To(BeNil())
		Expect(rules).To(HaveLen(1))

		q := fake.calls("/api/v1/circulation_rules")[0].Query
		Expect(q.Get("library_id")).To(Equal("CPL"))
		Expect(q.Get("rules")).To(Equal("issuelength,renewalsallowed"))
		Expect(q.Has("item_type_id")).To(BeFalse())
	})
})

var _ = Describe("Acquisitions", func() {
	var (
		fake   *fakeKoha
		client *koha.Client
		ctx    = context.Background()
	)

	BeforeEach(func() {
		fake = newFakeKoha()
		client = fake.client()
	})

	AfterEach(func() {
		fake.srv.Close()
	})

	It("Must route operations addressing one object", func() {
		fake.handle("/api/v1/acquisitions/orders/5", reply(http.StatusOK, "application/json", `{"order_id":5}`))
		msg, err := client.Acquisitions(ctx, koha.GetOrder, "5", nil)
		Expect(err).To(BeNil())
		Expect(string(msg)).To(Equal(`{"order_id":5}`))
		Expect(fake.calls("/api/v1/acquisitions/orders/5")[0].Method).To(Equal(http.MethodGet))
	})

	It("Must send bodies as JSON", func() {
		fake.handle("/api/v1/acquisitions/vendors", reply(http.StatusCreated, "application/json", `{"id":3,"name":"Dawson"}`))
		_, err := client.Acquisitions(ctx, koha.AddVendor, "", map[string]string{"name": "Dawson"})
		Expect(err).To(BeNil())
		call := fake.calls("/api/v1/acquisitions/vendors")[0]
		Expect(call.Method).To(Equal(http.MethodPost))
		Expect(call.Header.Get("Content-Type")).To(Equal("application/json"))
		Expect(call.Body).To(MatchJSON(`{"name":"Dawson"}`))
	})

	It("Must delete", func() {
		fake.handle("/api/v1/acquisitions/orders/5", reply(http.StatusNoContent, "", ""))
		msg, err := client.Acquisitions(ctx, koha.DeleteOrder, "5", nil)
		Expect(err).To(BeNil())
		Expect(msg).To(BeNil())
		Expect(fake.calls("/api/v1/acquisitions/orders/5")[0].Method).To(Equal(http.MethodDelete))
	})

	It("Must list funds", func() {
		fake.handle("/api/v1/acquisitions/funds", reply(http.StatusOK, "application/json", `[]`))
		msg, err := client.Acquisitions(ctx, koha.ListFunds, "ignored", nil)
		Expect(err).To(BeNil())
		Expect(string(msg)).To(Equal("[]"))
	})

	It("Must reject unknown operations and bad ids", func() {
		_, err := client.Acquisitions(ctx, koha.AcqOperation("dropFunds"), "", nil)
		Expect(errors.Is(err, apierr.ErrUnsupportedOperation)).To(BeTrue())

		_, err = client.Acquisitions(ctx, koha.UpdateVendor, "x", nil)
		Expect(errors.Is(err, apierr.ErrInvalidIdentifier)).To(BeTrue())
		Expect(fake.count()).To(Equal(0))
	})

	It("Must list every operation", func() {
		Expect(koha.AcqOperations()).To(HaveLen(11))
		Expect(koha.AcqOperations()[0]).To(Equal(koha.AddOrder))
	})
})

var _ = Describe("SRU", func() {
	It("Must default the endpoint to /biblios", func() {
		fake := newFakeKoha()
		defer fake.srv.Close()
		Expect(fake.client().SRU().Endpoint).To(Equal(fake.srv.URL + "/biblios"))
	})
})
