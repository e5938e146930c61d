// Fetch records from a Koha SRU endpoint, page by page.
//
// Request w/o query will yield an ExplainResponse, e.g.
// http://koha.example.org:9998/biblios.
//
// Example request:
//
// http://koha.example.org:9998/biblios?version=1.1&recordSchema=marcxml&operation=searchRetrieve&query=dc.title%3Drenard&startRecord=1&maximumRecords=10
//
// The query is given raw with -q, or built from repeated -c clauses:
//
//	srufetch -c dc.author,=,jean,and -c 'dc.title,=,ans égypte' -ids
//
// More on SRU: https://www.loc.gov/standards/sru/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/Alban-Peyrat/Koha-API-interface/logging"
	"github.com/Alban-Peyrat/Koha-API-interface/sru"
	"github.com/Alban-Peyrat/Koha-API-interface/transport"
)

var clauses clauseFlags

// clauseFlags collects -c index,relation,term[,bool] values.
type clauseFlags []sru.Clause

func (c *clauseFlags) String() string {
	return sru.BuildQuery(*c...)
}

func (c *clauseFlags) Set(s string) error {
	parts := strings.Split(s, ",")
	if len(parts) < 3 || len(parts) > 4 {
		return fmt.Errorf("clause %q: want index,relation,term[,bool]", s)
	}
	cl := sru.Clause{
		Index:    sru.Index(parts[0]),
		Relation: sru.Relation(parts[1]),
		Term:     parts[2],
		Bool:     sru.And,
	}
	if len(parts) == 4 {
		cl.Bool = sru.Boolean(strings.ToLower(parts[3]))
	}
	switch {
	case !cl.Index.Valid():
		return fmt.Errorf("unknown index %q", parts[0])
	case !cl.Relation.Valid():
		return fmt.Errorf("unknown relation %q", parts[1])
	case !cl.Bool.Valid():
		return fmt.Errorf("unknown boolean %q", parts[3])
	}
	*c = append(*c, cl)
	return nil
}

var (
	startRecord      = flag.Int("s", 1, "SRU startRecord, zero won't work")
	maximumRecords   = flag.Int("m", 10, "maximum records per request")
	endpoint         = flag.String("e", "", "endpoint (default $KOHA_SRU_URL)")
	verbose          = flag.Bool("verbose", false, "increase log output")
	limit            = flag.Int("l", -1, "total limit to retrieve, -1 for no limit")
	recordRegex      = flag.Bool("x", false, "dig out records via regex and wrap them in a collection")
	query            = flag.String("q", "", "raw sru query, ignored when -c is given")
	recordSchema     = flag.String("a", sru.SchemaMARCXML, "recordSchema (http://www.loc.gov/standards/sru/recordSchemas/)")
	showVersion      = flag.Bool("version", false, "show version")
	userAgent        = flag.String("ua", "srufetch", "set user agent")
	sruVersion       = flag.String("sru-version", sru.Version11, "set SRU version")
	extractionRegex  = flag.String("xr", "(?ms)(<[a-z:]*record[ >](.*?)</[a-z:]*record>)", "(go) regular expression to parse out records")
	sleep            = flag.Duration("p", 100*time.Millisecond, "minimum time between requests")
	timeout          = flag.Duration("t", 30*time.Second, "request timeout")
	validate         = flag.Bool("validate", false, "check each record is MARC-XML, log and skip the others")
	ids              = flag.Bool("ids", false, "print the 001 of each record instead of XML")
	explain          = flag.Bool("explain", false, "print the explain response and exit")
	ignoreHTTPErrors = flag.Bool("ignore-http-errors", false, "do not stop on HTTP errors, skip forward")

	Version   string
	BuildTime string
)

func main() {
	flag.Var(&clauses, "c", "query clause index,relation,term[,bool], repeatable")
	_ = godotenv.Load()
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", Version, BuildTime)
		os.Exit(0)
	}
	level := "info"
	if *verbose {
		level = "debug"
	}
	logger, err := logging.New(level, os.Stderr)
	if err != nil {
		log.Fatal(err)
	}
	if *endpoint == "" {
		*endpoint = os.Getenv("KOHA_SRU_URL")
	}
	if *endpoint == "" {
		logger.Fatal("endpoint required, use -e or KOHA_SRU_URL")
	}

	opts := transport.Options{Timeout: *timeout, UserAgent: *userAgent}
	if *sleep > 0 {
		opts.RPS = float64(time.Second) / float64(*sleep)
		opts.Burst = 1
	}
	client := sru.NewClient(*endpoint, transport.Requester{
		Doer:      transport.NewClient(opts),
		Limiter:   transport.NewLimiter(opts),
		UserAgent: opts.UserAgent,
	}, logger)
	ctx := context.Background()

	if *explain {
		b, err := client.Explain(ctx, *sruVersion)
		if err != nil {
			logger.Fatal(err)
		}
		fmt.Println(string(b))
		return
	}

	q := *query
	if len(clauses) > 0 {
		q = sru.BuildQuery(clauses...)
	}
	if q == "" {
		logger.Fatal("query required, use -q or -c")
	}

	re, err := regexp.Compile(*extractionRegex)
	if err != nil {
		logger.Fatal(err)
	}
	if *recordRegex {
		fmt.Println(`<collection xmlns:zs="http://www.loc.gov/zing/srw/" xmlns:marc="http://www.loc.gov/MARC21/slim">`)
	}

	h := &harvester{
		client:  client,
		log:     logger,
		re:      re,
		limit:   *limit,
		regex:   *recordRegex,
		ids:     *ids,
		check:   *validate,
		printer: func(s string) { fmt.Println(s) },

		ignoreErrors: *ignoreHTTPErrors,
	}
	p := sru.Params{
		Version:        *sruVersion,
		RecordSchema:   *recordSchema,
		Operation:      sru.OperationSearchRetrieve,
		Query:          q,
		StartRecord:    *startRecord,
		MaximumRecords: *maximumRecords,
	}
	if err := h.run(ctx, p); err != nil {
		logger.Fatal(err)
	}

	if *recordRegex {
		fmt.Println("</collection>")
	}
}
