package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/Alban-Peyrat/Koha-API-interface/koha"
	"github.com/Alban-Peyrat/Koha-API-interface/marcxml"
	"github.com/Alban-Peyrat/Koha-API-interface/sru"
)

var formats = map[string]koha.ContentType{
	"marcxml":      koha.MARCXML,
	"marc-in-json": koha.MARCInJSON,
	"marc":         koha.MARC,
	"text":         koha.Text,
}

func formatOf(name string) (koha.ContentType, error) {
	if name == "" {
		return koha.MARCXML, nil
	}
	if t, ok := formats[name]; ok {
		return t, nil
	}
	if t := koha.ContentType(name); t.Valid() {
		return t, nil
	}
	return "", errors.Errorf("unknown format %q, want marcxml, marc-in-json, marc or text", name)
}

// recordSource reads a record from a file, or stdin when path is "-".
func recordSource(path string) (marcxml.Source, error) {
	switch path {
	case "":
		return nil, errors.New("record file required")
	case "-":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, errors.Wrap(err, "read stdin")
		}
		return marcxml.Text(b), nil
	}
	return marcxml.File(path), nil
}

func arg(c *cli.Context, i int, name string) (string, error) {
	if c.Args().Len() <= i {
		return "", errors.Errorf("%s: missing %s", c.Command.FullName(), name)
	}
	return c.Args().Get(i), nil
}

var formatFlag = &cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "marcxml", Usage: "marcxml, marc-in-json, marc or text"}

func (e *env) tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "fetch an OAuth2 access token",
		Action: func(c *cli.Context) error {
			k, err := e.koha()
			if err != nil {
				return err
			}
			tok, err := k.Token(c.Context)
			if err != nil {
				return err
			}
			return e.out.value(tok)
		},
	}
}

func (e *env) biblioCommand() *cli.Command {
	get := func(public bool) cli.ActionFunc {
		return func(c *cli.Context) error {
			id, err := arg(c, 0, "biblionumber")
			if err != nil {
				return err
			}
			t, err := formatOf(c.String("format"))
			if err != nil {
				return err
			}
			k, err := e.koha()
			if err != nil {
				return err
			}
			var b []byte
			if public {
				b, err = k.GetPublicBiblio(c.Context, id, t)
			} else {
				b, err = k.GetBiblio(c.Context, id, t)
			}
			if err != nil {
				return err
			}
			return e.out.raw(b)
		}
	}
	return &cli.Command{
		Name:  "biblio",
		Usage: "read and write bibliographic records through the REST API",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "print a record",
				ArgsUsage: "<biblionumber>",
				Flags:     []cli.Flag{formatFlag},
				Action:    get(false),
			},
			{
				Name:      "public",
				Usage:     "print a record from the public endpoint, no token needed",
				ArgsUsage: "<biblionumber>",
				Flags:     []cli.Flag{formatFlag},
				Action:    get(true),
			},
			{
				Name:      "update",
				Usage:     "replace a record with a MARC-XML file",
				ArgsUsage: "<biblionumber> <file|->",
				Action: func(c *cli.Context) error {
					id, err := arg(c, 0, "biblionumber")
					if err != nil {
						return err
					}
					path, err := arg(c, 1, "record file")
					if err != nil {
						return err
					}
					src, err := recordSource(path)
					if err != nil {
						return err
					}
					k, err := e.koha()
					if err != nil {
						return err
					}
					b, err := k.UpdateBiblio(c.Context, id, src)
					if err != nil {
						return err
					}
					return e.out.raw(b)
				},
			},
			{
				Name:      "add",
				Usage:     "create a record from a MARC-XML file",
				ArgsUsage: "<file|->",
				Action: func(c *cli.Context) error {
					path, err := arg(c, 0, "record file")
					if err != nil {
						return err
					}
					src, err := recordSource(path)
					if err != nil {
						return err
					}
					k, err := e.koha()
					if err != nil {
						return err
					}
					b, err := k.AddBiblio(c.Context, src)
					if err != nil {
						return err
					}
					return e.out.raw(b)
				},
			},
		},
	}
}

func (e *env) svcCommand() *cli.Command {
	login := func(c *cli.Context) (*koha.SVCSession, error) {
		k, err := e.koha()
		if err != nil {
			return nil, err
		}
		return k.LoginSVC(c.Context)
	}
	itemsFlag := &cli.BoolFlag{Name: "items", Usage: "also create or update the items of the record"}
	return &cli.Command{
		Name:  "svc",
		Usage: "read and write records through the legacy SVC interface",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "print a record",
				ArgsUsage: "<biblionumber>",
				Action: func(c *cli.Context) error {
					id, err := arg(c, 0, "biblionumber")
					if err != nil {
						return err
					}
					s, err := login(c)
					if err != nil {
						return err
					}
					b, err := s.GetBiblio(c.Context, id)
					if err != nil {
						return err
					}
					return e.out.raw(b)
				},
			},
			{
				Name:      "update",
				Usage:     "replace a record with a MARC-XML file",
				ArgsUsage: "<biblionumber> <file|->",
				Flags:     []cli.Flag{itemsFlag},
				Action: func(c *cli.Context) error {
					id, err := arg(c, 0, "biblionumber")
					if err != nil {
						return err
					}
					path, err := arg(c, 1, "record file")
					if err != nil {
						return err
					}
					src, err := recordSource(path)
					if err != nil {
						return err
					}
					s, err := login(c)
					if err != nil {
						return err
					}
					b, err := s.UpdateBiblio(c.Context, id, src, c.Bool("items"))
					if err != nil {
						return err
					}
					return e.out.raw(b)
				},
			},
			{
				Name:      "new",
				Usage:     "create a record from a MARC-XML file",
				ArgsUsage: "<file|->",
				Flags:     []cli.Flag{itemsFlag},
				Action: func(c *cli.Context) error {
					path, err := arg(c, 0, "record file")
					if err != nil {
						return err
					}
					src, err := recordSource(path)
					if err != nil {
						return err
					}
					s, err := login(c)
					if err != nil {
						return err
					}
					b, err := s.NewBiblio(c.Context, src, c.Bool("items"))
					if err != nil {
						return err
					}
					return e.out.raw(b)
				},
			},
		},
	}
}

func (e *env) reportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "run a saved SQL report",
		ArgsUsage: "<report id> [param ...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "annotated", Aliases: []string{"a"}, Usage: "rows keyed by column name"},
		},
		Action: func(c *cli.Context) error {
			id, err := arg(c, 0, "report id")
			if err != nil {
				return err
			}
			k, err := e.koha()
			if err != nil {
				return err
			}
			r, err := k.RunReport(c.Context, koha.ReportRequest{
				ID:        id,
				Params:    c.Args().Tail(),
				Annotated: c.Bool("annotated"),
			})
			if err != nil {
				return err
			}
			if r.Annotated() {
				records, err := r.Records()
				if err != nil {
					return err
				}
				return e.out.value(records)
			}
			rows, err := r.Rows()
			if err != nil {
				return err
			}
			return e.out.value(rows)
		},
	}
}

func (e *env) circulationCommand() *cli.Command {
	return &cli.Command{
		Name:  "circulation",
		Usage: "inspect circulation rules",
		Subcommands: []*cli.Command{
			{
				Name:  "kinds",
				Usage: "list the rule kinds",
				Action: func(c *cli.Context) error {
					k, err := e.koha()
					if err != nil {
						return err
					}
					kinds, err := k.CirculationRuleKinds(c.Context)
					if err != nil {
						return err
					}
					return e.out.value(kinds)
				},
			},
			{
				Name:  "rules",
				Usage: "list the effective rules",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "library", Usage: "library id"},
					&cli.StringFlag{Name: "category", Usage: "patron category id"},
					&cli.StringFlag{Name: "itemtype", Usage: "item type id"},
					&cli.StringSliceFlag{Name: "rule", Usage: "rule name, repeatable"},
				},
				Action: func(c *cli.Context) error {
					k, err := e.koha()
					if err != nil {
						return err
					}
					rules, err := k.CirculationRules(c.Context, koha.RuleFilter{
						LibraryID:        c.String("library"),
						PatronCategoryID: c.String("category"),
						ItemTypeID:       c.String("itemtype"),
						Rules:            c.StringSlice("rule"),
					})
					if err != nil {
						return err
					}
					return e.out.value(rules)
				},
			},
		},
	}
}

func (e *env) acqCommand() *cli.Command {
	names := make([]string, 0, len(koha.AcqOperations()))
	for _, op := range koha.AcqOperations() {
		names = append(names, string(op))
	}
	return &cli.Command{
		Name:        "acq",
		Usage:       "call the acquisitions API",
		ArgsUsage:   "<operation> [id]",
		Description: "operations: " + strings.Join(names, ", "),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "JSON body, or @file"},
		},
		Action: func(c *cli.Context) error {
			op, err := arg(c, 0, "operation")
			if err != nil {
				return err
			}
			body, err := jsonBody(c.String("data"))
			if err != nil {
				return err
			}
			k, err := e.koha()
			if err != nil {
				return err
			}
			// a nil json.RawMessage inside an interface would marshal as null
			var payload interface{}
			if body != nil {
				payload = body
			}
			res, err := k.Acquisitions(c.Context, koha.AcqOperation(op), c.Args().Get(1), payload)
			if err != nil {
				return err
			}
			if res == nil {
				return nil
			}
			return e.out.value(res)
		},
	}
}

// jsonBody reads --data: inline JSON, or a file when prefixed with @.
func jsonBody(data string) (json.RawMessage, error) {
	if data == "" {
		return nil, nil
	}
	b := []byte(data)
	if strings.HasPrefix(data, "@") {
		var err error
		if b, err = os.ReadFile(data[1:]); err != nil {
			return nil, errors.Wrap(err, "read body")
		}
	}
	if !json.Valid(b) {
		return nil, errors.New("body is not valid JSON")
	}
	return json.RawMessage(b), nil
}

func (e *env) sruCommand() *cli.Command {
	return &cli.Command{
		Name:  "sru",
		Usage: "query the SRU server",
		Subcommands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "run a CQL query, print record ids or the raw response",
				ArgsUsage: "<cql query>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "start", Value: 1, Usage: "startRecord"},
					&cli.IntFlag{Name: "max", Value: 100, Usage: "maximumRecords"},
					&cli.StringFlag{Name: "schema", Value: sru.SchemaMARCXML, Usage: "recordSchema"},
					&cli.StringFlag{Name: "sru-version", Value: sru.Version11, Usage: "SRU version"},
					&cli.BoolFlag{Name: "raw", Usage: "print the response instead of record ids"},
				},
				Action: func(c *cli.Context) error {
					if c.Args().Len() == 0 {
						return errors.New("sru search: missing query")
					}
					k, err := e.koha()
					if err != nil {
						return err
					}
					p := sru.DefaultParams(strings.Join(c.Args().Slice(), " "))
					p.StartRecord = c.Int("start")
					p.MaximumRecords = c.Int("max")
					p.RecordSchema = c.String("schema")
					p.Version = c.String("sru-version")
					res, err := k.SRU().Search(c.Context, p)
					if err != nil {
						return err
					}
					if c.Bool("raw") {
						return e.out.raw(res.Raw)
					}
					return e.out.value(map[string]interface{}{
						"url":             res.URL,
						"numberOfRecords": res.NumberOfRecords,
						"ids":             res.RecordIDs(),
					})
				},
			},
			{
				Name:  "explain",
				Usage: "print the explain document",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "sru-version", Value: sru.Version11, Usage: "SRU version"},
				},
				Action: func(c *cli.Context) error {
					k, err := e.koha()
					if err != nil {
						return err
					}
					b, err := k.SRU().Explain(c.Context, c.String("sru-version"))
					if err != nil {
						return err
					}
					return e.out.raw(b)
				},
			},
		},
	}
}

func (e *env) validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "check a MARC-XML record and print it normalized",
		ArgsUsage: "<file|->",
		Action: func(c *cli.Context) error {
			path, err := arg(c, 0, "record file")
			if err != nil {
				return err
			}
			src, err := recordSource(path)
			if err != nil {
				return err
			}
			b, err := marcxml.Validate(src)
			if err != nil {
				return err
			}
			return e.out.raw(b)
		},
	}
}
