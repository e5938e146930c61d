// Command koha talks to a Koha instance from the command line: REST biblios,
// the SVC interface, saved reports, circulation rules, acquisitions and SRU.
//
// Settings come from an optional YAML file (--config), a .env file and the
// environment (KOHA_URL, KOHA_CLIENT_ID, ...).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/Alban-Peyrat/Koha-API-interface/config"
	"github.com/Alban-Peyrat/Koha-API-interface/koha"
	"github.com/Alban-Peyrat/Koha-API-interface/logging"
)

var (
	Version   string
	BuildTime string
)

// env carries what every command needs, set up before the command runs.
type env struct {
	cfg    config.Config
	log    *log.Logger
	client *koha.Client
	out    *printer
}

func newApp(e *env) *cli.App {
	return &cli.App{
		Name:    "koha",
		Usage:   "query and update a Koha instance",
		Version: fmt.Sprintf("%s %s", Version, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, EnvVars: []string{"KOHA_CONFIG"}, Usage: "YAML settings file"},
			&cli.StringFlag{Name: "log-level", Usage: "override log.level"},
			&cli.BoolFlag{Name: "yaml", Usage: "print structured output as YAML instead of JSON"},
		},
		Before: e.setup,
		Commands: []*cli.Command{
			e.tokenCommand(),
			e.biblioCommand(),
			e.svcCommand(),
			e.reportCommand(),
			e.circulationCommand(),
			e.acqCommand(),
			e.sruCommand(),
			e.validateCommand(),
		},
	}
}

func main() {
	app := newApp(&env{})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func (e *env) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	logger, err := logging.New(level, os.Stderr)
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.log = logger
	e.out = &printer{w: c.App.Writer, yaml: c.Bool("yaml")}
	return nil
}

// koha returns the client, checking the settings on first use. The validate
// command works without any.
func (e *env) koha() (*koha.Client, error) {
	if e.client != nil {
		return e.client, nil
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	e.client = koha.FromConfig(e.cfg, e.log)
	return e.client, nil
}
