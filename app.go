package main

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/vit0-9/hostinfo/handlers"
	"github.com/vit0-9/hostinfo/pkg/utils"
)

// Exit statuses.
const (
	exitOK        = 0
	exitFailure   = 1
	exitInterrupt = 1
	exitUsage     = 2
)

// App encapsulates the HTTP server started by the serve command.
type App struct {
	Router           *gin.Engine
	NetIntelHandlers *handlers.NetworkIntelligenceHandlers
	HealthHandler    *handlers.HealthHandler
}

// NewApp creates the HTTP application around resolver and reporter.
func NewApp(resolver *utils.Resolver, reporter *utils.Reporter, accessLog io.Writer) *App {
	router := gin.New()
	router.Use(gin.LoggerWithWriter(accessLog), gin.Recovery())

	app := &App{
		Router:           router,
		NetIntelHandlers: handlers.NewNetworkIntelligenceHandlers(resolver, reporter),
		HealthHandler:    handlers.NewHealthHandler(),
	}
	app.setupRoutes()
	return app
}

// setupRoutes defines all the application routes
func (app *App) setupRoutes() {
	app.Router.GET("/api/v1/health", app.HealthHandler.HealthCheckHandler)

	netIntelV1 := app.Router.Group("/api/v1/net")
	{
		netIntelV1.GET("/resolve", app.NetIntelHandlers.ResolveHandler)
		netIntelV1.GET("/hostinfo", app.NetIntelHandlers.HostInfoHandler)
	}
}

// Start serves on addr until ctx is cancelled.
func (app *App) Start(ctx context.Context, addr string, log logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infof("API server starting on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Shutdown: %v", err)
		}
		return ctx.Err()
	}
}

// cliEnv carries the streams and filesystem shared by every command.
type cliEnv struct {
	stdout io.Writer
	stderr io.Writer
	fs     afero.Fs
	log    *logrus.Logger
}

// services holds the components built from the parsed flags.
type services struct {
	resolver *utils.Resolver
	reporter *utils.Reporter
	close    func()
}

func (e *cliEnv) newCLI() *cli.App {
	return &cli.App{
		Name:      "hostinfo",
		Usage:     "resolve hosts (following CNAMEs) and report the geolocation of every address as CSV",
		UsageText: "hostinfo --host www.example.com\n   hostinfo -f list-of-hosts.txt 2>err.log | tee results.csv",
		Writer:    e.stdout,
		ErrWriter: e.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "a single host to check",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "a whitespace-delimited file with a list of hosts to check",
			},
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "base URL of the ip-api compatible geolocation service",
				EnvVars: []string{"HOSTINFO_API_URL"},
				Value:   utils.DefaultAPIURL,
			},
			&cli.StringFlag{
				Name:    "dns-server",
				Usage:   "query this DNS server directly instead of the system resolver",
				EnvVars: []string{"HOSTINFO_DNS_SERVER"},
			},
			&cli.StringFlag{
				Name:    "mmdb-city",
				Usage:   "GeoLite2-City database; enables offline lookups",
				EnvVars: []string{"MMDB_CITY_PATH"},
			},
			&cli.StringFlag{
				Name:    "mmdb-asn",
				Usage:   "GeoLite2-ASN database; enables offline lookups",
				EnvVars: []string{"MMDB_ASN_PATH"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "trace, debug, info, warn or error",
				EnvVars: []string{"HOSTINFO_LOG_LEVEL"},
				Value:   "info",
			},
		},
		Before: e.before,
		Action: e.report,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve resolution and reports over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						EnvVars: []string{"PORT"},
						Value:   "8080",
					},
				},
				Action: e.serve,
			},
		},
		OnUsageError: func(_ *cli.Context, err error, _ bool) error {
			return cli.Exit(err.Error(), exitUsage)
		},
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func (e *cliEnv) before(c *cli.Context) error {
	lvl, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		e.log.Warnf("Unknown log level %q, using info", c.String("log-level"))
		return nil
	}
	e.log.SetLevel(lvl)
	return nil
}

func (e *cliEnv) buildServices(c *cli.Context) (*services, error) {
	resolver := utils.NewResolver(e.log)
	if server := c.String("dns-server"); server != "" {
		resolver.Lookup = utils.NewDNSClient(server)
		e.log.Debugf("Using DNS server %s", server)
	}

	svc := &services{
		resolver: resolver,
		close:    func() {},
	}

	cityPath, asnPath := c.String("mmdb-city"), c.String("mmdb-asn")
	if cityPath != "" || asnPath != "" {
		mm, err := utils.OpenMaxMind(cityPath, asnPath, e.log)
		if err != nil {
			return nil, err
		}
		svc.reporter = &utils.Reporter{Locator: mm, Log: e.log}
		svc.close = mm.Close
	} else {
		svc.reporter = &utils.Reporter{Locator: utils.NewIPAPILocator(c.String("api-url")), Log: e.log}
	}
	return svc, nil
}

// report is the default action: resolve the requested hosts and write the CSV report to stdout.
func (e *cliEnv) report(c *cli.Context) error {
	host, file := c.String("host"), c.String("file")
	if host == "" && file == "" {
		e.log.Warn("Include either a file or a single host to look up!")
		return cli.Exit("", exitUsage)
	}
	if host != "" && file != "" {
		e.log.Warnf("Both --host and --file given, checking %s only", host)
	}
	if c.Args().Present() {
		e.log.Warnf("Extra arguments: %v", c.Args().Slice())
		return cli.Exit("", exitUsage)
	}

	svc, err := e.buildServices(c)
	if err != nil {
		return err
	}
	defer svc.close()

	ctx := c.Context
	e.log.Info("Building a list of hosts...")

	var records []utils.HostRecord
	if host != "" {
		records, err = svc.resolver.ResolveAll(ctx, host)
		if err != nil {
			return err
		}
	} else {
		hosts, err := utils.ReadHosts(e.fs, file)
		if err != nil {
			return err
		}
		for _, h := range hosts {
			recs, err := svc.resolver.ResolveAll(ctx, h)
			records = append(records, recs...)
			if err != nil {
				return err
			}
		}
	}
	e.log.Debugf("Resolved %d records", len(records))

	sum, err := svc.reporter.Report(ctx, e.stdout, records)
	if err != nil {
		return err
	}
	e.log.Infof("Wrote %d records (%d failed)", sum.Written, sum.Failed)
	return nil
}

func (e *cliEnv) serve(c *cli.Context) error {
	svc, err := e.buildServices(c)
	if err != nil {
		return err
	}
	defer svc.close()

	gin.SetMode(gin.ReleaseMode)
	app := NewApp(svc.resolver, svc.reporter, e.stderr)
	return app.Start(c.Context, ":"+c.String("port"), e.log)
}

// run executes the command line in args and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, fsys afero.Fs) int {
	e := &cliEnv{
		stdout: stdout,
		stderr: stderr,
		fs:     fsys,
		log:    utils.NewLogger(stderr, "info"),
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		e.log.Warnf("Error loading .env file, using environment variables from system if set: %v", err)
	}

	err := e.newCLI().RunContext(ctx, args)
	if err == nil {
		return exitOK
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		e.log.Warn("Interrupted")
		return exitInterrupt
	}

	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		if msg := exitErr.Error(); msg != "" {
			e.log.Warn(msg)
		}
		return exitErr.ExitCode()
	}
	e.log.Error(err)
	return exitFailure
}
