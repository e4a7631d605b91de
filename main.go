// Command hostinfo resolves a host, or a list of hosts, to every address it
// reaches through its CNAME chain and reports each address's geolocation as
// CSV on stdout. Diagnostics go to stderr, so be sure to tee your output:
//
//	hostinfo -f list-of-hosts.txt 2>err.log | tee results.csv
//	hostinfo --host www.example.com
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr, afero.NewOsFs())
	stop()
	os.Exit(code)
}
