// Command probe runs individual host probes once and prints their outcomes.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/root0emir/SecuronisControlPanel/pkg/collector"
	"github.com/root0emir/SecuronisControlPanel/pkg/probes"
	"github.com/root0emir/SecuronisControlPanel/pkg/probes/host"
	"github.com/root0emir/SecuronisControlPanel/pkg/types"
)

func main() {
	root := flag.String("root", "/", "filesystem root for /proc, /sys and /etc reads")
	timeout := flag.Duration("timeout", collector.DefaultTimeout, "default per-probe timeout")
	workers := flag.Int("workers", collector.DefaultWorkers, "concurrent probes")
	list := flag.Bool("list", false, "list probes by category and exit")
	verbose := flag.Bool("v", false, "log probe execution")
	flag.Parse()

	logOut := io.Discard
	if *verbose {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}))

	registry, err := host.NewRegistry(host.Options{Root: *root})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error registering probes: %v\n", err)
		os.Exit(1)
	}

	if *list {
		printCatalogue(registry)
		return
	}

	names := flag.Args()
	if len(names) == 0 {
		names = registry.Names()
	}

	c := collector.New(registry,
		collector.WithLogger(logger),
		collector.WithWorkers(*workers),
		collector.WithDefaultTimeout(*timeout),
	)

	snap, err := c.Collect(context.Background(), names...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROBE\tKIND\tELAPSED\tVALUE")
	for _, name := range snap.Names() {
		o, _ := snap.Get(name)
		value := o.Display()
		if !o.OK() {
			value = o.Detail()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, o.Kind, o.Elapsed.Round(time.Millisecond), firstLine(value))
	}
	w.Flush()

	counts := snap.CountByKind()
	fmt.Printf("\n%s probes in %s: %d values, %d unavailable, %d timed out, %d failed\n",
		humanize.Comma(int64(snap.Len())), snap.Duration().Round(time.Millisecond),
		counts[types.KindValue], counts[types.KindUnavailable], counts[types.KindTimedOut], counts[types.KindFailed])
}

func printCatalogue(r *probes.Registry) {
	for _, c := range types.Categories {
		var names []string
		for name := range r.ByCategory(c) {
			names = append(names, name)
		}
		fmt.Printf("%-10s %s\n", c, strings.Join(names, ", "))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
