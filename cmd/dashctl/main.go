// Command dashctl fires the API's internal trigger endpoints. It is meant to
// be run from an external cron when the in-process scheduler is disabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/dotanscherzer/projects-Dasboard/internal/scheduler"
	"github.com/dotanscherzer/projects-Dasboard/pkg/api/client"
	"github.com/dotanscherzer/projects-Dasboard/pkg/config"
	"github.com/dotanscherzer/projects-Dasboard/pkg/logger"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: dashctl [-days N] <job>\n       dashctl list\n\n")
	flag.PrintDefaults()
}

func main() {
	days := flag.Int("days", 0, "retention days for metrics-cleanup (0 uses the server default)")
	flag.Usage = usage
	flag.Parse()

	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "load env files: %v\n", err)
		os.Exit(1)
	}
	log := logger.New("dashctl", logger.ParseLevel(config.GetString("LOG_LEVEL", "info")))

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	name := flag.Arg(0)
	if name == "list" {
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "JOB\tSCHEDULE\tPATH")
		for _, e := range scheduler.Table {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.Spec, e.Path)
		}
		_ = tw.Flush()
		return
	}
	entry, ok := scheduler.Lookup(name)
	if !ok {
		log.Error("unknown job", "job", name)
		os.Exit(2)
	}

	cfg := config.LoadTriggerConfig()
	if cfg.APIURL == "" || cfg.InternalSecret == "" {
		log.Error("API_URL and INTERNAL_SECRET must be set")
		os.Exit(1)
	}
	cli, err := client.New(cfg.APIURL, cfg.InternalSecret, client.WithTimeout(cfg.Timeout))
	if err != nil {
		log.Error("invalid client configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	var report []byte
	if entry.Name == scheduler.JobMetricsCleanup {
		report, err = cli.Cleanup(ctx, entry.Path, *days)
	} else {
		report, err = cli.Trigger(ctx, entry.Path)
	}
	if err != nil {
		log.Error("trigger failed", "job", entry.Name, "error", err)
		os.Exit(1)
	}
	log.Info("trigger completed", "job", entry.Name, slog.String("report", string(report)))
}
