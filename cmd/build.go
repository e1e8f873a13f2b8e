package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/dvf-prices/internal/aggregate"
	"github.com/sells-group/dvf-prices/internal/communes"
	"github.com/sells-group/dvf-prices/internal/config"
	"github.com/sells-group/dvf-prices/internal/dvf"
	"github.com/sells-group/dvf-prices/internal/fetcher"
	"github.com/sells-group/dvf-prices/internal/pipeline"
)

var (
	buildOutDir   string
	buildCacheDir string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Generate the per-window price files",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateSources(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if buildOutDir != "" {
			cfg.Output.Dir = buildOutDir
		}
		if buildCacheDir != "" {
			cfg.Cache.Dir = buildCacheDir
		}

		f := newFetcher(cfg)
		p := pipeline.New(
			newLoader(cfg, f),
			dvf.NewResolver(f, cfg.DVF.URLTemplate, cfg.Cache.Dir),
			aggregate.NewEngine(cfg.Aggregate.Threads),
			windows(cfg),
			cfg.Output.Dir,
		)

		result, err := p.Run(ctx)
		if err != nil {
			return err
		}

		formatResult(os.Stdout, result)
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildOutDir, "out-dir", "", "output directory (default from config)")
	buildCmd.Flags().StringVar(&buildCacheDir, "cache-dir", "", "download cache directory (default from config)")
	rootCmd.AddCommand(buildCmd)
}

func newFetcher(c *config.Config) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    c.HTTP.UserAgent,
		Timeout:      time.Duration(c.HTTP.TimeoutSecs) * time.Second,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
}

func newLoader(c *config.Config, f fetcher.Fetcher) *communes.Loader {
	return communes.NewLoader(f, c.Communes.URL, filepath.Join(c.Cache.Dir, c.Communes.CacheFile))
}

func windows(c *config.Config) []pipeline.Window {
	out := make([]pipeline.Window, len(c.Output.Windows))
	for i, w := range c.Output.Windows {
		out[i] = pipeline.Window{Days: w.Days, File: w.File}
	}
	return out
}

func formatResult(out io.Writer, r *pipeline.Result) {
	_, _ = fmt.Fprintf(out, "run %s (%s), %d source file(s)\n", shortUUID(r.RunID), r.Today.Format(time.DateOnly), len(r.Sources))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DAYS\tSTART\tCOMMUNES\tDROPPED\tFILE")
	_, _ = fmt.Fprintln(w, "----\t-----\t--------\t-------\t----")
	for _, wr := range r.Windows {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n",
			wr.Days,
			wr.Start.Format(time.DateOnly),
			wr.Communes,
			wr.Dropped,
			wr.Path,
		)
	}
	_ = w.Flush()
}

func shortUUID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
