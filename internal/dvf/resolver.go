package dvf

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dvf-prices/internal/fetcher"
)

// YearsBack is how many calendar years before the current one are tried. A
// 730-day window ending early in the year reaches two years back.
const YearsBack = 2

// ErrNoSources is returned when no candidate year could be made available.
var ErrNoSources = eris.New("dvf: no source file available")

// Source is one yearly file available on disk.
type Source struct {
	Year int
	Path string
}

// Paths returns the file paths of sources, in order.
func Paths(sources []Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.Path
	}
	return out
}

// Resolver makes the yearly files covering the trailing windows available
// locally, downloading the ones not yet cached.
type Resolver struct {
	fetcher     fetcher.Fetcher
	urlTemplate string
	cacheDir    string
}

// NewResolver creates a Resolver. urlTemplate must contain {year}.
func NewResolver(f fetcher.Fetcher, urlTemplate, cacheDir string) *Resolver {
	return &Resolver{fetcher: f, urlTemplate: urlTemplate, cacheDir: cacheDir}
}

// CandidateYears returns the years to try for a run on today, newest first.
func CandidateYears(today time.Time) []int {
	years := make([]int, 0, YearsBack+1)
	for i := 0; i <= YearsBack; i++ {
		years = append(years, today.Year()-i)
	}
	return years
}

// URL returns the download location for year.
func (r *Resolver) URL(year int) string {
	return strings.ReplaceAll(r.urlTemplate, "{year}", strconv.Itoa(year))
}

// Path returns the cache location for year.
func (r *Resolver) Path(year int) string {
	return filepath.Join(r.cacheDir, "dvf_"+strconv.Itoa(year)+".csv.gz")
}

// Resolve returns every candidate year that is cached or can be downloaded.
// A year that fails to download, typically because it is not published yet,
// is skipped. Only an empty result is an error.
func (r *Resolver) Resolve(ctx context.Context, today time.Time) ([]Source, error) {
	log := zap.L().With(zap.String("component", "dvf.resolver"))

	if err := os.MkdirAll(r.cacheDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "dvf: create cache dir %s", r.cacheDir)
	}

	var sources []Source
	for _, year := range CandidateYears(today) {
		path := r.Path(year)

		_, err := os.Stat(path)
		if err == nil {
			log.Debug("using cached source", zap.Int("year", year), zap.String("path", path))
			sources = append(sources, Source{Year: year, Path: path})
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Wrapf(err, "dvf: stat %s", path)
		}

		if _, err := r.fetcher.DownloadToFile(ctx, r.URL(year), path); err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "dvf: resolve cancelled")
			}
			log.Warn("source year unavailable, skipping", zap.Int("year", year), zap.Error(err))
			continue
		}
		sources = append(sources, Source{Year: year, Path: path})
	}

	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	log.Info("resolved sources", zap.Strings("paths", Paths(sources)))
	return sources, nil
}
