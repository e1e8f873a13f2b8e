package communes

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dvf-prices/internal/atomicfile"
	"github.com/sells-group/dvf-prices/internal/fetcher"
)

// Loader returns the municipality index, from the cache file when present and
// from the remote directory otherwise.
type Loader struct {
	fetcher   fetcher.Fetcher
	url       string
	cachePath string
}

// NewLoader creates a Loader reading through cachePath.
func NewLoader(f fetcher.Fetcher, url, cachePath string) *Loader {
	return &Loader{fetcher: f, url: url, cachePath: cachePath}
}

// Load returns the reference index. A cached file is trusted as-is; it is never
// refreshed. Any failure is fatal for the caller.
func (l *Loader) Load(ctx context.Context) (Index, error) {
	log := zap.L().With(zap.String("component", "communes.loader"))

	file, err := os.Open(l.cachePath)
	switch {
	case err == nil:
		defer file.Close() //nolint:errcheck
		idx, err := Decode(ctx, file)
		if err != nil {
			return nil, eris.Wrapf(err, "communes: decode cache %s", l.cachePath)
		}
		log.Info("using cached communes", zap.String("path", l.cachePath), zap.Int("communes", len(idx)))
		return idx, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, eris.Wrapf(err, "communes: open cache %s", l.cachePath)
	}

	log.Info("fetching communes", zap.String("url", l.url))
	body, err := l.fetcher.Download(ctx, l.url)
	if err != nil {
		return nil, eris.Wrap(err, "communes: fetch directory")
	}
	defer body.Close() //nolint:errcheck

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrap(err, "communes: read directory")
	}

	// Decode before caching so a bad payload is never persisted.
	idx, err := Decode(ctx, bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "communes: decode directory")
	}

	err = atomicfile.Write(l.cachePath, func(w io.Writer) error {
		_, werr := w.Write(raw)
		return werr
	})
	if err != nil {
		return nil, eris.Wrapf(err, "communes: write cache %s", l.cachePath)
	}

	log.Info("communes cached", zap.String("path", l.cachePath), zap.Int("communes", len(idx)))
	return idx, nil
}

// Decode reads a JSON array of communes into an Index. Entries without a code
// cannot be joined and are skipped. An empty list is an error.
func Decode(ctx context.Context, r io.Reader) (Index, error) {
	idx := make(Index)
	err := fetcher.EachJSON(ctx, r, func(c Commune) error {
		if c.Code != "" {
			idx[c.Code] = c
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "communes: decode reference list")
	}

	if len(idx) == 0 {
		return nil, eris.New("communes: reference list is empty")
	}
	return idx, nil
}
