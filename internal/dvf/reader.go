package dvf

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/klauspost/compress/gzip"
	"github.com/rotisserie/eris"
)

// ReadStats counts what a pass over one file kept.
type ReadStats struct {
	Rows int64
	Kept int64
}

// ReadSales decodes the DVF file at path (gzip-compressed when it ends in .gz)
// and returns the rows that pass f.
func ReadSales(ctx context.Context, path string, f Filter) ([]Sale, ReadStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, ReadStats{}, eris.Wrapf(err, "dvf: open %s", path)
	}
	defer file.Close() //nolint:errcheck

	var r io.Reader = file
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, ReadStats{}, eris.Wrapf(err, "dvf: gunzip %s", path)
		}
		defer gz.Close() //nolint:errcheck
		r = gz
	}

	sales, stats, err := DecodeSales(ctx, r, f)
	if err != nil {
		return nil, stats, eris.Wrapf(err, "dvf: read %s", path)
	}
	return sales, stats, nil
}

// DecodeSales streams CSV rows from r, binding columns by header name.
func DecodeSales(ctx context.Context, r io.Reader, f Filter) ([]Sale, ReadStats, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	rowCh := make(chan Mutation, 256)
	errCh := make(chan error, 1)
	go func() {
		// gocsv closes rowCh once the input is exhausted or fails.
		errCh <- gocsv.UnmarshalDecoderToChan(gocsv.NewSimpleDecoderFromCSVReader(reader), rowCh)
	}()

	var (
		sales []Sale
		stats ReadStats
	)
	for m := range rowCh {
		stats.Rows++
		// Keep draining after cancellation so the decoder goroutine can exit.
		if ctx.Err() != nil {
			continue
		}
		if s, ok := f.Apply(m); ok {
			sales = append(sales, s)
			stats.Kept++
		}
	}

	if err := <-errCh; err != nil {
		return nil, stats, eris.Wrap(err, "dvf: decode csv")
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, eris.Wrap(err, "dvf: context cancelled")
	}
	return sales, stats, nil
}
