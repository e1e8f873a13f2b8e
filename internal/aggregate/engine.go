// Package aggregate computes per-commune median prices from filtered DVF sales.
package aggregate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dvf-prices/internal/dvf"
)

// Stat is the median price per m² and sale count of one (commune, type) group.
type Stat struct {
	Median float64
	Count  int64
}

// Row is one commune's result. A nil Stat means no qualifying sale of that
// type was observed.
type Row struct {
	Code      string
	House     *Stat
	Apartment *Stat
}

// Engine decodes source files in parallel and aggregates them in an
// in-memory SQLite database.
type Engine struct {
	threads int
}

// NewEngine creates an Engine decoding at most threads files at once.
func NewEngine(threads int) *Engine {
	if threads < 1 {
		threads = 1
	}
	return &Engine{threads: threads}
}

const schema = `
CREATE TABLE clean (
	code_commune TEXT NOT NULL,
	type_local   TEXT NOT NULL,
	prix_m2      REAL NOT NULL
);
`

// Rows at the middle positions of each ordered group; even groups average two.
const medianQuery = `
WITH ranked AS (
	SELECT code_commune, type_local, prix_m2,
		ROW_NUMBER() OVER (PARTITION BY code_commune, type_local ORDER BY prix_m2) AS rn,
		COUNT(*) OVER (PARTITION BY code_commune, type_local) AS n
	FROM clean
)
SELECT code_commune, type_local, AVG(prix_m2) AS median, MAX(n) AS n
FROM ranked
WHERE rn IN ((n + 1) / 2, (n + 2) / 2)
GROUP BY code_commune, type_local
ORDER BY code_commune, type_local
`

// Aggregate reads every file in paths, keeps the sales dated in
// [start, today] and returns one Row per commune with at least one sale,
// sorted by code. Any unreadable file fails the whole call.
func (e *Engine) Aggregate(ctx context.Context, paths []string, start, today time.Time) ([]Row, error) {
	log := zap.L().With(zap.String("component", "aggregate"))
	filter := dvf.NewFilter(start, today)

	perFile := make([][]dvf.Sale, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.threads)
	for i, path := range paths {
		g.Go(func() error {
			sales, stats, err := dvf.ReadSales(gctx, path, filter)
			if err != nil {
				return err
			}
			log.Debug("decoded source",
				zap.String("path", path),
				zap.Int64("rows", stats.Rows),
				zap.Int64("kept", stats.Kept),
			)
			perFile[i] = sales
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "aggregate: decode sources")
	}

	db, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck

	n, err := stage(ctx, db, perFile)
	if err != nil {
		return nil, err
	}

	rows, err := medians(ctx, db)
	if err != nil {
		return nil, err
	}

	log.Info("aggregated",
		zap.Int("files", len(paths)),
		zap.Int("sales", n),
		zap.Int("communes", len(rows)),
		zap.String("start", start.Format(time.DateOnly)),
		zap.String("today", today.Format(time.DateOnly)),
	)
	return rows, nil
}

func (e *Engine) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, eris.Wrap(err, "aggregate: open sqlite")
	}
	// Each connection to :memory: is its own database.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		fmt.Sprintf("PRAGMA threads=%d", e.threads),
		"PRAGMA journal_mode=OFF",
		"PRAGMA synchronous=OFF",
		schema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "aggregate: exec %s", stmt)
		}
	}
	return db, nil
}

func stage(ctx context.Context, db *sql.DB, perFile [][]dvf.Sale) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "aggregate: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO clean (code_commune, type_local, prix_m2) VALUES (?, ?, ?)")
	if err != nil {
		return 0, eris.Wrap(err, "aggregate: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	n := 0
	for _, sales := range perFile {
		for _, s := range sales {
			if _, err := stmt.ExecContext(ctx, s.Code, string(s.Type), s.PricePerM2); err != nil {
				return 0, eris.Wrap(err, "aggregate: insert sale")
			}
			n++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "aggregate: commit")
	}
	return n, nil
}

func medians(ctx context.Context, db *sql.DB) ([]Row, error) {
	rs, err := db.QueryContext(ctx, medianQuery)
	if err != nil {
		return nil, eris.Wrap(err, "aggregate: query medians")
	}
	defer rs.Close() //nolint:errcheck

	byCode := make(map[string]*Row)
	for rs.Next() {
		var (
			code, typ string
			st        Stat
		)
		if err := rs.Scan(&code, &typ, &st.Median, &st.Count); err != nil {
			return nil, eris.Wrap(err, "aggregate: scan median")
		}
		row, ok := byCode[code]
		if !ok {
			row = &Row{Code: code}
			byCode[code] = row
		}
		switch dvf.PropertyType(typ) {
		case dvf.House:
			row.House = &st
		case dvf.Apartment:
			row.Apartment = &st
		}
	}
	if err := rs.Err(); err != nil {
		return nil, eris.Wrap(err, "aggregate: iterate medians")
	}

	out := make([]Row, 0, len(byCode))
	for _, r := range byCode {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}
