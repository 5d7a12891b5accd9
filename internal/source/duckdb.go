package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/joeblew999/plat-atlas/internal/geo"
)

// DuckDB reads layer files (GeoPackage, GeoParquet, GeoJSON) through DuckDB's
// spatial extension. One in-memory connection is shared by all layers;
// st_read streams the file with the bbox filter pushed down.
type DuckDB struct {
	once    sync.Once
	db      *sql.DB
	initErr error
}

// NewDuckDB creates a lazily-connecting DuckDB source.
func NewDuckDB() *DuckDB {
	return &DuckDB{}
}

func (d *DuckDB) conn() (*sql.DB, error) {
	d.once.Do(func() {
		d.db, d.initErr = sql.Open("duckdb", "")
		if d.initErr != nil {
			return
		}
		for _, ext := range []string{"spatial", "parquet"} {
			if _, err := d.db.Exec(fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
				// Extensions might already be installed, continue
			}
		}
	})
	if d.initErr != nil {
		return nil, fmt.Errorf("%w: duckdb open: %v", ErrUnavailable, d.initErr)
	}
	return d.db, nil
}

// FetchIntersecting implements Source.
func (d *DuckDB) FetchIntersecting(ctx context.Context, h Handle, bound orb.Bound, attrs []string) ([]RawFeature, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}

	gcol := quoteIdent(h.geomColumn())
	cols := make([]string, 0, len(attrs)+1)
	cols = append(cols, fmt.Sprintf("ST_AsWKB(%s)", gcol))
	for _, a := range attrs {
		cols = append(cols, quoteIdent(a))
	}

	q := fmt.Sprintf(
		"SELECT %s FROM st_read('%s') WHERE ST_Intersects(%s, ST_GeomFromText('%s'))",
		strings.Join(cols, ", "),
		strings.ReplaceAll(h.Path, "'", "''"),
		gcol,
		geo.BoundWKT(bound),
	)

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: duckdb read %s: %v", ErrUnavailable, h.Path, err)
	}
	defer rows.Close()

	feats, err := scanRawFeatures(rows, attrs)
	if err != nil {
		return nil, fmt.Errorf("%w: duckdb scan %s: %v", ErrUnavailable, h.Path, err)
	}
	return feats, nil
}

// scanRawFeatures decodes rows shaped (wkb, attr...) into raw features.
// Shared by the SQL-backed sources.
func scanRawFeatures(rows *sql.Rows, attrs []string) ([]RawFeature, error) {
	var feats []RawFeature
	for rows.Next() {
		var geomWKB []byte
		values := make([]any, len(attrs))
		ptrs := make([]any, 0, len(attrs)+1)
		ptrs = append(ptrs, &geomWKB)
		for i := range values {
			ptrs = append(ptrs, &values[i])
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		var g orb.Geometry
		if len(geomWKB) > 0 {
			decoded, err := wkb.Unmarshal(geomWKB)
			if err == nil {
				g = decoded
			}
			// Undecodable geometry stays nil; the sanitizer drops and counts it.
		}

		props := make(map[string]any, len(attrs))
		for i, a := range attrs {
			switch v := values[i].(type) {
			case nil:
				// drop null attributes, matches compact encoding downstream
			case []byte:
				props[a] = string(v)
			default:
				props[a] = v
			}
		}
		feats = append(feats, RawFeature{Geometry: g, Attributes: props})
	}
	return feats, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
