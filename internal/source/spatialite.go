package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	_ "github.com/shaxbee/go-spatialite"
)

// SpatiaLite reads table-backed layers from a SpatiaLite database, the
// imported-database counterpart to the file-scanning DuckDB source.
// Connections are cached per database path.
type SpatiaLite struct {
	mu    sync.Mutex
	conns map[string]*sql.DB
}

// NewSpatiaLite creates a SpatiaLite source.
func NewSpatiaLite() *SpatiaLite {
	return &SpatiaLite{conns: make(map[string]*sql.DB)}
}

func (s *SpatiaLite) conn(path string) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.conns[path]; ok {
		return db, nil
	}
	db, err := sql.Open("spatialite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: spatialite open %s: %v", ErrUnavailable, path, err)
	}
	s.conns[path] = db
	return db, nil
}

// FetchIntersecting implements Source.
func (s *SpatiaLite) FetchIntersecting(ctx context.Context, h Handle, bound orb.Bound, attrs []string) ([]RawFeature, error) {
	if h.Table == "" {
		return nil, fmt.Errorf("%w: spatialite handle for %s has no table", ErrUnavailable, h.Path)
	}
	db, err := s.conn(h.Path)
	if err != nil {
		return nil, err
	}

	gcol := quoteIdent(h.geomColumn())
	cols := make([]string, 0, len(attrs)+1)
	cols = append(cols, fmt.Sprintf("ST_AsBinary(%s)", gcol))
	for _, a := range attrs {
		cols = append(cols, quoteIdent(a))
	}

	q := fmt.Sprintf(
		"SELECT %s FROM %s WHERE ST_Intersects(%s, BuildMbr(?, ?, ?, ?, 4326))",
		strings.Join(cols, ", "), quoteIdent(h.Table), gcol,
	)

	rows, err := db.QueryContext(ctx, q, bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1])
	if err != nil {
		return nil, fmt.Errorf("%w: spatialite read %s.%s: %v", ErrUnavailable, h.Path, h.Table, err)
	}
	defer rows.Close()

	feats, err := scanRawFeatures(rows, attrs)
	if err != nil {
		return nil, fmt.Errorf("%w: spatialite scan %s.%s: %v", ErrUnavailable, h.Path, h.Table, err)
	}
	return feats, nil
}

var _ Source = (*SpatiaLite)(nil)
var _ Source = (*DuckDB)(nil)
