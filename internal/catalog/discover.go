package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-atlas/internal/source"
)

// layerMeta is one layer's entry in layers.yaml. Fields override what the
// directory scan inferred.
type layerMeta struct {
	DisplayName string         `yaml:"display_name"`
	Category    string         `yaml:"category"`
	MinZoom     int            `yaml:"min_zoom"`
	FeatureCap  int            `yaml:"feature_cap"`
	Attributes  []string       `yaml:"attributes"`
	Style       map[string]any `yaml:"style"`
	SourceEPSG  int            `yaml:"source_epsg"`
	Table       string         `yaml:"table"`
	GeomColumn  string         `yaml:"geom_column"`
}

type metaFile struct {
	Settings struct {
		DefaultMinZoom    int `yaml:"default_min_zoom"`
		DefaultFeatureCap int `yaml:"default_feature_cap"`
	} `yaml:"settings"`
	Layers map[string]layerMeta `yaml:"layers"`
}

// driverForExt maps backing file extensions to source drivers. Files DuckDB's
// spatial extension can read go to duckdb; SQLite containers go to
// spatialite.
var driverForExt = map[string]string{
	".gpkg":       "duckdb",
	".parquet":    "duckdb",
	".geoparquet": "duckdb",
	".geojson":    "duckdb",
	".json":       "duckdb",
	".sqlite":     "spatialite",
	".db":         "spatialite",
}

// ScanBuilder returns a Builder that walks layersDir for backing files and
// overlays metadata from a layers.yaml next to it (or at metaPath if given).
// The layer name is the file stem; the category defaults to the parent
// directory name.
func ScanBuilder(layersDir, metaPath string) Builder {
	if metaPath == "" {
		metaPath = filepath.Join(layersDir, "layers.yaml")
	}
	return func() ([]Descriptor, error) {
		meta, err := loadMeta(metaPath)
		if err != nil {
			return nil, err
		}

		var descs []Descriptor
		walkErr := filepath.WalkDir(layersDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			driver, ok := driverForExt[strings.ToLower(filepath.Ext(path))]
			if !ok {
				return nil
			}

			name := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
			lm := meta.Layers[name]

			desc := Descriptor{
				Name:        name,
				DisplayName: firstNonEmpty(lm.DisplayName, titleFromName(name)),
				Category:    firstNonEmpty(lm.Category, filepath.Base(filepath.Dir(path))),
				MinZoom:     firstNonZero(lm.MinZoom, meta.Settings.DefaultMinZoom, 10),
				FeatureCap:  firstNonZero(lm.FeatureCap, meta.Settings.DefaultFeatureCap, 5000),
				Attributes:  lm.Attributes,
				Style:       lm.Style,
				SourceEPSG:  firstNonZero(lm.SourceEPSG, CanonicalEPSG),
				Backing: source.Handle{
					Driver:     driver,
					Path:       path,
					Table:      firstNonEmpty(lm.Table, name),
					GeomColumn: lm.GeomColumn,
				},
			}
			descs = append(descs, desc)
			log.WithFields(log.Fields{
				"layer":  name,
				"driver": driver,
				"path":   path,
			}).Debug("discovered layer")
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("scan %s: %w", layersDir, walkErr)
		}
		return descs, nil
	}
}

func loadMeta(path string) (*metaFile, error) {
	var meta metaFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &meta, nil // no metadata file, scan defaults apply
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &meta, nil
}

func titleFromName(name string) string {
	words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			r, size := utf8.DecodeRuneInString(w)
			words[i] = string(unicode.ToUpper(r)) + w[size:]
		}
	}
	return strings.Join(words, " ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
