package catalog

import (
	"os"
	"path/filepath"

	"github.com/joeblew999/plat-atlas/internal/source"
)

// NSWBuilder returns the built-in NSW layer set for deployments that ship the
// standard GeoPackage bundle instead of a layers.yaml. Layers whose backing
// file is absent are skipped, so a partial bundle still serves.
func NSWBuilder(layersDir string) Builder {
	nsw := filepath.Join(layersDir, "NSW")
	descs := []Descriptor{
		{
			Name:        "nsw_lots",
			DisplayName: "NSW Property Lots",
			Category:    "NSW",
			MinZoom:     15,
			FeatureCap:  5000,
			Attributes: []string{
				"lotnumber", "plannumber", "planlabel", "address",
				"planlotare", "planlota00", "lganame", "councilnam",
			},
			Style: map[string]any{
				"color":       "#2c3e50",
				"weight":      1.5,
				"fillColor":   "#ecf0f1",
				"fillOpacity": 0.1,
				"opacity":     0.8,
			},
			SourceEPSG: 4283,
			Backing:    source.Handle{Driver: "duckdb", Path: filepath.Join(nsw, "Lots.gpkg")},
		},
		{
			Name:        "nsw_buildings",
			DisplayName: "Greater Sydney Buildings",
			Category:    "NSW",
			MinZoom:     16,
			FeatureCap:  5000,
			// Buildings only need geometry for display.
			Attributes: nil,
			Style: map[string]any{
				"color":       "#34495e",
				"weight":      1,
				"fillColor":   "#bdc3c7",
				"fillOpacity": 0.7,
			},
			SourceEPSG: 4283,
			Backing:    source.Handle{Driver: "duckdb", Path: filepath.Join(nsw, "BLD_GreaterSydney.gpkg")},
		},
		{
			Name:        "suburb",
			DisplayName: "NSW Suburbs",
			Category:    "NSW",
			MinZoom:     10,
			FeatureCap:  5000,
			Style: map[string]any{
				"color":       "#3498db",
				"weight":      2,
				"fillColor":   "#3498db",
				"fillOpacity": 0.05,
				"opacity":     0.8,
			},
			SourceEPSG: 4283,
			Backing:    source.Handle{Driver: "duckdb", Path: filepath.Join(nsw, "Suburb.gpkg")},
		},
	}

	return func() ([]Descriptor, error) {
		var out []Descriptor
		for _, d := range descs {
			if _, err := os.Stat(d.Backing.Path); err != nil {
				continue
			}
			out = append(out, d)
		}
		return out, nil
	}
}
