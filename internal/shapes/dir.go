package shapes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"

	"regiokaart/internal/apperr"
	"regiokaart/internal/logger"
	"regiokaart/internal/region"
)

// MunicipalityProperty names the municipality on every level's features.
const MunicipalityProperty = "GM_NAAM"

// DirSource reads one GeoJSON FeatureCollection per level from a directory:
// buurt.geojson, wijk.geojson and gemeente.geojson, with the level's code and name properties
// (BU_CODE/BU_NAAM, WK_CODE/WK_NAAM, GM_CODE/GM_NAAM) plus GM_NAAM.
type DirSource struct {
	Dir string
}

func NewDirSource(dir string) *DirSource { return &DirSource{Dir: dir} }

// FileName is the file holding the polygons of level.
func FileName(level region.Level) string { return strings.ToLower(string(level)) + ".geojson" }

// LoadShapes: features without polygonal geometry or without a code are skipped.
func (d *DirSource) LoadShapes(ctx context.Context, municipality string, level region.Level) ([]Shape, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !level.Valid() {
		return nil, apperr.New(apperr.Invalid, fmt.Sprintf("unknown level %q", level))
	}
	path := filepath.Join(d.Dir, FileName(level))
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.NotFound, "shape file "+path+" not found", err)
		}
		return nil, fmt.Errorf("read shapes %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidGeometry, "shape file "+path+" is not a GeoJSON FeatureCollection", err)
	}
	return FromFeatures(fc, municipality, level), nil
}

// FromFeatures extracts the shapes of level from fc, keeping only municipality unless it is AllMunicipalities.
func FromFeatures(fc *geojson.FeatureCollection, municipality string, level region.Level) []Shape {
	codeCol, nameCol := level.CodeColumn(), level.NameColumn()
	var out []Shape
	skipped := 0
	for _, f := range fc.Features {
		muni := propString(f.Properties, MunicipalityProperty)
		if municipality != AllMunicipalities && muni != municipality {
			continue
		}
		code := propString(f.Properties, codeCol)
		if code == "" || f.Geometry == nil || !polygonal(f.Geometry) {
			skipped++
			continue
		}
		out = append(out, Shape{
			Code:         code,
			Name:         propString(f.Properties, nameCol),
			Municipality: muni,
			Geometry:     f.Geometry,
			Bound:        f.Geometry.Bound(),
		})
	}
	logger.L().Debug("shapes_parsed", "level", level, "municipality", municipality, "shapes", len(out), "skipped", skipped)
	return out
}
