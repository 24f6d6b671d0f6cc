package geo

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/grainstats/basis-tracker/internal/model"
)

// DefaultZCTAShapefileURL is the Census TIGER ZCTA (ZIP Code Tabulation
// Area) national shapefile.
const DefaultZCTAShapefileURL = "https://www2.census.gov/geo/tiger/TIGER2024/ZCTA520/tl_2024_us_zcta520.zip"

// ImportZCTACentroids downloads the Census ZCTA shapefile, derives a
// centroid per ZCTA, and upserts the rows into the zip_centroids table.
// This is an alternative to loading a prepared centroid CSV.
func ImportZCTACentroids(ctx context.Context, st CentroidUpserter, httpClient *http.Client, tempDir, url string) (int64, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if url == "" {
		url = DefaultZCTAShapefileURL
	}

	log := zap.L().With(zap.String("component", "geo.zcta"))

	zipPath := filepath.Join(tempDir, "zcta.zip")
	log.Info("downloading ZCTA shapefile", zap.String("url", url))
	if err := downloadFile(ctx, httpClient, url, zipPath); err != nil {
		return 0, eris.Wrap(err, "geo: download ZCTA shapefile")
	}

	extractDir := filepath.Join(tempDir, "zcta")
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return 0, eris.Wrap(err, "geo: create extract dir")
	}
	if err := extractZIP(zipPath, extractDir); err != nil {
		return 0, eris.Wrap(err, "geo: extract ZCTA ZIP")
	}

	shpPath, err := findFileByExt(extractDir, ".shp")
	if err != nil {
		return 0, eris.Wrap(err, "geo: find .shp file")
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return 0, eris.Wrap(err, "geo: open shapefile")
	}
	defer func() { _ = reader.Close() }()

	zctaIdx := fieldIndex(reader, "ZCTA5CE20")
	if zctaIdx < 0 {
		// Older vintages use a different suffix.
		zctaIdx = fieldIndex(reader, "ZCTA5CE10")
	}
	if zctaIdx < 0 {
		return 0, eris.New("geo: ZCTA5CE field not found in shapefile")
	}

	var rows []model.ZipCentroid
	for reader.Next() {
		_, shape := reader.Shape()
		if shape == nil {
			continue
		}

		zcta := strings.TrimSpace(reader.Attribute(zctaIdx))
		if !model.ValidZip(zcta) {
			continue
		}

		c, ok := polygonCentroid(shape)
		if !ok {
			log.Debug("skipping ZCTA with no usable rings", zap.String("zcta", zcta))
			continue
		}
		rows = append(rows, model.ZipCentroid{Zip: zcta, Lat: c[1], Lng: c[0]})
	}

	n, err := st.UpsertZipCentroids(ctx, rows)
	if err != nil {
		return 0, eris.Wrap(err, "geo: upsert zcta centroids")
	}

	log.Info("ZCTA centroids loaded", zap.Int64("rows", n))
	return n, nil
}

// polygonCentroid converts a shapefile polygon to a geom.MultiPolygon and
// computes the area-weighted centroid. A bounding-box midpoint is not good
// enough here: for elongated or concave ZCTAs it can land well away from
// the area, or outside the polygon entirely.
func polygonCentroid(shape shp.Shape) (geom.Coord, bool) {
	p, ok := shape.(*shp.Polygon)
	if !ok || p.NumParts == 0 || len(p.Points) == 0 {
		return nil, false
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("geo: skipping malformed zcta ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geo: skipping malformed zcta part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil, false
	}

	c, err := xy.Centroid(mp)
	if err != nil {
		return nil, false
	}
	return c, true
}

// downloadFile downloads a URL to a local file.
func downloadFile(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "build request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("download returned status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return eris.Wrap(err, "create file")
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, resp.Body); err != nil {
		return eris.Wrap(err, "write file")
	}

	return nil
}

// extractZIP extracts a ZIP archive to the destination directory.
func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		name := filepath.Base(f.Name)
		destPath := filepath.Join(destDir, name)

		if f.FileInfo().IsDir() {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return eris.Wrapf(err, "open zip entry %s", f.Name)
		}

		outFile, err := os.Create(destPath)
		if err != nil {
			_ = rc.Close()
			return eris.Wrapf(err, "create %s", destPath)
		}

		if _, err := io.Copy(outFile, rc); err != nil {
			_ = outFile.Close()
			_ = rc.Close()
			return eris.Wrapf(err, "extract %s", f.Name)
		}
		_ = outFile.Close()
		_ = rc.Close()
	}

	return nil
}

// findFileByExt finds the first file with the given extension in a directory.
func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}

// fieldIndex returns the index of a named field in the shapefile, or -1 if not found.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}
