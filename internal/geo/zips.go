package geo

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grainstats/basis-tracker/internal/model"
)

// CentroidUpserter is the slice of the store needed by the centroid
// loaders.
type CentroidUpserter interface {
	UpsertZipCentroids(ctx context.Context, rows []model.ZipCentroid) (int64, error)
}

// Column layout of the full Census ZIP export: zip is column 0, the
// centroid lat/lng are columns 5 and 6.
const (
	rawZipCol = 0
	rawLatCol = 5
	rawLngCol = 6
)

// ReformatCentroidCSV reads a full Census ZIP export and writes a minimal
// zip,lat,lng CSV. Rows missing any of the three fields are skipped.
// Returns the number of data rows written.
func ReformatCentroidCSV(r io.Reader, w io.Writer) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	if _, err := fmt.Fprintln(w, "zip,lat,lng"); err != nil {
		return 0, eris.Wrap(err, "geo: write header")
	}

	var written int
	var line int
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, eris.Wrap(err, "geo: read raw zip csv")
		}
		line++
		if line == 1 {
			continue // header
		}
		if len(rec) <= rawLngCol {
			continue
		}
		zip, lat, lng := rec[rawZipCol], rec[rawLatCol], rec[rawLngCol]
		if zip == "" || lat == "" || lng == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s,%s,%s\n", zip, lat, lng); err != nil {
			return written, eris.Wrap(err, "geo: write zip row")
		}
		written++
	}
	return written, nil
}

// ParseCentroidCSV reads a prepared zip,lat,lng CSV (header required) into
// centroid rows. Rows with an invalid ZIP or unparseable coordinates are
// skipped with a warning rather than failing the whole load.
func ParseCentroidCSV(r io.Reader) ([]model.ZipCentroid, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "geo: read centroid csv header")
	}
	if len(header) != 3 || header[0] != "zip" {
		return nil, eris.Errorf("geo: unexpected centroid csv header %v", header)
	}

	var rows []model.ZipCentroid
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "geo: read centroid csv")
		}

		zip := rec[0]
		if !model.ValidZip(zip) {
			zap.L().Warn("geo: skipping invalid zip", zap.String("zip", zip))
			continue
		}
		lat, latErr := strconv.ParseFloat(rec[1], 64)
		lng, lngErr := strconv.ParseFloat(rec[2], 64)
		if latErr != nil || lngErr != nil {
			zap.L().Warn("geo: skipping zip with bad coordinates", zap.String("zip", zip))
			continue
		}
		rows = append(rows, model.ZipCentroid{Zip: zip, Lat: lat, Lng: lng})
	}
	return rows, nil
}

// LoadCentroidCSV parses a prepared centroid CSV and upserts the rows
// through the store.
func LoadCentroidCSV(ctx context.Context, st CentroidUpserter, r io.Reader) (int64, error) {
	rows, err := ParseCentroidCSV(r)
	if err != nil {
		return 0, err
	}
	n, err := st.UpsertZipCentroids(ctx, rows)
	if err != nil {
		return 0, eris.Wrap(err, "geo: upsert centroids")
	}
	zap.L().Info("zip centroids loaded", zap.Int64("rows", n))
	return n, nil
}
