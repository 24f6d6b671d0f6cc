package geo

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grainstats/basis-tracker/internal/model"
)

type fakeUpserter struct {
	rows []model.ZipCentroid
	err  error
}

func (f *fakeUpserter) UpsertZipCentroids(_ context.Context, rows []model.ZipCentroid) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.rows = rows
	return int64(len(rows)), nil
}

func TestReformatCentroidCSV(t *testing.T) {
	raw := strings.Join([]string{
		"zip,usps_city,stusps,population,density,lat,lng",
		"50309,Des Moines,IA,15000,2000,41.5868,-93.625",
		"52401,Cedar Rapids,IA,12000,1800,41.9751,-91.6656",
		"99999,Nowhere,XX,,,,",
		"61110,Rockford,IL,9000,1500,42.2711,-89.094,extra",
	}, "\n")

	var out bytes.Buffer
	n, err := ReformatCentroidCSV(strings.NewReader(raw), &out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	want := "zip,lat,lng\n" +
		"50309,41.5868,-93.625\n" +
		"52401,41.9751,-91.6656\n" +
		"61110,42.2711,-89.094\n"
	assert.Equal(t, want, out.String())
}

func TestReformatCentroidCSVShortRows(t *testing.T) {
	raw := "zip,city\n50309,Des Moines\n"

	var out bytes.Buffer
	n, err := ReformatCentroidCSV(strings.NewReader(raw), &out)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "zip,lat,lng\n", out.String())
}

func TestParseCentroidCSV(t *testing.T) {
	in := "zip,lat,lng\n50309,41.5868,-93.625\n52401,41.9751,-91.6656\n"

	rows, err := ParseCentroidCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.ZipCentroid{Zip: "50309", Lat: 41.5868, Lng: -93.625}, rows[0])
	assert.Equal(t, "52401", rows[1].Zip)
}

func TestParseCentroidCSVSkipsBadRows(t *testing.T) {
	in := "zip,lat,lng\n" +
		"5030,41.5,-93.6\n" + // four digits
		"ABCDE,41.5,-93.6\n" +
		"50309,not-a-number,-93.6\n" +
		"50309,41.5868,-93.625\n"

	rows, err := ParseCentroidCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "50309", rows[0].Zip)
}

func TestParseCentroidCSVBadHeader(t *testing.T) {
	_, err := ParseCentroidCSV(strings.NewReader("a,b,c\n50309,41.5,-93.6\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected centroid csv header")
}

func TestLoadCentroidCSV(t *testing.T) {
	st := &fakeUpserter{}
	in := "zip,lat,lng\n50309,41.5868,-93.625\n"

	n, err := LoadCentroidCSV(context.Background(), st, strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.Len(t, st.rows, 1)
	assert.Equal(t, "50309", st.rows[0].Zip)
}
