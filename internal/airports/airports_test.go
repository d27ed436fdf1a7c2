package airports

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/co-efb/internal/alternates"
	"github.com/yegors/co-efb/internal/geo"
	"github.com/yegors/co-efb/pkg/logger"
)

const airportsCSV = `"id","ident","type","name","latitude_deg","longitude_deg","elevation_ft","continent","iso_country","iso_region","municipality"
5466,"RJTT","large_airport","Tokyo Haneda International Airport",35.552299,139.779999,35,"AS","JP","JP-13","Tokyo"
5432,"RJAA","large_airport","Narita International Airport",35.764702,140.386002,141,"AS","JP","JP-12","Narita"
5442,"RJGG","large_airport","Chubu Centrair International Airport",34.858398,136.805405,15,"AS","JP","JP-23","Tokoname"
5477,"RJNS","medium_airport","Mt. Fuji Shizuoka Airport",34.796043,138.187752,433,"AS","JP","JP-22","Makinohara"
9999,"RJTH","heliport","Tokyo Heliport",35.6336,139.8394,,"AS","JP","JP-13","Koto"
`

const runwaysCSV = `"id","airport_ref","airport_ident","length_ft","width_ft","surface","lighted","closed","le_ident","le_latitude_deg","le_longitude_deg","le_elevation_ft","le_heading_degT","le_displaced_threshold_ft","he_ident","he_latitude_deg","he_longitude_deg","he_elevation_ft","he_heading_degT"
1,5466,"RJTT",9843,197,"ASP",1,0,"16R",35.5665,139.7696,,157.1,,"34L",35.5411,139.7840,,337.1
2,5466,"RJTT",11024,197,"ASP",1,0,"16L",35.5680,139.7842,,157.1,,"34R",35.5398,139.8019,,337.1
3,5432,"RJAA",13123,197,"ASP",1,0,"16R",35.7881,140.3754,,,,"34L",35.7550,140.3947,,
4,5442,"RJGG",11483,197,"ASP",1,0,"18",34.8733,136.8043,,180.0,,"36",34.8425,136.8063,,360.0
5,5477,"RJNS",8202,197,"ASP",1,0,"12",34.8023,138.1725,,120.7,,"30",34.7903,138.1996,,300.7
6,5477,"RJNS",12000,197,"ASP",1,1,"09",34.80,138.17,,90,,"27",34.80,138.20,,270
`

func writeFixtures(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	airports := filepath.Join(dir, "airports.csv")
	runways := filepath.Join(dir, "runways.csv")
	require.NoError(t, os.WriteFile(airports, []byte(airportsCSV), 0o644))
	require.NoError(t, os.WriteFile(runways, []byte(runwaysCSV), 0o644))
	return airports, runways
}

func loadFixtures(t *testing.T) *Database {
	t.Helper()
	airports, runways := writeFixtures(t)
	db, err := Load(airports, runways, logger.NewNop())
	require.NoError(t, err)
	return db
}

func TestLoad(t *testing.T) {
	db := loadFixtures(t)
	assert.Equal(t, 5, db.Len())

	a, err := db.Lookup("rjtt")
	require.NoError(t, err)
	assert.Equal(t, "RJTT", a.ICAO)
	assert.Equal(t, "Tokyo Haneda International Airport", a.Name)
	assert.InDelta(t, 35.552299, a.Lat, 1e-9)
	assert.Equal(t, 35, a.ElevationFt)
	assert.Equal(t, "JP", a.Country)
	assert.Len(t, a.Runways, 4)

	heli, err := db.Lookup("RJTH")
	require.NoError(t, err)
	assert.Equal(t, 0, heli.ElevationFt)
	assert.Empty(t, heli.Runways)
}

func TestLoad_WithoutRunways(t *testing.T) {
	airports, _ := writeFixtures(t)
	db, err := Load(airports, "", logger.NewNop())
	require.NoError(t, err)

	a, err := db.Lookup("RJGG")
	require.NoError(t, err)
	assert.Empty(t, a.Runways)
	assert.Nil(t, a.Candidate().LongestRwyM)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("", "", logger.NewNop())
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"), "", logger.NewNop())
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "airports.csv")
	require.NoError(t, os.WriteFile(bad, []byte("ident,latitude_deg,longitude_deg\nRJTT,north,139\n"), 0o644))
	_, err = Load(bad, "", logger.NewNop())
	assert.ErrorContains(t, err, "invalid latitude for RJTT")
}

func TestLookup_NotFound(t *testing.T) {
	db := loadFixtures(t)
	_, err := db.Lookup("ZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunway(t *testing.T) {
	db := loadFixtures(t)

	_, rwy, err := db.Runway("RJTT", "34r")
	require.NoError(t, err)
	assert.Equal(t, "34R", rwy.Ident)
	require.NotNil(t, rwy.HeadingTrue)
	assert.InDelta(t, 337.1, *rwy.HeadingTrue, 1e-9)
	assert.InDelta(t, 11024*geo.FeetToMeters, rwy.LengthM, 1e-9)

	_, rwy, err = db.Runway("RJAA", "16R")
	require.NoError(t, err)
	assert.Nil(t, rwy.HeadingTrue)

	_, _, err = db.Runway("RJTT", "09")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = db.Runway("ZZZZ", "09")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLongestRunwayM_IgnoresClosedRunways(t *testing.T) {
	db := loadFixtures(t)

	got, err := db.LongestRunwayM("RJNS")
	require.NoError(t, err)
	assert.InDelta(t, 8202*geo.FeetToMeters, got, 1e-9)

	got, err = db.LongestRunwayM("RJTT")
	require.NoError(t, err)
	assert.InDelta(t, 11024*geo.FeetToMeters, got, 1e-9)

	_, err = db.LongestRunwayM("ZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNearby(t *testing.T) {
	db := loadFixtures(t)

	// Haneda itself, within 60 nm: Haneda then Narita; the heliport is skipped
	got := db.Nearby(35.5523, 139.78, 60, 0)
	require.Len(t, got, 2)
	assert.Equal(t, "RJTT", got[0].ICAO)
	assert.Equal(t, "RJAA", got[1].ICAO)
	require.NotNil(t, got[1].LongestRwyM)
	assert.InDelta(t, 13123*geo.FeetToMeters, *got[1].LongestRwyM, 1e-9)

	all := db.Nearby(35.5523, 139.78, 500, 0)
	assert.Equal(t, []string{"RJTT", "RJAA", "RJNS", "RJGG"}, idents(all))

	long := db.Nearby(35.5523, 139.78, 500, 3400)
	assert.Equal(t, []string{"RJAA", "RJGG"}, idents(long))

	assert.Empty(t, db.Nearby(0, 0, 100, 0))
}

func idents(cands []alternates.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.ICAO
	}
	return out
}
