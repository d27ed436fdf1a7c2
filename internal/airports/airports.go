package airports

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/yegors/co-efb/internal/alternates"
	"github.com/yegors/co-efb/internal/geo"
	"github.com/yegors/co-efb/pkg/logger"
)

// ErrNotFound is returned for an unknown airport or runway
var ErrNotFound = errors.New("not found")

// Runway is one usable runway end
type Runway struct {
	Ident       string   `json:"ident"`
	LengthM     float64  `json:"length_m"`
	WidthM      float64  `json:"width_m,omitempty"`
	Surface     string   `json:"surface,omitempty"`
	HeadingTrue *float64 `json:"heading_true,omitempty"`
	Closed      bool     `json:"closed"`
}

// Airport is an OurAirports entry with its runway ends
type Airport struct {
	ICAO        string   `json:"icao"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	ElevationFt int      `json:"elevation_ft"`
	Country     string   `json:"country,omitempty"`
	Runways     []Runway `json:"runways"`
}

// LongestRunwayM returns the longest open runway in metres, 0 when none is known
func (a *Airport) LongestRunwayM() float64 {
	longest := 0.0
	for _, r := range a.Runways {
		if !r.Closed && r.LengthM > longest {
			longest = r.LengthM
		}
	}
	return longest
}

// Candidate converts the airport into an alternates candidate. Airports
// without runway data have no runway length.
func (a *Airport) Candidate() alternates.Candidate {
	c := alternates.Candidate{ICAO: a.ICAO, Name: a.Name, Lat: a.Lat, Lon: a.Lon}
	if len(a.Runways) > 0 {
		l := a.LongestRunwayM()
		c.LongestRwyM = &l
	}
	return c
}

// Types that never serve as an alternate
var excludedTypes = map[string]bool{
	"closed":        true,
	"heliport":      true,
	"balloonport":   true,
	"seaplane_base": true,
}

// Database holds airports keyed by upper-case ident
type Database struct {
	airports map[string]*Airport
	sorted   []*Airport
	logger   *logger.Logger
}

// Load reads airports.csv and, when runwaysPath is set, runways.csv
func Load(airportsPath, runwaysPath string, log *logger.Logger) (*Database, error) {
	if airportsPath == "" {
		return nil, fmt.Errorf("airports_db_path is required")
	}

	db := &Database{
		airports: make(map[string]*Airport),
		logger:   log.Named("airports"),
	}

	if err := readCSV(airportsPath, db.addAirport); err != nil {
		return nil, fmt.Errorf("failed to load airports from %s: %w", airportsPath, err)
	}
	if runwaysPath != "" {
		if err := readCSV(runwaysPath, db.addRunways); err != nil {
			return nil, fmt.Errorf("failed to load runways from %s: %w", runwaysPath, err)
		}
	}

	db.sorted = make([]*Airport, 0, len(db.airports))
	for _, a := range db.airports {
		db.sorted = append(db.sorted, a)
	}
	sort.Slice(db.sorted, func(i, j int) bool { return db.sorted[i].ICAO < db.sorted[j].ICAO })

	db.logger.Info("Airport database loaded",
		logger.Int("airports", len(db.airports)),
		logger.String("path", airportsPath))

	return db, nil
}

// Len returns the number of loaded airports
func (d *Database) Len() int {
	return len(d.airports)
}

// Lookup returns the airport for an ICAO ident
func (d *Database) Lookup(icao string) (*Airport, error) {
	a, ok := d.airports[strings.ToUpper(strings.TrimSpace(icao))]
	if !ok {
		return nil, fmt.Errorf("airport %s: %w", icao, ErrNotFound)
	}
	return a, nil
}

// Runway returns one runway end, matched case-insensitively
func (d *Database) Runway(icao, ident string) (*Airport, *Runway, error) {
	a, err := d.Lookup(icao)
	if err != nil {
		return nil, nil, err
	}
	ident = strings.ToUpper(strings.TrimSpace(ident))
	for i := range a.Runways {
		if strings.ToUpper(a.Runways[i].Ident) == ident {
			return a, &a.Runways[i], nil
		}
	}
	return a, nil, fmt.Errorf("runway %s at %s: %w", ident, a.ICAO, ErrNotFound)
}

// LongestRunwayM returns the longest open runway at an airport in metres
func (d *Database) LongestRunwayM(icao string) (float64, error) {
	a, err := d.Lookup(icao)
	if err != nil {
		return 0, err
	}
	return a.LongestRunwayM(), nil
}

// Nearby returns alternate candidates within radiusNM of a position whose
// longest runway is at least minRwyM, closest first.
func (d *Database) Nearby(lat, lon, radiusNM, minRwyM float64) []alternates.Candidate {
	type hit struct {
		airport *Airport
		dist    float64
	}

	var hits []hit
	for _, a := range d.sorted {
		if excludedTypes[a.Type] {
			continue
		}
		if minRwyM > 0 && a.LongestRunwayM() < minRwyM {
			continue
		}
		dist := geo.HaversineNM(lat, lon, a.Lat, a.Lon)
		if dist > radiusNM {
			continue
		}
		hits = append(hits, hit{airport: a, dist: dist})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]alternates.Candidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.airport.Candidate())
	}
	return out
}

func (d *Database) addAirport(row map[string]string) error {
	ident := strings.ToUpper(row["ident"])
	if ident == "" {
		return nil
	}

	lat, err := strconv.ParseFloat(row["latitude_deg"], 64)
	if err != nil {
		return fmt.Errorf("invalid latitude for %s: %w", ident, err)
	}
	lon, err := strconv.ParseFloat(row["longitude_deg"], 64)
	if err != nil {
		return fmt.Errorf("invalid longitude for %s: %w", ident, err)
	}

	a := &Airport{
		ICAO:    ident,
		Name:    row["name"],
		Type:    row["type"],
		Lat:     lat,
		Lon:     lon,
		Country: row["iso_country"],
		Runways: []Runway{},
	}
	// Elevation might be empty
	if elev, err := strconv.ParseFloat(row["elevation_ft"], 64); err == nil {
		a.ElevationFt = int(elev)
	}

	d.airports[ident] = a
	return nil
}

// addRunways adds both ends of a runways.csv row
func (d *Database) addRunways(row map[string]string) error {
	a, ok := d.airports[strings.ToUpper(row["airport_ident"])]
	if !ok {
		return nil
	}

	lengthFt, _ := strconv.ParseFloat(row["length_ft"], 64)
	widthFt, _ := strconv.ParseFloat(row["width_ft"], 64)
	closed := row["closed"] == "1"

	for _, end := range []string{"le", "he"} {
		ident := row[end+"_ident"]
		if ident == "" {
			continue
		}
		r := Runway{
			Ident:   ident,
			LengthM: lengthFt * geo.FeetToMeters,
			WidthM:  widthFt * geo.FeetToMeters,
			Surface: row["surface"],
			Closed:  closed,
		}
		if hdg, err := strconv.ParseFloat(row[end+"_heading_degT"], 64); err == nil {
			r.HeadingTrue = &hdg
		}
		a.Runways = append(a.Runways, r)
	}
	return nil
}

// readCSV streams a headed CSV file, handing each record to fn keyed by column name
func readCSV(path string, fn func(row map[string]string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	row := make(map[string]string, len(header))
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		clear(row)
		for i, h := range header {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			}
		}
		if err := fn(row); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}
