package metar

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Tokyo(t *testing.T) {
	r, err := Decode("RJTT 011200Z 18010KT 9999 FEW030 22/18 Q1013 NOSIG")
	require.NoError(t, err)

	assert.Equal(t, "RJTT", r.Station)
	assert.Equal(t, "Day 01 at 12:00 UTC", r.Timestamp)
	assert.Equal(t, "From 180° at 10 knots", r.Wind)
	assert.Equal(t, "10 kilometers or more", r.Visibility)
	assert.Empty(t, r.Weather)
	require.Len(t, r.Clouds, 1)
	assert.Equal(t, "Few", r.Clouds[0].Coverage)
	assert.Equal(t, "3000 ft", r.Clouds[0].Altitude)
	assert.Empty(t, r.Clouds[0].Type)
	assert.Equal(t, "22°C", r.Temperature)
	assert.Equal(t, "18°C", r.Dewpoint)
	// 1013 / 33.8639 = 29.9138
	assert.Equal(t, "29.91 inHg (1013 hPa)", r.Altimeter)
	assert.Equal(t, "No significant change expected", r.Forecast)
	assert.Empty(t, r.Remarks)

	assert.Equal(t,
		"RJTT observation, day 01 at 12:00 UTC. Wind from 180° at 10 knots. "+
			"Visibility 10 kilometers or more. Clouds: few at 3000 ft. "+
			"Temperature 22°C. Dewpoint 18°C. Altimeter 29.91 inHg (1013 hPa). "+
			"No significant change expected.",
		r.PlainEnglish)

	require.NotNil(t, r.WindDirDeg)
	assert.Equal(t, 180, *r.WindDirDeg)
	assert.Equal(t, 10, r.WindSpeedKt)
	require.NotNil(t, r.VisibilityM)
	assert.Equal(t, 10000.0, *r.VisibilityM)
	assert.Nil(t, r.CeilingFt)
}

func TestDecode_FullUSReport(t *testing.T) {
	raw := "KJFK 121851Z AUTO 27015G25KT 240V300 1 1/2SM -SHRA BR VCTS BKN008 OVC015CB M02/M05 A2992 " +
		"RMK AO2 SLP132 T10171050 $ FRQ LTGICCG NE TSB25 8/578"

	r, err := Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, "KJFK", r.Station)
	assert.Equal(t, "From 270° at 15 knots, gusting to 25 knots, varying between 240° and 300°", r.Wind)
	assert.Equal(t, 25, r.WindGustKt)
	assert.Equal(t, "1 1/2 statute miles", r.Visibility)
	require.NotNil(t, r.VisibilityM)
	assert.InDelta(t, 2414.016, *r.VisibilityM, 1e-6)

	assert.Equal(t, []string{"Light showers with rain", "Mist", "Thunderstorm in vicinity"}, r.Weather)

	assert.Equal(t, []Cloud{
		{Coverage: "Broken", Altitude: "800 ft", BaseFt: 800},
		{Coverage: "Overcast", Altitude: "1500 ft", Type: "Cumulonimbus", BaseFt: 1500},
	}, r.Clouds)
	require.NotNil(t, r.CeilingFt)
	assert.Equal(t, 800, *r.CeilingFt)

	assert.Equal(t, "-02°C", r.Temperature)
	assert.Equal(t, "-05°C", r.Dewpoint)
	assert.Equal(t, "29.92 inHg", r.Altimeter)
	assert.Empty(t, r.Forecast)

	assert.Equal(t, []Remark{
		{Code: "AO2", Meaning: "Automated station with precipitation discriminator"},
		{Code: "SLP132", Meaning: "Sea level pressure 1013.2 hPa"},
		{Code: "T10171050", Meaning: "Temperature -1.7°C, dewpoint -5.0°C"},
		{Code: "$", Meaning: "Station requires maintenance"},
		{Code: "FRQ LTGICCG NE", Meaning: "Frequent lightning (in-cloud, cloud-to-ground) to the NE"},
		{Code: "TSB25", Meaning: "Thunderstorm began at minute 25"},
		{Code: "8/578", Meaning: "Cloud layer 8 oktas, type code 578"},
		{Code: "RAW", Meaning: "AO2 SLP132 T10171050 $ FRQ LTGICCG NE TSB25 8/578"},
	}, r.Remarks)

	assert.Contains(t, r.PlainEnglish, "Remarks: automated station with precipitation discriminator;")
	assert.Contains(t, r.PlainEnglish, "Weather: light showers with rain, mist, thunderstorm in vicinity.")
	assert.Contains(t, r.PlainEnglish, "overcast at 1500 ft (cumulonimbus)")
	assert.NotContains(t, r.PlainEnglish, "8/578")
}

func TestDecode_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"single token", "ONLYONETOKEN"},
		{"three tokens", "RJTT 011200Z 18010KT"},
		{"bad timestamp", "RJTT 0112Z 18010KT 9999"},
		{"timestamp without Z", "RJTT 011200 18010KT 9999"},
		{"body too short once remarks are removed", "RJTT 011200Z RMK AO2 SLP132"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Decode(tt.raw)
			assert.ErrorIs(t, err, ErrInvalidMETAR)
			assert.Nil(t, r)
		})
	}
}

func TestDecode_WindPhraseCarriesSpeedAndGust(t *testing.T) {
	groups := []struct {
		token, speed, gust string
	}{
		{"18010KT", "10", ""},
		{"09005KT", "05", ""},
		{"VRB03KT", "03", ""},
		{"27015G25KT", "15", "25"},
		{"360105G130KT", "105", "130"},
		{"VRB12G22KT", "12", "22"},
		{"00000KT", "00", ""},
	}

	for _, g := range groups {
		t.Run(g.token, func(t *testing.T) {
			r, err := Decode(fmt.Sprintf("EGLL 011200Z %s 9999 15/10 Q1015", g.token))
			require.NoError(t, err)
			assert.Contains(t, r.Wind, g.speed)
			if g.gust != "" {
				assert.Contains(t, r.Wind, "gusting to "+g.gust)
			} else {
				assert.NotContains(t, r.Wind, "gusting")
			}
		})
	}
}

func TestDecode_MissingWindIsCalm(t *testing.T) {
	for _, raw := range []string{
		"EGLL 011200Z 9999 FEW030 15/10 Q1015",
		"EGLL 011200Z AUTO 9999 15/10 Q1015",
		"EGLL 011200Z 18010MPS 9999 15/10",
		"EGLL 011200Z /////KT 9999 15/10",
	} {
		r, err := Decode(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, "Calm", r.Wind, raw)
		assert.Nil(t, r.WindDirDeg, raw)
	}
}

func TestDecode_ReportedCalmKeepsDirection(t *testing.T) {
	r, err := Decode("EGLL 011200Z 00000KT 9999 15/10 Q1015")
	require.NoError(t, err)

	assert.Equal(t, "From 000° at 00 knots", r.Wind)
	require.NotNil(t, r.WindDirDeg)
	assert.Equal(t, 0, *r.WindDirDeg)
	assert.Zero(t, r.WindSpeedKt)
}

func TestDecode_NegativeTemperatures(t *testing.T) {
	tests := []struct {
		group, temp, dew string
	}{
		{"M05/M10", "-05°C", "-10°C"},
		{"02/M01", "02°C", "-01°C"},
		{"M00/M00", "-00°C", "-00°C"},
		{"M12/", "-12°C", NotAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.group, func(t *testing.T) {
			r, err := Decode("UUEE 011200Z 36005KT 9999 OVC010 " + tt.group + " Q1020")
			require.NoError(t, err)
			assert.Equal(t, tt.temp, r.Temperature)
			assert.Equal(t, tt.dew, r.Dewpoint)
		})
	}
}

func TestDecode_QNHRoundsToTwoDecimals(t *testing.T) {
	for _, hPa := range []int{950, 983, 1000, 1013, 1020, 1035, 1050} {
		r, err := Decode(fmt.Sprintf("EDDF 011200Z 24010KT 9999 FEW030 15/10 Q%04d", hPa))
		require.NoError(t, err)
		want := fmt.Sprintf("%.2f inHg (%d hPa)", HPaToInHg(float64(hPa)), hPa)
		assert.Equal(t, want, r.Altimeter)
	}
}

func TestDecode_IsDeterministic(t *testing.T) {
	raw := "KJFK 121851Z 27015G25KT 10SM -RA BKN008 OVC015 M02/M05 A2992 RMK AO2 SLP132"

	a, err := Decode(raw)
	require.NoError(t, err)
	b, err := Decode(raw)
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("second decode differs (-first +second):\n%s", diff)
	}
}

func TestDecode_Defaults(t *testing.T) {
	r, err := Decode("ZZZZ 011200Z ///// ////")
	require.NoError(t, err)

	assert.Equal(t, "Calm", r.Wind)
	assert.Empty(t, r.Visibility)
	assert.Equal(t, NotAvailable, r.Temperature)
	assert.Equal(t, NotAvailable, r.Dewpoint)
	assert.Equal(t, NotAvailable, r.Altimeter)
	assert.NotNil(t, r.Weather)
	assert.Empty(t, r.Weather)
	assert.NotNil(t, r.Clouds)
	assert.NotNil(t, r.Remarks)
	assert.Empty(t, r.Clouds)
	assert.Empty(t, r.Remarks)
	assert.NotContains(t, r.PlainEnglish, NotAvailable)
}

func TestDecode_SkipsRunwayVisualRange(t *testing.T) {
	r, err := Decode("RJAA 011200Z 36005KT 0800 R34L/1200 FG VV002 08/08 Q1008")
	require.NoError(t, err)

	assert.Equal(t, "800 meters", r.Visibility)
	assert.Equal(t, []string{"Fog"}, r.Weather)
	require.Len(t, r.Clouds, 1)
	assert.Equal(t, "Vertical visibility", r.Clouds[0].Coverage)
	require.NotNil(t, r.CeilingFt)
	assert.Equal(t, 200, *r.CeilingFt)
}

func TestDecode_CAVOK(t *testing.T) {
	r, err := Decode("LIRF 011200Z 22008KT CAVOK 25/12 Q1018 NOSIG")
	require.NoError(t, err)

	assert.Equal(t, "Ceiling and visibility OK", r.Visibility)
	assert.Empty(t, r.Clouds)
	assert.Equal(t, "25°C", r.Temperature)
}

func TestDecode_GroupsAfterTrendMarkerStillMatch(t *testing.T) {
	r, err := Decode("EGLL 011200Z 24010KT 9999 SCT030 15/10 Q1015 BECMG BKN010 TEMPO 3000 SHRA")
	require.NoError(t, err)

	require.Len(t, r.Clouds, 2)
	assert.Equal(t, "Scattered", r.Clouds[0].Coverage)
	assert.Equal(t, "Broken", r.Clouds[1].Coverage)
	assert.Equal(t, "1000 ft", r.Clouds[1].Altitude)
	require.NotNil(t, r.CeilingFt)
	assert.Equal(t, 1000, *r.CeilingFt)

	// present weather is only read before the first cloud group
	assert.Empty(t, r.Weather)
	assert.Equal(t, "29.97 inHg (1015 hPa)", r.Altimeter)
}

func TestDecode_TrendMarkerEndsWeather(t *testing.T) {
	r, err := Decode("EGLL 011200Z 24010KT 9999 -RA TEMPO SHRA 15/10 Q1015")
	require.NoError(t, err)

	assert.Equal(t, []string{"Light rain"}, r.Weather)
	assert.Equal(t, "15°C", r.Temperature)
}

func TestDecode_SkyClearEndsWeather(t *testing.T) {
	r, err := Decode("KLAX 011200Z 25010KT 10SM HZ CLR 20/10 A3001")
	require.NoError(t, err)

	assert.Equal(t, "10 statute miles", r.Visibility)
	assert.Equal(t, []string{"Haze"}, r.Weather)
	assert.Empty(t, r.Clouds)
	assert.Equal(t, "30.01 inHg", r.Altimeter)
}

func TestDecode_RemarksWithoutBodyRemarkToken(t *testing.T) {
	// "RMKX" is not the remarks separator
	r, err := Decode("RMKX 011200Z 18010KT 9999 FEW030 22/18 Q1013")
	require.NoError(t, err)
	assert.Equal(t, "RMKX", r.Station)
	assert.Empty(t, r.Remarks)
}

func TestDecode_PlainEnglishOmitsRawRemark(t *testing.T) {
	r, err := Decode("KSFO 011200Z 28012KT 10SM FEW008 14/11 A3002 RMK AO2 XYZ123")
	require.NoError(t, err)

	require.Len(t, r.Remarks, 2)
	assert.Equal(t, "RAW", r.Remarks[1].Code)
	assert.True(t, strings.HasSuffix(r.PlainEnglish, "Remarks: automated station with precipitation discriminator."))
	assert.NotContains(t, r.PlainEnglish, "XYZ123")
}
