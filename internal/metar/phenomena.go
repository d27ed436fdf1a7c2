package metar

// Present-weather codes, consumed two characters at a time
var phenomena = map[string]string{
	// Descriptors
	"MI": "shallow",
	"PR": "partial",
	"BC": "patches of",
	"DR": "low drifting",
	"BL": "blowing",
	"SH": "showers",
	"TS": "thunderstorm",
	"FZ": "freezing",

	// Precipitation
	"DZ": "drizzle",
	"RA": "rain",
	"SN": "snow",
	"SG": "snow grains",
	"IC": "ice crystals",
	"PL": "ice pellets",
	"GR": "hail",
	"GS": "small hail",
	"UP": "unknown precipitation",

	// Obscuration
	"BR": "mist",
	"FG": "fog",
	"FU": "smoke",
	"VA": "volcanic ash",
	"DU": "widespread dust",
	"SA": "sand",
	"HZ": "haze",
	"PY": "spray",

	// Other
	"PO": "dust whirls",
	"SQ": "squalls",
	"FC": "funnel cloud",
	"SS": "sandstorm",
	"DS": "duststorm",
}

// Descriptors that read as "<descriptor> with <phenomenon>"
var joinWithWith = map[string]bool{
	"SH": true,
	"TS": true,
}

// Whole-token weather groups
var weatherWords = map[string]string{
	"NSW": "No significant weather",
}

var cloudCoverage = map[string]string{
	"FEW": "Few",
	"SCT": "Scattered",
	"BKN": "Broken",
	"OVC": "Overcast",
	"VV":  "Vertical visibility",
	"NCD": "No clouds detected",
}

var cloudTypes = map[string]string{
	"CB":  "Cumulonimbus",
	"TCU": "Towering cumulus",
}

var lightningFrequency = map[string]string{
	"OCNL": "Occasional",
	"FRQ":  "Frequent",
	"CONS": "Continuous",
}

var lightningTypes = map[string]string{
	"IC": "in-cloud",
	"CC": "cloud-to-cloud",
	"CG": "cloud-to-ground",
	"CA": "cloud-to-air",
}

var lightningDirections = map[string]string{
	"ALQDS": "in all quadrants",
	"OHD":   "overhead",
	"VC":    "in the vicinity",
}
