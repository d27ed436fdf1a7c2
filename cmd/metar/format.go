package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/yegors/co-efb/internal/metar"
)

var (
	labelColor   = color.New(color.FgCyan)
	valueColor   = color.New(color.FgWhite)
	sectionColor = color.New(color.FgBlue, color.Bold)
	codeColor    = color.New(color.FgGreen)
	alertColor   = color.New(color.FgYellow)
)

const labelWidth = 12

// printReport writes a decoded METAR as labelled lines
func printReport(w io.Writer, r *metar.Report) {
	sectionColor.Fprintln(w, r.Raw)
	fmt.Fprintln(w)

	field(w, "Station", r.Station)
	field(w, "Time", r.Timestamp)
	field(w, "Wind", r.Wind)
	field(w, "Visibility", r.Visibility)

	if len(r.Weather) > 0 {
		label(w, "Weather")
		alertColor.Fprintln(w, strings.Join(r.Weather, ", "))
	}

	for i, c := range r.Clouds {
		name := ""
		if i == 0 {
			name = "Clouds"
		}
		label(w, name)
		layer := c.Coverage + " at " + c.Altitude
		if c.Type != "" {
			layer += " (" + c.Type + ")"
		}
		valueColor.Fprintln(w, layer)
	}

	field(w, "Temperature", r.Temperature)
	field(w, "Dewpoint", r.Dewpoint)
	field(w, "Altimeter", r.Altimeter)
	field(w, "Forecast", r.Forecast)

	if len(r.Remarks) > 0 {
		fmt.Fprintln(w)
		sectionColor.Fprintln(w, "Remarks")
		for _, rm := range r.Remarks {
			codeColor.Fprintf(w, "  %-10s ", rm.Code)
			valueColor.Fprintln(w, rm.Meaning)
		}
	}

	if r.PlainEnglish != "" {
		fmt.Fprintln(w)
		valueColor.Fprintln(w, r.PlainEnglish)
	}
}

func field(w io.Writer, name, value string) {
	if value == "" {
		return
	}
	label(w, name)
	valueColor.Fprintln(w, value)
}

func label(w io.Writer, name string) {
	labelColor.Fprintf(w, "%-*s ", labelWidth, name)
}
