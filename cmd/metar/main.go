package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/yegors/co-efb/internal/metar"
	"github.com/yegors/co-efb/internal/observability"
	"github.com/yegors/co-efb/internal/weather"
	"github.com/yegors/co-efb/pkg/logger"
)

func main() {
	flagNoColor := flag.Bool("no-color", false, "Disable color output")
	jsonFlag := flag.Bool("json", false, "Print the decoded report as JSON")
	icaoFlag := flag.String("icao", "", "Fetch and decode the live METAR for this airport")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-no-color] [-json] \"<raw METAR>\" | -icao XXXX\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Reads the METAR from stdin when given \"-\".")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *flagNoColor {
		color.NoColor = true // disables colorized output globally
	}

	raw, err := readRaw(*icaoFlag, flag.Args(), os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	report, err := metar.Decode(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v: %s\n", err, raw)
		os.Exit(1)
	}

	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printReport(os.Stdout, report)
}

// readRaw resolves the METAR text from -icao, the arguments or stdin
func readRaw(icao string, args []string, stdin io.Reader) (string, error) {
	switch {
	case icao != "":
		return fetchLive(icao)
	case len(args) == 1 && args[0] == "-":
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimSpace(line), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return "", errors.New("no METAR given")
	}
}

func fetchLive(icao string) (string, error) {
	cfg := weather.DefaultConfig()
	client := weather.NewClient(cfg, observability.NewMetricsForTesting(), logger.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.RequestTimeoutSeconds)*time.Second)
	defer cancel()

	metars, err := client.FetchMETARs(ctx, []string{strings.ToUpper(icao)})
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", icao, err)
	}
	if len(metars) == 0 {
		return "", fmt.Errorf("no METAR for %s", strings.ToUpper(icao))
	}
	return metars[0].RawOb, nil
}
