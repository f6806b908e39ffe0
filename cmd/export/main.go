package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/woozymasta/ecopoints/internal/config"
	"github.com/woozymasta/ecopoints/internal/geo"
	"github.com/woozymasta/ecopoints/internal/server"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Input  string  `short:"i" long:"in" description:"Dataset file path" default:"dataset.yaml"`
	Output string  `short:"o" long:"out" description:"Output file path. Writes to stdout if empty"`
	Format string  `short:"f" long:"format" description:"Output format" choice:"json" choice:"yaml" default:"json"`
	State  string  `short:"s" long:"state" description:"Only points in this state"`
	City   string  `short:"c" long:"city" description:"Only points in this city"`
	Items  []int64 `long:"item" description:"Only points accepting any of these item ids (repeatable)"`
	Lat    float64 `long:"lat" description:"Reference latitude for distance_km"`
	Long   float64 `long:"long" description:"Reference longitude for distance_km"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if (opts.State == "") != (opts.City == "") {
		fmt.Fprintln(os.Stderr, "Error: --state and --city must be used together")
		os.Exit(1)
	}

	// dataset warnings only
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	cfg, err := config.Load(opts.Input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading dataset: %v\n", err)
		os.Exit(1)
	}
	srvCtx := server.NewServerContext(cfg)

	ref := geo.Coordinate{Lat: opts.Lat, Long: opts.Long}
	withDistance := !ref.IsZero() && ref.Valid()

	fc := geo.NewFeatureCollection()
	for _, loc := range srvCtx.Locations {
		if opts.City != "" && !loc.Matches(opts.City, opts.State, opts.Items) {
			continue
		}
		if opts.City == "" && len(opts.Items) > 0 && !loc.Matches(loc.City, loc.State, opts.Items) {
			continue
		}

		pos := geo.Coordinate{Lat: loc.Lat, Long: loc.Long}
		props := map[string]any{
			"id":    loc.ID,
			"name":  loc.Name,
			"city":  loc.City,
			"state": strings.ToUpper(loc.State),
			"items": srvCtx.ItemTitles(loc),
		}
		if withDistance {
			props["distance_km"] = geo.Distance(ref, pos)
		}

		fc.Features = append(fc.Features, geo.PointFeature(pos, props))
	}

	// marshal
	var outputData []byte
	if opts.Format == "yaml" {
		outputData, err = yaml.Marshal(fc)
	} else {
		outputData, err = json.MarshalIndent(fc, "", "  ")
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling data: %v\n", err)
		os.Exit(1)
	}

	if opts.Output != "" {
		err = os.WriteFile(opts.Output, outputData, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Successfully exported %d locations to %s (format: %s)\n", len(fc.Features), opts.Output, opts.Format)
	} else {
		fmt.Println(string(outputData))
	}
}
