package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/ecopoints/internal/catalog"
	"github.com/woozymasta/ecopoints/internal/filter"
	"github.com/woozymasta/ecopoints/internal/geo"
	"github.com/woozymasta/ecopoints/internal/geolocation"
	"github.com/woozymasta/ecopoints/internal/logger"
	"github.com/woozymasta/ecopoints/internal/navigation"
	"github.com/woozymasta/ecopoints/internal/screen"
	"github.com/woozymasta/ecopoints/internal/shell"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	CatalogURL string        `short:"u" long:"url"     env:"CATALOG_URL"     description:"Catalog service base URL"          default:"http://localhost:3333"`
	State      string        `short:"s" long:"state"   env:"SEARCH_STATE"    description:"State code, e.g. SP"               required:"true"`
	City       string        `short:"c" long:"city"    env:"SEARCH_CITY"     description:"City name"                         required:"true"`
	Timeout    time.Duration `short:"t" long:"timeout" env:"CATALOG_TIMEOUT" description:"Catalog request timeout"           default:"10s"`
	Lat        float64       `long:"lat"               env:"DEVICE_LAT"      description:"Device latitude for the map center"`
	Long       float64       `long:"long"              env:"DEVICE_LONG"     description:"Device longitude for the map center"`
	DenyLocate bool          `long:"deny-location"     env:"DENY_LOCATION"   description:"Refuse the location permission prompt"`
}

func main() {
	_ = godotenv.Load(".env")

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	client, err := catalog.New(opts.CatalogURL, &http.Client{Timeout: opts.Timeout})
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid catalog URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sh := shell.New(os.Stdout)

	// Navigate runs on the screen loop, the detail fetch must not
	nav := navigation.Func{
		Back: stop,
		Forward: func(name string, params map[string]any) {
			id, ok := params[navigation.ParamPointID].(int64)
			if name != navigation.ScreenDetail || !ok {
				log.Warn().Str("screen", name).Msg("Unsupported navigation request")
				return
			}
			go func() {
				detail, err := client.Point(ctx, id)
				if err != nil {
					log.Error().Err(err).Int64("point", id).Msg("Failed to load point detail")
					return
				}
				sh.PrintDetail(id, detail)
			}()
		},
	}

	locator := geolocation.Static{
		Fix:  geo.Coordinate{Lat: opts.Lat, Long: opts.Long},
		Deny: opts.DenyLocate,
	}

	region := filter.Region{State: opts.State, City: opts.City}.Normalize()
	points := screen.NewPoints(region, client, locator, nav, screen.WithListener(sh.Listen))
	sh.Screen = points

	if err := points.Activate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to activate screen")
	}
	defer points.Deactivate()

	sh.Printf("Searching collection points in %s, type \"help\" for commands\n", region)

	if err := sh.Run(ctx, os.Stdin); err != nil {
		log.Error().Err(err).Msg("Input failed")
	}
}
