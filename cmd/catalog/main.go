package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/woozymasta/ecopoints/internal/config"
	"github.com/woozymasta/ecopoints/internal/logger"
	"github.com/woozymasta/ecopoints/internal/server"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	DatasetFile string `short:"d" long:"dataset"    env:"DATASET_FILE"   description:"Path to dataset file"          default:"dataset.yaml"`
	Addr        string `short:"a" long:"addr"       env:"LISTEN_ADDRESS" description:"Address to listen on"          default:"0.0.0.0"`
	Uploads     string `short:"u" long:"uploads"    env:"UPLOADS_DIR"    description:"Override uploads directory"`
	PublicURL   string `long:"public-url"           env:"PUBLIC_URL"     description:"Override image URL prefix"`
	Port        int    `short:"p" long:"port"       env:"LISTEN_PORT"    description:"Port to listen on"             default:"3333"`
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

	// Setup Logging
	opts.Logger.Setup()

	// Load Dataset
	cfg, err := config.Load(opts.DatasetFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load dataset")
	}

	if opts.Uploads != "" {
		cfg.Uploads = opts.Uploads
	}
	if opts.PublicURL != "" {
		cfg.PublicURL = opts.PublicURL
	}

	srvCtx := server.NewServerContext(cfg)
	handler := server.RequestLogger(srvCtx.Routes())

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	log.Info().
		Str("addr", listenAddr).
		Int("items_loaded", len(srvCtx.Categories)).
		Int("locations_loaded", len(srvCtx.Locations)).
		Str("uploads", cfg.Uploads).
		Msg("Catalog server started")

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
