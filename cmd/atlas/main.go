package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-atlas/internal/config"
	"github.com/joeblew999/plat-atlas/internal/server"
)

// Options defines all CLI flags and env vars for the atlas server.
// Flags: --host, --port, --config, --layers-dir, --meta-file
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_CONFIG, ...
type Options struct {
	Host      string `doc:"Host to bind to (overrides config)"`
	Port      int    `doc:"Port to listen on (overrides config)" short:"p"`
	Config    string `doc:"Path to atlas.yaml config file"`
	LayersDir string `doc:"Directory scanned for layer files (overrides config)"`
	MetaFile  string `doc:"Path to layers.yaml metadata (overrides config)"`
}

func initLog(level string) {
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func newServer(opts *Options) (*server.Server, server.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, server.Config{}, err
	}
	initLog(cfg.Log.Level)

	srvCfg := server.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		LayersDir:  cfg.Layers.Dir,
		MetaFile:   cfg.Layers.Meta,
		FeatureCap: cfg.Query.FeatureCap,
	}
	srvCfg.Cache.TTL = cfg.Cache.TTL
	srvCfg.Cache.MaxItems = cfg.Cache.MaxItems
	srvCfg.Cache.MaxBytes = cfg.Cache.MaxBytes

	if opts.Host != "" {
		srvCfg.Host = opts.Host
	}
	if opts.Port != 0 {
		srvCfg.Port = fmt.Sprintf("%d", opts.Port)
	}
	if opts.LayersDir != "" {
		srvCfg.LayersDir = opts.LayersDir
	}
	if opts.MetaFile != "" {
		srvCfg.MetaFile = opts.MetaFile
	}

	srv, err := server.New(srvCfg)
	return srv, srvCfg, err
}

func main() {
	// .env values become env vars before humacli and viper read them.
	godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		srv, cfg, err := newServer(opts)
		if err != nil {
			log.Fatalf("startup: %v", err)
		}

		hooks.OnStart(func() {
			addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
			displayHost := cfg.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%s", displayHost, cfg.Port)

			fmt.Println()
			fmt.Printf("plat-atlas API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Layers:  %s\n", cfg.LayersDir)
			fmt.Println()
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		})
	})

	cli.Root().Use = "atlas"
	cli.Root().Short = "Spatial feature serving with a tile-keyed payload cache"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, _, err := newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// layers subcommand: list the catalog without starting the server
	layersCmd := &cobra.Command{
		Use:   "layers",
		Short: "List the layers discovered in the data directory",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, _, err := newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			for _, d := range srv.Layers() {
				fmt.Printf("%-24s %-16s minZoom=%-2d cap=%-6d %s\n",
					d.Name, d.Category, d.MinZoom, d.FeatureCap, d.Backing.Path)
			}
		}),
	}
	cli.Root().AddCommand(layersCmd)

	cli.Run()
}
