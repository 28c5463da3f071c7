package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/agro-geo/internal/api/viewer"
	"github.com/joeblew999/agro-geo/internal/db"
	"github.com/joeblew999/agro-geo/internal/mapview"
	"github.com/joeblew999/agro-geo/internal/server"
	"github.com/joeblew999/agro-geo/internal/service"
	"github.com/joeblew999/agro-geo/internal/templates"
	"github.com/joeblew999/agro-geo/pkg/geoclient"
	"github.com/joeblew999/agro-geo/pkg/logger"
)

// Options defines all CLI flags and env vars for the geo server.
// Flags: --host, --port, --data-dir, --log-level, --backend-url, --center-lat, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_LOG_LEVEL, ...
type Options struct {
	Host          string  `doc:"Host to bind to" default:"0.0.0.0"`
	Port          int     `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir       string  `doc:"Directory with sources/ and styles.yaml" default:".data"`
	LogLevel      string  `doc:"Log level (debug, info, warn, error)" default:"info"`
	BackendURL    string  `doc:"Where the map view fetches its layers; empty means this server"`
	CenterLat     float64 `doc:"Initial map latitude; 0 keeps the default"`
	CenterLng     float64 `doc:"Initial map longitude; 0 keeps the default"`
	Zoom          int     `doc:"Initial map zoom; 0 keeps the default"`
	DBMemoryLimit string  `doc:"DuckDB memory limit, e.g. 256MB"`
}

// center returns the configured map center, or nil for the default.
func (o *Options) center() *mapview.Center {
	if o.CenterLat == 0 && o.CenterLng == 0 {
		return nil
	}
	c := mapview.Center{Lat: o.CenterLat, Lng: o.CenterLng, Zoom: o.Zoom}
	if c.Zoom <= 0 {
		c.Zoom = mapview.DefaultCenter.Zoom
	}
	return &c
}

func newLogger(opts *Options) *slog.Logger {
	log := logger.New(opts.LogLevel)
	slog.SetDefault(log)
	return log
}

func newServer(opts *Options) (*server.Server, error) {
	return server.New(server.Config{
		Host:       opts.Host,
		Port:       fmt.Sprintf("%d", opts.Port),
		DataDir:    opts.DataDir,
		BackendURL: opts.BackendURL,
		Center:     opts.center(),
		DB:         db.Config{MemoryLimit: opts.DBMemoryLimit},
		Logger:     newLogger(opts),
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var srv *server.Server
		var httpSrv *http.Server

		hooks.OnStart(func() {
			var err error
			srv, err = newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
				os.Exit(1)
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("agro-geo server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Map:     %s/geo/map\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			httpSrv = &http.Server{Addr: addr, Handler: srv}
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("server error", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			if httpSrv == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpSrv.Shutdown(ctx)
			srv.Close()
		})
	})

	cli.Root().Use = "geo"
	cli.Root().Short = "Map of farm parcels and field activities"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error building server: %v\n", err)
				os.Exit(1)
			}
			defer srv.Close()
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

	// render subcommand: static HTML snapshot of the map
	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Fetch both layers from a backend and write a static map page",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			out, _ := cmd.Flags().GetString("output")
			focus, _ := cmd.Flags().GetString("focus")
			if err := render(cmd.Context(), opts, out, focus); err != nil {
				fmt.Fprintf(os.Stderr, "Error rendering map: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Map written to %s\n", out)
		}),
	}
	renderCmd.Flags().StringP("output", "o", "map.html", "Output HTML file")
	renderCmd.Flags().String("focus", "", "Feature to zoom to: parcela:<id> or actividad:<id>")
	cli.Root().AddCommand(renderCmd)

	cli.Run()
}

// render loads the map from the backend and writes it as a self-contained page.
// Layer failures are logged and leave the layer empty in the output.
func render(ctx context.Context, opts *Options, out, focusArg string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := newLogger(opts)
	ctx = logger.ToContext(ctx, log)

	focus, err := viewer.ParseFocus(focusArg)
	if err != nil {
		return err
	}

	backend := opts.BackendURL
	if backend == "" {
		backend = fmt.Sprintf("http://localhost:%d", opts.Port)
	}
	client := geoclient.New(backend, geoclient.WithTimeout(viewer.DefaultTimeout))

	styles, err := client.Styles(ctx)
	if err != nil {
		log.Warn("fetching styles, using local table", "backend", backend, "error", err)
		local, lerr := service.NewStyleService(opts.DataDir)
		if lerr != nil {
			log.Warn("style table not loaded", "path", local.Path(), "error", lerr)
		}
		styles = local.Table()
	}

	m := mapview.New(mapview.Config{Center: opts.center(), Styles: styles}, client)
	if err := m.Load(ctx, nil); err != nil {
		log.Warn("map rendered with missing layers", "error", err)
	}
	if !focus.IsZero() {
		if err := m.Focus(focus.Layer, focus.ID); err != nil {
			return fmt.Errorf("focus %s: %w", focus, err)
		}
	}

	r, err := templates.New()
	if err != nil {
		return err
	}
	return writePage(out, func(w io.Writer) error {
		return viewer.RenderPage(w, r, m, viewer.PageOptions{Focus: focus, Static: true})
	})
}

// writePage creates path and writes the page into it. A failed close is
// reported like a failed write.
func writePage(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()
	return write(f)
}
