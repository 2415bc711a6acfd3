package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/banshee-data/posture.report/internal/api"
	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/monitoring"
	"github.com/banshee-data/posture.report/internal/posture/classify"
	"github.com/banshee-data/posture.report/internal/posture/monitor"
	"github.com/banshee-data/posture.report/internal/posture/source"
	"github.com/banshee-data/posture.report/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address (empty disables the server)")
	dbPath      = flag.String("db", "posture.db", "SQLite event log (empty disables recording)")
	configPath  = flag.String("config", "", "Posture tuning config (.json); built-in defaults when empty")
	framesPath  = flag.String("frames", "", "Replay keypoint frames from a JSON-lines file instead of waiting for POST /api/frames")
	loop        = flag.Bool("loop", false, "Restart the replay file when it ends")
	calibrate   = flag.Bool("calibrate", false, "Calibrate before classifying")
	debug       = flag.Bool("debug", false, "Log per-frame diagnostics")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func loadConfig() (*config.PostureConfig, error) {
	if *configPath == "" {
		return config.DefaultPostureConfig(), nil
	}
	return config.LoadPostureConfig(*configPath)
}

// envPrefix names environment overrides: -frames is read from POSTURE_FRAMES.
const envPrefix = "POSTURE_"

// loadEnvFile reads variables from path. A missing file is not an error.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyEnv uses environment variables (and a .env file, if present) as flag
// defaults. Flags given on the command line still win.
func applyEnv() {
	if err := loadEnvFile(".env"); err != nil {
		log.Printf("ignoring environment file: %v", err)
	}
	flag.VisitAll(func(f *flag.Flag) {
		key := envPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if v, ok := os.LookupEnv(key); ok {
			if err := f.Value.Set(v); err != nil {
				log.Fatalf("invalid %s: %v", key, err)
			}
		}
	})
}

func main() {
	applyEnv()
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listen == "" && *framesPath == "" {
		log.Fatal("nothing to do: set -listen, -frames or both")
	}
	monitoring.SetDebug(*debug)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	mcfg := monitor.ConfigFrom(cfg)

	// Frames come from the replay file when given, otherwise from the API.
	var latest *source.LatestSource
	if *framesPath != "" {
		replay, err := source.OpenReplay(*framesPath, *loop)
		if err != nil {
			log.Fatalf("failed to open frames: %v", err)
		}
		log.Printf("replaying %d frames from %s", replay.Len(), *framesPath)
		mcfg.Source = replay
	} else {
		latest = source.NewLatestSource()
		mcfg.Source = latest
	}

	var database *db.DB
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer database.Close()
		mcfg.Recorder = database
	}

	m := monitor.New(mcfg)
	log.Printf("posture monitor %s, session %s", version.String(), m.SessionID())

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveHTTP(ctx, m, latest, database)
		}()
	}

	if *framesPath != "" {
		if *calibrate {
			runCalibration(ctx, m)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.Run(ctx, cfg.GetFrameInterval(), statusPrinter(m))
			switch {
			case errors.Is(err, source.ErrExhausted):
				log.Print("replay finished")
			case err != nil:
				log.Printf("frame loop stopped: %v", err)
			}
			// Without a server there is nothing left to serve.
			if *listen == "" {
				stop()
			}
		}()
	} else if *calibrate {
		// Calibration waits on pushed frames; it starts now and finishes
		// once enough have arrived.
		if err := m.StartCalibration(ctx); err != nil {
			log.Printf("failed to start calibration: %v", err)
		}
	}

	wg.Wait()
	m.Wait()
	log.Print("shutdown complete")
}

func runCalibration(ctx context.Context, m *monitor.Monitor) {
	out, err := m.Calibrate(ctx)
	if err != nil {
		log.Printf("calibration aborted: %v", err)
		return
	}
	if out.Succeeded() {
		log.Printf("calibrated in %d attempts: %+v", out.State.Attempts, out.Reference.Features)
		return
	}
	log.Printf("%s", m.Status().Message)
}

// statusPrinter logs the status line whenever the verdict changes.
func statusPrinter(m *monitor.Monitor) func(classify.Result) {
	var last classify.Label
	return func(r classify.Result) {
		if r.Label == last {
			return
		}
		last = r.Label
		monitoring.Logf("%s (confidence %.2f)", m.Status().Message, r.Confidence)
	}
}

func serveHTTP(ctx context.Context, m *monitor.Monitor, latest *source.LatestSource, database *db.DB) {
	mux := http.NewServeMux()

	// mount the admin debugging routes
	if database != nil {
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach admin routes: %v", err)
		}
	}

	apiMux := api.NewServer(ctx, m, latest, database).ServeMux()
	mux.Handle("/api/", api.LoggingMiddleware(apiMux))

	server := &http.Server{
		Addr:    *listen,
		Handler: mux,
	}

	// Start server in a goroutine so it doesn't block
	go func() {
		log.Printf("listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for context cancellation to shut down server
	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}
