// Command scenesync converts a finished simulator capture into a nuScenes
// style dataset tree.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/banshee-data/scenesync/internal/capture"
	"github.com/banshee-data/scenesync/internal/config"
	"github.com/banshee-data/scenesync/internal/fsutil"
	"github.com/banshee-data/scenesync/internal/pipeline"
	"github.com/banshee-data/scenesync/internal/report"
	"github.com/banshee-data/scenesync/internal/sensor"
	"github.com/banshee-data/scenesync/internal/transform"
	"github.com/banshee-data/scenesync/internal/version"
)

var (
	envFile     = flag.String("env", ".env", "Optional env file providing SCENESYNC_* defaults")
	configPath  = flag.String("config", "", "Rig and export config (.yaml, .yml or .json); built-in defaults when empty")
	capturePath = flag.String("capture", "", "Capture manifest (.json) or SQLite capture index (.db, .sqlite)")
	captureRoot = flag.String("capture-root", "", "Directory relative payload paths of a SQLite capture resolve against (default: the index's directory)")
	outputRoot  = flag.String("output", "", "Dataset output root (default: dataset)")
	duration    = flag.Float64("duration", -1, "Override the capture duration in seconds")
	workers     = flag.Int("workers", 0, "Channels materialised in parallel (0 = NumCPU)")
	reportDir   = flag.String("report-dir", "", "Write keyframe selection diagnostics to this directory")
	printRig    = flag.Bool("print-rig", false, "Print simulator placements for the configured rig and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// Environment keys read when the matching flag is unset.
const (
	envConfig  = "SCENESYNC_CONFIG"
	envCapture = "SCENESYNC_CAPTURE"
	envOutput  = "SCENESYNC_OUTPUT"
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("scenesync"))
		return
	}

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("ignoring env file %s: %v", *envFile, err)
	}

	cfg, err := loadConfig(envOr(*configPath, envConfig, ""))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := applyDuration(cfg, *duration); err != nil {
		log.Fatalf("invalid -duration: %v", err)
	}

	if *printRig {
		if err := writeRig(os.Stdout, cfg); err != nil {
			log.Fatalf("failed to print rig: %v", err)
		}
		return
	}

	src := envOr(*capturePath, envCapture, "")
	if src == "" {
		log.Fatal("a capture is required (-capture or " + envCapture + ")")
	}
	out := envOr(*outputRoot, envOutput, "dataset")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snap, store, err := openCapture(ctx, fsutil.OSFileSystem{}, src, *captureRoot)
	if err != nil {
		log.Fatalf("failed to open capture: %v", err)
	}
	if store != nil {
		defer store.Close()
	}
	log.Printf("loaded %d samples on %d channels from %s", snap.Len(), len(snap.Channels()), src)

	res, err := pipeline.Run(ctx, pipeline.Options{Config: cfg, OutputRoot: out, Workers: *workers}, snap)
	if err != nil {
		log.Fatalf("export failed: %v", err)
	}

	if store != nil {
		run := capture.ExportRun{
			RunID:      uuid.New().String(),
			Version:    cfg.Version,
			Keyframes:  len(res.Keyframes),
			SampleData: len(res.Graph.SampleData),
			OutputRoot: out,
			FinishedAt: time.Now(),
		}
		if err := store.RecordExport(ctx, run); err != nil {
			log.Printf("failed to record export run: %v", err)
		}
	}

	if *reportDir != "" {
		summary := report.Summarise(res.Keyframes, snap.All(), res.Selections)
		paths, err := report.Write(fsutil.OSFileSystem{}, *reportDir, summary)
		if err != nil {
			log.Fatalf("failed to write report: %v", err)
		}
		log.Printf("wrote selection report: %s", strings.Join(paths, ", "))
	}
	log.Printf("export complete: %d keyframes, %d sample_data in %v", len(res.Keyframes), len(res.Graph.SampleData), res.Elapsed)
}

// envOr returns val, or the environment value of key, or def.
func envOr(val, key, def string) string {
	if val != "" {
		return val
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// applyDuration overrides the configured duration when d is non-negative
// and revalidates the result.
func applyDuration(cfg *config.Config, d float64) error {
	if d < 0 {
		return nil
	}
	cfg.DurationSec = d
	return cfg.Validate()
}

// openCapture loads a manifest, or a SQLite capture index by extension. The
// store is returned open so the run can be recorded against it.
func openCapture(ctx context.Context, fsys fsutil.FileSystem, path, root string) (capture.Snapshot, *capture.Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		// OpenStore would otherwise create an empty index.
		if !fsys.Exists(path) {
			return capture.Snapshot{}, nil, fmt.Errorf("capture index %s: %w", path, fs.ErrNotExist)
		}
		store, err := capture.OpenStore(path)
		if err != nil {
			return capture.Snapshot{}, nil, err
		}
		if root == "" {
			root = filepath.Dir(path)
		}
		snap, err := store.Snapshot(ctx, root)
		if err != nil {
			store.Close()
			return capture.Snapshot{}, nil, err
		}
		return snap, store, nil
	default:
		snap, err := capture.LoadManifest(fsys, path)
		return snap, nil, err
	}
}

// writeRig prints the simulator placement of every configured channel, plus
// the horizontal field of view for cameras.
func writeRig(w io.Writer, cfg *config.Config) error {
	cals, err := cfg.Calibrations()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "channel\tx\ty\tz\troll\tpitch\tyaw\tfov\t")
	for _, cal := range cals {
		p, err := transform.PlacementFor(cal)
		if err != nil {
			return err
		}
		fov := "-"
		if cal.Modality == sensor.ModalityCamera {
			fov = fmt.Sprintf("%.3f", transform.HorizontalFOV(cal, cfg.ImageWidth, cfg.CameraDefaultFOV))
		}
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%s\t\n",
			cal.Channel, p.X, p.Y, p.Z, p.Roll, p.Pitch, p.Yaw, fov)
	}
	return tw.Flush()
}
