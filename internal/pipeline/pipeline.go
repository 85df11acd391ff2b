// Package pipeline runs the single batch pass from a quiescent capture
// snapshot to a written dataset tree.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/scenesync/internal/capture"
	"github.com/banshee-data/scenesync/internal/config"
	"github.com/banshee-data/scenesync/internal/fsutil"
	"github.com/banshee-data/scenesync/internal/monitoring"
	"github.com/banshee-data/scenesync/internal/nuscenes"
	"github.com/banshee-data/scenesync/internal/pcd"
	"github.com/banshee-data/scenesync/internal/sensor"
	"github.com/banshee-data/scenesync/internal/timeline"
	"github.com/banshee-data/scenesync/internal/timeutil"
	"github.com/banshee-data/scenesync/internal/transform"
)

var logf = monitoring.Component("pipeline")

// Options configures a run. Zero-valued FS, Tokens and Clock fall back to
// the OS filesystem, UUID tokens and the wall clock.
type Options struct {
	Config     *config.Config
	OutputRoot string

	FS     fsutil.FileSystem
	Tokens nuscenes.TokenSource
	Clock  timeutil.Clock

	// Workers bounds how many channels are materialised at once.
	// Zero means runtime.NumCPU().
	Workers int
}

// Result summarises a completed run.
type Result struct {
	Keyframes    []timeline.Keyframe
	Selections   map[string]timeline.Selection
	Graph        *nuscenes.Graph
	FilesWritten int
	Elapsed      time.Duration
}

// Run executes the batch pass. Nothing is written when the capture is empty
// or a sampled channel lacks calibration. The JSON tables are written last,
// only after every payload has been materialised.
func Run(ctx context.Context, opts Options, snap capture.Snapshot) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("pipeline: no config")
	}
	cfg := opts.Config
	fsys := opts.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = nuscenes.UUIDTokens{}
	}
	start := clock.Now()

	samples := snap.All()
	keyframes, err := timeline.BuildKeyframes(samples, cfg.DurationSec, cfg.SampleIntervalUS)
	if err != nil {
		return nil, err
	}
	for _, ch := range snap.Channels() {
		if len(samples[ch]) == 0 {
			continue
		}
		if _, err := cfg.Calibration(ch); err != nil {
			return nil, err
		}
	}
	cals, err := cfg.Calibrations()
	if err != nil {
		return nil, err
	}
	logf("%d samples on %d channels, %d keyframes from %d us", snap.Len(), len(snap.Channels()), len(keyframes), keyframes[0].TimestampUS)

	selections := timeline.SelectAll(samples, keyframes)
	builder := &nuscenes.Builder{Tokens: tokens, Clock: clock}
	graph, err := builder.Build(nuscenes.Input{
		Keyframes:        keyframes,
		Calibrations:     cals,
		Samples:          samples,
		Selections:       selections,
		ImageWidth:       cfg.ImageWidth,
		ImageHeight:      cfg.ImageHeight,
		DurationSec:      cfg.DurationSec,
		Location:         cfg.Location,
		SceneName:        cfg.SceneName,
		SceneDescription: cfg.SceneDescription,
	})
	if err != nil {
		return nil, err
	}

	w := &nuscenes.Writer{FS: fsys, Root: opts.OutputRoot, Version: cfg.Version}
	if err := w.EnsureLayout(cfg.Channels()); err != nil {
		return nil, err
	}

	written, err := materialise(ctx, w, snap, graph, cals, opts.Workers)
	if err != nil {
		return nil, err
	}
	if err := w.WriteTables(graph); err != nil {
		return nil, err
	}

	res := &Result{
		Keyframes:    keyframes,
		Selections:   selections,
		Graph:        graph,
		FilesWritten: written,
		Elapsed:      clock.Since(start),
	}
	logf("wrote %d samples, %d sample_data (%d key), %d payload files to %s in %v",
		len(graph.Samples), len(graph.SampleData), graph.KeyCount(), written, opts.OutputRoot, res.Elapsed)
	return res, nil
}

// materialise writes every channel's payloads, one goroutine per channel.
// Within a channel records are handled in chain order.
func materialise(ctx context.Context, w *nuscenes.Writer, snap capture.Snapshot, g *nuscenes.Graph, cals []sensor.Calibration, workers int) (int, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	counts := make([]int, len(cals))
	for i, cal := range cals {
		records := g.ChannelData(cal.Channel)
		if len(records) == 0 {
			continue
		}
		eg.Go(func() error {
			n, err := materialiseChannel(ctx, w, snap, cal, records)
			counts[i] = n
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

func materialiseChannel(ctx context.Context, w *nuscenes.Writer, snap capture.Snapshot, cal sensor.Calibration, records []nuscenes.SampleData) (int, error) {
	done := make(map[string]bool, len(records))
	for _, sd := range records {
		if err := ctx.Err(); err != nil {
			return len(done), err
		}
		// Repeated key claims share one file.
		if done[sd.Filename] {
			continue
		}
		src := snap.Resolve(sd.Source.PayloadPath)
		var err error
		switch cal.Modality {
		case sensor.ModalityCamera:
			err = w.CopyFile(src, sd.Filename)
		case sensor.ModalityRadar, sensor.ModalityLidar:
			err = encodePointCloud(w, cal, src, sd.Filename)
		default:
			err = fmt.Errorf("pipeline: %s has unknown modality %q", cal.Channel, cal.Modality)
		}
		if err != nil {
			return len(done), err
		}
		done[sd.Filename] = true
	}
	return len(done), nil
}

// encodePointCloud converts a raw float32x4 capture into dataset axes and
// writes it in the channel's PCD layout.
func encodePointCloud(w *nuscenes.Writer, cal sensor.Calibration, src, rel string) error {
	data, err := w.FS.ReadFile(src)
	if err != nil {
		return fmt.Errorf("pipeline: read %s payload: %w", cal.Channel, err)
	}
	recs, err := pcd.ParseRaw4(data)
	if err != nil {
		var fe *pcd.FormatError
		if errors.As(err, &fe) {
			fe.Channel, fe.Path = cal.Channel, src
		}
		return err
	}
	var out []byte
	if cal.Modality == sensor.ModalityRadar {
		out = pcd.MarshalRadar(transform.RadarToDataset(recs))
	} else {
		out = pcd.MarshalLidar(transform.LidarToDataset(recs))
	}
	return w.WriteFile(rel, out)
}
