// Command sonance-player wires config, settings, caches, the downloader,
// the backend manager, the loudness analyzer, the visualizer, the queue,
// and the playback controller into a single process, driven by a small
// line-oriented stdin command loop in place of the dropped GUI.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/akarpov/sonance/internal/backend"
	"github.com/akarpov/sonance/internal/cache"
	"github.com/akarpov/sonance/internal/config"
	"github.com/akarpov/sonance/internal/download"
	"github.com/akarpov/sonance/internal/events"
	"github.com/akarpov/sonance/internal/logging"
	"github.com/akarpov/sonance/internal/loudness"
	"github.com/akarpov/sonance/internal/player"
	"github.com/akarpov/sonance/internal/queue"
	"github.com/akarpov/sonance/internal/settings"
	"github.com/akarpov/sonance/internal/visualizer"
	"github.com/akarpov/sonance/pkg/types"
)

var (
	configPath = flag.String("config", "", "path to configuration file")
	debug      = flag.Bool("debug", false, "enable debug logging for all components")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Debug = true
	}

	log := logging.New("sonance-player", cfg.Debug, slog.Default())

	app, err := buildApp(cfg, log)
	if err != nil {
		log.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	log.Info("sonance-player ready", "backend", cfg.Playback.BackendType)
	app.runCommandLoop()
}

// app holds every subsystem the command loop drives.
type app struct {
	cfg        *config.Config
	log        *logging.Logger
	settings   *settings.Store
	l1         *cache.Memory
	l2         *cache.Disk
	backends   *backend.Manager
	downloads  *download.Manager
	analyzer   *loudness.Analyzer
	visProc    *visualizer.Processor
	ring       *visualizer.RingBuffer
	bus        *events.Bus
	queue      *queue.Queue
	controller *player.Controller
}

func buildApp(cfg *config.Config, log *logging.Logger) (*app, error) {
	store, err := settings.Open(cfg.Storage.DatabasePath, cfg.Storage.EnableWAL,
		logging.New("settings", cfg.Debug, nil))
	if err != nil {
		return nil, fmt.Errorf("open settings store: %w", err)
	}

	l2, err := cache.NewDisk(filepath.Join(cfg.Storage.CacheDir, "audio"), uint64(cfg.Storage.MaxCacheSize),
		logging.New("cache-l2", cfg.Debug, nil))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open L2 cache: %w", err)
	}
	l1 := cache.NewMemory(400*1024*1024, l2, logging.New("cache-l1", cfg.Debug, nil))

	backends := backend.NewManager(logging.New("backend", cfg.Debug, nil))

	downloads := download.NewManager(download.Config{
		MaxConcurrent:        cfg.Download.MaxConcurrent,
		RatePerSecond:        float64(cfg.Download.RatePerSecond),
		InitialBufferSeconds: cfg.Playback.StreamBufferSeconds,
	}, logging.New("download", cfg.Debug, nil))

	analyzer := loudness.Spawn(store, logging.New("loudness", cfg.Debug, nil))

	visProc := visualizer.NewProcessor(playbackSampleRateHint(cfg))
	ring := visualizer.NewRingBuffer(visualizer.FFTSize * 4)

	bus := events.NewBus()
	q := queue.New()

	backendType := backend.Type(cfg.Playback.BackendType)
	playerCfg := player.Config{
		Backend:              backendType,
		DeviceID:             cfg.Playback.OutputDevice,
		ExclusiveMode:        cfg.Playback.ExclusiveMode,
		PWForceBitperfect:    cfg.Playback.PWForceBitperfect,
		NormalizationOn:      cfg.Playback.NormalizationEnabled,
		TargetLUFS:           cfg.Playback.NormalizationTargetLUFS,
		LimitQualityToDevice: cfg.Playback.LimitQualityToDevice,
		StreamFirstTrack:     cfg.Playback.StreamFirstTrack,
		StreamingOnly:        cfg.Playback.StreamingOnly,
		GaplessEnabled:       cfg.Playback.GaplessEnabled,
		GaplessWindow:        2 * time.Second,
	}

	resolveURL := func(ctx context.Context, trackID uint64) (string, error) {
		return "", fmt.Errorf("no catalog client configured to resolve track %d", trackID)
	}

	controller := player.New(playerCfg, store, l1, l2, backends, downloads, analyzer, visProc, ring, resolveURL,
		logging.New("player", cfg.Debug, nil))

	controller.OnFinished(func(trackID uint64) {
		bus.Publish(events.PlaybackState, controller.State().Snapshot())

		next, ok := q.Next()
		if !ok {
			return
		}
		if err := controller.PlayTrack(context.Background(), next.Track); err != nil {
			log.Error("failed to auto-advance to next track", "error", err, "track_id", next.Track.ID)
		}
		bus.Publish(events.PlaybackState, controller.State().Snapshot())
	})

	return &app{
		cfg: cfg, log: log, settings: store, l1: l1, l2: l2, backends: backends,
		downloads: downloads, analyzer: analyzer, visProc: visProc, ring: ring,
		bus: bus, queue: q, controller: controller,
	}, nil
}

func playbackSampleRateHint(cfg *config.Config) int {
	if cfg.Playback.PreferredSampleRate > 0 {
		return cfg.Playback.PreferredSampleRate
	}
	return 44100
}

func (a *app) Close() error {
	a.controller.Close()
	a.analyzer.Shutdown()
	return a.settings.Close()
}

func (a *app) runCommandLoop() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if err := a.dispatch(fields[0], fields[1:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

func (a *app) dispatch(cmd string, args []string) error {
	switch cmd {
	case "play":
		entry, ok := a.queue.CurrentTrack()
		if !ok {
			return fmt.Errorf("queue is empty")
		}
		if err := a.controller.PlayTrack(context.Background(), entry.Track); err != nil {
			return err
		}
		a.bus.Publish(events.PlaybackState, a.controller.State().Snapshot())
		return nil
	case "pause":
		a.controller.Pause()
		a.bus.Publish(events.PlaybackState, a.controller.State().Snapshot())
		return nil
	case "resume":
		a.controller.Resume()
		a.bus.Publish(events.PlaybackState, a.controller.State().Snapshot())
		return nil
	case "stop":
		a.controller.Stop()
		a.bus.Publish(events.PlaybackState, a.controller.State().Snapshot())
		return nil
	case "next":
		entry, ok := a.queue.Next()
		if !ok {
			return fmt.Errorf("no next track")
		}
		return a.controller.PlayTrack(context.Background(), entry.Track)
	case "previous":
		entry, ok := a.queue.Previous()
		if !ok {
			return fmt.Errorf("no previous track")
		}
		return a.controller.PlayTrack(context.Background(), entry.Track)
	case "seek":
		if len(args) != 1 {
			return fmt.Errorf("usage: seek <seconds>")
		}
		secs, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid seconds: %w", err)
		}
		return a.controller.Seek(time.Duration(secs * float64(time.Second)))
	case "volume":
		if len(args) != 1 {
			return fmt.Errorf("usage: volume <0.0-1.0>")
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid volume: %w", err)
		}
		a.controller.SetVolume(v)
		return nil
	case "status":
		snap := a.controller.State().Snapshot()
		fmt.Printf("playing=%v track=%d position=%.1f duration=%.1f volume=%.2f\n",
			snap.IsPlaying, snap.CurrentTrackID, snap.PositionSecs, snap.DurationSecs, snap.Volume)
		return nil
	case "enqueue":
		if len(args) != 1 {
			return fmt.Errorf("usage: enqueue <track_id>")
		}
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid track id: %w", err)
		}
		a.queue.AddTrack(types.QueueEntry{Track: types.Track{ID: id}, Streamable: true})
		return nil
	case "quit", "exit":
		os.Exit(0)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
