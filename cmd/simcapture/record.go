package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"simcapture-go/internal/catalog"
	"simcapture-go/internal/config"
	"simcapture-go/internal/correlate"
	"simcapture-go/internal/entity"
	"simcapture-go/internal/events"
	"simcapture-go/internal/output"
	"simcapture-go/internal/projection"
	"simcapture-go/internal/recording"
	"simcapture-go/internal/server"
	"simcapture-go/internal/simulator"
	"simcapture-go/internal/telemetry"
	"simcapture-go/internal/transport"
	"simcapture-go/internal/types"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Run the capture service and serve the controller channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if cfg.Transport != "ws" && cfg.Transport != "zmq" {
			return fmt.Errorf("unknown transport %q (want ws or zmq)", cfg.Transport)
		}
		cfg.CatalogURL = resolveCatalogURL(cfg.CatalogURL)
		return runRecord(cmd.Context(), cfg)
	},
}

func init() {
	f := recordCmd.Flags()
	f.IntVar(&cfg.Port, "port", cfg.Port, "HTTP port for /ws, /status and recording control")
	f.StringVar(&cfg.Transport, "transport", cfg.Transport, "Controller transport: ws or zmq")
	f.StringVar(&cfg.ZMQInbound, "zmq-in", cfg.ZMQInbound, "ZMQ endpoint to PULL controller events from")
	f.StringVar(&cfg.ZMQOutbound, "zmq-out", cfg.ZMQOutbound, "ZMQ endpoint to PUSH telemetry to")
	f.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "Dataset directory (output_log.csv and IMG/)")
	f.BoolVar(&cfg.AutoRecord, "record", cfg.AutoRecord, "Start recording immediately")
	f.BoolVar(&cfg.JournalEnabled, "journal", cfg.JournalEnabled, "Write controller traffic to a CBOR journal")
	f.StringVar(&cfg.JournalDir, "journal-dir", cfg.JournalDir, "Directory for event journals")
	f.StringVar(&cfg.CatalogURL, "catalog", cfg.CatalogURL, "PostgreSQL DSN for the sample catalog (default: from POSTGRES_* env, disabled if unset)")
	f.IntVar(&cfg.PixelWidth, "width", cfg.PixelWidth, "Camera width in pixels")
	f.IntVar(&cfg.PixelHeight, "height", cfg.PixelHeight, "Camera height in pixels")
	f.Float64Var(&cfg.FieldOfView, "fov", cfg.FieldOfView, "Vertical field of view in degrees")
	f.DurationVar(&cfg.TickRate, "tick", cfg.TickRate, "Main loop tick interval")
	f.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "Inbound event queue capacity")
	f.Float64Var(&cfg.SpawnRate, "spawn-rate", cfg.SpawnRate, "Mean travel distance between target spawns")
	f.IntVar(&cfg.SpawnCooldown, "spawn-cooldown", cfg.SpawnCooldown, "Ticks to skip spawn opportunities after a spawn")
	f.DurationVar(&cfg.TargetLifespan, "target-lifespan", cfg.TargetLifespan, "How long a spawned target stays alive")
	f.Float64Var(&cfg.Speed, "speed", cfg.Speed, "Camera rig speed in units per second")
	f.BoolVar(&cfg.ResolveBeforeCapture, "resolve-before-capture", cfg.ResolveBeforeCapture, "Publish detect results before capturing, pairing them with the previous frame")
	f.BoolVar(&cfg.SuppressImageOnManual, "suppress-manual-image", cfg.SuppressImageOnManual, "Send empty telemetry while manual drive is active")
	f.BoolVar(&cfg.ManualDrive, "manual", cfg.ManualDrive, "Start with manual drive active")
	f.IntVar(&cfg.IngestLogEvery, "ingest-log-every", cfg.IngestLogEvery, "Log every Nth malformed or failed message")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(ctx context.Context, cfg config.AppConfig) error {
	hub := events.NewHub()
	world := entity.NewWorld()
	camera := projection.NewPerspectiveCamera(cfg.PixelWidth, cfg.PixelHeight, cfg.FieldOfView)
	scene := simulator.NewScene(simulator.SceneConfig{
		Speed:         cfg.Speed,
		SpawnRate:     cfg.SpawnRate,
		SpawnCooldown: cfg.SpawnCooldown,
		Lifespan:      cfg.TargetLifespan,
	}, world, camera, hub, rand.New(rand.NewSource(time.Now().UnixNano())))
	scene.SetManual(cfg.ManualDrive)
	renderer := simulator.NewRenderer(scene, 0)

	correlator := correlate.New()
	hub.SubscribeTelemetry(func(ev events.TelemetryProduced) { correlator.OnTelemetryProduced(ev.Image) })
	hub.SubscribeDetection(func(ev events.DetectionResponse) { correlator.OnDetectionResponse(ev.WasDetected) })
	hub.SubscribeTarget(func(ev events.TargetChanged) { correlator.OnTargetChanged(ev.Target) })

	recOpts := []recording.Option{
		recording.WithFailureHook(func(err error) {
			log.Printf("recording stopped after storage failure: %v", err)
		}),
	}
	if cfg.CatalogURL != "" {
		store, err := catalog.New(ctx, cfg.CatalogURL)
		if err != nil {
			return fmt.Errorf("failed to connect to catalog: %w", err)
		}
		defer store.Close(context.Background())
		recOpts = append(recOpts, recording.WithCatalog(store))
		log.Printf("catalog enabled")
	}
	recorder := recording.New(correlator, projection.NewProjector(camera, world), recOpts...)

	var journal *output.JournalWriter
	if cfg.JournalEnabled {
		var err error
		journal, err = output.NewJournalWriter(cfg.JournalDir, "events")
		if err != nil {
			return fmt.Errorf("failed to start journal: %w", err)
		}
		defer journal.Close()
		log.Printf("journal writing to %s", journal.Path())
	}

	loop := telemetry.NewLoop(cfg.QueueSize, cfg.TickRate)
	loop.OnTick(scene.Advance)

	var channel *telemetry.Channel
	enqueue := func(ev types.Event) {
		if err := loop.Enqueue(ctx, func() { channel.HandleEvent(ev) }); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("dropping %q event: %v", ev.Name, err)
		}
	}

	var (
		out       telemetry.Outbound
		wsHandler http.Handler
		ws        *transport.WebSocket
	)
	switch cfg.Transport {
	case "zmq":
		z := transport.NewZMQ(cfg.ZMQInbound, cfg.ZMQOutbound, cfg.IngestLogEvery)
		if err := z.Start(ctx, enqueue); err != nil {
			return fmt.Errorf("failed to start zmq transport: %w", err)
		}
		out = z
		log.Printf("zmq transport: in=%s out=%s", cfg.ZMQInbound, cfg.ZMQOutbound)
	default:
		ws = transport.NewWebSocket(enqueue)
		defer ws.Close()
		out = ws
		wsHandler = ws
	}

	channelOpts := telemetry.Options{
		ResolveBeforeCapture:  cfg.ResolveBeforeCapture,
		SuppressImageOnManual: cfg.SuppressImageOnManual,
		Manual:                scene,
		Session:               func() string { return recorder.Status().Session },
		LogEvery:              cfg.IngestLogEvery,
	}
	if journal != nil {
		channelOpts.Journal = journal
	}
	channel = telemetry.NewChannel(hub, renderer, out, channelOpts)

	if cfg.AutoRecord {
		if err := recorder.Start(cfg.OutputDir); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
	}
	defer func() {
		if err := recorder.Stop(); err != nil {
			log.Printf("stop recording: %v", err)
		}
	}()

	statusFn := func() map[string]any {
		status := map[string]any{
			"correlator":    correlator.Stats(),
			"events":        hub.Stats(),
			"channel":       channel.Stats(),
			"queue_pending": loop.Pending(),
			"targets_alive": world.Len(),
			"targets_total": scene.Spawned(),
			"progress":      scene.Progress(),
			"manual_active": scene.Active(),
			"transport":     cfg.Transport,
		}
		if ws != nil {
			status["ws_clients"] = ws.ClientCount()
		}
		return status
	}
	srv := server.New(cfg, wsHandler, recorder, statusFn)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run(ctx)
		cancel()
	}()
	log.Printf("simcapture listening on :%d (transport=%s)", cfg.Port, cfg.Transport)

	if err := loop.Run(ctx); err != nil {
		return err
	}
	select {
	case err := <-serverErr:
		return err
	case <-time.After(5 * time.Second):
		return nil
	}
}
