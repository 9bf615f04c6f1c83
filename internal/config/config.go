package config

import "time"

type AppConfig struct {
	Port      int
	Transport string

	ZMQInbound  string
	ZMQOutbound string

	OutputDir      string
	AutoRecord     bool
	JournalEnabled bool
	JournalDir     string
	CatalogURL     string

	PixelWidth  int
	PixelHeight int
	FieldOfView float64

	TickRate       time.Duration
	QueueSize      int
	SpawnRate      float64
	SpawnCooldown  int
	TargetLifespan time.Duration
	Speed          float64

	ResolveBeforeCapture  bool
	SuppressImageOnManual bool
	ManualDrive           bool

	IngestLogEvery int
}

// Default returns the values used when no flags are given.
func Default() AppConfig {
	return AppConfig{
		Port:           4567,
		Transport:      "ws",
		ZMQInbound:     "tcp://localhost:31001",
		ZMQOutbound:    "tcp://localhost:31002",
		OutputDir:      "output",
		JournalDir:     "journal",
		PixelWidth:     320,
		PixelHeight:    160,
		FieldOfView:    60,
		TickRate:       20 * time.Millisecond,
		QueueSize:      64,
		SpawnRate:      100,
		SpawnCooldown:  100,
		TargetLifespan: 10 * time.Second,
		Speed:          10,
		IngestLogEvery: 1,
	}
}
