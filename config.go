package main

import (
	"os"
	"strconv"
	"time"
)

// MatchConfig captures every tunable a match needs. The matchmaker hands each
// new match its own copy; nothing mutates it after construction.
type MatchConfig struct {
	MaxPlayers  int
	FillTimeout time.Duration

	TickRate     int
	PollInterval time.Duration

	SnapshotIntervalTicks     int
	FullSnapshotIntervalTicks int

	BotFireIntervalTicks int

	MovementSpeed      float64 // units per second
	TurnSpeedDeg       float64 // hull degrees per second at full deflection
	TurretTurnSpeedDeg float64 // turret degrees per second at full deflection
	ProjectileSpeed    float64
	ProjectileDamage   int
	FireCooldownSec    float64 // 0 disables the cooldown gate
	ReloadIntervalSec  float64
	MaxAmmo            int
	TankHP             int

	MapWidth  float64
	MapHeight float64

	TankRadius       float64
	ProjectileRadius float64
	MuzzleOffset     float64

	StartGrace        time.Duration
	MatchTimeout      time.Duration
	PostEndGraceTicks int

	// Test-mode clamps.
	DisableBotFire bool
}

func defaultMatchConfig() MatchConfig {
	return MatchConfig{
		MaxPlayers:                4,
		FillTimeout:               10 * time.Second,
		TickRate:                  15,
		PollInterval:              500 * time.Millisecond,
		SnapshotIntervalTicks:     3,
		FullSnapshotIntervalTicks: 45,
		BotFireIntervalTicks:      30,
		MovementSpeed:             160.0,
		TurnSpeedDeg:              120.0,
		TurretTurnSpeedDeg:        180.0,
		ProjectileSpeed:           420.0,
		ProjectileDamage:          25,
		ReloadIntervalSec:         1.5,
		MaxAmmo:                   10,
		TankHP:                    100,
		MapWidth:                  800.0,
		MapHeight:                 600.0,
		TankRadius:                14.0,
		ProjectileRadius:          3.0,
		MuzzleOffset:              20.0,
		StartGrace:                2 * time.Second,
		MatchTimeout:              30 * time.Second,
		PostEndGraceTicks:         15,
	}
}

// normalized returns a config with defaults applied to unset fields so a
// zero-valued test config still produces a runnable match.
func (cfg MatchConfig) normalized() MatchConfig {
	def := defaultMatchConfig()
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = def.MaxPlayers
	}
	if cfg.FillTimeout <= 0 {
		cfg.FillTimeout = def.FillTimeout
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = def.TickRate
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.SnapshotIntervalTicks <= 0 {
		cfg.SnapshotIntervalTicks = def.SnapshotIntervalTicks
	}
	if cfg.FullSnapshotIntervalTicks <= 0 {
		cfg.FullSnapshotIntervalTicks = def.FullSnapshotIntervalTicks
	}
	if cfg.BotFireIntervalTicks <= 0 {
		cfg.BotFireIntervalTicks = def.BotFireIntervalTicks
	}
	if cfg.MovementSpeed <= 0 {
		cfg.MovementSpeed = def.MovementSpeed
	}
	if cfg.TurnSpeedDeg <= 0 {
		cfg.TurnSpeedDeg = def.TurnSpeedDeg
	}
	if cfg.TurretTurnSpeedDeg <= 0 {
		cfg.TurretTurnSpeedDeg = def.TurretTurnSpeedDeg
	}
	if cfg.ProjectileSpeed <= 0 {
		cfg.ProjectileSpeed = def.ProjectileSpeed
	}
	if cfg.ProjectileDamage <= 0 {
		cfg.ProjectileDamage = def.ProjectileDamage
	}
	if cfg.ReloadIntervalSec <= 0 {
		cfg.ReloadIntervalSec = def.ReloadIntervalSec
	}
	if cfg.MaxAmmo <= 0 {
		cfg.MaxAmmo = def.MaxAmmo
	}
	if cfg.TankHP <= 0 {
		cfg.TankHP = def.TankHP
	}
	if cfg.MapWidth <= 0 {
		cfg.MapWidth = def.MapWidth
	}
	if cfg.MapHeight <= 0 {
		cfg.MapHeight = def.MapHeight
	}
	if cfg.TankRadius <= 0 {
		cfg.TankRadius = def.TankRadius
	}
	if cfg.ProjectileRadius <= 0 {
		cfg.ProjectileRadius = def.ProjectileRadius
	}
	if cfg.MuzzleOffset <= 0 {
		cfg.MuzzleOffset = def.MuzzleOffset
	}
	if cfg.StartGrace <= 0 {
		cfg.StartGrace = def.StartGrace
	}
	if cfg.MatchTimeout <= 0 {
		cfg.MatchTimeout = def.MatchTimeout
	}
	if cfg.PostEndGraceTicks <= 0 {
		cfg.PostEndGraceTicks = def.PostEndGraceTicks
	}
	return cfg
}

// dt returns the fixed timestep in seconds.
func (cfg MatchConfig) dt() float64 {
	return 1.0 / float64(cfg.TickRate)
}

func (cfg MatchConfig) startGraceTicks() uint64 {
	return uint64(cfg.StartGrace.Seconds() * float64(cfg.TickRate))
}

func (cfg MatchConfig) timeoutTicks() uint64 {
	return uint64(cfg.MatchTimeout.Seconds() * float64(cfg.TickRate))
}

// serverConfig holds process-level settings outside match tuning.
type serverConfig struct {
	TCPAddr           string
	HTTPAddr          string
	HeartbeatInterval time.Duration
	DisconnectAfter   time.Duration
	WriteWait         time.Duration
	FlushInterval     time.Duration
	LogJSONPath       string
}

func defaultServerConfig() serverConfig {
	heartbeat := 2 * time.Second
	return serverConfig{
		TCPAddr:           ":7777",
		HTTPAddr:          ":8080",
		HeartbeatInterval: heartbeat,
		DisconnectAfter:   3 * heartbeat,
		WriteWait:         10 * time.Second,
		FlushInterval:     50 * time.Millisecond,
	}
}

// loadServerConfig reads process settings from the environment, falling back
// to defaults when unset or invalid.
func loadServerConfig() serverConfig {
	cfg := defaultServerConfig()
	cfg.TCPAddr = envString("TANKDOWN_TCP_ADDR", cfg.TCPAddr)
	cfg.HTTPAddr = envString("TANKDOWN_HTTP_ADDR", cfg.HTTPAddr)
	cfg.HeartbeatInterval = envDurationMS("TANKDOWN_HEARTBEAT_MS", cfg.HeartbeatInterval)
	cfg.DisconnectAfter = envDurationMS("TANKDOWN_DISCONNECT_AFTER_MS", cfg.DisconnectAfter)
	cfg.LogJSONPath = envString("TANKDOWN_LOG_JSON_PATH", cfg.LogJSONPath)
	return cfg
}

// loadMatchConfig reads match tuning overrides from the environment.
func loadMatchConfig() MatchConfig {
	cfg := defaultMatchConfig()
	cfg.MaxPlayers = envInt("TANKDOWN_MAX_PLAYERS", cfg.MaxPlayers)
	cfg.FillTimeout = envDurationMS("TANKDOWN_FILL_TIMEOUT_MS", cfg.FillTimeout)
	cfg.TickRate = envInt("TANKDOWN_TICK_RATE", cfg.TickRate)
	cfg.PollInterval = envDurationMS("TANKDOWN_POLL_INTERVAL_MS", cfg.PollInterval)
	cfg.SnapshotIntervalTicks = envInt("TANKDOWN_SNAPSHOT_TICKS", cfg.SnapshotIntervalTicks)
	cfg.FullSnapshotIntervalTicks = envInt("TANKDOWN_FULL_SNAPSHOT_TICKS", cfg.FullSnapshotIntervalTicks)
	cfg.BotFireIntervalTicks = envInt("TANKDOWN_BOT_FIRE_TICKS", cfg.BotFireIntervalTicks)
	cfg.DisableBotFire = envBool("TANKDOWN_DISABLE_BOT_FIRE", cfg.DisableBotFire)
	return cfg.normalized()
}

func envString(key, fallback string) string {
	if raw := os.Getenv(key); raw != "" {
		return raw
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func envDurationMS(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			return parsed
		}
	}
	return fallback
}
