package proto

import (
	"encoding/json"
	"fmt"
)

// Version tracks the wire-protocol revision expected by clients.
const Version = 1

// Message type identifiers. Every frame carries exactly one envelope whose
// type selects the payload shape below.
const (
	TypeAuthRequest       = "authRequest"
	TypeAuthResponse      = "authResponse"
	TypeQueueJoin         = "queueJoin"
	TypeQueueStatus       = "queueStatus"
	TypeMatchStart        = "matchStart"
	TypeInput             = "input"
	TypeHeartbeat         = "heartbeat"
	TypeHeartbeatResponse = "heartbeatResponse"
	TypeStateSnapshot     = "state"
	TypeDeltaSnapshot     = "delta"
	TypeDamageEvent       = "damage"
	TypeTankDestroyed     = "tankDestroyed"
	TypeKillFeedUpdate    = "killFeed"
	TypeMatchEnd          = "matchEnd"
)

// Envelope wraps every message on the wire.
type Envelope struct {
	Ver  int             `json:"ver"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// AuthRequest asks the server to validate a client token.
type AuthRequest struct {
	Token string `json:"token"`
}

// AuthResponse reports the outcome of an AuthRequest. The connection stays
// open on failure so the client may retry.
type AuthResponse struct {
	OK        bool   `json:"ok"`
	SessionID uint64 `json:"sessionId,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// QueueJoin asks to enter the matchmaking queue. Authenticated sessions only.
type QueueJoin struct{}

// QueueStatus reports queue membership after a QueueJoin.
type QueueStatus struct {
	Accepted bool `json:"accepted"`
	Position int  `json:"position,omitempty"`
	Queued   int  `json:"queued"`
}

// MatchStart announces roster placement to a session when its match spawns.
type MatchStart struct {
	MatchID   uint64  `json:"matchId"`
	EntityID  uint64  `json:"entityId"`
	TickRate  int     `json:"tickRate"`
	MapWidth  float64 `json:"mapWidth"`
	MapHeight float64 `json:"mapHeight"`
}

// Input carries the client's latest control state. The server keeps only the
// most recent value per session; there is no input history.
type Input struct {
	Move       float64 `json:"move"`
	Turn       float64 `json:"turn"`
	TurretTurn float64 `json:"turretTurn"`
	Fire       bool    `json:"fire"`
}

// Heartbeat keeps a session alive and carries the client clock for RTT.
type Heartbeat struct {
	ClientTime int64 `json:"clientTime"`
}

// HeartbeatResponse echoes the client clock alongside the server's.
type HeartbeatResponse struct {
	ServerTime int64 `json:"serverTime"`
	ClientTime int64 `json:"clientTime"`
	RTTMillis  int64 `json:"rtt"`
}

// TankState is the wire form of a live tank. Dead tanks are never serialized.
type TankState struct {
	ID     uint64  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Angle  float64 `json:"angle"`
	Turret float64 `json:"turret"`
	HP     int     `json:"hp"`
	Ammo   int     `json:"ammo"`
}

// ProjectileState is the wire form of an active projectile.
type ProjectileState struct {
	ID    uint64  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	VX    float64 `json:"vx"`
	VY    float64 `json:"vy"`
	Owner uint64  `json:"owner"`
	Age   float64 `json:"age"`
}

// StateSnapshot is a full snapshot: every alive tank and active projectile.
type StateSnapshot struct {
	Tick        uint64            `json:"t"`
	Tanks       []TankState       `json:"tanks"`
	Projectiles []ProjectileState `json:"projectiles"`
}

// DeltaSnapshot carries field-level tank changes since the last-sent cache,
// removal lists accumulated since the last full snapshot, and the complete
// active projectile list (clients upsert projectiles by id).
type DeltaSnapshot struct {
	Tick               uint64            `json:"t"`
	Tanks              []TankState       `json:"tanks,omitempty"`
	RemovedTanks       []uint64          `json:"removedTanks,omitempty"`
	RemovedProjectiles []uint64          `json:"removedProjectiles,omitempty"`
	Projectiles        []ProjectileState `json:"projectiles"`
}

// DamageEvent reports a projectile hit. Attacker 0 means the environment.
type DamageEvent struct {
	Victim   uint64 `json:"victim"`
	Attacker uint64 `json:"attacker"`
	Amount   int    `json:"amount"`
	HP       int    `json:"hp"`
}

// TankDestroyed reports a tank leaving play permanently.
type TankDestroyed struct {
	Victim   uint64 `json:"victim"`
	Attacker uint64 `json:"attacker"`
}

// KillFeedEntry pairs a victim with its attacker.
type KillFeedEntry struct {
	Victim   uint64 `json:"victim"`
	Attacker uint64 `json:"attacker"`
}

// KillFeedUpdate batches the kills resolved during a single tick.
type KillFeedUpdate struct {
	Tick    uint64          `json:"t"`
	Entries []KillFeedEntry `json:"entries"`
}

// MatchEnd announces the terminal state of a match. Sent exactly once.
type MatchEnd struct {
	Winner uint64 `json:"winner"`
	Tick   uint64 `json:"t"`
}

// Encode renders an envelope of the given type around the payload.
func Encode(msgType string, payload any) ([]byte, error) {
	env := Envelope{Ver: Version, Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("proto: encode %s: %w", msgType, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode parses an envelope and validates its version and type tag.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("proto: undecodable envelope: %w", err)
	}
	if env.Ver != Version {
		return Envelope{}, fmt.Errorf("proto: unsupported version %d", env.Ver)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("proto: missing message type")
	}
	return env, nil
}

// DecodeData unmarshals the envelope payload into the provided value.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("proto: undecodable %s payload: %w", e.Type, err)
	}
	return nil
}
