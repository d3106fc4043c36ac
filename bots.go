package main

import "tankdown/server/internal/proto"

// botInput synthesizes the scripted control state for a bot at the given
// server tick: zero steering plus a deterministic fire pulse.
func botInput(cfg MatchConfig, tick uint64) proto.Input {
	var in proto.Input
	if cfg.DisableBotFire || cfg.BotFireIntervalTicks <= 0 {
		return in
	}
	if tick%uint64(cfg.BotFireIntervalTicks) == 0 {
		in.Fire = true
	}
	return in
}
