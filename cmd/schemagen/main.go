// Command schemagen emits a JSON schema describing the wire-protocol
// envelopes so client teams can validate their codecs against it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"

	"github.com/iancoleman/orderedmap"
	"github.com/invopop/jsonschema"

	"tankdown/server/internal/proto"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	if err := writeSchema(outPath, buildSchema()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

// payloadTypes maps each envelope type tag to its payload shape.
var payloadTypes = map[string]any{
	proto.TypeAuthRequest:       proto.AuthRequest{},
	proto.TypeAuthResponse:      proto.AuthResponse{},
	proto.TypeQueueJoin:         proto.QueueJoin{},
	proto.TypeQueueStatus:       proto.QueueStatus{},
	proto.TypeMatchStart:        proto.MatchStart{},
	proto.TypeInput:             proto.Input{},
	proto.TypeHeartbeat:         proto.Heartbeat{},
	proto.TypeHeartbeatResponse: proto.HeartbeatResponse{},
	proto.TypeStateSnapshot:     proto.StateSnapshot{},
	proto.TypeDeltaSnapshot:     proto.DeltaSnapshot{},
	proto.TypeDamageEvent:       proto.DamageEvent{},
	proto.TypeTankDestroyed:     proto.TankDestroyed{},
	proto.TypeKillFeedUpdate:    proto.KillFeedUpdate{},
	proto.TypeMatchEnd:          proto.MatchEnd{},
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}

	properties := make(map[string]*jsonschema.Schema, len(payloadTypes))
	for tag, payload := range payloadTypes {
		schema := reflector.ReflectFromType(reflect.TypeOf(payload))
		schema.Version = ""
		properties[tag] = schema
	}

	root := &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Tankdown Wire Protocol",
		Description: "Envelope payload shapes keyed by the envelope type tag.",
		Type:        "object",
	}
	root.Properties = orderedmap.New()
	for _, tag := range sortedTags(properties) {
		root.Properties.Set(tag, properties[tag])
	}
	return root
}

func sortedTags(properties map[string]*jsonschema.Schema) []string {
	tags := make([]string, 0, len(properties))
	for tag := range properties {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
