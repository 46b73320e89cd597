// Package session writes and reads the YAML manifest that summarizes a
// session for operators — a human-skimmable companion to the JSON event
// log, not a source of truth the core itself reads back.
package session

import (
	"context"
	"fmt"

	"github.com/agentcore/agentcore/event"
	"github.com/agentcore/agentcore/filestore"
	"gopkg.in/yaml.v3"
)

// Manifest is the top-level shape of sessions/<sid>/manifest.yaml.
type Manifest struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   Metadata `yaml:"metadata"`
	Status     Status   `yaml:"status"`
}

// Metadata identifies the session the manifest describes.
type Metadata struct {
	SID   string `yaml:"sid"`
	Agent string `yaml:"agent,omitempty"`
}

// Status summarizes the session's last-known outcome.
type Status struct {
	AgentState event.AgentState `yaml:"agent_state"`
	Iteration  int              `yaml:"iteration"`
	LastError  string           `yaml:"last_error,omitempty"`
	Outputs    event.JSONObject `yaml:"outputs,omitempty"`
}

func manifestPath(sid string) string {
	return fmt.Sprintf("sessions/%s/manifest.yaml", sid)
}

// Write marshals m and persists it under the session's manifest path.
func Write(ctx context.Context, store filestore.FileStore, sid string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("session: marshal manifest: %w", err)
	}
	return store.Write(ctx, manifestPath(sid), data)
}

// Read loads and unmarshals the manifest for sid.
func Read(ctx context.Context, store filestore.FileStore, sid string) (Manifest, error) {
	data, err := store.Read(ctx, manifestPath(sid))
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("session: unmarshal manifest: %w", err)
	}
	return m, nil
}
