package runplan

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a plan file. The raw bytes are returned for
// snapshotting. Unknown fields are an error so typos fail loudly.
func Load(path string) (*Plan, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read plan: %w", err)
	}

	plan, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return plan, data, nil
}

// Parse decodes and validates plan YAML.
func Parse(data []byte) (*Plan, error) {
	var plan Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}

	applyDefaults(&plan)
	if err := Validate(&plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Hash is the SHA-256 of the plan's canonical JSON form.
func Hash(plan *Plan) (string, error) {
	jsonBytes, err := json.Marshal(plan)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// NewSnapshot captures the plan and its source text.
func NewSnapshot(plan *Plan, yamlData []byte) (*Snapshot, error) {
	hash, err := Hash(plan)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		PlanHash:  hash,
		PlanYAML:  string(yamlData),
		Name:      plan.Meta.Name,
		Version:   plan.Meta.Version,
		CreatedAt: time.Now(),
	}, nil
}
