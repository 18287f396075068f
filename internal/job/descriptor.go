// Package job turns client submissions into the job descriptor handed to
// workers.
package job

import (
	"encoding/json"
	"fmt"
)

// Descriptor is the JSON object describing one job. Top-level members are
// kept as raw JSON so a raw submission reaches the worker unchanged.
type Descriptor map[string]json.RawMessage

// Set encodes v and stores it under key.
func (d Descriptor) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("job: encode %s: %w", key, err)
	}
	d[key] = data
	return nil
}

// Marshal serializes the descriptor for storage.
func (d Descriptor) Marshal() (string, error) {
	data, err := json.Marshal(map[string]json.RawMessage(d))
	if err != nil {
		return "", fmt.Errorf("job: marshal descriptor: %w", err)
	}
	return string(data), nil
}

// Clone returns a shallow copy; members are immutable byte slices.
func (d Descriptor) Clone() Descriptor {
	out := make(Descriptor, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func toDescriptor(v any) (Descriptor, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("job: marshal: %w", err)
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("job: unmarshal: %w", err)
	}
	return d, nil
}
