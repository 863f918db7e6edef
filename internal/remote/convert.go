package remote

import (
	"encoding/json"
	"fmt"

	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/danielpatrickdp/reflex-engine/internal/stimulus"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region convert
// toStruct encodes v through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes s into v through its JSON form.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// SnapshotStruct encodes a snapshot as a Struct.
func SnapshotStruct(s state.Snapshot) (*structpb.Struct, error) {
	return toStruct(s)
}

// SnapshotFromStruct decodes a snapshot sent by the server.
func SnapshotFromStruct(s *structpb.Struct) (state.Snapshot, error) {
	var snap state.Snapshot
	if err := fromStruct(s, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func stimulusFromStruct(s *structpb.Struct) (stimulus.Stimulus, error) {
	var stim stimulus.Stimulus
	if err := fromStruct(s, &stim); err != nil {
		return stim, fmt.Errorf("decode stimulus: %w", err)
	}
	return stim, nil
}

func profileFromStruct(s *structpb.Struct) (profile.Profile, error) {
	var spec profile.Spec
	if err := fromStruct(s, &spec); err != nil {
		return profile.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return spec.Profile()
}

// #endregion convert
