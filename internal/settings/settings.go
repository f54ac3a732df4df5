// Package settings is CLEO's typed options store, persisted as JSON
// (spec.md §3 "Options (settings)", §6).
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"sigs.k8s.io/yaml"
)

// FPSLock is the user's chosen frame-rate cap.
type FPSLock int

const (
	FPS30 FPSLock = 30
	FPS60 FPSLock = 60
)

// FPSVisibility controls whether the FPS counter is drawn.
type FPSVisibility string

const (
	FPSHidden  FPSVisibility = "hidden"
	FPSVisible FPSVisibility = "visible"
)

// CheatTransience controls whether cheat state survives a restart.
type CheatTransience string

const (
	Transient  CheatTransience = "transient"
	Persistent CheatTransience = "persistent"
)

// LoopBreak controls a scripting quirk toggle.
type LoopBreak string

const (
	Break      LoopBreak = "break"
	DontBreak  LoopBreak = "dont-break"
)

// ReleaseChannel controls which updater feed, if any, the update checker
// consults (spec.md §4.7).
type ReleaseChannel string

const (
	ChannelNone   ReleaseChannel = "none"
	ChannelStable ReleaseChannel = "stable"
	ChannelAlpha  ReleaseChannel = "alpha"
)

// LanguageMode is either "auto" (derive from host locale) or an explicit
// language tag.
type LanguageMode struct {
	Auto     bool
	Explicit string
}

// Options is the flat settings record (spec.md §3).
type Options struct {
	FPSLock         FPSLock         `json:"fps_lock"`
	FPSVisibility   FPSVisibility   `json:"fps_visibility"`
	CheatTransience CheatTransience `json:"cheat_transience"`
	LoopBreak       LoopBreak       `json:"loop_break"`
	ReleaseChannel  ReleaseChannel  `json:"release_channel"`
	LanguageMode    string          `json:"language_mode"` // "auto" or an explicit tag
}

// Default returns the settings CLEO ships with out of the box.
func Default() Options {
	return Options{
		FPSLock:         FPS30,
		FPSVisibility:   FPSHidden,
		CheatTransience: Transient,
		LoopBreak:       DontBreak,
		ReleaseChannel:  ChannelStable,
		LanguageMode:    "auto",
	}
}

// cycle advances a value to the next in a fixed ring, implementing the
// "cycle-through semantics" spec.md §3 calls for on settings rows.
func cycle[T comparable](current T, ring []T) T {
	for i, v := range ring {
		if v == current {
			return ring[(i+1)%len(ring)]
		}
	}
	if len(ring) == 0 {
		return current
	}
	return ring[0]
}

// CycleFPSLock returns the next value in the {30, 60} ring.
func CycleFPSLock(v FPSLock) FPSLock { return cycle(v, []FPSLock{FPS30, FPS60}) }

// CycleFPSVisibility returns the next value in the {hidden, visible} ring.
func CycleFPSVisibility(v FPSVisibility) FPSVisibility {
	return cycle(v, []FPSVisibility{FPSHidden, FPSVisible})
}

// CycleCheatTransience returns the next value in the {transient, persistent} ring.
func CycleCheatTransience(v CheatTransience) CheatTransience {
	return cycle(v, []CheatTransience{Transient, Persistent})
}

// CycleLoopBreak returns the next value in the {break, dont-break} ring.
func CycleLoopBreak(v LoopBreak) LoopBreak { return cycle(v, []LoopBreak{Break, DontBreak}) }

// CycleReleaseChannel returns the next value in the {none, stable, alpha} ring.
func CycleReleaseChannel(v ReleaseChannel) ReleaseChannel {
	return cycle(v, []ReleaseChannel{ChannelNone, ChannelStable, ChannelAlpha})
}

// Store is a mutex-guarded, JSON-persisted Options value.
type Store struct {
	mu      sync.Mutex
	path    string
	options Options
}

// Load reads path as JSON into a Store, falling back to Default() if the
// file does not exist.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Store{path: path, options: Default()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}

	var opts Options
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	return &Store{path: path, options: opts}, nil
}

// Get returns the current options.
func (s *Store) Get() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

// Update replaces the options and persists them (pretty-printed JSON,
// spec.md §6).
func (s *Store) Update(opts Options) error {
	s.mu.Lock()
	s.options = opts
	s.mu.Unlock()
	return s.save(opts)
}

func (s *Store) save(opts Options) error {
	data, err := json.MarshalIndent(opts, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}
	return os.WriteFile(s.path, data, 0o644)
}

// ImportLegacyYAML reads an older YAML-formatted settings file (from a
// pre-JSON CLEO release) and merges it into the store, translating field
// by field. Unknown keys are ignored.
func (s *Store) ImportLegacyYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("settings: read legacy file %s: %w", path, err)
	}

	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("settings: convert legacy yaml: %w", err)
	}

	opts := s.Get()
	if err := json.Unmarshal(jsonData, &opts); err != nil {
		return fmt.Errorf("settings: parse legacy file: %w", err)
	}

	return s.Update(opts)
}
