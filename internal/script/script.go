// Package script is CLEO's bytecode interpreter: it loads compiled scripts,
// runs the pre-execution safety scan (see the scan subpackage), and
// executes bytecode using the host's own opcode-handler tables plus the
// small table of CLEO-specific overrides (see the opcode subpackage).
package script

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cleoruntime/cleo/internal/script/scan"
)

// Kind distinguishes the two script variants (spec.md §3).
type Kind int

const (
	// Startup scripts become active immediately when the game world
	// loads and remain active until terminated.
	Startup Kind = iota
	// Invoked scripts are inactive until the user activates them from
	// the menu.
	Invoked
)

func (k Kind) String() string {
	if k == Startup {
		return "startup"
	}
	return "invoked"
}

// Issue is a script's safety-scan result. The zero value, IssueNone, means
// the scan found nothing to flag.
type Issue int

const (
	IssueNone Issue = iota
	IssueNotImpl
	IssueArchSpecific
	IssueDuplicate
)

func (i Issue) String() string {
	switch i {
	case IssueNotImpl:
		return "not-implemented"
	case IssueArchSpecific:
		return "architecture-specific"
	case IssueDuplicate:
		return "duplicate"
	default:
		return "none"
	}
}

// Max returns the strictly-ordered maximum of two issues
// (NotImpl < ArchSpecific < Duplicate, spec.md §4.2.1).
func Max(a, b Issue) Issue {
	if b > a {
		return b
	}
	return a
}

// Script is a loaded CLEO script: its name, owned bytecode, host-compatible
// execution record, and safety-scan result (spec.md §3). The bytecode
// slice strictly outlives the execution record's pointers into it, because
// both live in the same struct and the struct is never partially
// destructed.
type Script struct {
	Name  string
	// Path is the source file this script was loaded from, used to avoid
	// re-registering the same file on a catalogue rescan.
	Path  string
	Kind  Kind
	Code  []byte
	Rec   Record
	Issue Issue
	// DuplicateOf names the first-seen script this one's bytecode
	// duplicates, set only when Issue == IssueDuplicate.
	DuplicateOf string
}

// Load reads path into an owned byte buffer and returns an unscanned,
// unregistered Script. kind is derived from the extension by the caller
// (.csa -> Startup, .csi -> Invoked, spec.md §4.2 "Loading").
func Load(path string, kind Kind) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: read %s: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	s := &Script{Name: name, Path: path, Kind: kind, Code: data}
	s.Rec.SetName(name)
	s.Rec.baseIP = 0
	s.Rec.ip = 0
	if kind == Startup {
		s.Rec.active = 1
	}
	return s, nil
}

// Registry is the process-wide, mutex-guarded vector of registered scripts
// (spec.md §3 "both live in a single process-wide registry protected by a
// mutex", §5).
type Registry struct {
	mu      sync.Mutex
	scripts []*Script
}

// NewRegistry returns an empty script registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a loaded, scanned script to the registry.
func (r *Registry) Register(s *Script) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts = append(r.scripts, s)
}

// Unregister removes scripts matching pred, called once per tick for
// scripts whose active flag went false during the tick (spec.md §4.2 tick
// protocol step 3).
func (r *Registry) Unregister(pred func(*Script) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.scripts[:0]
	for _, s := range r.scripts {
		if !pred(s) {
			kept = append(kept, s)
		}
	}
	r.scripts = kept
}

// Snapshot returns a copy of the currently registered scripts, safe to
// iterate without holding the registry lock across a tick.
func (r *Registry) Snapshot() []*Script {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Script, len(r.scripts))
	copy(out, r.scripts)
	return out
}

// Len returns the number of registered scripts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scripts)
}

// HasPath reports whether a script loaded from path is already registered,
// so a catalogue rescan can skip files it has already loaded instead of
// registering duplicate in-memory copies of the same script on every
// rescan.
func (r *Registry) HasPath(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.scripts {
		if s.Path == path {
			return true
		}
	}
	return false
}

// MarkDuplicates runs duplicate detection across a batch of not-yet-scanned
// scripts, per spec.md §4.2.1: sort by name, hash each, and mark every
// script whose hash matches one seen earlier as Duplicate(first name);
// such scripts skip their other-issue check. hashFn is injected so callers
// choose the hashing scheme (CLEO uses blake2b, see the scan subpackage).
func MarkDuplicates(scripts []*Script, hashFn func([]byte) string) {
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].Name < scripts[j].Name })

	seen := make(map[string]string) // hash -> first script name
	for _, s := range scripts {
		h := hashFn(s.Code)
		if first, ok := seen[h]; ok {
			s.Issue = IssueDuplicate
			s.DuplicateOf = first
			continue
		}
		seen[h] = s.Name
	}
}

// RunSafetyScan runs the pre-execution safety scan (spec.md §4.2.1): a
// control-flow-following disassembly that classifies the script by its
// worst-reached opcode. Scripts already marked Duplicate by MarkDuplicates
// skip this check, matching spec.md "its other-issue check is skipped" —
// callers must run MarkDuplicates across the batch before calling this.
// logger may be nil.
func (s *Script) RunSafetyScan(params scan.ParamTable, logger *slog.Logger) {
	if s.Issue == IssueDuplicate {
		return
	}

	result := scan.Disassemble(s.Code, params)
	if logger != nil {
		for _, derr := range result.Disassembly {
			logger.Warn("safety scan hit a disassembly error, continuing", "script", s.Name, "error", derr)
		}
	}

	switch result.Issue {
	case scan.IssueNotImpl:
		s.Issue = IssueNotImpl
	case scan.IssueArchSpecific:
		s.Issue = IssueArchSpecific
	}
}
