// Package opcode holds the CLEO-specific override table: opcodes whose
// host implementations are architecture-specific or resource-unsafe, and
// so are handled entirely by CLEO instead of being dispatched to the
// host's own handler table (spec.md §4.2 "Overrides").
//
// The registry shape mirrors the teacher's keyed-registry-with-default
// pattern (a map keyed by identity, with an explicit miss path rather than
// a zero value standing in for "no override").
package opcode

import "log/slog"

// Code is one bytecode opcode, the low 15 bits of an instruction's first
// u16 (spec.md §4.2 "Block execution").
type Code uint16

// Result tells the interpreter's block loop what to do after an override
// handler runs.
type Result struct {
	// EndBlock is true when script execution should yield after this
	// instruction (e.g. the script terminated or waited).
	EndBlock bool
	// Errored is true when the instruction is unsupported on this
	// architecture and the script should be marked errored (spec.md §4.2
	// table, "0x0DD0..=0x0DD4, ...").
	Errored bool
}

// Args is the minimal view an override needs of the current instruction
// stream: read the script's variadic/immediate arguments and advance past
// them. The concrete execution record implements this; opcode stays
// decoupled from it so the override table has no import cycle back to the
// interpreter.
type Args interface {
	// NextImmediateInt reads one immediate integer argument and advances
	// past it.
	NextImmediateInt() int32
	// CollectVariadic consumes a host-style variadic argument list (a
	// count-prefixed sequence) and returns how many arguments it held.
	CollectVariadic() int
	// ReadOutputIndex reads the destination-variable argument and advances
	// past it, without writing anything yet. Opcodes that write an output
	// variable read its address before their other arguments (ground truth:
	// original_source/src/scripts.rs 0xde0 reads `destination` before
	// `collect_value_args`).
	ReadOutputIndex() int32
	// WriteOutputInt writes v into the local variable at idx, an index
	// obtained from an earlier ReadOutputIndex call.
	WriteOutputInt(idx int32, v int32)
	// SetActive sets the executing script's active flag.
	SetActive(active bool)
	// SetBoolFlag sets the executing script's bool-flag field.
	SetBoolFlag(v bool)
}

// TouchZones reports whether a touch-zone is currently active, letting the
// 0x00E1/0x0DE0 overrides consult the touch subsystem without opcode
// importing it directly.
type TouchZones interface {
	QueryZone(index int) bool
}

// Handler implements one overridden opcode.
type Handler func(args Args, zones TouchZones) Result

// Terminate (0x004E): do not invoke the host handler (which would free
// script memory the host didn't allocate). Mark active=false, end the
// block.
const Terminate Code = 0x004E

// SetZoneFlag (0x00E1): consume two immediate integer arguments
// (push_state, zone_index) via the host's variadic collection, then write
// into bool-flag whether touch-zone zone_index is active.
const SetZoneFlag Code = 0x00E1

// ReadZoneFlag (0x0DE0): read an output variable, consume two immediate
// args, write i32 0 or 1 into the variable based on touch-zone status.
const ReadZoneFlag Code = 0x0DE0

// Mutex (0x0DDC): takes two arguments under the guise of a mutex; the
// intended semantics were never finished upstream. Treated as a pure
// no-op that still consumes its arguments (spec.md §9 open question 2).
const Mutex Code = 0x0DDC

// unsupportedRanges lists the opcodes spec.md §4.2 marks "Not supported on
// this architecture": do not execute, mark script as errored, end the
// block.
var unsupportedRanges = []struct{ lo, hi Code }{
	{0x0DD0, 0x0DD4},
	{0x0DD7, 0x0DD7},
	{0x0DD8, 0x0DDA},
	{0x0DDE, 0x0DDE},
}

func isUnsupported(c Code) bool {
	for _, r := range unsupportedRanges {
		if c >= r.lo && c <= r.hi {
			return true
		}
	}
	return false
}

// Table is the override dispatch table: a map keyed by opcode, falling
// back (via Lookup's ok=false) to the host's own handler table for
// anything not present — the same keyed-registry-with-default-fallback
// shape used for game adapters elsewhere in this codebase.
type Table struct {
	handlers map[Code]Handler
}

// NewTable builds the fixed CLEO override table described by spec.md §4.2.
func NewTable() *Table {
	t := &Table{handlers: make(map[Code]Handler)}

	t.handlers[Terminate] = func(args Args, _ TouchZones) Result {
		args.SetActive(false)
		return Result{EndBlock: true}
	}

	t.handlers[SetZoneFlag] = func(args Args, zones TouchZones) Result {
		_ = args.CollectVariadic()
		pushState := args.NextImmediateInt()
		zoneIndex := args.NextImmediateInt()
		_ = pushState
		args.SetBoolFlag(zones.QueryZone(int(zoneIndex)))
		return Result{}
	}

	t.handlers[ReadZoneFlag] = func(args Args, zones TouchZones) Result {
		outIdx := args.ReadOutputIndex()
		_ = args.CollectVariadic()
		zoneIndex := args.NextImmediateInt()
		var v int32
		if zones.QueryZone(int(zoneIndex)) {
			v = 1
		}
		args.WriteOutputInt(outIdx, v)
		return Result{}
	}

	t.handlers[Mutex] = func(args Args, _ TouchZones) Result {
		_ = args.CollectVariadic()
		slog.Debug("opcode 0x0DDC: unfinished mutex semantics, treated as no-op")
		return Result{}
	}

	return t
}

// Lookup returns the override handler for c, if one is registered. If c
// falls in an unsupported range, Lookup reports a handler that errors the
// script without needing a per-opcode map entry.
func (t *Table) Lookup(c Code) (Handler, bool) {
	if h, ok := t.handlers[c]; ok {
		return h, true
	}
	if isUnsupported(c) {
		return func(_ Args, _ TouchZones) Result {
			return Result{EndBlock: true, Errored: true}
		}, true
	}
	return nil, false
}
