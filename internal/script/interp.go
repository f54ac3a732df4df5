package script

import (
	"encoding/binary"
	"log/slog"

	"github.com/cleoruntime/cleo/internal/script/opcode"
)

// catchAllThreshold is the opcode value at and above which dispatch always
// goes to the host's single catch-all handler rather than its per-hundred
// handler table (spec.md §4.2 "Block execution").
const catchAllThreshold = 0x8AC

// opcodeMask extracts the low 15 bits (the opcode) from an instruction's
// leading u16; the high bit is the not-flag (spec.md §4.2).
const opcodeMask = 0x7FFF
const notFlagBit = 0x8000

// notFlagOf reports whether an instruction's high bit (invert boolean
// return) is set.
func notFlagOf(instr uint16) bool { return instr&notFlagBit != 0 }
func opcodeOf(instr uint16) opcode.Code { return opcode.Code(instr & opcodeMask) }

// HostHandlers is the host's own opcode dispatch table, treated as an
// external collaborator the same way hostbind.Hooker is: CLEO never
// implements host opcode semantics itself, it only decides, per
// instruction, whether to call into this table or into its own override
// (spec.md §4.2 "dispatch to the host").
type HostHandlers interface {
	// Dispatch runs the handler for opcode (which is < catchAllThreshold)
	// against rec, and reports whether the block should end.
	Dispatch(op opcode.Code, rec *Record, code []byte) (endBlock bool, err error)
	// CatchAll runs the single handler used for every opcode >=
	// catchAllThreshold.
	CatchAll(op opcode.Code, rec *Record, code []byte) (endBlock bool, err error)
}

// Interpreter runs the CLEO tick protocol over a script registry, using
// overrides (opcode.Table) ahead of the host's own handlers (spec.md
// §4.2).
type Interpreter struct {
	registry  *Registry
	overrides *opcode.Table
	host      HostHandlers
	zones     opcode.TouchZones
	logger    *slog.Logger
}

// NewInterpreter builds an Interpreter. host and zones are the external
// collaborators this package does not implement.
func NewInterpreter(registry *Registry, host HostHandlers, zones opcode.TouchZones, logger *slog.Logger) *Interpreter {
	return &Interpreter{
		registry:  registry,
		overrides: opcode.NewTable(),
		host:      host,
		zones:     zones,
		logger:    logger,
	}
}

// OriginalTick is the trampoline to the host's own script tick, called
// after every CLEO script has run (spec.md §4.2 tick protocol step 2).
type OriginalTick func()

// Tick runs one invocation of the installed script-tick hook: every
// registered script whose wakeup time has passed executes one block, then
// the host's original tick runs, then scripts that went inactive this tick
// are unregistered (spec.md §4.2 "Tick protocol").
func (in *Interpreter) Tick(gameTime uint32, original OriginalTick) {
	scripts := in.registry.Snapshot()

	for _, s := range scripts {
		if s.Rec.wakeupTime > gameTime {
			continue
		}
		in.runBlock(s)
	}

	if original != nil {
		original()
	}

	in.registry.Unregister(func(s *Script) bool {
		return s.Rec.active == 0
	})
}

// runBlock executes one block of a script: repeatedly decode and dispatch
// one instruction until a handler says the block should end (spec.md
// §4.2 "Block execution").
func (in *Interpreter) runBlock(s *Script) {
	for {
		ip := int(s.Rec.ip)
		if ip < 0 || ip+2 > len(s.Code) {
			in.logger.Warn("script instruction pointer out of range, terminating", "script", s.Name, "ip", ip)
			s.Rec.active = 0
			return
		}

		instr := binary.LittleEndian.Uint16(s.Code[ip : ip+2])
		s.Rec.ip += 2

		op := opcodeOf(instr)
		s.Rec.notFlag = boolToByte(notFlagOf(instr))

		if handler, ok := in.overrides.Lookup(op); ok {
			args := &argsAdapter{script: s}
			result := handler(args, in.zones)
			if result.Errored {
				in.logger.Warn("script hit unsupported opcode, marking errored", "script", s.Name, "opcode", op)
				s.Issue = IssueArchSpecific
				s.Rec.active = 0
			}
			if result.EndBlock {
				return
			}
			continue
		}

		var endBlock bool
		var err error
		if op >= catchAllThreshold {
			endBlock, err = in.host.CatchAll(op, &s.Rec, s.Code)
		} else {
			endBlock, err = in.host.Dispatch(op, &s.Rec, s.Code)
		}
		if err != nil {
			in.logger.Warn("host opcode handler failed", "script", s.Name, "opcode", op, "error", err)
			s.Rec.active = 0
			return
		}
		if endBlock {
			return
		}
	}
}

// Reset reinitialises every registered script's execution record between
// games, after calling the host's original reset (spec.md §4.2.2).
func (in *Interpreter) Reset(originalReset func()) {
	if originalReset != nil {
		originalReset()
	}
	for _, s := range in.registry.Snapshot() {
		s.Rec.Reset(s.Kind == Startup)
	}
}

// argsAdapter implements opcode.Args over one script's record and
// bytecode, walking the instruction pointer forward as arguments are
// consumed. Immediate integer arguments are encoded as little-endian
// int32 in the bytecode stream, matching the host's own argument
// encoding for non-variable operands.
type argsAdapter struct {
	script *Script
}

func (a *argsAdapter) NextImmediateInt() int32 {
	ip := int(a.script.Rec.ip)
	if ip+4 > len(a.script.Code) {
		return 0
	}
	v := int32(binary.LittleEndian.Uint32(a.script.Code[ip : ip+4]))
	a.script.Rec.ip += 4
	return v
}

// CollectVariadic consumes a host-style variadic argument list: a single
// byte count followed by that many 4-byte slots. It does not interpret the
// slots, only skips past them, matching the overrides that only care about
// the immediates following the variadic header (spec.md §4.2).
func (a *argsAdapter) CollectVariadic() int {
	ip := int(a.script.Rec.ip)
	if ip >= len(a.script.Code) {
		return 0
	}
	count := int(a.script.Code[ip])
	a.script.Rec.ip++
	skip := count * 4
	if int(a.script.Rec.ip)+skip > len(a.script.Code) {
		skip = len(a.script.Code) - int(a.script.Rec.ip)
	}
	a.script.Rec.ip += uintptr(skip)
	return count
}

// ReadOutputIndex reads the destination-variable argument (itself an
// immediate, a local-variable index) and advances past it. Callers must
// read this before any other arguments that follow it in the instruction
// stream (opcode.Args.ReadOutputIndex).
func (a *argsAdapter) ReadOutputIndex() int32 {
	return a.NextImmediateInt()
}

func (a *argsAdapter) WriteOutputInt(idx int32, v int32) {
	if idx < 0 || int(idx) >= len(a.script.Rec.locals) {
		return
	}
	a.script.Rec.locals[idx] = v
}

func (a *argsAdapter) SetActive(active bool) {
	a.script.Rec.active = boolToByte(active)
}

func (a *argsAdapter) SetBoolFlag(v bool) {
	a.script.Rec.boolFlag = boolToByte(v)
}
