package script

import "unsafe"

// maxCallStackDepth is the host's fixed call-stack depth for gosub/return
// (spec.md §4.2: "call stack of 8 return addresses").
const maxCallStackDepth = 8

// numLocals is the host's fixed local-variable count (spec.md §4.2: "40
// local variables").
const numLocals = 40

// Record is the host-compatible script execution record. Host opcode
// handlers are invoked directly on this memory, so its shape must match
// the host's layout exactly (spec.md §4.2 "Execution record layout",
// §9 "Host-table interop"). Offsets are asserted in init below, when the
// package is initialised, rather than trusted to happen to match.
type Record struct {
	next, prev    uintptr // always zero: scripts are never linked into the host's list
	name          [8]byte
	baseIP        uintptr
	ip            uintptr
	callStack     [maxCallStackDepth]uintptr
	stackDepth    uint8
	_             [7]byte // pad to 8-byte alignment before the locals array
	locals        [numLocals]int32
	timers        [2]int32
	active        uint8
	boolFlag      uint8
	useMissionCleanup uint8
	isExternal    uint8
	overrideTextbox uint8
	attachType    uint8
	_pad1         [2]byte
	wakeupTime    uint32
	conditionCount uint8
	notFlag       uint8
	checkingGameOver uint8
	gameOver      uint8
	skipScenePosition uint32
	isMission     uint8
	_pad2         [3]byte
}

const (
	recordOffsetNext       = 0x00
	recordOffsetPrev       = 0x08
	recordOffsetName       = 0x10
	recordOffsetBaseIP     = 0x18
	recordOffsetIP         = 0x20
	recordOffsetCallStack  = 0x28
	recordOffsetStackDepth = 0x68
	recordOffsetLocals     = 0x70
)

func init() {
	var r Record
	assertRecordOffset("next", unsafe.Offsetof(r.next), recordOffsetNext)
	assertRecordOffset("prev", unsafe.Offsetof(r.prev), recordOffsetPrev)
	assertRecordOffset("name", unsafe.Offsetof(r.name), recordOffsetName)
	assertRecordOffset("baseIP", unsafe.Offsetof(r.baseIP), recordOffsetBaseIP)
	assertRecordOffset("ip", unsafe.Offsetof(r.ip), recordOffsetIP)
	assertRecordOffset("callStack", unsafe.Offsetof(r.callStack), recordOffsetCallStack)
	assertRecordOffset("stackDepth", unsafe.Offsetof(r.stackDepth), recordOffsetStackDepth)
	assertRecordOffset("locals", unsafe.Offsetof(r.locals), recordOffsetLocals)
}

func assertRecordOffset(field string, got, want uintptr) {
	if got != want {
		panic("script: Record." + field + " offset mismatch")
	}
}

// Reset reinitialises the record the way host script reset does (spec.md
// §4.2.2): base-ip retained, ip reset to base-ip, everything else zeroed.
func (r *Record) Reset(active bool) {
	baseIP := r.baseIP
	*r = Record{}
	r.baseIP = baseIP
	r.ip = baseIP
	if active {
		r.active = 1
	}
}

// Active reports the record's active flag.
func (r *Record) Active() bool { return r.active != 0 }

// SetActive sets the record's active flag.
func (r *Record) SetActive(v bool) { r.active = boolToByte(v) }

// SetName copies up to 8 bytes of name into the record's fixed name field.
func (r *Record) SetName(name string) {
	n := copy(r.name[:], name)
	for i := n; i < len(r.name); i++ {
		r.name[i] = 0
	}
}

func boolToByte(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}
