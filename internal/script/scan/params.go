package scan

// DefaultParamTable returns a minimal, statically-built ParamTable covering
// every opcode spec.md names by number: the control-flow opcodes the
// successor rules (§4.2.1) key off, the CLEO override opcodes (§4.2), and
// the NotImpl/ArchSpecific classification ranges (§4.2.1). A real host
// binary's opcode-parameter table spans thousands of entries this build
// has no access to; any opcode missing here surfaces as a non-fatal
// disassembly error on that path, exactly like any other "invalid bytecode
// on an unreached path" (spec.md §4.2.1) — it does not fail the scan.
func DefaultParamTable() ParamTable {
	t := ParamTable{
		// Control-flow opcodes: a single pointer argument immediately
		// after the opcode word.
		opReturn:         {ArgBytes: 0},
		opGoto:           {ArgBytes: 4, PointerSlots: []int{0}},
		opGotoIfFalse:    {ArgBytes: 4, PointerSlots: []int{0}},
		opGosubIfFalse:   {ArgBytes: 4, PointerSlots: []int{0}},
		opSwitchStart:    {ArgBytes: 4, PointerSlots: []int{0}},
		opCondGosub:      {ArgBytes: 4, PointerSlots: []int{0}},
		opSwitchContinue: {ArgBytes: 4, PointerSlots: []int{0}},

		// CLEO override opcodes (spec.md §4.2 table).
		0x004E: {ArgBytes: 0},  // Terminate
		0x00E1: {ArgBytes: 9},  // SetZoneFlag: 1-byte variadic count + 2 slots
		0x0DE0: {ArgBytes: 13}, // ReadZoneFlag: 4-byte output index + variadic(2)
		0x0DDC: {ArgBytes: 9},  // Mutex: variadic(2)
	}

	// ArchSpecific range (spec.md §4.2.1: "0x0DD0..=0x0DDB, 0x0DDE"),
	// treated here as zero-argument instructions; none of them are
	// control-flow opcodes so a fixed shape is enough to keep disassembly
	// moving past them.
	for op := uint16(0x0DD0); op <= 0x0DDB; op++ {
		if _, ok := t[op]; !ok {
			t[op] = ParamShape{ArgBytes: 0}
		}
	}
	t[0x0DDE] = ParamShape{ArgBytes: 0}

	// NotImpl range (spec.md §4.2.1: "0x0DD5, 0x0DD6, 0x0DE1..=0x0DF6").
	t[0x0DD5] = ParamShape{ArgBytes: 0}
	t[0x0DD6] = ParamShape{ArgBytes: 0}
	for op := uint16(0x0DE1); op <= 0x0DF6; op++ {
		if _, ok := t[op]; !ok {
			t[op] = ParamShape{ArgBytes: 0}
		}
	}

	return t
}
