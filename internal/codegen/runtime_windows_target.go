package codegen

// Windows character output and process exit, emitted via the Import
// Address Table: `mov rax, [rip+disp32]; call
// rax` against a kernel32 export, Microsoft x64 ABI (args in
// RCX/RDX/R8/R9, 32-byte shadow space, 16-byte stack alignment before
// `call`). internal/binary resolves each ImportFixup's disp32 once it
// knows the .idata layout.
//
// The console handle lives in R13 while a print helper runs: R13 is
// callee-saved under the Microsoft ABI, so kernel32 preserves it
// across WriteConsoleA, and nothing else in codegen touches it.

var stdOutputHandle int64 = -11 // STD_OUTPUT_HANDLE, per the Windows console API

// callIAT emits `mov rax, [rip+disp32]; call rax` against name,
// recording an ImportFixup for internal/binary to resolve later.
func (g *Generator) callIAT(name string) {
	fix := g.buf.MovLoadRipRel(RegRAX)
	g.importFixups = append(g.importFixups, ImportFixup{Offset: fix, Name: name})
	g.buf.CallR(RegRAX)
}

// getStdHandleWindows calls GetStdHandle(STD_OUTPUT_HANDLE) and moves
// the console handle into R13, reserving and releasing its own shadow
// space.
func (g *Generator) getStdHandleWindows() {
	g.buf.SubRSPImm32(40)
	g.buf.MovRegImm64(RegRCX, uint64(int64(stdOutputHandle)))
	g.callIAT("GetStdHandle")
	g.buf.AddRI(RegRSP, 40)
	g.buf.MovRR(RegR13, RegRAX)
}

// writeBufWindows writes length bytes at RIP-relative offset off to
// the console handle in R13 via
// WriteConsoleA(handle, buffer, nChars, &written, NULL).
func (g *Generator) writeBufWindows(off, length int) {
	// 32 bytes shadow space, the fifth (stack) argument at [rsp+32],
	// and a scratch qword for lpNumberOfCharsWritten at [rsp+40].
	g.buf.SubRSPImm32(56)
	g.buf.MovRR(RegRCX, RegR13)
	fix := g.buf.LeaRipRel(RegRDX)
	g.buf.PatchRel32(fix, off)
	g.buf.MovRegImm64(RegR8, uint64(length))
	g.buf.LeaRSPDisp8(RegR9, 40)
	g.buf.MovRegImm64(RegRAX, 0)
	g.buf.MovStoreRSPDisp8(32, RegRAX)
	g.callIAT("WriteConsoleA")
	g.buf.AddRI(RegRSP, 56)
}

// emitExitWindows calls ExitProcess(code).
func (g *Generator) emitExitWindows(code int64) {
	g.buf.SubRSPImm32(40)
	g.buf.MovRegImm64(RegRCX, uint64(code))
	g.callIAT("ExitProcess")
}

// printLiteralWindows embeds text and writes it to the console.
func (g *Generator) printLiteralWindows(text string) {
	s := g.embedString(text)
	g.getStdHandleWindows()
	g.writeBufWindows(s.Offset, s.Length)
}

// printIntWindows prints the non-negative integer in RAX as decimal
// followed by a newline. Digit extraction mirrors printIntLinux; only
// the character-output primitive differs between platforms.
func (g *Generator) printIntWindows() {
	g.printDecimalDigitsWindows()
	g.printLiteralWindows("\n")
}

// printDecimalDigitsWindows mirrors printDecimalDigitsLinux: digits
// pushed least-significant-first, then written top-of-stack-down so
// they come out most-significant-first. The digit count lives in RBX
// and the handle in R13, both preserved by WriteConsoleA.
func (g *Generator) printDecimalDigitsWindows() {
	g.buf.MovRegImm64(RegRBX, 0)
	g.buf.MovRegImm64(RegR8, 10)
	loopStart := g.buf.Position()
	g.buf.Cqo()
	g.buf.IdivR(RegR8)
	g.buf.AddRI(RegRDX, int32('0'))
	g.buf.PushR(RegRDX)
	g.buf.IncR(RegRBX)
	g.buf.TestRR(RegRAX, RegRAX)
	jnz := g.buf.JccRel32(CCNotEqual)
	g.buf.PatchRel32(jnz, loopStart)

	g.getStdHandleWindows()
	printLoop := g.buf.Position()
	g.writeByteAtRSPWindows()
	g.buf.PopR(RegR9)
	g.buf.DecR(RegRBX)
	g.buf.TestRR(RegRBX, RegRBX)
	jnzPrint := g.buf.JccRel32(CCNotEqual)
	g.buf.PatchRel32(jnzPrint, printLoop)
}

// writeByteAtRSPWindows writes the single byte currently at [rsp] to
// the console handle in R13 (used mid-loop, one digit at a time). The
// digit qword stays on the stack; it sits at [rsp+56] once the call
// frame below it is reserved.
func (g *Generator) writeByteAtRSPWindows() {
	g.buf.SubRSPImm32(56)
	g.buf.MovRR(RegRCX, RegR13)
	g.buf.LeaRSPDisp8(RegRDX, 56)
	g.buf.MovRegImm64(RegR8, 1)
	g.buf.LeaRSPDisp8(RegR9, 40)
	g.buf.MovRegImm64(RegRAX, 0)
	g.buf.MovStoreRSPDisp8(32, RegRAX)
	g.callIAT("WriteConsoleA")
	g.buf.AddRI(RegRSP, 56)
}

// printBoolWindows mirrors printBoolLinux, through the console handle.
func (g *Generator) printBoolWindows() {
	g.buf.TestRR(RegRAX, RegRAX)
	isZero := g.buf.JccRel32(CCEqual)
	g.printLiteralWindows("true\n")
	done := g.buf.JmpRel32()
	g.buf.PatchRel32Here(isZero)
	g.printLiteralWindows("false\n")
	g.buf.PatchRel32Here(done)
}

// printFloatWindows mirrors printFloatLinux, through the console handle.
func (g *Generator) printFloatWindows() {
	g.buf.MovsdRR(1, 0)
	g.loadFloatImm(1000000.0)
	g.buf.Mulsd(1, 0)
	g.buf.Cvtsd2si(RegRAX, 1)
	g.buf.MovRegImm64(RegR9, 1000000)
	g.buf.Cqo()
	g.buf.IdivR(RegR9)
	// R12 survives the WriteConsoleA calls the digit printer makes.
	g.buf.MovRR(RegR12, RegRDX)
	g.printDecimalDigitsWindows()
	g.printLiteralWindows(".")
	g.buf.MovRR(RegRAX, RegR12)
	g.printFixedFracWindows()
	g.printLiteralWindows("\n")
}

func (g *Generator) printFixedFracWindows() {
	g.buf.MovRegImm64(RegR8, 10)
	for i := 0; i < 6; i++ {
		g.buf.Cqo()
		g.buf.IdivR(RegR8)
		g.buf.AddRI(RegRDX, int32('0'))
		g.buf.PushR(RegRDX)
	}
	g.getStdHandleWindows()
	for i := 0; i < 6; i++ {
		g.writeByteAtRSPWindows()
		g.buf.PopR(RegR9)
	}
}
