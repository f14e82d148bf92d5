package codegen

import "golang.org/x/sys/unix"

// Linux character output and process exit, emitted as direct
// syscalls: write=1, exit=60, arguments in
// RDI/RSI/RDX/R10/R8/R9, syscall number in RAX. golang.org/x/sys/unix
// supplies the syscall numbers as named constants instead of magic
// immediates — this is a compile-time constant, the
// generated code still issues a raw `syscall` instruction rather than
// calling into the Go runtime.

// writeBufLinux emits code that writes length bytes starting at the
// RIP-relative offset off to stdout via a direct `write` syscall.
func (g *Generator) writeBufLinux(off, length int) {
	fix := g.buf.LeaRipRel(RegRSI)
	g.buf.PatchRel32(fix, off)
	g.buf.MovRegImm64(RegRDI, 1) // fd = stdout
	g.buf.MovRegImm64(RegRDX, uint64(length))
	g.buf.MovRegImm64(RegRAX, uint64(unix.SYS_WRITE))
	g.buf.Syscall()
}

// writeByteAtRSPLinux writes the single byte currently at [rsp] to
// stdout — used by printIntLinux to emit one decimal digit at a time.
func (g *Generator) writeByteAtRSPLinux() {
	g.buf.MovRR(RegRSI, RegRSP)
	g.buf.MovRegImm64(RegRDI, 1)
	g.buf.MovRegImm64(RegRDX, 1)
	g.buf.MovRegImm64(RegRAX, uint64(unix.SYS_WRITE))
	g.buf.Syscall()
}

// emitExitLinux emits `mov rdi, code; mov rax, SYS_exit; syscall`.
func (g *Generator) emitExitLinux(code int64) {
	g.buf.MovRegImm64(RegRDI, uint64(code))
	g.buf.MovRegImm64(RegRAX, uint64(unix.SYS_EXIT))
	g.buf.Syscall()
}

// printLiteralLinux embeds text (already escape-decoded) and writes
// it to stdout in one syscall.
func (g *Generator) printLiteralLinux(text string) {
	s := g.embedString(text)
	g.writeBufLinux(s.Offset, s.Length)
}

// printIntLinux prints the non-negative integer in RAX as decimal
// followed by a newline. There is no sign handling: a negative value
// does not print correctly.
func (g *Generator) printIntLinux() {
	g.printDecimalDigitsLinux()
	g.printLiteralLinux("\n")
}

// printDecimalDigitsLinux prints the non-negative integer in RAX as
// plain decimal digits, no newline: digits are produced by repeated
// idiv 10 and pushed to the stack, which naturally yields them
// most-significant-first once popped back off, since the last digit
// computed (the leading one) is the last one pushed and therefore the
// first one popped. A value of exactly zero falls out of the same
// loop without a separate branch: the first division of 0 by 10
// yields quotient 0, remainder 0, so the loop emits a single '0'
// digit and terminates.
func (g *Generator) printDecimalDigitsLinux() {
	// RBX holds the digit count: the syscall instruction clobbers RCX
	// and R11, so the counter has to live in a register the kernel
	// preserves across the per-digit write below.
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

	// Pop and print each digit; RBX already holds the count.
	printLoop := g.buf.Position()
	g.writeByteAtRSPLinux()
	g.buf.PopR(RegR9)
	g.buf.DecR(RegRBX)
	g.buf.TestRR(RegRBX, RegRBX)
	jnzPrint := g.buf.JccRel32(CCNotEqual)
	g.buf.PatchRel32(jnzPrint, printLoop)
}

// printBoolLinux prints "true\n" or "false\n" depending on whether RAX
// is zero, by branching to one of two embedded literals rather than
// computing a string at run time.
func (g *Generator) printBoolLinux() {
	g.buf.TestRR(RegRAX, RegRAX)
	isZero := g.buf.JccRel32(CCEqual)
	g.printLiteralLinux("true\n")
	done := g.buf.JmpRel32()
	g.buf.PatchRel32Here(isZero)
	g.printLiteralLinux("false\n")
	g.buf.PatchRel32Here(done)
}

// printFloatLinux prints the double in XMM0 as a fixed-point decimal
// with exactly six fractional digits: multiply by 10^6,
// convert to an integer with cvtsd2si (which rounds under the current
// MXCSR mode, round-to-nearest by default), split into whole and fractional parts with
// one idiv, and print each with the integer digit printer. Negative
// values are out of scope, matching printDecimalDigitsLinux's own
// no-sign-support treatment of integers.
func (g *Generator) printFloatLinux() {
	g.buf.MovsdRR(1, 0)
	g.loadFloatImm(1000000.0)
	g.buf.Mulsd(1, 0)
	g.buf.Cvtsd2si(RegRAX, 1)
	g.buf.MovRegImm64(RegR9, 1000000)
	g.buf.Cqo()
	g.buf.IdivR(RegR9)
	// R12 survives the syscalls the digit printer issues; R11 does not.
	g.buf.MovRR(RegR12, RegRDX)
	g.printDecimalDigitsLinux()
	g.printLiteralLinux(".")
	g.buf.MovRR(RegRAX, RegR12)
	g.printFixedFracLinux()
	g.printLiteralLinux("\n")
}

// printFixedFracLinux prints the 6-digit, zero-padded fractional part
// held in RAX (0 <= RAX < 1_000_000), used by the fixed-point float
// print helper.
func (g *Generator) printFixedFracLinux() {
	g.buf.MovRegImm64(RegR8, 10)
	for i := 0; i < 6; i++ {
		g.buf.Cqo()
		g.buf.IdivR(RegR8)
		g.buf.AddRI(RegRDX, int32('0'))
		g.buf.PushR(RegRDX)
	}
	for i := 0; i < 6; i++ {
		g.writeByteAtRSPLinux()
		g.buf.PopR(RegR9)
	}
}
