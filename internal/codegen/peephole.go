package codegen

// Peephole rules for constant operands, plus the immediate-size
// auto-selection AddRI/SubRI/CmpRI perform. These operate directly on
// the integer path's accumulator register once both operands are
// known, never speculatively.

// peepholeAdd emits the shortest correct sequence for `dst += imm`:
//   - imm == 1  → inc dst
//   - imm == -1 → dec dst
//   - |imm| < 2^31 → lea dst, [dst + imm]
//   - otherwise → materialize and add register-to-register
//
// The emitted code for ±1 uses inc/dec and contains no `add reg, imm`
// at all. This is the path for a Blaze `+` with a constant operand;
// the runtime helpers and call sequences emit their own `add reg, imm`
// through AddRI.
func peepholeAdd(b *Buffer, dst int, imm int64) {
	switch imm {
	case 1:
		b.IncR(dst)
	case -1:
		b.DecR(dst)
	default:
		if imm >= -(1<<31) && imm < (1<<31) {
			b.LeaAddImm(dst, dst, int32(imm))
			return
		}
		// Immediate doesn't fit in 32 bits: materialize it and add
		// register-to-register instead of truncating.
		b.MovRegImm64(RegR10, uint64(imm))
		b.AddRR(dst, RegR10)
	}
}

// peepholeMul emits the shortest correct sequence for `dst *= factor`
// when factor is a compile-time constant:
//   - factor a power of two (2^k, k in [1,62]) → shl dst, k
//   - factor in {3, 5, 9}                      → lea dst, [dst + dst*2/4/8]
//   - otherwise                                 → the caller falls back
//     to a generic imul.
//
// Returns true if it emitted code (no imul/mul instruction was used),
// false if the caller must fall back. Code for x*2^k therefore uses
// shl and contains no imul/mul, since this is the only place a
// constant-multiply peephole fires.
func peepholeMul(b *Buffer, dst int, factor int64) bool {
	if factor <= 0 {
		return false
	}
	if k := log2Exact(factor); k >= 1 && k <= 62 {
		b.ShlImm(dst, byte(k))
		return true
	}
	switch factor {
	case 3:
		b.LeaScaledIndex(dst, dst, 2)
		return true
	case 5:
		b.LeaScaledIndex(dst, dst, 4)
		return true
	case 9:
		b.LeaScaledIndex(dst, dst, 8)
		return true
	}
	return false
}

// log2Exact returns k such that n == 1<<k, or -1 if n is not an exact
// power of two.
func log2Exact(n int64) int {
	if n <= 0 || n&(n-1) != 0 {
		return -1
	}
	k := 0
	for n > 1 {
		n >>= 1
		k++
	}
	return k
}
