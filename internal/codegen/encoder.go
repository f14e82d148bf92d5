package codegen

// === x86-64 instruction encoder ===
//
// Register numbering and encodings follow the AMD64 System V ABI
// convention: RAX=0, RCX=1, RDX=2, RBX=3, RSP=4, RBP=5,
// RSI=6, RDI=7, R8-R15=8-15. No operand validation beyond register
// range; callers are responsible for choosing sane operands.

const (
	RegRAX = 0
	RegRCX = 1
	RegRDX = 2
	RegRBX = 3
	RegRSP = 4
	RegRBP = 5
	RegRSI = 6
	RegRDI = 7
	RegR8  = 8
	RegR9  = 9
	RegR10 = 10
	RegR11 = 11
	RegR12 = 12
	RegR13 = 13
	RegR14 = 14
	RegR15 = 15
)

// Condition codes for Jcc/Setcc, as the two-byte-opcode 0x0F 0x8x / 0x9x forms.
const (
	CCEqual        = 0x84
	CCNotEqual     = 0x85
	CCLess         = 0x8C
	CCGreaterEqual = 0x8D
	CCLessEqual    = 0x8E
	CCGreater      = 0x8F

	// Unsigned/unordered forms, the ones ucomisd's flags actually match
	// (ucomisd sets CF/ZF/PF the way an unsigned integer compare would,
	// not SF/OF the way CCLess et al. assume).
	CCBelow      = 0x82
	CCBelowEqual = 0x86
	CCAboveEqual = 0x83
	CCAbove      = 0x87
)

// setccFromCC maps a Jcc condition code to its matching Setcc opcode byte.
func setccFromCC(cc byte) byte { return byte(0x90 | (cc & 0x0f)) }

// MovRegImm64 emits `movabs reg, imm64`.
func (b *Buffer) MovRegImm64(reg int, val uint64) {
	rex := byte(0x48)
	if reg >= 8 {
		rex = 0x49
	}
	b.EmitByte(rex)
	b.EmitByte(byte(0xb8 + (reg & 7)))
	b.EmitU64(val)
}

// LoadLocal emits `mov reg, [rbp - offset]`.
func (b *Buffer) LoadLocal(offset int, reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex = 0x4c
	}
	negOff := -offset
	if negOff >= -128 && negOff <= 127 {
		b.EmitBytes(rex, 0x8b, byte(0x45|(reg&7)<<3), byte(negOff))
	} else {
		b.EmitBytes(rex, 0x8b, byte(0x85|(reg&7)<<3))
		b.EmitU32(uint32(int32(negOff)))
	}
}

// StoreLocal emits `mov [rbp - offset], reg`.
func (b *Buffer) StoreLocal(offset int, reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex = 0x4c
	}
	negOff := -offset
	if negOff >= -128 && negOff <= 127 {
		b.EmitBytes(rex, 0x89, byte(0x45|(reg&7)<<3), byte(negOff))
	} else {
		b.EmitBytes(rex, 0x89, byte(0x85|(reg&7)<<3))
		b.EmitU32(uint32(int32(negOff)))
	}
}

// LeaLocal emits `lea reg, [rbp - offset]`.
func (b *Buffer) LeaLocal(offset int, reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex = 0x4c
	}
	negOff := -offset
	if negOff >= -128 && negOff <= 127 {
		b.EmitBytes(rex, 0x8d, byte(0x45|(reg&7)<<3), byte(negOff))
	} else {
		b.EmitBytes(rex, 0x8d, byte(0x85|(reg&7)<<3))
		b.EmitU32(uint32(int32(negOff)))
	}
}

// LeaRipRel emits `lea reg, [rip + disp32]` with a placeholder disp32
// and returns the offset of that disp32 for a later PatchRel32 call.
func (b *Buffer) LeaRipRel(reg int) int {
	rex := byte(0x48)
	if reg >= 8 {
		rex = 0x4c
	}
	b.EmitBytes(rex, 0x8d, byte(0x05|(reg&7)<<3))
	off := b.Position()
	b.EmitU32(0)
	return off
}

// MovLoadRipRel emits `mov reg, [rip + disp32]` with a placeholder
// disp32 and returns its offset for a later PatchRel32 call — used for
// the Windows IAT call sequence
// `mov rax, [rip+disp32]; call rax`.
func (b *Buffer) MovLoadRipRel(reg int) int {
	rex := byte(0x48)
	if reg >= 8 {
		rex = 0x4c
	}
	b.EmitBytes(rex, 0x8b, byte(0x05|(reg&7)<<3))
	off := b.Position()
	b.EmitU32(0)
	return off
}

// CallR emits `call reg`.
func (b *Buffer) CallR(reg int) {
	if reg >= 8 {
		b.EmitBytes(0x41, 0xff, byte(0xd0|(reg&7)))
	} else {
		b.EmitBytes(0xff, byte(0xd0|(reg&7)))
	}
}

// PushR emits `push reg` (REX.B for r8-r15).
func (b *Buffer) PushR(reg int) {
	if reg >= 8 {
		b.EmitBytes(0x41, byte(0x50+(reg&7)))
	} else {
		b.EmitByte(byte(0x50 + reg))
	}
}

// PopR emits `pop reg` (REX.B for r8-r15).
func (b *Buffer) PopR(reg int) {
	if reg >= 8 {
		b.EmitBytes(0x41, byte(0x58+(reg&7)))
	} else {
		b.EmitByte(byte(0x58 + reg))
	}
}

func rexRR(dst, src int) byte {
	rex := byte(0x48)
	if dst >= 8 {
		rex |= 0x04
	}
	if src >= 8 {
		rex |= 0x01
	}
	return rex
}

func modrmRR(dst, src int) byte {
	return byte(0xc0 | ((dst & 7) << 3) | (src & 7))
}

// MovRR emits `mov dst, src`.
func (b *Buffer) MovRR(dst, src int) { b.EmitBytes(rexRR(src, dst), 0x89, modrmRR(src, dst)) }

// AddRR emits `add dst, src`.
func (b *Buffer) AddRR(dst, src int) { b.EmitBytes(rexRR(src, dst), 0x01, modrmRR(src, dst)) }

// SubRR emits `sub dst, src`.
func (b *Buffer) SubRR(dst, src int) { b.EmitBytes(rexRR(src, dst), 0x29, modrmRR(src, dst)) }

// AndRR emits `and dst, src`.
func (b *Buffer) AndRR(dst, src int) { b.EmitBytes(rexRR(src, dst), 0x21, modrmRR(src, dst)) }

// OrRR emits `or dst, src`.
func (b *Buffer) OrRR(dst, src int) { b.EmitBytes(rexRR(src, dst), 0x09, modrmRR(src, dst)) }

// XorRR emits `xor dst, src`.
func (b *Buffer) XorRR(dst, src int) { b.EmitBytes(rexRR(src, dst), 0x31, modrmRR(src, dst)) }

// CmpRR emits `cmp a, b`.
func (b *Buffer) CmpRR(a, bb int) { b.EmitBytes(rexRR(bb, a), 0x39, modrmRR(bb, a)) }

// TestRR emits `test a, b`.
func (b *Buffer) TestRR(a, bb int) { b.EmitBytes(rexRR(bb, a), 0x85, modrmRR(bb, a)) }

// ImulRR emits `imul dst, src` (two-byte opcode 0F AF).
func (b *Buffer) ImulRR(dst, src int) { b.EmitBytes(rexRR(dst, src), 0x0f, 0xaf, modrmRR(dst, src)) }

// NegR emits `neg reg`.
func (b *Buffer) NegR(reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	b.EmitBytes(rex, 0xf7, byte(0xd8|(reg&7)))
}

// NotR emits `not reg`.
func (b *Buffer) NotR(reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	b.EmitBytes(rex, 0xf7, byte(0xd0|(reg&7)))
}

// IncR emits `inc reg`.
func (b *Buffer) IncR(reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	b.EmitBytes(rex, 0xff, byte(0xc0|(reg&7)))
}

// DecR emits `dec reg`.
func (b *Buffer) DecR(reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	b.EmitBytes(rex, 0xff, byte(0xc8|(reg&7)))
}

// Cqo emits `cqo` (sign-extend RAX into RDX:RAX).
func (b *Buffer) Cqo() { b.EmitBytes(0x48, 0x99) }

// IdivR emits `idiv reg`.
func (b *Buffer) IdivR(reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	b.EmitBytes(rex, 0xf7, byte(0xf8|(reg&7)))
}

// ShlCl emits `shl reg, cl`.
func (b *Buffer) ShlCl(reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	b.EmitBytes(rex, 0xd3, byte(0xe0|(reg&7)))
}

// ShrCl emits `shr reg, cl`.
func (b *Buffer) ShrCl(reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	b.EmitBytes(rex, 0xd3, byte(0xe8|(reg&7)))
}

// ShlImm emits `shl reg, imm8`.
func (b *Buffer) ShlImm(reg int, n byte) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	b.EmitBytes(rex, 0xc1, byte(0xe0|(reg&7)), n)
}

// Syscall emits the `syscall` instruction.
func (b *Buffer) Syscall() { b.EmitBytes(0x0f, 0x05) }

// AddRI emits `add reg, imm` auto-selecting imm8 or imm32 by
// magnitude.
func (b *Buffer) AddRI(reg int, val int32) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	if val >= -128 && val <= 127 {
		b.EmitBytes(rex, 0x83, byte(0xc0|(reg&7)), byte(val))
		return
	}
	if reg == RegRAX {
		b.EmitBytes(rex, 0x05)
	} else {
		b.EmitBytes(rex, 0x81, byte(0xc0|(reg&7)))
	}
	b.EmitU32(uint32(val))
}

// SubRI emits `sub reg, imm` auto-selecting imm8 or imm32.
func (b *Buffer) SubRI(reg int, val int32) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	if val >= -128 && val <= 127 {
		b.EmitBytes(rex, 0x83, byte(0xe8|(reg&7)), byte(val))
		return
	}
	b.EmitBytes(rex, 0x81, byte(0xe8|(reg&7)))
	b.EmitU32(uint32(val))
}

// CmpRI emits `cmp reg, imm` auto-selecting imm8 or imm32.
func (b *Buffer) CmpRI(reg int, val int32) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	if val >= -128 && val <= 127 {
		b.EmitBytes(rex, 0x83, byte(0xf8|(reg&7)), byte(val))
		return
	}
	b.EmitBytes(rex, 0x81, byte(0xf8|(reg&7)))
	b.EmitU32(uint32(val))
}

// LeaAddImm emits `lea dst, [src + imm32]` — used for the small-constant
// add peephole.
func (b *Buffer) LeaAddImm(dst, src int, imm int32) {
	rex := rexRR(dst, src)
	if (src & 7) == RegRSP {
		b.EmitBytes(rex, 0x8d, byte(0x80|(dst&7)<<3|(src&7)), 0x24)
		b.EmitU32(uint32(imm))
		return
	}
	b.EmitBytes(rex, 0x8d, byte(0x80|(dst&7)<<3|(src&7)))
	b.EmitU32(uint32(imm))
}

// LeaScaledIndex emits `lea dst, [src + src*scale]` for the ×3/×5/×9
// peephole, where scale is 2, 4, or 8.
func (b *Buffer) LeaScaledIndex(dst, src int, scale byte) {
	var ss byte
	switch scale {
	case 2:
		ss = 0x40
	case 4:
		ss = 0x80
	case 8:
		ss = 0xc0
	}
	rex := byte(0x48)
	if dst >= 8 {
		rex |= 0x04
	}
	if src >= 8 {
		rex |= 0x01 | 0x02 // REX.B and REX.X: same physical reg as base and index
	}
	modrm := byte(0x04 | (dst&7)<<3) // mod=00, rm=100 (SIB follows)
	sib := ss | byte((src&7)<<3) | byte(src&7)
	b.EmitBytes(rex, 0x8d, modrm, sib)
}

// setcc emits `setCC reg_lo8` for a condition code constant.
func (b *Buffer) setcc(cc byte, reg int) {
	op := setccFromCC(cc)
	if reg >= 8 {
		b.EmitBytes(0x41, 0x0f, op, byte(0xc0|(reg&7)))
	} else {
		b.EmitBytes(0x0f, op, byte(0xc0|(reg&7)))
	}
}

// SetE/SetNE/... wrap setcc with the condition spelled out.
func (b *Buffer) SetE(reg int)  { b.setcc(CCEqual, reg) }
func (b *Buffer) SetNE(reg int) { b.setcc(CCNotEqual, reg) }
func (b *Buffer) SetL(reg int)  { b.setcc(CCLess, reg) }
func (b *Buffer) SetLE(reg int) { b.setcc(CCLessEqual, reg) }
func (b *Buffer) SetG(reg int)  { b.setcc(CCGreater, reg) }
func (b *Buffer) SetGE(reg int) { b.setcc(CCGreaterEqual, reg) }

// SetB/SetA/SetBE/SetAE wrap the unsigned/unordered condition codes
// ucomisd's flags actually satisfy.
func (b *Buffer) SetB(reg int)  { b.setcc(CCBelow, reg) }
func (b *Buffer) SetA(reg int)  { b.setcc(CCAbove, reg) }
func (b *Buffer) SetBE(reg int) { b.setcc(CCBelowEqual, reg) }
func (b *Buffer) SetAE(reg int) { b.setcc(CCAboveEqual, reg) }

// MovzxB emits `movzx reg, reg_lo8`.
func (b *Buffer) MovzxB(reg int) {
	rex := rexRR(reg, reg)
	b.EmitBytes(rex, 0x0f, 0xb6, modrmRR(reg, reg))
}

// === Control flow ===

// JmpRel32 emits `jmp rel32` with a zero placeholder and returns the
// fixup offset for a later PatchRel32/PatchRel32Here call.
func (b *Buffer) JmpRel32() int {
	b.EmitByte(0xe9)
	off := b.Position()
	b.EmitU32(0)
	return off
}

// JccRel32 emits `jCC rel32` and returns the fixup offset.
func (b *Buffer) JccRel32(cc byte) int {
	b.EmitBytes(0x0f, cc)
	off := b.Position()
	b.EmitU32(0)
	return off
}

// JmpRel8 emits `jmp rel8` with a zero placeholder and returns the
// fixup offset for PatchRel8. Codegen itself always emits the rel32
// forms (jump distances aren't known until the target is), but the
// short forms are part of the encoder's contract.
func (b *Buffer) JmpRel8() int {
	b.EmitByte(0xeb)
	off := b.Position()
	b.EmitByte(0)
	return off
}

// JccRel8 emits `jCC rel8` (short form: the rel32 opcode's low nibble
// on 0x70) and returns the fixup offset.
func (b *Buffer) JccRel8(cc byte) int {
	b.EmitByte(0x70 | (cc & 0x0f))
	off := b.Position()
	b.EmitByte(0)
	return off
}

// CallRel32 emits `call rel32` with a placeholder and returns the
// fixup offset.
func (b *Buffer) CallRel32() int {
	b.EmitByte(0xe8)
	off := b.Position()
	b.EmitU32(0)
	return off
}

// Ret emits `ret`.
func (b *Buffer) Ret() { b.EmitByte(0xc3) }

// === Frame management ===

// PushRBP/PopRBP/MovRBPRSP/SubRSPImm32 assemble the standard
// push-rbp/mov-rbp,rsp prologue and matching epilogue.
func (b *Buffer) PushRBP() { b.PushR(RegRBP) }
func (b *Buffer) PopRBP()  { b.PopR(RegRBP) }
func (b *Buffer) MovRBPRSP() {
	b.EmitBytes(0x48, 0x89, 0xe5) // mov rbp, rsp
}
func (b *Buffer) MovRSPRBP() {
	b.EmitBytes(0x48, 0x89, 0xec) // mov rsp, rbp
}

// SubRSPImm32 emits `sub rsp, imm32`, reserving stack space for locals.
func (b *Buffer) SubRSPImm32(n uint32) {
	b.EmitBytes(0x48, 0x81, 0xec)
	b.EmitU32(n)
}

// rsp-based disp8 addressing needs a SIB byte (rm=100 escapes to SIB;
// base=RSP, no index). Used for the Microsoft x64 shadow-space slots.
func (b *Buffer) rspDisp8(rex byte, op byte, reg int, disp int8) {
	b.EmitBytes(rex, op, byte(0x44|(reg&7)<<3), 0x24, byte(disp))
}

func rexRSPDisp(reg int) byte {
	if reg >= 8 {
		return 0x4c
	}
	return 0x48
}

// MovLoadRSPDisp8 emits `mov reg, [rsp + disp]`.
func (b *Buffer) MovLoadRSPDisp8(reg int, disp int8) {
	b.rspDisp8(rexRSPDisp(reg), 0x8b, reg, disp)
}

// MovStoreRSPDisp8 emits `mov [rsp + disp], reg`.
func (b *Buffer) MovStoreRSPDisp8(disp int8, reg int) {
	b.rspDisp8(rexRSPDisp(reg), 0x89, reg, disp)
}

// LeaRSPDisp8 emits `lea reg, [rsp + disp]`.
func (b *Buffer) LeaRSPDisp8(reg int, disp int8) {
	b.rspDisp8(rexRSPDisp(reg), 0x8d, reg, disp)
}

// === SSE scalar double-precision ===

func rexSSE(reg, rm int) byte {
	rex := byte(0x40)
	if reg >= 8 {
		rex |= 0x04
	}
	if rm >= 8 {
		rex |= 0x01
	}
	return rex
}

func emitSSEPrefixed(b *Buffer, rex byte, op byte, modrm byte) {
	if rex != 0x40 {
		b.EmitBytes(0xf2, rex, 0x0f, op, modrm)
	} else {
		b.EmitBytes(0xf2, 0x0f, op, modrm)
	}
}

// MovsdRR emits `movsd xmm_dst, xmm_src`.
func (b *Buffer) MovsdRR(dst, src int) {
	emitSSEPrefixed(b, rexSSE(dst, src), 0x10, modrmRR(dst, src))
}

// MovsdLoad emits `movsd xmm_dst, [rbp - offset]`.
func (b *Buffer) MovsdLoad(offset int, xmmDst int) {
	rex := rexSSE(xmmDst, RegRBP)
	negOff := -offset
	modrm := byte(0x45 | (xmmDst&7)<<3)
	if negOff < -128 || negOff > 127 {
		modrm = byte(0x85 | (xmmDst&7)<<3)
	}
	if rex != 0x40 {
		b.EmitBytes(0xf2, rex, 0x0f, 0x10, modrm)
	} else {
		b.EmitBytes(0xf2, 0x0f, 0x10, modrm)
	}
	if negOff >= -128 && negOff <= 127 {
		b.EmitByte(byte(negOff))
	} else {
		b.EmitU32(uint32(int32(negOff)))
	}
}

// MovsdStore emits `movsd [rbp - offset], xmm_src`.
func (b *Buffer) MovsdStore(offset int, xmmSrc int) {
	rex := rexSSE(xmmSrc, RegRBP)
	negOff := -offset
	modrm := byte(0x45 | (xmmSrc&7)<<3)
	if negOff < -128 || negOff > 127 {
		modrm = byte(0x85 | (xmmSrc&7)<<3)
	}
	if rex != 0x40 {
		b.EmitBytes(0xf2, rex, 0x0f, 0x11, modrm)
	} else {
		b.EmitBytes(0xf2, 0x0f, 0x11, modrm)
	}
	if negOff >= -128 && negOff <= 127 {
		b.EmitByte(byte(negOff))
	} else {
		b.EmitU32(uint32(int32(negOff)))
	}
}

// MovsdLoadRSP emits `movsd xmm_dst, [rsp]` — used by the float
// materialization stack trampoline.
func (b *Buffer) MovsdLoadRSP(xmmDst int) {
	rex := rexSSE(xmmDst, RegRSP)
	if rex != 0x40 {
		b.EmitBytes(0xf2, rex, 0x0f, 0x10, byte(0x04|(xmmDst&7)<<3), 0x24)
	} else {
		b.EmitBytes(0xf2, 0x0f, 0x10, byte(0x04|(xmmDst&7)<<3), 0x24)
	}
}

// MovsdStoreRSP emits `movsd [rsp], xmm_src`.
func (b *Buffer) MovsdStoreRSP(xmmSrc int) {
	rex := rexSSE(xmmSrc, RegRSP)
	if rex != 0x40 {
		b.EmitBytes(0xf2, rex, 0x0f, 0x11, byte(0x04|(xmmSrc&7)<<3), 0x24)
	} else {
		b.EmitBytes(0xf2, 0x0f, 0x11, byte(0x04|(xmmSrc&7)<<3), 0x24)
	}
}

// PushXmm0 reserves 8 bytes of stack and stores XMM0 there, the
// float-argument half of the call convention's "push each evaluated
// argument" rule.
func (b *Buffer) PushXmm0() {
	b.SubRSPImm32(8)
	b.MovsdStoreRSP(0)
}

func (b *Buffer) sseArith(op byte, dst, src int) {
	emitSSEPrefixed(b, rexSSE(dst, src), op, modrmRR(dst, src))
}

// Addsd/Subsd/Mulsd/Divsd emit `OPsd xmm_dst, xmm_src`.
func (b *Buffer) Addsd(dst, src int) { b.sseArith(0x58, dst, src) }
func (b *Buffer) Subsd(dst, src int) { b.sseArith(0x5c, dst, src) }
func (b *Buffer) Mulsd(dst, src int) { b.sseArith(0x59, dst, src) }
func (b *Buffer) Divsd(dst, src int) { b.sseArith(0x5e, dst, src) }

// Ucomisd emits `ucomisd xmm_a, xmm_b` (66 0F 2E /r), comparing two
// doubles and setting ZF/PF/CF the way an unsigned integer compare
// would — so the CCBelow/CCBelowEqual/CCAbove/CCAboveEqual/CCEqual/
// CCNotEqual condition codes (not CCLess et al.) are the ones that
// read its result correctly.
func (b *Buffer) Ucomisd(a, bb int) {
	rex := rexSSE(a, bb)
	if rex != 0x40 {
		b.EmitBytes(0x66, rex, 0x0f, 0x2e, modrmRR(a, bb))
	} else {
		b.EmitBytes(0x66, 0x0f, 0x2e, modrmRR(a, bb))
	}
}

// Cvtsi2sd emits `cvtsi2sd xmm_dst, reg_src` (GPR → double).
func (b *Buffer) Cvtsi2sd(xmmDst, gprSrc int) {
	rex := byte(0x48)
	if xmmDst >= 8 {
		rex |= 0x04
	}
	if gprSrc >= 8 {
		rex |= 0x01
	}
	b.EmitBytes(0xf2, rex, 0x0f, 0x2a, modrmRR(xmmDst, gprSrc))
}

// Cvtsd2si emits `cvtsd2si reg_dst, xmm_src` (double → GPR, rounded
// per the MXCSR rounding mode, not truncated).
func (b *Buffer) Cvtsd2si(gprDst, xmmSrc int) {
	rex := byte(0x48)
	if gprDst >= 8 {
		rex |= 0x04
	}
	if xmmSrc >= 8 {
		rex |= 0x01
	}
	b.EmitBytes(0xf2, rex, 0x0f, 0x2d, modrmRR(gprDst, xmmSrc))
}
