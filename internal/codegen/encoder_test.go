package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Encoding expectations below were cross-checked against a
// disassembler; each case is one emit primitive, bit for bit.

func enc(f func(b *Buffer)) []byte {
	b := NewBuffer(PlatformLinux)
	f(b)
	return b.Bytes()
}

func TestMovRegImm64(t *testing.T) {
	assert.Equal(t,
		[]byte{0x48, 0xb8, 0x2a, 0, 0, 0, 0, 0, 0, 0},
		enc(func(b *Buffer) { b.MovRegImm64(RegRAX, 42) }))
	assert.Equal(t,
		[]byte{0x49, 0xba, 0x01, 0, 0, 0, 0, 0, 0, 0},
		enc(func(b *Buffer) { b.MovRegImm64(RegR10, 1) }))
}

func TestMovAndArithRR(t *testing.T) {
	tests := []struct {
		name string
		f    func(b *Buffer)
		want []byte
	}{
		{"mov rcx, rax", func(b *Buffer) { b.MovRR(RegRCX, RegRAX) }, []byte{0x48, 0x89, 0xc1}},
		{"mov r10, rax", func(b *Buffer) { b.MovRR(RegR10, RegRAX) }, []byte{0x49, 0x89, 0xc2}},
		{"add rax, rdx", func(b *Buffer) { b.AddRR(RegRAX, RegRDX) }, []byte{0x48, 0x01, 0xd0}},
		{"sub rax, rdx", func(b *Buffer) { b.SubRR(RegRAX, RegRDX) }, []byte{0x48, 0x29, 0xd0}},
		{"and rax, rdx", func(b *Buffer) { b.AndRR(RegRAX, RegRDX) }, []byte{0x48, 0x21, 0xd0}},
		{"or rax, rdx", func(b *Buffer) { b.OrRR(RegRAX, RegRDX) }, []byte{0x48, 0x09, 0xd0}},
		{"xor rax, rdx", func(b *Buffer) { b.XorRR(RegRAX, RegRDX) }, []byte{0x48, 0x31, 0xd0}},
		{"cmp rax, r10", func(b *Buffer) { b.CmpRR(RegRAX, RegR10) }, []byte{0x4c, 0x39, 0xd0}},
		{"test rax, rax", func(b *Buffer) { b.TestRR(RegRAX, RegRAX) }, []byte{0x48, 0x85, 0xc0}},
		{"imul rax, rcx", func(b *Buffer) { b.ImulRR(RegRAX, RegRCX) }, []byte{0x48, 0x0f, 0xaf, 0xc1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, enc(tt.f))
		})
	}
}

func TestUnaryRegOps(t *testing.T) {
	assert.Equal(t, []byte{0x48, 0xf7, 0xd8}, enc(func(b *Buffer) { b.NegR(RegRAX) }))
	assert.Equal(t, []byte{0x48, 0xf7, 0xd0}, enc(func(b *Buffer) { b.NotR(RegRAX) }))
	assert.Equal(t, []byte{0x48, 0xff, 0xc0}, enc(func(b *Buffer) { b.IncR(RegRAX) }))
	assert.Equal(t, []byte{0x48, 0xff, 0xc8}, enc(func(b *Buffer) { b.DecR(RegRAX) }))
	assert.Equal(t, []byte{0x49, 0xff, 0xc3}, enc(func(b *Buffer) { b.IncR(RegR11) }))
}

func TestDivideAndShift(t *testing.T) {
	assert.Equal(t, []byte{0x48, 0x99}, enc(func(b *Buffer) { b.Cqo() }))
	assert.Equal(t, []byte{0x48, 0xf7, 0xf9}, enc(func(b *Buffer) { b.IdivR(RegRCX) }))
	assert.Equal(t, []byte{0x48, 0xd3, 0xe0}, enc(func(b *Buffer) { b.ShlCl(RegRAX) }))
	assert.Equal(t, []byte{0x48, 0xd3, 0xe8}, enc(func(b *Buffer) { b.ShrCl(RegRAX) }))
	assert.Equal(t, []byte{0x48, 0xc1, 0xe0, 0x03}, enc(func(b *Buffer) { b.ShlImm(RegRAX, 3) }))
}

func TestImmediateSizeSelection(t *testing.T) {
	// imm8 form for small values, imm32 otherwise.
	assert.Equal(t, []byte{0x48, 0x83, 0xc0, 0x08}, enc(func(b *Buffer) { b.AddRI(RegRAX, 8) }))
	assert.Equal(t, []byte{0x48, 0x05, 0x00, 0x01, 0x00, 0x00}, enc(func(b *Buffer) { b.AddRI(RegRAX, 256) }))
	assert.Equal(t, []byte{0x48, 0x83, 0xe8, 0x08}, enc(func(b *Buffer) { b.SubRI(RegRAX, 8) }))
	assert.Equal(t, []byte{0x48, 0x83, 0xf8, 0x03}, enc(func(b *Buffer) { b.CmpRI(RegRAX, 3) }))
}

func TestLocalLoadsAndStores(t *testing.T) {
	assert.Equal(t, []byte{0x48, 0x8b, 0x45, 0xf8}, enc(func(b *Buffer) { b.LoadLocal(8, RegRAX) }))
	assert.Equal(t, []byte{0x48, 0x89, 0x45, 0xf8}, enc(func(b *Buffer) { b.StoreLocal(8, RegRAX) }))
	// Negative offset arguments address above rbp (function parameters).
	assert.Equal(t, []byte{0x48, 0x8b, 0x45, 0x10}, enc(func(b *Buffer) { b.LoadLocal(-16, RegRAX) }))
	// Large offsets switch to disp32.
	assert.Equal(t, []byte{0x48, 0x8b, 0x85, 0x00, 0xff, 0xff, 0xff},
		enc(func(b *Buffer) { b.LoadLocal(256, RegRAX) }))
}

func TestLeaForms(t *testing.T) {
	assert.Equal(t, []byte{0x48, 0x8d, 0x80, 0x05, 0x00, 0x00, 0x00},
		enc(func(b *Buffer) { b.LeaAddImm(RegRAX, RegRAX, 5) }))
	// lea rax, [rax + rax*2] / *4 / *8: the x3/x5/x9 multiply peepholes.
	assert.Equal(t, []byte{0x48, 0x8d, 0x04, 0x40}, enc(func(b *Buffer) { b.LeaScaledIndex(RegRAX, RegRAX, 2) }))
	assert.Equal(t, []byte{0x48, 0x8d, 0x04, 0x80}, enc(func(b *Buffer) { b.LeaScaledIndex(RegRAX, RegRAX, 4) }))
	assert.Equal(t, []byte{0x48, 0x8d, 0x04, 0xc0}, enc(func(b *Buffer) { b.LeaScaledIndex(RegRAX, RegRAX, 8) }))
}

func TestRSPDisp8Forms(t *testing.T) {
	assert.Equal(t, []byte{0x48, 0x8b, 0x44, 0x24, 0x10},
		enc(func(b *Buffer) { b.MovLoadRSPDisp8(RegRAX, 16) }))
	assert.Equal(t, []byte{0x48, 0x89, 0x44, 0x24, 0x20},
		enc(func(b *Buffer) { b.MovStoreRSPDisp8(32, RegRAX) }))
	assert.Equal(t, []byte{0x4c, 0x8d, 0x4c, 0x24, 0x28},
		enc(func(b *Buffer) { b.LeaRSPDisp8(RegR9, 40) }))
}

func TestPushPop(t *testing.T) {
	assert.Equal(t, []byte{0x55}, enc(func(b *Buffer) { b.PushR(RegRBP) }))
	assert.Equal(t, []byte{0x5d}, enc(func(b *Buffer) { b.PopR(RegRBP) }))
	assert.Equal(t, []byte{0x41, 0x52}, enc(func(b *Buffer) { b.PushR(RegR10) }))
	assert.Equal(t, []byte{0x41, 0x5a}, enc(func(b *Buffer) { b.PopR(RegR10) }))
}

func TestSetccAndMovzx(t *testing.T) {
	assert.Equal(t, []byte{0x0f, 0x94, 0xc0}, enc(func(b *Buffer) { b.SetE(RegRAX) }))
	assert.Equal(t, []byte{0x0f, 0x95, 0xc0}, enc(func(b *Buffer) { b.SetNE(RegRAX) }))
	assert.Equal(t, []byte{0x0f, 0x9c, 0xc0}, enc(func(b *Buffer) { b.SetL(RegRAX) }))
	assert.Equal(t, []byte{0x0f, 0x9f, 0xc0}, enc(func(b *Buffer) { b.SetG(RegRAX) }))
	assert.Equal(t, []byte{0x0f, 0x92, 0xc0}, enc(func(b *Buffer) { b.SetB(RegRAX) }))
	assert.Equal(t, []byte{0x0f, 0x97, 0xc0}, enc(func(b *Buffer) { b.SetA(RegRAX) }))
	assert.Equal(t, []byte{0x48, 0x0f, 0xb6, 0xc0}, enc(func(b *Buffer) { b.MovzxB(RegRAX) }))
}

func TestControlFlowEncodings(t *testing.T) {
	assert.Equal(t, []byte{0xc3}, enc(func(b *Buffer) { b.Ret() }))
	assert.Equal(t, []byte{0x0f, 0x05}, enc(func(b *Buffer) { b.Syscall() }))
	assert.Equal(t, []byte{0xff, 0xd0}, enc(func(b *Buffer) { b.CallR(RegRAX) }))
	assert.Equal(t, []byte{0xe9, 0, 0, 0, 0}, enc(func(b *Buffer) { b.JmpRel32() }))
	assert.Equal(t, []byte{0x0f, 0x84, 0, 0, 0, 0}, enc(func(b *Buffer) { b.JccRel32(CCEqual) }))
	assert.Equal(t, []byte{0xe8, 0, 0, 0, 0}, enc(func(b *Buffer) { b.CallRel32() }))
	assert.Equal(t, []byte{0xeb, 0}, enc(func(b *Buffer) { b.JmpRel8() }))
	assert.Equal(t, []byte{0x74, 0}, enc(func(b *Buffer) { b.JccRel8(CCEqual) }))
}

func TestPatchRel8(t *testing.T) {
	b := NewBuffer(PlatformLinux)
	fix := b.JmpRel8()
	b.EmitBytes(0x90, 0x90)
	b.PatchRel8(fix, b.Position())
	assert.Equal(t, []byte{0xeb, 0x02, 0x90, 0x90}, b.Bytes())
}

func TestFramePrimitives(t *testing.T) {
	assert.Equal(t, []byte{0x48, 0x89, 0xe5}, enc(func(b *Buffer) { b.MovRBPRSP() }))
	assert.Equal(t, []byte{0x48, 0x89, 0xec}, enc(func(b *Buffer) { b.MovRSPRBP() }))
	assert.Equal(t, []byte{0x48, 0x81, 0xec, 0x08, 0, 0, 0}, enc(func(b *Buffer) { b.SubRSPImm32(8) }))
}

func TestSSEEncodings(t *testing.T) {
	assert.Equal(t, []byte{0xf2, 0x0f, 0x10, 0xc1}, enc(func(b *Buffer) { b.MovsdRR(0, 1) }))
	assert.Equal(t, []byte{0xf2, 0x0f, 0x58, 0xc1}, enc(func(b *Buffer) { b.Addsd(0, 1) }))
	assert.Equal(t, []byte{0xf2, 0x0f, 0x5c, 0xc1}, enc(func(b *Buffer) { b.Subsd(0, 1) }))
	assert.Equal(t, []byte{0xf2, 0x0f, 0x59, 0xc1}, enc(func(b *Buffer) { b.Mulsd(0, 1) }))
	assert.Equal(t, []byte{0xf2, 0x0f, 0x5e, 0xc1}, enc(func(b *Buffer) { b.Divsd(0, 1) }))
	assert.Equal(t, []byte{0x66, 0x0f, 0x2e, 0xc1}, enc(func(b *Buffer) { b.Ucomisd(0, 1) }))
	assert.Equal(t, []byte{0xf2, 0x48, 0x0f, 0x2a, 0xc0}, enc(func(b *Buffer) { b.Cvtsi2sd(0, RegRAX) }))
	assert.Equal(t, []byte{0xf2, 0x48, 0x0f, 0x2d, 0xc1}, enc(func(b *Buffer) { b.Cvtsd2si(RegRAX, 1) }))
	assert.Equal(t, []byte{0xf2, 0x0f, 0x10, 0x04, 0x24}, enc(func(b *Buffer) { b.MovsdLoadRSP(0) }))
	assert.Equal(t, []byte{0xf2, 0x0f, 0x11, 0x04, 0x24}, enc(func(b *Buffer) { b.MovsdStoreRSP(0) }))
	assert.Equal(t, []byte{0xf2, 0x0f, 0x10, 0x45, 0xf8}, enc(func(b *Buffer) { b.MovsdLoad(8, 0) }))
	assert.Equal(t, []byte{0xf2, 0x0f, 0x11, 0x45, 0xf8}, enc(func(b *Buffer) { b.MovsdStore(8, 0) }))
}

func TestRipRelativePlaceholders(t *testing.T) {
	b := NewBuffer(PlatformLinux)
	fix := b.LeaRipRel(RegRAX)
	assert.Equal(t, []byte{0x48, 0x8d, 0x05, 0, 0, 0, 0}, b.Bytes())
	assert.Equal(t, 3, fix)

	b2 := NewBuffer(PlatformLinux)
	fix2 := b2.MovLoadRipRel(RegRAX)
	assert.Equal(t, []byte{0x48, 0x8b, 0x05, 0, 0, 0, 0}, b2.Bytes())
	assert.Equal(t, 3, fix2)
}

func TestPatchRel32(t *testing.T) {
	b := NewBuffer(PlatformLinux)
	fix := b.JmpRel32() // bytes 0..4, rel32 at 1..4
	b.EmitBytes(0x90, 0x90, 0x90)
	b.PatchRel32Here(fix)
	// Target is position 8; rel32 = 8 - (1+4) = 3.
	assert.Equal(t, []byte{0xe9, 0x03, 0x00, 0x00, 0x00, 0x90, 0x90, 0x90}, b.Bytes())

	// Backward: jump from position 8 back to 0.
	b2 := NewBuffer(PlatformLinux)
	b2.EmitBytes(0x90, 0x90, 0x90)
	fix2 := b2.JmpRel32()
	b2.PatchRel32(fix2, 0)
	assert.Equal(t, []byte{0x90, 0x90, 0x90, 0xe9, 0xf8, 0xff, 0xff, 0xff}, b2.Bytes())
}

func TestLoopContextStack(t *testing.T) {
	b := NewBuffer(PlatformLinux)
	require.NoError(t, b.PushLoop(0))
	require.NoError(t, b.PushLoop(4))

	top, err := b.CurrentLoop()
	require.NoError(t, err)
	assert.Equal(t, 4, top.LoopStart)

	_, err = b.PopLoop()
	require.NoError(t, err)
	_, err = b.PopLoop()
	require.NoError(t, err)
	_, err = b.PopLoop()
	assert.ErrorIs(t, err, ErrLoopStackUnderflow)
}

func TestLoopContextDepthLimit(t *testing.T) {
	b := NewBuffer(PlatformLinux)
	for i := 0; i < MaxLoopDepth; i++ {
		require.NoError(t, b.PushLoop(i))
	}
	assert.ErrorIs(t, b.PushLoop(99), ErrLoopStackOverflow)
	assert.Equal(t, MaxLoopDepth, b.LoopDepth())
}
