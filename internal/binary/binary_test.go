package binary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goblaze.dev/blazec/internal/codegen"
)

func readU16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }

func TestWriteELF64Header(t *testing.T) {
	code := []byte{0x0f, 0x05} // syscall
	res := &codegen.Result{Code: code, Platform: codegen.PlatformLinux}

	elf, err := WriteELF64(res)
	require.NoError(t, err)

	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, elf[:4])
	assert.Equal(t, byte(2), elf[4]) // ELFCLASS64
	assert.Equal(t, byte(1), elf[5]) // little-endian
	assert.Equal(t, uint16(2), readU16(elf[16:]))  // ET_EXEC
	assert.Equal(t, uint16(62), readU16(elf[18:])) // EM_X86_64
	assert.Equal(t, uint16(1), readU16(elf[56:]))  // one program header
	assert.Equal(t, uint16(0), readU16(elf[60:]))  // no section headers

	// Entry point: base + aligned header size, and the code bytes sit
	// at exactly that file offset.
	textOffset := alignUp(elfHeaderSize+phdrSize, 16)
	entry := readU64(elf[24:32])
	require.Equal(t, uint64(linuxBaseAddr+textOffset), entry)
	assert.Equal(t, code, elf[textOffset:textOffset+len(code)])

	// Program header: PT_LOAD, R-X, offset 0, whole file mapped.
	phdr := elf[elfHeaderSize:]
	assert.Equal(t, uint32(1), readU32(phdr[0:4]))
	assert.Equal(t, uint32(5), readU32(phdr[4:8]))
	assert.Equal(t, uint64(len(elf)), readU64(phdr[32:40]))
}

func TestWriteELF64Deterministic(t *testing.T) {
	res := &codegen.Result{Code: []byte{0x90, 0x90}, Platform: codegen.PlatformLinux}
	a, err := WriteELF64(res)
	require.NoError(t, err)
	b, err := WriteELF64(res)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// peResult builds a Result shaped like codegen's Windows output: a
// `mov rax, [rip+disp32]; call rax` at offset 0 whose disp32 (at
// offset 3) needs patching against the IAT.
func peResult(name string) *codegen.Result {
	code := []byte{
		0x48, 0x8b, 0x05, 0, 0, 0, 0, // mov rax, [rip+disp32]
		0xff, 0xd0, // call rax
	}
	return &codegen.Result{
		Code:         code,
		Platform:     codegen.PlatformWindows,
		ImportFixups: []codegen.ImportFixup{{Offset: 3, Name: name}},
	}
}

func TestWriteEXEHeaders(t *testing.T) {
	pe, err := WriteEXE(peResult("ExitProcess"))
	require.NoError(t, err)

	assert.Equal(t, byte('M'), pe[0])
	assert.Equal(t, byte('Z'), pe[1])
	peOff := readU32(pe[0x3C:0x40])
	assert.Equal(t, uint32(0x80), peOff)
	assert.Equal(t, []byte{'P', 'E', 0, 0}, pe[0x80:0x84])

	coff := pe[0x84:]
	assert.Equal(t, uint16(0x8664), readU16(coff[0:]))  // AMD64
	assert.Equal(t, uint16(2), readU16(coff[2:]))       // .text + .idata
	assert.Equal(t, uint32(0), readU32(coff[4:8]))      // TimeDateStamp zeroed
	assert.Equal(t, uint16(0x0022), readU16(coff[18:])) // EXECUTABLE | LARGE_ADDRESS_AWARE

	opt := pe[0x98:]
	assert.Equal(t, uint16(0x020B), readU16(opt[0:]))          // PE32+
	assert.Equal(t, uint32(0x1000), readU32(opt[16:20]))       // entry = .text RVA
	assert.Equal(t, uint64(0x140000000), readU64(opt[24:32]))  // image base
	assert.Equal(t, uint32(0x1000), readU32(opt[32:36]))       // section alignment
	assert.Equal(t, uint32(0x200), readU32(opt[36:40]))        // file alignment
	assert.Equal(t, uint16(3), readU16(opt[68:]))              // console subsystem
}

func TestWriteEXEImportDirectory(t *testing.T) {
	pe, err := WriteEXE(peResult("WriteConsoleA"))
	require.NoError(t, err)

	assert.True(t, bytes.Contains(pe, []byte("kernel32.dll\x00")))
	assert.True(t, bytes.Contains(pe, []byte("GetStdHandle\x00")))
	assert.True(t, bytes.Contains(pe, []byte("WriteConsoleA\x00")))
	assert.True(t, bytes.Contains(pe, []byte("ExitProcess\x00")))

	// The import data directory entry points into .idata.
	opt := pe[0x98:]
	importRVA := readU32(opt[112+8 : 112+12])
	iatRVA := readU32(opt[112+12*8 : 112+12*8+4])
	assert.NotZero(t, importRVA)
	assert.Greater(t, iatRVA, importRVA)
}

func TestWriteEXEPatchesIATDisp(t *testing.T) {
	res := peResult("ExitProcess")
	pe, err := WriteEXE(res)
	require.NoError(t, err)

	// The disp32 at code offset 3 must no longer be the zero
	// placeholder once the file is laid out.
	textFileOff := int(readU32(pe[0x188+20 : 0x188+24]))
	patched := pe[textFileOff+3 : textFileOff+7]
	assert.NotEqual(t, []byte{0, 0, 0, 0}, patched)
}

func TestWriteEXERejectsUnknownImport(t *testing.T) {
	_, err := WriteEXE(peResult("CreateFileA"))
	var ee *EmitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrUnknownImport, ee.Kind)
}

func TestWriteEXEDeterministic(t *testing.T) {
	a, err := WriteEXE(peResult("GetStdHandle"))
	require.NoError(t, err)
	b, err := WriteEXE(peResult("GetStdHandle"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
