package binary

import "goblaze.dev/blazec/internal/codegen"

// linuxBaseAddr is the virtual address the single PT_LOAD segment is
// mapped at, the conventional non-PIE load base.
const linuxBaseAddr = 0x400000

const (
	elfHeaderSize = 64
	phdrSize      = 56
)

// WriteELF64 packages res.Code as a minimal ET_EXEC ELF64 file: one
// R-X PT_LOAD segment holding the headers and the
// code buffer back to back, entry point at the first code byte. There
// is no .rodata/.data/.symtab/.strtab/.shstrtab and no section header
// table — codegen never emits a separate data section, so nothing
// would reference them, and the loader only reads the program header.
func WriteELF64(res *codegen.Result) ([]byte, error) {
	headerTotal := elfHeaderSize + phdrSize
	textOffset := alignUp(headerTotal, 16)
	textSize := len(res.Code)
	loadedSize := textOffset + textSize

	textVAddr := uint64(linuxBaseAddr + textOffset)
	entry := textVAddr

	elf := make([]byte, loadedSize)

	elf[0], elf[1], elf[2], elf[3] = 0x7f, 'E', 'L', 'F'
	elf[4] = 2 // ELFCLASS64
	elf[5] = 1 // ELFDATA2LSB
	elf[6] = 1 // EV_CURRENT
	elf[7] = 0 // ELFOSABI_NONE (bytes 8-15 stay zero padding)
	putU16(elf[16:], 2)                     // e_type: ET_EXEC
	putU16(elf[18:], 62)                    // e_machine: EM_X86_64
	putU32(elf[20:], 1)                     // e_version: EV_CURRENT
	putU64(elf[24:], entry)                 // e_entry
	putU64(elf[32:], uint64(elfHeaderSize))  // e_phoff
	putU64(elf[40:], 0)                     // e_shoff: no section headers
	putU32(elf[48:], 0)                     // e_flags
	putU16(elf[52:], uint16(elfHeaderSize)) // e_ehsize
	putU16(elf[54:], uint16(phdrSize))      // e_phentsize
	putU16(elf[56:], 1)                     // e_phnum
	putU16(elf[58:], 0)                     // e_shentsize
	putU16(elf[60:], 0)                     // e_shnum
	putU16(elf[62:], 0)                     // e_shstrndx

	phdr := elf[elfHeaderSize:]
	putU32(phdr[0:], 1) // p_type: PT_LOAD
	putU32(phdr[4:], 5) // p_flags: PF_R|PF_X (no PF_W: code is never self-modifying)
	putU64(phdr[8:], 0)                      // p_offset
	putU64(phdr[16:], linuxBaseAddr)         // p_vaddr
	putU64(phdr[24:], linuxBaseAddr)         // p_paddr
	putU64(phdr[32:], uint64(loadedSize))    // p_filesz
	putU64(phdr[40:], uint64(loadedSize))    // p_memsz
	putU64(phdr[48:], 0x1000)                // p_align

	copy(elf[textOffset:], res.Code)

	return elf, nil
}
