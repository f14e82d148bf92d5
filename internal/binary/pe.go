package binary

import "goblaze.dev/blazec/internal/codegen"

// windowsImageBase, sectionAlignment and fileAlignment are the
// conventional values for a non-relocatable PE32+ console image.
const (
	windowsImageBase  = 0x140000000
	sectionAlignment  = 0x1000
	fileAlignment     = 0x200
)

// windowsImports is the closed set of kernel32 exports Blaze programs
// can call: GetStdHandle, WriteConsoleA, ExitProcess,
// in the fixed order the .idata hint/name records are laid out in.
var windowsImports = []string{"GetStdHandle", "WriteConsoleA", "ExitProcess"}

// WriteEXE packages res.Code as a minimal PE32+ console executable,
// holding only the
// two sections a freestanding Blaze binary needs: no .rdata, .data,
// .reloc, or debug sections, since codegen embeds string literals
// inline in .text.
func WriteEXE(res *codegen.Result) ([]byte, error) {
	dosHeaderSize := 64
	dosStubSize := 64
	peSignatureSize := 4
	coffHeaderSize := 20
	optionalHeaderSize := 240
	numSections := 2
	sectionTableSize := numSections * 40

	headersRawSize := dosHeaderSize + dosStubSize + peSignatureSize + coffHeaderSize + optionalHeaderSize + sectionTableSize
	headersAligned := alignUp(headersRawSize, fileAlignment)

	textRawSize := alignUp(len(res.Code), fileAlignment)

	idataContent, iatOffsets, err := buildIData(res.ImportFixups)
	if err != nil {
		return nil, err
	}
	idataRawSize := alignUp(len(idataContent), fileAlignment)

	textRVA := sectionAlignment
	idataRVA := textRVA + alignUp(len(res.Code), sectionAlignment)

	fixupIData(idataContent, idataRVA)

	textFileOff := headersAligned
	idataFileOff := textFileOff + textRawSize
	totalFileSize := idataFileOff + idataRawSize
	imageSize := idataRVA + alignUp(len(idataContent), sectionAlignment)

	// Patch each `mov rax, [rip+disp32]` emitted for an IAT call: the
	// disp32 is relative to the address of the byte right after it.
	code := make([]byte, len(res.Code))
	copy(code, res.Code)
	for _, fix := range res.ImportFixups {
		iatOff, ok := iatOffsets[fix.Name]
		if !ok {
			return nil, &EmitError{Kind: ErrUnknownImport, Detail: fix.Name}
		}
		iatVA := uint64(windowsImageBase+idataRVA) + uint64(iatOff)
		rip := uint64(windowsImageBase+textRVA) + uint64(fix.Offset) + 4
		disp32 := int32(int64(iatVA) - int64(rip))
		putU32(code[fix.Offset:fix.Offset+4], uint32(disp32))
	}

	pe := make([]byte, totalFileSize)

	pe[0] = 'M'
	pe[1] = 'Z'
	putU32(pe[0x3C:], 0x80)

	dosStub := []byte{
		0x0e, 0x1f, 0xba, 0x0e, 0x00, 0xb4, 0x09, 0xcd,
		0x21, 0xb8, 0x01, 0x4c, 0xcd, 0x21, 0x54, 0x68,
		0x69, 0x73, 0x20, 0x70, 0x72, 0x6f, 0x67, 0x72,
		0x61, 0x6d, 0x20, 0x63, 0x61, 0x6e, 0x6e, 0x6f,
		0x74, 0x20, 0x62, 0x65, 0x20, 0x72, 0x75, 0x6e,
		0x20, 0x69, 0x6e, 0x20, 0x44, 0x4f, 0x53, 0x20,
		0x6d, 0x6f, 0x64, 0x65, 0x2e, 0x0d, 0x0d, 0x0a,
		0x24, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	copy(pe[0x40:], dosStub)

	pe[0x80], pe[0x81], pe[0x82], pe[0x83] = 'P', 'E', 0, 0

	coff := pe[0x84:]
	putU16(coff[0:], 0x8664)                      // Machine: AMD64
	putU16(coff[2:], uint16(numSections))          // NumberOfSections
	putU32(coff[4:], 0)                            // TimeDateStamp: zero for byte-exact output
	putU32(coff[8:], 0)                            // PointerToSymbolTable: no COFF symbols
	putU32(coff[12:], 0)                           // NumberOfSymbols
	putU16(coff[16:], uint16(optionalHeaderSize))  // SizeOfOptionalHeader
	putU16(coff[18:], 0x0022)                      // EXECUTABLE_IMAGE | LARGE_ADDRESS_AWARE

	opt := pe[0x98:]
	putU16(opt[0:], 0x020B) // Magic: PE32+
	opt[2] = 1              // MajorLinkerVersion
	opt[3] = 0              // MinorLinkerVersion
	putU32(opt[4:], uint32(len(code)))       // SizeOfCode
	putU32(opt[8:], uint32(len(idataContent))) // SizeOfInitializedData
	putU32(opt[12:], 0)                      // SizeOfUninitializedData
	putU32(opt[16:], uint32(textRVA))        // AddressOfEntryPoint
	putU32(opt[20:], uint32(textRVA))        // BaseOfCode
	putU64(opt[24:], uint64(windowsImageBase)) // ImageBase
	putU32(opt[32:], sectionAlignment)
	putU32(opt[36:], fileAlignment)
	putU16(opt[40:], 6) // MajorOperatingSystemVersion
	putU16(opt[42:], 0)
	putU16(opt[44:], 0) // MajorImageVersion
	putU16(opt[46:], 0)
	putU16(opt[48:], 6) // MajorSubsystemVersion
	putU16(opt[50:], 0)
	putU32(opt[52:], 0)                // Win32VersionValue
	putU32(opt[56:], uint32(imageSize)) // SizeOfImage
	putU32(opt[60:], uint32(headersAligned)) // SizeOfHeaders
	putU32(opt[64:], 0)                // CheckSum
	putU16(opt[68:], 3)                // Subsystem: IMAGE_SUBSYSTEM_WINDOWS_CUI
	putU16(opt[70:], 0x0100)           // DllCharacteristics: NX_COMPAT
	putU64(opt[72:], 0x100000)         // SizeOfStackReserve (1MB)
	putU64(opt[80:], 0x1000)           // SizeOfStackCommit (4KB)
	putU64(opt[88:], 0x100000)         // SizeOfHeapReserve (1MB)
	putU64(opt[96:], 0x1000)           // SizeOfHeapCommit (4KB)
	putU32(opt[104:], 0)               // LoaderFlags
	putU32(opt[108:], 16)              // NumberOfRvaAndSizes

	// Data directories: [1] Import Table, [12] IAT; all others stay zero.
	importDirSize := 2 * 20 // one real descriptor + null terminator
	putU32(opt[112+1*8:], uint32(idataRVA))
	putU32(opt[112+1*8+4:], uint32(importDirSize))

	iatSize := (len(windowsImports) + 1) * 8
	iatRVA := idataRVA + idataIATOffset(len(windowsImports))
	putU32(opt[112+12*8:], uint32(iatRVA))
	putU32(opt[112+12*8+4:], uint32(iatSize))

	sectBase := 0x188
	writeSection(pe[sectBase:], ".text", len(code), textRVA, textRawSize, textFileOff,
		0x60000020) // CODE | EXECUTE | READ
	writeSection(pe[sectBase+40:], ".idata", len(idataContent), idataRVA, idataRawSize, idataFileOff,
		0xC0000040) // INITIALIZED_DATA | READ | WRITE

	copy(pe[textFileOff:], code)
	copy(pe[idataFileOff:], idataContent)

	return pe, nil
}

func writeSection(b []byte, name string, virtualSize, virtualAddress, rawSize, pointerToRawData int, characteristics uint32) {
	copy(b[0:8], name)
	putU32(b[8:], uint32(virtualSize))
	putU32(b[12:], uint32(virtualAddress))
	putU32(b[16:], uint32(rawSize))
	putU32(b[20:], uint32(pointerToRawData))
	putU32(b[24:], 0) // PointerToRelocations
	putU32(b[28:], 0) // PointerToLinenumbers
	putU16(b[32:], 0) // NumberOfRelocations
	putU16(b[34:], 0) // NumberOfLinenumbers
	putU32(b[36:], characteristics)
}

// idataIATOffset returns the byte offset of the IAT table within the
// .idata section content (after the import directory table and ILT).
func idataIATOffset(numImports int) int {
	idtSize := 40 // one descriptor (20 bytes) + null terminator (20 bytes)
	iltSize := (numImports + 1) * 8
	return idtSize + iltSize
}

// buildIData lays out the .idata section content: import
// descriptors for kernel32.dll plus a null terminator, an Import Lookup
// Table and Import Address Table (8-byte entries, PE32+), the DLL name
// string, and one hint/name record per import, all at offsets relative
// to the start of the section (fixupIData rebases them to RVAs once the
// section's final RVA is known). Returns the content plus a name→IAT
// byte-offset map used to patch each `mov rax, [rip+disp32]` codegen
// emitted for an IAT call.
func buildIData(fixups []codegen.ImportFixup) ([]byte, map[string]int, error) {
	for _, fix := range fixups {
		found := false
		for _, name := range windowsImports {
			if name == fix.Name {
				found = true
				break
			}
		}
		if !found {
			return nil, nil, &EmitError{Kind: ErrUnknownImport, Detail: fix.Name}
		}
	}

	numImports := len(windowsImports)
	idtSize := 40
	iltOff := idtSize
	iltSize := (numImports + 1) * 8
	iatOff := iltOff + iltSize
	iatSize := (numImports + 1) * 8
	hntOff := iatOff + iatSize

	var hnt []byte
	hntOffsets := make([]int, numImports)
	for i, name := range windowsImports {
		hntOffsets[i] = hntOff + len(hnt)
		hnt = append(hnt, 0, 0) // Hint
		hnt = append(hnt, []byte(name)...)
		hnt = append(hnt, 0)
		if len(hnt)%2 != 0 {
			hnt = append(hnt, 0)
		}
	}

	dllNameOff := hntOff + len(hnt)
	dllName := append([]byte("kernel32.dll"), 0)

	idata := make([]byte, dllNameOff+len(dllName))

	putU32(idata[0:], uint32(iltOff))    // OriginalFirstThunk (placeholder, fixed up below)
	putU32(idata[4:], 0)                  // TimeDateStamp
	putU32(idata[8:], 0)                  // ForwarderChain
	putU32(idata[12:], uint32(dllNameOff)) // Name (placeholder)
	putU32(idata[16:], uint32(iatOff))    // FirstThunk (placeholder)
	// bytes [20:40) stay zero: the null-terminating descriptor.

	for i := 0; i < numImports; i++ {
		putU64(idata[iltOff+i*8:], uint64(hntOffsets[i])) // placeholder
		putU64(idata[iatOff+i*8:], uint64(hntOffsets[i])) // placeholder
	}

	copy(idata[hntOff:], hnt)
	copy(idata[dllNameOff:], dllName)

	iatOffsets := make(map[string]int, numImports)
	for i, name := range windowsImports {
		iatOffsets[name] = iatOff + i*8
	}

	return idata, iatOffsets, nil
}

// fixupIData rebases every placeholder offset buildIData wrote
// (section-relative) into an absolute RVA, once idataRVA is known.
func fixupIData(idata []byte, idataRVA int) {
	numImports := len(windowsImports)
	idtSize := 40
	iltOff := idtSize
	iltSize := (numImports + 1) * 8
	iatOff := iltOff + iltSize

	putU32(idata[0:], uint32(idataRVA)+readU32(idata[0:4]))
	putU32(idata[12:], uint32(idataRVA)+readU32(idata[12:16]))
	putU32(idata[16:], uint32(idataRVA)+readU32(idata[16:20]))

	for i := 0; i < numImports; i++ {
		off := iltOff + i*8
		putU64(idata[off:], uint64(idataRVA)+readU64(idata[off:off+8]))
	}
	for i := 0; i < numImports; i++ {
		off := iatOff + i*8
		putU64(idata[off:], uint64(idataRVA)+readU64(idata[off:off+8]))
	}
}

func readU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func readU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
