package ast

// StringPool is an append-only, NUL-terminated byte buffer. Every Put
// call appends its argument plus a trailing NUL and returns the
// argument's offset and length (the NUL is not included in length);
// there is no deduplication here.
type StringPool struct {
	data []byte
}

// NewStringPool returns an empty pool.
func NewStringPool() *StringPool {
	return &StringPool{data: make([]byte, 0, 4096)}
}

// Put appends s and a trailing NUL, returning s's offset and length.
func (p *StringPool) Put(s string) (offset uint32, length uint32) {
	offset = uint32(len(p.data))
	p.data = append(p.data, s...)
	p.data = append(p.data, 0)
	return offset, uint32(len(s))
}

// Get returns the length bytes at offset, excluding the trailing NUL.
func (p *StringPool) Get(offset, length uint32) string {
	return string(p.data[offset : offset+length])
}

// Bytes returns the pool's backing buffer, including every trailing NUL
// written by Put. Callers must not retain or mutate the returned slice
// across a subsequent Put.
func (p *StringPool) Bytes() []byte { return p.data }

// Len returns the current size of the pool in bytes.
func (p *StringPool) Len() int { return len(p.data) }
