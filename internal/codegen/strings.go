package codegen

import "math"

// floatBits reinterprets v's IEEE-754 bit pattern as a uint64, for the
// float-literal stack trampoline.
func floatBits(v float64) uint64 { return math.Float64bits(v) }

// embedString writes text directly into the code buffer as a
// self-contained inline block: a forward jump skips over the raw
// bytes so straight-line execution never falls into them. Repeated
// uses of the same literal reuse the earlier embedding rather than
// re-embedding the bytes every time.
func (g *Generator) embedString(text string) EmbeddedString {
	if s, ok := g.stringMap[text]; ok {
		return s
	}
	skip := g.buf.JmpRel32()
	start := g.buf.Position()
	for i := 0; i < len(text); i++ {
		g.buf.EmitByte(text[i])
	}
	g.buf.PatchRel32Here(skip)

	s := EmbeddedString{Offset: start, Length: len(text), Text: text}
	g.stringMap[text] = s
	g.stringOrder = append(g.stringOrder, text)
	return s
}

// decodeStringLiteral processes backslash escapes in a string
// literal's raw source text: the lexer deliberately leaves escapes
// undecoded, so codegen is where they finally resolve to real bytes,
// immediately before the literal is embedded.
func decodeStringLiteral(s string) string {
	var out []byte
	i := 0
	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			case 'r':
				out = append(out, '\r')
			case '\\':
				out = append(out, '\\')
			case '"':
				out = append(out, '"')
			case '0':
				out = append(out, 0)
			default:
				out = append(out, s[i+1])
			}
			i += 2
			continue
		}
		out = append(out, s[i])
		i++
	}
	return string(out)
}
