package aggregator

// A minimal hand-assembled aggregation-component guest used only to give
// tests a working Engine instead of a nil one: wavs_execute ignores its
// input and always returns the literal JSON "[]", i.e. "no actions" for
// whatever packet/queue state it was handed. There is no compiler
// toolchain available, so the module is built a section at a time the
// same way pkg/engine's own guest fixtures are.

const valI32 = 0x7f

func uleb128(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

func sleb128(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func wasmName(s string) []byte {
	return append(uleb128(uint64(len(s))), []byte(s)...)
}

func wasmVec(items ...[]byte) []byte {
	out := uleb128(uint64(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func wasmValtypes(vt ...byte) []byte {
	return append(uleb128(uint64(len(vt))), vt...)
}

func wasmFunctype(params, results []byte) []byte {
	out := []byte{0x60}
	out = append(out, wasmValtypes(params...)...)
	out = append(out, wasmValtypes(results...)...)
	return out
}

func wasmSection(id byte, content []byte) []byte {
	out := []byte{id}
	out = append(out, uleb128(uint64(len(content)))...)
	return append(out, content...)
}

func wasmExport(name string, kind byte, idx uint32) []byte {
	out := append([]byte{}, wasmName(name)...)
	out = append(out, kind)
	out = append(out, uleb128(uint64(idx))...)
	return out
}

func wasmI32Const(v int32) []byte { return append([]byte{0x41}, sleb128(int64(v))...) }
func wasmI64Const(v int64) []byte { return append([]byte{0x42}, sleb128(v)...) }

func wasmFuncBody(instrs ...[]byte) []byte {
	body := []byte{0x00}
	for _, in := range instrs {
		body = append(body, in...)
	}
	body = append(body, 0x0B)
	return body
}

func wasmCodeEntry(body []byte) []byte {
	return append(uleb128(uint64(len(body))), body...)
}

var wasmMagicAndVersion = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// emptyActionsModuleWASM exports wavs_alloc (returns a fixed scratch
// pointer) and wavs_execute, which ignores (ptr, len) entirely and always
// returns the packed pointer/length of a two-byte "[]" literal placed in a
// data segment at offset 0. A zero-length result would not do:
// ExecuteAggregation would then call json.Unmarshal([]byte(""), ...),
// which fails.
func emptyActionsModuleWASM() []byte {
	typeAlloc := wasmFunctype([]byte{valI32}, []byte{valI32})
	typeExecute := wasmFunctype([]byte{valI32, valI32}, []byte{0x7e})

	typeSec := wasmSection(1, wasmVec(typeAlloc, typeExecute))
	funcSec := wasmSection(3, wasmVec(uleb128(0), uleb128(1)))
	memSec := wasmSection(5, wasmVec(append([]byte{0x00}, uleb128(1)...)))
	exportSec := wasmSection(7, wasmVec(
		wasmExport("memory", 0x02, 0),
		wasmExport("wavs_alloc", 0x00, 0),
		wasmExport("wavs_execute", 0x00, 1),
	))

	allocBody := wasmFuncBody(wasmI32Const(1024))
	// (0 << 32) | 2: ptr 0, len 2, pointing at the "[]" data segment below.
	executeBody := wasmFuncBody(wasmI64Const(2))
	codeSec := wasmSection(10, wasmVec(wasmCodeEntry(allocBody), wasmCodeEntry(executeBody)))

	dataSec := wasmSection(11, wasmVec(wasmDataSegment(0, []byte("[]"))))

	var out []byte
	out = append(out, wasmMagicAndVersion...)
	out = append(out, typeSec...)
	out = append(out, funcSec...)
	out = append(out, memSec...)
	out = append(out, exportSec...)
	out = append(out, codeSec...)
	out = append(out, dataSec...)
	return out
}

func wasmDataSegment(offset int32, data []byte) []byte {
	out := []byte{0x00}
	out = append(out, 0x41)
	out = append(out, sleb128(int64(offset))...)
	out = append(out, 0x0B)
	out = append(out, uleb128(uint64(len(data)))...)
	return append(out, data...)
}
