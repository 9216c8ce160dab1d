package engine

// Minimal hand-assembled WebAssembly modules used as guest fixtures. There
// is no compiler toolchain available to produce real test components, so
// these are built a section at a time with the same encoding the MVP
// binary format specifies (LEB128 integers, section id+size framing).
// Keeping the encoding in small composable helpers rather than a literal
// byte blob means section/vector lengths are computed by Go's len(),
// not counted by hand.

const (
	valI32 = 0x7f
	valI64 = 0x7e
)

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

// wasmVec length-prefixes a sequence of already-encoded items.
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

func wasmImportFunc(module, name string, typeidx uint32) []byte {
	out := append([]byte{}, wasmName(module)...)
	out = append(out, wasmName(name)...)
	out = append(out, 0x00) // func import
	out = append(out, uleb128(uint64(typeidx))...)
	return out
}

func wasmExport(name string, kind byte, idx uint32) []byte {
	out := append([]byte{}, wasmName(name)...)
	out = append(out, kind)
	out = append(out, uleb128(uint64(idx))...)
	return out
}

func wasmDataSegment(offset int32, data []byte) []byte {
	out := []byte{0x00} // memory index 0
	out = append(out, 0x41)
	out = append(out, sleb128(int64(offset))...)
	out = append(out, 0x0B) // end
	out = append(out, uleb128(uint64(len(data)))...)
	return append(out, data...)
}

func wasmLocalGet(idx uint32) []byte { return append([]byte{0x20}, uleb128(uint64(idx))...) }
func wasmI32Const(v int32) []byte    { return append([]byte{0x41}, sleb128(int64(v))...) }
func wasmI64Const(v int64) []byte    { return append([]byte{0x42}, sleb128(v)...) }
func wasmCall(idx uint32) []byte     { return append([]byte{0x10}, uleb128(uint64(idx))...) }
func wasmI64Store(offset uint32) []byte {
	return append([]byte{0x37, 0x03}, uleb128(uint64(offset))...) // align 3 (8 bytes)
}

var (
	wasmI64ExtendI32U = []byte{0xAD}
	wasmI64Shl        = []byte{0x86}
	wasmI64Or         = []byte{0x84}
)

func wasmFuncBody(instrs ...[]byte) []byte {
	body := []byte{0x00} // no additional locals beyond the function's params
	for _, in := range instrs {
		body = append(body, in...)
	}
	body = append(body, 0x0B) // end
	return body
}

func wasmCodeEntry(body []byte) []byte {
	return append(uleb128(uint64(len(body))), body...)
}

var wasmMagicAndVersion = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// echoModuleWASM exports wavs_alloc (returns a fixed scratch pointer,
// ignoring the requested size) and wavs_execute, which packs its own
// (ptr, len) arguments back as the result — an echo of whatever the host
// wrote into the scratch buffer before calling it. Two guest function
// calls happen per Execute (alloc then execute), which doubles as the
// OutOfFuel fixture: fuel_limit=1 exhausts on the second call.
func echoModuleWASM() []byte {
	typeAlloc := wasmFunctype([]byte{valI32}, []byte{valI32})
	typeExecute := wasmFunctype([]byte{valI32, valI32}, []byte{valI64})

	typeSec := wasmSection(1, wasmVec(typeAlloc, typeExecute))
	funcSec := wasmSection(3, wasmVec(uleb128(0), uleb128(1)))
	memSec := wasmSection(5, wasmVec(append([]byte{0x00}, uleb128(1)...)))
	exportSec := wasmSection(7, wasmVec(
		wasmExport("memory", 0x02, 0),
		wasmExport("wavs_alloc", 0x00, 0),
		wasmExport("wavs_execute", 0x00, 1),
	))

	allocBody := wasmFuncBody(wasmI32Const(1024))
	executeBody := wasmFuncBody(
		wasmLocalGet(0), wasmI64ExtendI32U,
		wasmI64Const(32), wasmI64Shl,
		wasmLocalGet(1), wasmI64ExtendI32U,
		wasmI64Or,
	)
	codeSec := wasmSection(10, wasmVec(wasmCodeEntry(allocBody), wasmCodeEntry(executeBody)))

	var out []byte
	out = append(out, wasmMagicAndVersion...)
	out = append(out, typeSec...)
	out = append(out, funcSec...)
	out = append(out, memSec...)
	out = append(out, exportSec...)
	out = append(out, codeSec...)
	return out
}

// kvIncrementModuleWASM exports wavs_alloc/wavs_execute like echoModuleWASM,
// but wavs_execute ignores its input entirely and instead calls the
// imported wavs_kv_atomic_increment host function against a 3-byte key
// ("ctr") stored in a data segment, writing the returned counter to a
// fixed scratch offset and returning it as the execute result.
func kvIncrementModuleWASM() []byte {
	typeImport := wasmFunctype([]byte{valI32, valI32, valI64}, []byte{valI64})
	typeAlloc := wasmFunctype([]byte{valI32}, []byte{valI32})
	typeExecute := wasmFunctype([]byte{valI32, valI32}, []byte{valI64})

	typeSec := wasmSection(1, wasmVec(typeImport, typeAlloc, typeExecute))
	importSec := wasmSection(2, wasmVec(wasmImportFunc("wavs", "wavs_kv_atomic_increment", 0)))
	funcSec := wasmSection(3, wasmVec(uleb128(1), uleb128(2)))
	memSec := wasmSection(5, wasmVec(append([]byte{0x00}, uleb128(1)...)))
	exportSec := wasmSection(7, wasmVec(
		wasmExport("memory", 0x02, 0),
		wasmExport("wavs_alloc", 0x00, 1),
		wasmExport("wavs_execute", 0x00, 2),
	))

	const (
		keyPtr    = 0
		keyLen    = 3
		resultPtr = 2048
	)
	allocBody := wasmFuncBody(wasmI32Const(1024))
	executeBody := wasmFuncBody(
		wasmI32Const(resultPtr), // store address, pushed before the value it will pair with
		wasmI32Const(keyPtr),
		wasmI32Const(keyLen),
		wasmI64Const(1),
		wasmCall(0),
		wasmI64Store(0),
		wasmI32Const(resultPtr),
		wasmI64ExtendI32U,
		wasmI64Const(32),
		wasmI64Shl,
		wasmI64Const(8),
		wasmI64Or,
	)
	codeSec := wasmSection(10, wasmVec(wasmCodeEntry(allocBody), wasmCodeEntry(executeBody)))
	dataSec := wasmSection(11, wasmVec(wasmDataSegment(0, []byte("ctr"))))

	var out []byte
	out = append(out, wasmMagicAndVersion...)
	out = append(out, typeSec...)
	out = append(out, importSec...)
	out = append(out, funcSec...)
	out = append(out, memSec...)
	out = append(out, exportSec...)
	out = append(out, codeSec...)
	out = append(out, dataSec...)
	return out
}
