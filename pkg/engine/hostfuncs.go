package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net/http"
	"net/url"

	"github.com/tetratelabs/wazero/api"

	"github.com/certen/wavs/pkg/types"
)

// buildHostModule instantiates the "wavs" host module, every export of
// which is gated by host's capability grant before it touches anything
// outside the guest's own linear memory (spec §9: "the host should never
// expose raw process resources... every capability passes through a
// permission check").
func (e *Engine) buildHostModule(ctx context.Context, host *HostContext) (api.Closer, error) {
	b := e.runtime.NewHostModuleBuilder("wavs")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, level, ptr, length uint32) {
		msg := readString(mod, ptr, length)
		lvl := "info"
		switch level {
		case 0:
			lvl = "debug"
		case 2:
			lvl = "warn"
		case 3:
			lvl = "error"
		}
		if host.Log != nil {
			host.Log(lvl, msg)
		}
	}).Export("wavs_log")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, keyPtr, keyLen uint32) uint64 {
		if host.KV == nil {
			return packEmpty()
		}
		key := readBytes(mod, keyPtr, keyLen)
		val, err := host.KV.Read(key)
		if err != nil {
			return packEmpty()
		}
		return writeResult(mod, val)
	}).Export("wavs_kv_read")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, keyPtr, keyLen, valPtr, valLen uint32) uint32 {
		if host.KV == nil {
			return 1
		}
		key := readBytes(mod, keyPtr, keyLen)
		val := readBytes(mod, valPtr, valLen)
		if err := host.KV.Write(key, val); err != nil {
			return 1
		}
		return 0
	}).Export("wavs_kv_write")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, keyPtr, keyLen uint32) uint32 {
		if host.KV == nil {
			return 1
		}
		key := readBytes(mod, keyPtr, keyLen)
		if err := host.KV.Delete(key); err != nil {
			return 1
		}
		return 0
	}).Export("wavs_kv_delete")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, keyPtr, keyLen uint32, delta int64) uint64 {
		if host.KV == nil {
			return 0
		}
		key := readBytes(mod, keyPtr, keyLen)
		result, err := host.KV.AtomicIncrement(key, delta)
		if err != nil {
			return 0
		}
		return uint64(result)
	}).Export("wavs_kv_atomic_increment")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, keyPtr, keyLen, valPtr, valLen uint32) uint64 {
		if host.KV == nil {
			return packEmpty()
		}
		key := readBytes(mod, keyPtr, keyLen)
		val := readBytes(mod, valPtr, valLen)
		prior, err := host.KV.AtomicSwap(key, val)
		if err != nil {
			return packEmpty()
		}
		return writeResult(mod, prior)
	}).Export("wavs_kv_atomic_swap")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, keysPtr, keysLen uint32) uint64 {
		if host.KV == nil {
			return packEmpty()
		}
		keys := decodeByteList(readBytes(mod, keysPtr, keysLen))
		found, err := host.KV.BatchRead(keys)
		if err != nil {
			return packEmpty()
		}
		// Encoded as a flat (key, value) pair list so the guest can
		// recover which of the requested keys were present.
		pairs := make([][]byte, 0, 2*len(found))
		for k, v := range found {
			pairs = append(pairs, []byte(k), v)
		}
		return writeResult(mod, encodeByteList(pairs))
	}).Export("wavs_kv_batch_read")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, kvsPtr, kvsLen uint32) uint32 {
		if host.KV == nil {
			return 1
		}
		pairs := decodeByteList(readBytes(mod, kvsPtr, kvsLen))
		if len(pairs)%2 != 0 {
			return 1
		}
		kvs := make(map[string][]byte, len(pairs)/2)
		for i := 0; i < len(pairs); i += 2 {
			kvs[string(pairs[i])] = pairs[i+1]
		}
		if err := host.KV.BatchWrite(kvs); err != nil {
			return 1
		}
		return 0
	}).Export("wavs_kv_batch_write")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, keysPtr, keysLen uint32) uint32 {
		if host.KV == nil {
			return 1
		}
		keys := decodeByteList(readBytes(mod, keysPtr, keysLen))
		if err := host.KV.BatchDelete(keys); err != nil {
			return 1
		}
		return 0
	}).Export("wavs_kv_batch_delete")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, methodPtr, methodLen, urlPtr, urlLen, bodyPtr, bodyLen uint32) uint64 {
		return e.hostHTTPRequest(ctx, mod, host, methodPtr, methodLen, urlPtr, urlLen, bodyPtr, bodyLen)
	}).Export("wavs_http_request")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, chainPtr, chainLen uint32) uint64 {
		chain := readString(mod, chainPtr, chainLen)
		key, err := types.ParseChainKey(chain)
		if err != nil || host.Chains == nil {
			return 0
		}
		height, err := host.Chains.BlockHeight(ctx, key)
		if err != nil {
			return 0
		}
		return height
	}).Export("wavs_chain_block_height")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, namePtr, nameLen uint32) uint64 {
		name := readString(mod, namePtr, nameLen)
		val, ok := host.checkEnvKey(name)
		if !ok {
			return packEmpty()
		}
		return writeResult(mod, []byte(val))
	}).Export("wavs_env_get")

	return b.Instantiate(ctx)
}

func (e *Engine) hostHTTPRequest(ctx context.Context, mod api.Module, host *HostContext, methodPtr, methodLen, urlPtr, urlLen, bodyPtr, bodyLen uint32) uint64 {
	method := readString(mod, methodPtr, methodLen)
	rawURL := readString(mod, urlPtr, urlLen)
	body := readBytes(mod, bodyPtr, bodyLen)

	u, err := url.Parse(rawURL)
	if err != nil {
		return packEmpty()
	}
	if err := host.checkHTTPHost(u.Host); err != nil {
		return packEmpty()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytesReader(body))
	if err != nil {
		return packEmpty()
	}
	resp, err := host.httpClientFor().Do(req)
	if err != nil {
		return packEmpty()
	}
	defer resp.Body.Close()

	respBody, err := readAll(resp.Body)
	if err != nil {
		return packEmpty()
	}
	return writeResult(mod, respBody)
}

// writeResult allocates space in the guest's memory for data (by calling
// its wavs_alloc export) and writes it, returning the packed (ptr<<32|len)
// form callExecute's convention uses for every host call that returns
// guest-owned bytes.
func writeResult(mod api.Module, data []byte) uint64 {
	alloc := mod.ExportedFunction("wavs_alloc")
	if alloc == nil {
		return packEmpty()
	}
	res, err := alloc.Call(context.Background(), uint64(len(data)))
	if err != nil {
		return packEmpty()
	}
	ptr := uint32(res[0])
	if !mod.Memory().Write(ptr, data) {
		return packEmpty()
	}
	return uint64(ptr)<<32 | uint64(len(data))
}

func packEmpty() uint64 { return 0 }

// encodeByteList packs a list of byte strings as repeated (uint32
// big-endian length, payload) entries, the wire shape the batch KV host
// functions use to move more than one key/value across the flat ptr/len
// ABI boundary in a single call.
func encodeByteList(items [][]byte) []byte {
	var buf bytes.Buffer
	var lenBytes [4]byte
	for _, item := range items {
		binary.BigEndian.PutUint32(lenBytes[:], uint32(len(item)))
		buf.Write(lenBytes[:])
		buf.Write(item)
	}
	return buf.Bytes()
}

// decodeByteList is encodeByteList's inverse. A truncated or malformed
// encoding yields whatever whole entries were parsed before the cutoff.
func decodeByteList(data []byte) [][]byte {
	var out [][]byte
	for len(data) >= 4 {
		n := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		if uint64(n) > uint64(len(data)) {
			break
		}
		out = append(out, append([]byte(nil), data[:n]...))
		data = data[n:]
	}
	return out
}

func readBytes(mod api.Module, ptr, length uint32) []byte {
	b, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil
	}
	return append([]byte(nil), b...)
}

func readString(mod api.Module, ptr, length uint32) string {
	return string(readBytes(mod, ptr, length))
}

func bytesReader(b []byte) io.Reader {
	if len(b) == 0 {
		return nil
	}
	return bytes.NewReader(b)
}

func readAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}
