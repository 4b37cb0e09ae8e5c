//nolint:revive // types is a common Go package naming convention
package types

// SnapshotSource tags where a snapshot's data came from.
type SnapshotSource string

// Snapshot sources reported by the remote service.
const (
	SourceTakenFromCanister SnapshotSource = "taken_from_canister"
	SourceMetadataUpload    SnapshotSource = "metadata_upload"
)

// GlobalType is the wasm value type of an exported global.
type GlobalType string

// Wasm global value types.
const (
	GlobalI32  GlobalType = "i32"
	GlobalI64  GlobalType = "i64"
	GlobalF32  GlobalType = "f32"
	GlobalF64  GlobalType = "f64"
	GlobalV128 GlobalType = "v128"
)

// Global is one exported wasm global. Value is kept textual so that
// 64-bit and 128-bit values pass through without precision loss.
type Global struct {
	Type  GlobalType `msgpack:"type"`
	Value string     `msgpack:"value"`
}

// GlobalTimer is the canister global timer state.
type GlobalTimer struct {
	Active bool   `msgpack:"active"`
	At     uint64 `msgpack:"at"`
}

// Low wasm memory hook states.
const (
	HookConditionNotSatisfied = "condition_not_satisfied"
	HookReady                 = "ready"
	HookExecuted              = "executed"
)

// RemoteSnapshotMetadata is the raw metadata returned by the remote
// read-metadata call. The engine treats it as pass-through except for the
// three linear sizes and the chunk store hash list, which drive planning.
type RemoteSnapshotMetadata struct {
	Source                    SnapshotSource `msgpack:"source"`
	TakenAtTimestamp          uint64         `msgpack:"taken_at_timestamp"`
	WasmModuleSize            uint64         `msgpack:"wasm_module_size"`
	Globals                   []Global       `msgpack:"globals"`
	WasmMemorySize            uint64         `msgpack:"wasm_memory_size"`
	StableMemorySize          uint64         `msgpack:"stable_memory_size"`
	WasmChunkStore            [][]byte       `msgpack:"wasm_chunk_store"`
	CanisterVersion           uint64         `msgpack:"canister_version"`
	CertifiedData             []byte         `msgpack:"certified_data"`
	GlobalTimer               *GlobalTimer   `msgpack:"global_timer,omitempty"`
	OnLowWasmMemoryHookStatus *string        `msgpack:"on_low_wasm_memory_hook_status,omitempty"`
}

// SizeOf returns the declared byte size of a linear artifact.
// The chunk store has no declared byte size and reports 0.
func (m *RemoteSnapshotMetadata) SizeOf(a Artifact) uint64 {
	switch a {
	case ArtifactWasmModule:
		return m.WasmModuleSize
	case ArtifactWasmMemory:
		return m.WasmMemorySize
	case ArtifactStableMemory:
		return m.StableMemorySize
	default:
		return 0
	}
}

// Clone returns a deep copy of the metadata.
func (m *RemoteSnapshotMetadata) Clone() *RemoteSnapshotMetadata {
	if m == nil {
		return nil
	}
	out := *m
	if m.Globals != nil {
		out.Globals = append([]Global(nil), m.Globals...)
	}
	if m.WasmChunkStore != nil {
		out.WasmChunkStore = make([][]byte, len(m.WasmChunkStore))
		for i, h := range m.WasmChunkStore {
			out.WasmChunkStore[i] = append([]byte(nil), h...)
		}
	}
	if m.CertifiedData != nil {
		out.CertifiedData = append([]byte(nil), m.CertifiedData...)
	}
	if m.GlobalTimer != nil {
		timer := *m.GlobalTimer
		out.GlobalTimer = &timer
	}
	if m.OnLowWasmMemoryHookStatus != nil {
		status := *m.OnLowWasmMemoryHookStatus
		out.OnLowWasmMemoryHookStatus = &status
	}
	return &out
}
