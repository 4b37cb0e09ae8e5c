//nolint:revive // types is a common Go package naming convention
package types

// Version is the canonical canisnap version.
// The CLI, the manifest layout and the notification payload share
// this version (lockstep versioning).
const Version = "0.3.0"

// ContractVersion is the version stamped on notification payloads.
const ContractVersion = Version
