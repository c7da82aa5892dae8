// Package determinism provides stable fingerprints for planning inputs.
// Identical (costs, configuration) pairs always produce identical fingerprints.
package determinism

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"

	"cu-planner/core/types"
)

// fingerprintVersion is mixed into every fingerprint so a change in the
// encoding below never collides with fingerprints from an older layout.
const fingerprintVersion = 1

// Fingerprint hashes a cost sequence together with the configuration it is planned against
func Fingerprint(costs []int64, cfg types.Configuration) uint64 {
	buf := make([]byte, 0, 8*(len(costs)+6)+len(cfg.Policy()))
	buf = binary.LittleEndian.AppendUint64(buf, fingerprintVersion)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(cfg.StartOffset))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(cfg.RawCapacity))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(cfg.ReservedMargin))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(cfg.Policy())))
	buf = append(buf, string(cfg.Policy())...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(costs)))
	for _, c := range costs {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(c))
	}
	return xxh3.Hash(buf)
}

// FingerprintHex returns Fingerprint as a fixed-width hex string
func FingerprintHex(costs []int64, cfg types.Configuration) string {
	return fmt.Sprintf("%016x", Fingerprint(costs, cfg))
}

// HashString hashes a free-form string, e.g. a log file body
func HashString(s string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(s))
}
