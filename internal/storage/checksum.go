package storage

import (
	"encoding/json"
	"fmt"

	"github.com/alignmentgames/secretagi/internal/game/encoding"
)

// SnapshotChecksum digests a serialized state blob. The blob is canonicalized
// first so structurally equal states always share a checksum regardless of
// field order.
func SnapshotChecksum(stateJSON json.RawMessage) (string, error) {
	if len(stateJSON) == 0 {
		return "", fmt.Errorf("state blob is required")
	}
	digest, err := encoding.ContentHash(stateJSON)
	if err != nil {
		return "", fmt.Errorf("checksum state blob: %w", err)
	}
	return digest, nil
}

// VerifySnapshot reports whether a snapshot's blob still matches its stored
// checksum.
func VerifySnapshot(record SnapshotRecord) error {
	digest, err := SnapshotChecksum(record.StateJSON)
	if err != nil {
		return err
	}
	if digest != record.Checksum {
		return fmt.Errorf("snapshot %s checksum mismatch: stored %s computed %s", record.ID, record.Checksum, digest)
	}
	return nil
}
