package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// hashed shape to change without colliding with older hashes.
const (
	DomainRegistry = "vox/registry/v1"
	DomainSnapshot = "vox/snapshot/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RegistryHash identifies a set of command patterns by content.
// Pattern order matters: it is the tie-break order of the matcher.
func RegistryHash(patterns []CommandPattern) (string, error) {
	list := make(List, len(patterns))
	for i, p := range patterns {
		list[i] = p.toObject()
	}
	data, err := marshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("registry hash: %w", err)
	}
	return hashWithDomain(DomainRegistry, data), nil
}

// SnapshotHash identifies an exported workflow snapshot by content.
func SnapshotHash(snapshot Object) (string, error) {
	data, err := marshalCanonical(snapshot)
	if err != nil {
		return "", fmt.Errorf("snapshot hash: %w", err)
	}
	return hashWithDomain(DomainSnapshot, data), nil
}

// MustRegistryHash is RegistryHash for statically known patterns.
// Panics on error.
func MustRegistryHash(patterns []CommandPattern) string {
	h, err := RegistryHash(patterns)
	if err != nil {
		panic(err)
	}
	return h
}
