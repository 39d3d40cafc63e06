// File: pool/alloc_stub.go
//go:build !linux

// Package pool: portable slab backing.
// License: Apache-2.0

package pool

// allocSlab returns a zeroed buffer of exactly capacity bytes.
func allocSlab(capacity int) []byte {
	return make([]byte, capacity)
}
