// File: pool/alloc_linux.go
//go:build linux

// Package pool: Linux slab backing for frame buffers.
//
// Frame buffers are long-lived and fixed-size, so large ones are mapped
// with MAP_HUGETLB (2 MiB pages) to keep TLB pressure down during raw SDK
// copies. Falls back to an anonymous mapping and finally to the Go heap.
// License: Apache-2.0

package pool

import "golang.org/x/sys/unix"

const hugePageSize = 2 << 20

// allocSlab returns a zeroed buffer of exactly capacity bytes.
func allocSlab(capacity int) []byte {
	if capacity >= hugePageSize {
		length := ((capacity + hugePageSize - 1) / hugePageSize) * hugePageSize
		data, err := unix.Mmap(-1, 0, length,
			unix.PROT_READ|unix.PROT_WRITE,
			unix.MAP_ANONYMOUS|unix.MAP_PRIVATE|unix.MAP_HUGETLB)
		if err == nil {
			return data[:capacity]
		}
	}
	if capacity >= 4096 {
		data, err := unix.Mmap(-1, 0, capacity,
			unix.PROT_READ|unix.PROT_WRITE,
			unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
		if err == nil {
			return data
		}
	}
	return make([]byte, capacity)
}
