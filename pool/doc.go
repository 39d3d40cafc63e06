// Package pool implements the zero-allocation resource pooling core of the
// acquisition platform.
//
// Pool arbitrates a fixed set of pre-allocated slots. Acquisition hands out
// a Loaned handle that caches a direct reference to the slot storage, so
// the hot path never touches the structural lock. BufferPool specializes
// the pool to fixed-capacity byte buffers and adds Freeze: a zero-copy
// conversion from the exclusive loan into a shared, reference-counted
// FrozenView that fans the same bytes out to any number of consumers.
//
// The slot table only ever grows by appending; existing slot storage is
// never relocated or freed, which is what makes cached references safe for
// the lifetime of a loan. See pool.go and bufferpool.go.
package pool
