// Package sched provides the scheduling facilities the draw engine runs on:
// a real-time event loop and a virtual clock for tests and simulations.
//
// Both run every callback on a single logical thread, one at a time, in the
// order they become due. A cancelled handle never fires, even if its timer
// had already expired and the callback was waiting to run.
package sched

// Handle identifies one pending callback. The zero Handle is never issued.
type Handle uint64
