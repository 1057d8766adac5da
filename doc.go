// Package children implements a homogeneous group supervisor: a Group
// owns a configurable number of identical member actors, restarts or
// tears them down as a unit on fault, and optionally scales their count
// and emits a heartbeat upward while running.
//
// A Group is built with New and its With* chain, then started with Run
// (or Launch, for a cancelable handle):
//
//	g := children.New("workers", parentSender).
//		WithExec(myWorkerBody).
//		WithRedundancy(4)
//	err := g.Run(ctx)
package children
