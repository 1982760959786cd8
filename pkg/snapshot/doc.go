// Package snapshot stores the change log of render passes.
//
// Each successful pass of a dom.Renderer can be recorded as an encoded
// protocol.PassRecord keyed by mount and sequence number. Two stores are
// provided: BoltStore keeps records in a local bbolt file, S3Store in an
// S3 bucket. Replay rebuilds the tree of a mount from its records.
//
//	store, err := snapshot.OpenBolt("history.db")
//	renderer.AddHook(snapshot.Recorder[Msg](store, logger))
package snapshot
