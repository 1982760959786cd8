// Package remote mirrors a mount to websocket observers.
//
// A Hub keeps a wire copy of the mount's tree. A connecting client first
// receives a FrameSnapshot with the whole tree, then one FrameChanges frame
// per applied pass. Clients may send FrameEvent frames, which the hub
// dispatches to the backend element at the event's path; failures come back
// as FrameError frames.
//
//	hub := remote.NewHub("app", doc, remote.DefaultConfig())
//	remote.Mirror(hub, renderer)
//	http.ListenAndServe(":8080", remote.NewRouter(hub, prometheus.DefaultGatherer))
package remote
