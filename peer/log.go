package peer

import "github.com/aisremote/peerlink/internal/nlog"

// peerLog tags every line with the owning peer's name, the supplemented
// tracing-context feature from the Rust original (thespis_remote tags
// spans with the actor's identity); nlog itself stays name-agnostic so
// other packages don't pay for a feature only peer needs.
type peerLog struct {
	name string
}

func newPeerLog(name string) peerLog { return peerLog{name: name} }

func (l peerLog) Infof(format string, args ...any) {
	nlog.Infof("[%s] "+format, append([]any{l.name}, args...)...)
}

func (l peerLog) Warningf(format string, args ...any) {
	nlog.Warningf("[%s] "+format, append([]any{l.name}, args...)...)
}

func (l peerLog) Errorf(format string, args ...any) {
	nlog.Errorf("[%s] "+format, append([]any{l.name}, args...)...)
}
