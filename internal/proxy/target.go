package proxy

import "sync"

// ChatTarget is the real chat endpoint recovered from the bootstrap config.
type ChatTarget struct {
	Host string
	Port int
}

// TargetHolder is a write-once cell shared by the config interceptor (writer)
// and the chat interceptor (reader). The first successful config parse wins;
// later writes are ignored.
type TargetHolder struct {
	mu     sync.Mutex
	target *ChatTarget
}

func NewTargetHolder() *TargetHolder {
	return &TargetHolder{}
}

// Set stores the target if none is stored yet and reports whether this call
// was the one that stored it.
func (h *TargetHolder) Set(t ChatTarget) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.target != nil {
		return false
	}
	h.target = &t
	return true
}

// Get returns the stored target, if any.
func (h *TargetHolder) Get() (ChatTarget, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.target == nil {
		return ChatTarget{}, false
	}
	return *h.target, true
}
