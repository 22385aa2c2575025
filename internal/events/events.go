// Package events carries install and game lifecycle progress from the
// orchestrator to whoever is watching: the terminal renderer in-process, or
// an external UI over the optional websocket publisher.
package events

import (
	"sync"
	"time"
)

// Stage names one phase of the install/launch flow. Values mirror the
// orchestrator's states so a UI can key display strings off them.
type Stage string

const (
	StageResolving    Stage = "resolving"
	StageDownloading  Stage = "downloading"
	StageApplying     Stage = "applying"
	StagePatching     Stage = "patching"
	StageProvisioning Stage = "provisioning_runtime"
	StageLaunching    Stage = "launching"
	StageRunning      Stage = "running"
	StageStopped      Stage = "stopped"
	StageCancelled    Stage = "cancelled"
	StageErrored      Stage = "errored"
)

// Event is one progress or lifecycle update. Percent is the global 0-100
// across the whole flow, not the sub-stage percent.
type Event struct {
	Stage           Stage     `json:"stage"`
	Percent         int       `json:"percent"`
	Message         string    `json:"message,omitempty"`
	BytesDownloaded int64     `json:"bytesDownloaded,omitempty"`
	BytesTotal      int64     `json:"bytesTotal,omitempty"`
	Time            time.Time `json:"time"`
}

// Hub fans events out to any number of subscribers. Publishing never
// blocks: a subscriber that stops draining loses events rather than
// stalling the install flow.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
	last Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a buffered event channel and its cancel func. New
// subscribers immediately receive the most recent event, so a UI attaching
// mid-install starts from current state.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	if !h.last.Time.IsZero() {
		ch <- h.last
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers ev to all current subscribers, dropping it for any whose
// buffer is full.
func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	h.mu.Lock()
	h.last = ev
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	h.mu.Unlock()
}
