package light

// Event types written to the scheduler log. Budget exhaustion is not an
// error; it is logged only for scheduling visibility.
const (
	EventInitDone        = "init_done"
	EventInitAborted     = "init_aborted"
	EventInitDiscarded   = "init_discarded"
	EventRetractDeferred = "retract_deferred"
	EventRetractResumed  = "retract_resumed"

	// EventSnapshotRecovered marks a partition whose on-disk snapshot
	// failed validation and was rebuilt from scratch.
	EventSnapshotRecovered = "snapshot_recovered"
)

type Event struct {
	Type    string `json:"type"`
	PX      int    `json:"px"`
	PZ      int    `json:"pz"`
	Channel string `json:"channel,omitempty"`
	Nodes   int    `json:"nodes,omitempty"`
	DurMs   int64  `json:"dur_ms,omitempty"`
	Tick    uint64 `json:"tick,omitempty"`
}

type EventSink interface {
	LightEvent(Event)
}

func (e *Engine) emit(ev Event) {
	if e.sink != nil {
		e.sink.LightEvent(ev)
	}
}
