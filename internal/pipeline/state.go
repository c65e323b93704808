package pipeline

type State string

const (
	StateValidating State = "validating"
	StateThumbnail  State = "thumbnail_in_progress"
	StateClip       State = "clip_in_progress"
	StatePersisting State = "persisting"
	StateDone       State = "done"
	StateCancelled  State = "cancelled"
	StateFailed     State = "failed"
)

func (s State) Terminal() bool {
	return s == StateDone || s == StateCancelled || s == StateFailed
}

type eventKind int

const (
	evValid eventKind = iota
	evInvalid
	evStageOK
	evStageFailed
	evCancel
	evPersisted
	evPersistFailed
)

type event struct {
	kind eventKind
	err  *Error
}

type action int

const (
	actNone action = iota
	actThumbnail
	actTrim
	actPersist
)

// transition is the clip state machine. Pairs not listed leave the state
// unchanged with no action; terminal states absorb every event.
func transition(s State, e event) (State, action) {
	switch s {
	case StateValidating:
		switch e.kind {
		case evValid:
			return StateThumbnail, actThumbnail
		case evInvalid:
			return StateFailed, actNone
		}
	case StateThumbnail:
		switch e.kind {
		case evStageOK:
			return StateClip, actTrim
		case evStageFailed:
			return StateFailed, actNone
		case evCancel:
			return StateCancelled, actNone
		}
	case StateClip:
		switch e.kind {
		case evStageOK:
			return StatePersisting, actPersist
		case evStageFailed:
			return StateFailed, actNone
		case evCancel:
			return StateCancelled, actNone
		}
	case StatePersisting:
		switch e.kind {
		case evPersisted:
			return StateDone, actNone
		case evPersistFailed:
			return StateFailed, actNone
		}
	}
	return s, actNone
}
