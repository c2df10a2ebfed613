package recruitment

import "fmt"

// EventKind categorizes controller notifications.
type EventKind uint8

const (
	EventLinkEntered      EventKind = iota // Pair moved OutOfRange → InRange
	EventLinkExited                        // Pair moved InRange → OutOfRange
	EventAffordanceShown                   // Selected division can recruit somewhere (new or changed settlement)
	EventAffordanceHidden                  // Selected division can no longer recruit anywhere
	EventSelectionChanged
	EventUnitRecruited
	EventRecruitRejected
)

var eventKindNames = [...]string{
	EventLinkEntered:      "link_entered",
	EventLinkExited:       "link_exited",
	EventAffordanceShown:  "affordance_shown",
	EventAffordanceHidden: "affordance_hidden",
	EventSelectionChanged: "selection_changed",
	EventUnitRecruited:    "unit_recruited",
	EventRecruitRejected:  "recruit_rejected",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return fmt.Sprintf("event(%d)", uint8(k))
}

// MarshalText encodes the kind by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is a typed notification dispatched by the Controller.
type Event struct {
	Kind         EventKind   `json:"kind"`
	Tick         uint64      `json:"tick"`
	DivisionID   uint64      `json:"division_id"`
	SettlementID uint64      `json:"settlement_id,omitempty"`
	Archetype    Archetype   `json:"archetype,omitempty"`
	Troops       uint32      `json:"troops,omitempty"` // Division strength after a recruitment
	Affordance   *Affordance `json:"affordance,omitempty"`
	Err          error       `json:"-"`
}

// Description renders the event as a one-line log message.
func (e Event) Description() string {
	switch e.Kind {
	case EventLinkEntered:
		return fmt.Sprintf("division %d entered range of settlement %d", e.DivisionID, e.SettlementID)
	case EventLinkExited:
		return fmt.Sprintf("division %d left range of settlement %d", e.DivisionID, e.SettlementID)
	case EventAffordanceShown:
		return fmt.Sprintf("division %d: %s", e.DivisionID, e.Affordance.Label)
	case EventAffordanceHidden:
		return fmt.Sprintf("division %d can no longer recruit", e.DivisionID)
	case EventSelectionChanged:
		if e.DivisionID == 0 {
			return "selection cleared"
		}
		return fmt.Sprintf("division %d selected", e.DivisionID)
	case EventUnitRecruited:
		return fmt.Sprintf("division %d recruited %s at settlement %d (troops now %d)",
			e.DivisionID, e.Archetype, e.SettlementID, e.Troops)
	case EventRecruitRejected:
		return fmt.Sprintf("division %d could not recruit %s: %v", e.DivisionID, e.Archetype, e.Err)
	default:
		return e.Kind.String()
	}
}

// Listener receives controller events synchronously on the simulation thread.
// Implementations must not block.
type Listener interface {
	OnRecruitmentEvent(Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(Event)

// OnRecruitmentEvent calls f(e).
func (f ListenerFunc) OnRecruitmentEvent(e Event) {
	f(e)
}
