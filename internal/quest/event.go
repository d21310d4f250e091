package quest

import (
	"encoding/json"
	"fmt"
)

// GameEvent is a normalized record of something that happened in play.
// Each event kind maps to exactly one ObjectiveType.
type GameEvent interface {
	ObjectiveType() ObjectiveType
	Amount() int
	sealedEvent()
}

// KillEvent reports that a mob was defeated
type KillEvent struct {
	Target string
	Count  int
}

// GatherEvent reports that items were picked up
type GatherEvent struct {
	ItemID   string
	Quantity int
}

// ExploreEvent reports that a location was visited
type ExploreEvent struct {
	Location string
}

// TalkEvent reports a conversation with an NPC
type TalkEvent struct {
	NPC string
}

// CraftEvent reports that items were crafted
type CraftEvent struct {
	ItemID   string
	Quantity int
}

// DeliverEvent reports that items were handed over at a location
type DeliverEvent struct {
	ItemID   string
	Location string
	Quantity int
}

// WaitEvent reports time spent at a target (a campfire, a vigil spot, ...)
type WaitEvent struct {
	Target  string
	Seconds int
}

func (KillEvent) ObjectiveType() ObjectiveType    { return ObjectiveKill }
func (GatherEvent) ObjectiveType() ObjectiveType  { return ObjectiveGather }
func (ExploreEvent) ObjectiveType() ObjectiveType { return ObjectiveExplore }
func (TalkEvent) ObjectiveType() ObjectiveType    { return ObjectiveTalk }
func (CraftEvent) ObjectiveType() ObjectiveType   { return ObjectiveCraft }
func (DeliverEvent) ObjectiveType() ObjectiveType { return ObjectiveDeliver }
func (WaitEvent) ObjectiveType() ObjectiveType    { return ObjectiveWait }

func (e KillEvent) Amount() int    { return atLeastOne(e.Count) }
func (e GatherEvent) Amount() int  { return atLeastOne(e.Quantity) }
func (ExploreEvent) Amount() int   { return 1 }
func (TalkEvent) Amount() int      { return 1 }
func (e CraftEvent) Amount() int   { return atLeastOne(e.Quantity) }
func (e DeliverEvent) Amount() int { return atLeastOne(e.Quantity) }
func (e WaitEvent) Amount() int    { return atLeastOne(e.Seconds) }

func (KillEvent) sealedEvent()    {}
func (GatherEvent) sealedEvent()  {}
func (ExploreEvent) sealedEvent() {}
func (TalkEvent) sealedEvent()    {}
func (CraftEvent) sealedEvent()   {}
func (DeliverEvent) sealedEvent() {}
func (WaitEvent) sealedEvent()    {}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// EventEnvelope is the JSON form of a game event
type EventEnvelope struct {
	Type     string `json:"type"`
	Target   string `json:"target,omitempty"`
	Location string `json:"location,omitempty"`
	Amount   int    `json:"amount,omitempty"`
}

// DecodeEvent parses a JSON event envelope into a typed GameEvent
func DecodeEvent(data []byte) (GameEvent, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	return env.Event()
}

// Event converts the envelope into its typed form
func (env EventEnvelope) Event() (GameEvent, error) {
	switch ObjectiveType(env.Type) {
	case ObjectiveKill:
		if env.Target == "" {
			return nil, fmt.Errorf("kill event requires a target")
		}
		return KillEvent{Target: env.Target, Count: env.Amount}, nil
	case ObjectiveGather:
		if env.Target == "" {
			return nil, fmt.Errorf("gather event requires a target")
		}
		return GatherEvent{ItemID: env.Target, Quantity: env.Amount}, nil
	case ObjectiveExplore:
		loc := env.Location
		if loc == "" {
			loc = env.Target
		}
		if loc == "" {
			return nil, fmt.Errorf("explore event requires a location")
		}
		return ExploreEvent{Location: loc}, nil
	case ObjectiveTalk:
		if env.Target == "" {
			return nil, fmt.Errorf("talk event requires a target")
		}
		return TalkEvent{NPC: env.Target}, nil
	case ObjectiveCraft:
		if env.Target == "" {
			return nil, fmt.Errorf("craft event requires a target")
		}
		return CraftEvent{ItemID: env.Target, Quantity: env.Amount}, nil
	case ObjectiveDeliver:
		if env.Target == "" || env.Location == "" {
			return nil, fmt.Errorf("deliver event requires a target and a location")
		}
		return DeliverEvent{ItemID: env.Target, Location: env.Location, Quantity: env.Amount}, nil
	case ObjectiveWait:
		return WaitEvent{Target: env.Target, Seconds: env.Amount}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

// Envelope converts a typed event back to its JSON form
func Envelope(ev GameEvent) EventEnvelope {
	switch e := ev.(type) {
	case KillEvent:
		return EventEnvelope{Type: string(ObjectiveKill), Target: e.Target, Amount: e.Count}
	case GatherEvent:
		return EventEnvelope{Type: string(ObjectiveGather), Target: e.ItemID, Amount: e.Quantity}
	case ExploreEvent:
		return EventEnvelope{Type: string(ObjectiveExplore), Location: e.Location}
	case TalkEvent:
		return EventEnvelope{Type: string(ObjectiveTalk), Target: e.NPC}
	case CraftEvent:
		return EventEnvelope{Type: string(ObjectiveCraft), Target: e.ItemID, Amount: e.Quantity}
	case DeliverEvent:
		return EventEnvelope{Type: string(ObjectiveDeliver), Target: e.ItemID, Location: e.Location, Amount: e.Quantity}
	case WaitEvent:
		return EventEnvelope{Type: string(ObjectiveWait), Target: e.Target, Amount: e.Seconds}
	default:
		return EventEnvelope{Type: string(ev.ObjectiveType())}
	}
}
