package main

import (
	"fmt"
	"log"
	"time"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

// KeyHoldTimeout is how long a terminal key counts as held after its last
// press or auto-repeat. Terminals report no key releases.
const KeyHoldTimeout = 180 * time.Millisecond

type PlayerAction uint8

const (
	ActionTurnLeft PlayerAction = iota
	ActionTurnRight
	ActionShoot
	ActionThrust
	actionCount
)

var actionNames = [...]string{"TurnLeft", "TurnRight", "Shoot", "Thrust"}

func (a PlayerAction) String() string {
	if a < actionCount {
		return actionNames[a]
	}
	return fmt.Sprintf("PlayerAction(%d)", uint8(a))
}

// ActionStateData is the set of actions currently held.
type ActionStateData struct {
	Held uint8
}

func (s *ActionStateData) Press(a PlayerAction)   { s.Held |= 1 << a }
func (s *ActionStateData) Release(a PlayerAction) { s.Held &^= 1 << a }

func (s ActionStateData) Pressed(a PlayerAction) bool {
	return s.Held&(1<<a) != 0
}

var ActionState = donburi.NewComponentType[ActionStateData]()

type DiffKind string

const (
	DiffPressed  DiffKind = "pressed"
	DiffReleased DiffKind = "released"
)

// ActionDiff is one press or release of an action by the client ID.
type ActionDiff struct {
	Kind   DiffKind     `json:"kind"`
	Action PlayerAction `json:"action"`
	ID     uint64       `json:"id"`
}

// GenerateActionDiffs lists the changes from prev to cur in action order.
func GenerateActionDiffs(prev, cur ActionStateData, id uint64) []ActionDiff {
	var diffs []ActionDiff
	for act := PlayerAction(0); act < actionCount; act++ {
		was, is := prev.Pressed(act), cur.Pressed(act)
		switch {
		case is && !was:
			diffs = append(diffs, ActionDiff{Kind: DiffPressed, Action: act, ID: id})
		case was && !is:
			diffs = append(diffs, ActionDiff{Kind: DiffReleased, Action: act, ID: id})
		}
	}
	return diffs
}

// ApplyActionDiff updates the ActionState of the entity owned by diff.ID.
func ApplyActionDiff(w donburi.World, diff ActionDiff) bool {
	applied := false
	donburi.NewQuery(filter.Contains(ActionState, NetworkOwner)).Each(w, func(e *donburi.Entry) {
		if applied || NetworkOwner.Get(e).ClientID != diff.ID {
			return
		}
		s := ActionState.Get(e)
		switch diff.Kind {
		case DiffPressed:
			s.Press(diff.Action)
		case DiffReleased:
			s.Release(diff.Action)
		default:
			return
		}
		applied = true
	})
	return applied
}

func installInput(a *App) {
	a.AddSystem(StagePreUpdate, "process_action_diffs", processActionDiffs, IsServer)
	a.AddSystem(StagePreUpdate, "apply_local_input", applyLocalInput, IsServer)
	a.AddSystem(StagePostUpdate, "generate_action_diffs", generateActionDiffs, IsClient)
	a.State.OnEnter(StatePlaying, func(a *App) {
		if a.Role == RoleClient {
			// fresh ships start with nothing held, so resend whatever is down
			a.lastSent = ActionStateData{}
		}
	})
}

// processActionDiffs applies diffs received from clients. A connection may
// only drive its own ship.
func processActionDiffs(a *App) {
	for _, msg := range a.clientDiffs {
		if msg.Event.ID != msg.ClientID {
			log.Printf("dropping diff from client %d targeting %d", msg.ClientID, msg.Event.ID)
			continue
		}
		ApplyActionDiff(a.World, msg.Event)
	}
}

// applyLocalInput drives the host's own ship from the local front-end.
func applyLocalInput(a *App) {
	if e, ok := FindPlayer(a.World, ServerID); ok {
		ActionState.SetValue(e, a.LocalInput)
	}
}

func generateActionDiffs(a *App) {
	diffs := GenerateActionDiffs(a.lastSent, a.LocalInput, a.LocalID)
	if len(diffs) == 0 {
		return
	}
	a.lastSent = a.LocalInput
	a.outbox = append(a.outbox, diffs...)
}

// KeyHold turns repeated terminal key presses into a held action state.
type KeyHold struct {
	until [actionCount]time.Time
}

// Touch marks act as held until now plus KeyHoldTimeout.
func (k *KeyHold) Touch(act PlayerAction, now time.Time) {
	if act < actionCount {
		k.until[act] = now.Add(KeyHoldTimeout)
	}
}

// Clear releases every action.
func (k *KeyHold) Clear() {
	k.until = [actionCount]time.Time{}
}

// State returns the actions still held at now.
func (k *KeyHold) State(now time.Time) ActionStateData {
	var s ActionStateData
	for act := PlayerAction(0); act < actionCount; act++ {
		if now.Before(k.until[act]) {
			s.Press(act)
		}
	}
	return s
}
