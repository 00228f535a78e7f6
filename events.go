package ballast

import (
	"slices"
	"unsafe"

	"github.com/akmonengine/ballast/actor"
	"github.com/akmonengine/ballast/constraint"
)

const (
	CONTACT_BEGIN EventType = iota
	CONTACT_PERSIST
	CONTACT_END
	POST_SOLVE
	TRIGGER_ENTER
	TRIGGER_STAY
	TRIGGER_EXIT
	ON_SLEEP
	ON_WAKE
)

type pairKey struct {
	bodyA *actor.RigidBody
	bodyB *actor.RigidBody
}

// makePairKey creates a normalized pair key with consistent ordering
func makePairKey(bodyA, bodyB *actor.RigidBody) pairKey {
	ptrA := uintptr(unsafe.Pointer(bodyA))
	ptrB := uintptr(unsafe.Pointer(bodyB))

	if ptrB < ptrA {
		bodyA, bodyB = bodyB, bodyA
	}

	return pairKey{bodyA: bodyA, bodyB: bodyB}
}

type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// ContactBeginEvent is sent for a manifold without any resting point
type ContactBeginEvent struct {
	BodyA    *actor.RigidBody
	BodyB    *actor.RigidBody
	Manifold *constraint.ContactManifold
}

func (e ContactBeginEvent) Type() EventType { return CONTACT_BEGIN }

// ContactPersistEvent is sent for a manifold that kept at least one point
type ContactPersistEvent struct {
	BodyA    *actor.RigidBody
	BodyB    *actor.RigidBody
	Manifold *constraint.ContactManifold
}

func (e ContactPersistEvent) Type() EventType { return CONTACT_PERSIST }

// ContactEndEvent is sent when a pair in contact at the previous step has no manifold anymore
type ContactEndEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e ContactEndEvent) Type() EventType { return CONTACT_END }

// PostSolveEvent carries the impulses stored by the solver for a manifold
type PostSolveEvent struct {
	BodyA    *actor.RigidBody
	BodyB    *actor.RigidBody
	Manifold *constraint.ContactManifold

	// NormalImpulse is the sum of the point penetration impulses (N.s)
	NormalImpulse float64
}

func (e PostSolveEvent) Type() EventType { return POST_SOLVE }

// Trigger events
type TriggerEnterEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e TriggerEnterEvent) Type() EventType { return TRIGGER_ENTER }

type TriggerStayEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e TriggerStayEvent) Type() EventType { return TRIGGER_STAY }

type TriggerExitEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e TriggerExitEvent) Type() EventType { return TRIGGER_EXIT }

// Sleep/Wake events
type SleepEvent struct {
	Body *actor.RigidBody
}

func (e SleepEvent) Type() EventType { return ON_SLEEP }

type WakeEvent struct {
	Body *actor.RigidBody
}

func (e WakeEvent) Type() EventType { return ON_WAKE }

// EventListener - callback for events
type EventListener func(event Event)

// Events manager
type Events struct {
	// Listeners by event type
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event

	// Contact tracking for Begin/Persist/End detection
	previousActivePairs map[pairKey]bool
	currentActivePairs  map[pairKey]bool

	sleepStates map[*actor.RigidBody]bool
}

func NewEvents() Events {
	return Events{
		listeners:           make(map[EventType][]EventListener),
		buffer:              make([]Event, 0, 256),
		previousActivePairs: make(map[pairKey]bool),
		currentActivePairs:  make(map[pairKey]bool),
		sleepStates:         make(map[*actor.RigidBody]bool),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// recordContacts must run before the solver, which flags every point as
// resting for the next step. It returns the islands without their trigger
// manifolds; the caller's islands are left untouched.
func (e *Events) recordContacts(islands []*constraint.Island) []*constraint.Island {
	solid := make([]*constraint.Island, 0, len(islands))

	for _, island := range islands {
		kept := island
		for j, manifold := range island.Manifolds {
			pair := makePairKey(manifold.BodyA, manifold.BodyB)
			wasActive := e.previousActivePairs[pair]
			e.currentActivePairs[pair] = true

			if pair.isTrigger() {
				if kept == island {
					kept = &constraint.Island{Bodies: island.Bodies, Manifolds: slices.Clone(island.Manifolds[:j])}
				}
				e.recordTrigger(pair, wasActive)
				continue
			}
			if kept != island {
				kept.Manifolds = append(kept.Manifolds, manifold)
			}

			// Skip if both bodies are at rest, to avoid spamming events
			if pair.isAsleep() {
				continue
			}

			if isPersistent(manifold) {
				e.buffer = append(e.buffer, ContactPersistEvent{
					BodyA:    manifold.BodyA,
					BodyB:    manifold.BodyB,
					Manifold: manifold,
				})
			} else {
				e.buffer = append(e.buffer, ContactBeginEvent{
					BodyA:    manifold.BodyA,
					BodyB:    manifold.BodyB,
					Manifold: manifold,
				})
			}
		}

		solid = append(solid, kept)
	}

	return solid
}

func (e *Events) recordTrigger(pair pairKey, wasActive bool) {
	if pair.isAsleep() {
		return
	}

	if wasActive {
		e.buffer = append(e.buffer, TriggerStayEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
	} else {
		e.buffer = append(e.buffer, TriggerEnterEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
	}
}

func (pair pairKey) isTrigger() bool {
	return pair.bodyA.IsTrigger || pair.bodyB.IsTrigger
}

// isAsleep is true when neither body can move on its own
func (pair pairKey) isAsleep() bool {
	return isAtRest(pair.bodyA) && isAtRest(pair.bodyB)
}

func isAtRest(body *actor.RigidBody) bool {
	return !body.IsDynamic() || body.IsSleeping
}

func isPersistent(manifold *constraint.ContactManifold) bool {
	for i := range manifold.Points {
		if manifold.Points[i].IsResting {
			return true
		}
	}

	return false
}

// recordPostSolve is called once the impulses are stored
func (e *Events) recordPostSolve(islands []*constraint.Island) {
	if len(e.listeners[POST_SOLVE]) == 0 {
		return
	}

	for _, island := range islands {
		for _, manifold := range island.Manifolds {
			e.buffer = append(e.buffer, PostSolveEvent{
				BodyA:         manifold.BodyA,
				BodyB:         manifold.BodyB,
				Manifold:      manifold,
				NormalImpulse: manifold.TotalPenetrationImpulse(),
			})
		}
	}
}

// processEndEvents compares current and previous pairs to detect End and Exit
// Should be called once per step
func (e *Events) processEndEvents() {
	for pair := range e.previousActivePairs {
		if e.currentActivePairs[pair] {
			continue
		}

		if pair.isTrigger() {
			e.buffer = append(e.buffer, TriggerExitEvent{
				BodyA: pair.bodyA,
				BodyB: pair.bodyB,
			})
		} else {
			e.buffer = append(e.buffer, ContactEndEvent{
				BodyA: pair.bodyA,
				BodyB: pair.bodyB,
			})
		}
	}

	// Swap for next step and clear current
	e.previousActivePairs, e.currentActivePairs = e.currentActivePairs, e.previousActivePairs
	clear(e.currentActivePairs)
}

// forget drops the tracked state of a removed body, so no End event is sent for it
func (e *Events) forget(body *actor.RigidBody) {
	delete(e.sleepStates, body)

	for pair := range e.previousActivePairs {
		if pair.bodyA == body || pair.bodyB == body {
			delete(e.previousActivePairs, pair)
		}
	}
}

// processSleepEvents compares the sleep state of the bodies with the one
// seen at the previous step. New bodies are tracked without an event.
func (e *Events) processSleepEvents(bodies []*actor.RigidBody) {
	for _, body := range bodies {
		trackedState, exists := e.sleepStates[body]
		if !exists {
			e.sleepStates[body] = body.IsSleeping
			continue
		}

		if !trackedState && body.IsSleeping {
			e.buffer = append(e.buffer, SleepEvent{Body: body})
			e.sleepStates[body] = true
		} else if trackedState && !body.IsSleeping {
			e.buffer = append(e.buffer, WakeEvent{Body: body})
			e.sleepStates[body] = false
		}
	}
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	e.processEndEvents()

	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	e.buffer = e.buffer[:0]
}
