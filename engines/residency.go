// Package engines contains the text and image engine adapters and the
// residency manager that coordinates them.
//
// The two engines are large and memory-hungry; the GPU budget assumes they
// cannot coexist. The residency manager enforces "at most one resident" by
// synchronously unloading the sibling slot before any load. It is the only
// globally-shared mutable state between concurrent generation batches.
package engines

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Slot identifies one of the two engine residency slots.
type Slot int

const (
	// SlotText is the text-generation engine slot.
	SlotText Slot = iota
	// SlotImage is the image-synthesis engine slot.
	SlotImage

	slotCount
)

// String returns the slot name for logging.
func (s Slot) String() string {
	switch s {
	case SlotText:
		return "text"
	case SlotImage:
		return "image"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// Residency tracks which engine is resident. One mutex spans the whole
// "check slot, unload other, load this" sequence, so the invariant "never
// both occupied" holds under concurrent requests.
//
// Engine calls run under a lease taken with Acquire. A slot with outstanding
// leases cannot be evicted or unloaded; both wait until the in-use count
// drops to zero, so a handle loaded for one batch stays valid while a
// concurrent batch loads the sibling engine.
type Residency struct {
	mu      sync.Mutex
	cond    *sync.Cond
	unloads [slotCount]func() error
	inUse   [slotCount]int
	logger  *zap.Logger
}

// NewResidency creates an empty residency manager. logger may be nil.
func NewResidency(logger *zap.Logger) *Residency {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Residency{logger: logger}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Acquire populates a slot if needed and takes a lease on it for the duration
// of one engine call. The returned release function must be called exactly
// once when the call completes.
//
// If the slot is empty, Acquire first waits for the sibling's in-flight calls
// to finish, unloads the sibling, then runs load. load and unload run while
// the residency mutex is held, so adapters can write their handle fields
// inside them without extra locking; reading the handle is safe for as long
// as the lease is held.
func (r *Residency) Acquire(slot Slot, load func() error, unload func() error) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	other := siblingOf(slot)
	for r.unloads[slot] == nil && r.inUse[other] > 0 {
		r.cond.Wait()
	}

	if r.unloads[slot] == nil {
		if fn := r.unloads[other]; fn != nil {
			r.logger.Info("unloading sibling engine to free memory",
				zap.Stringer("evicting", other),
				zap.Stringer("loading", slot),
			)
			if err := fn(); err != nil {
				return nil, fmt.Errorf("engines: unloading %s engine: %w", other, err)
			}
			r.unloads[other] = nil
		}

		if err := load(); err != nil {
			return nil, err
		}
		r.unloads[slot] = unload
		r.logger.Info("engine loaded", zap.Stringer("slot", slot))
	}

	r.inUse[slot]++
	return func() { r.release(slot) }, nil
}

// release returns one lease and wakes anyone waiting to evict or unload.
func (r *Residency) release(slot Slot) {
	r.mu.Lock()
	r.inUse[slot]--
	r.mu.Unlock()
	r.cond.Broadcast()
}

// Unload empties a slot, releasing the engine's backing memory. It waits for
// the slot's in-flight calls to finish first. Idempotent: unloading an empty
// slot is a no-op.
func (r *Residency) Unload(slot Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.inUse[slot] > 0 {
		r.cond.Wait()
	}

	fn := r.unloads[slot]
	if fn == nil {
		return nil
	}
	r.unloads[slot] = nil

	if err := fn(); err != nil {
		return fmt.Errorf("engines: unloading %s engine: %w", slot, err)
	}
	r.logger.Info("engine unloaded", zap.Stringer("slot", slot))
	return nil
}

// UnloadAll empties both slots. Used for user-initiated "free memory"
// requests. The first error is returned but both slots are attempted.
func (r *Residency) UnloadAll() error {
	var first error
	for slot := Slot(0); slot < slotCount; slot++ {
		if err := r.Unload(slot); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Occupied reports whether a slot currently holds a loaded engine.
func (r *Residency) Occupied(slot Slot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unloads[slot] != nil
}

func siblingOf(slot Slot) Slot {
	if slot == SlotText {
		return SlotImage
	}
	return SlotText
}
