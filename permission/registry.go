package permission

import (
	"errors"
	"sync"
)

const maxActions = 64

// Registry maps action names to bit positions within a [Mask64].
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates an action [Registry] with the given actions registered in order.
func NewRegistry(actions ...string) (*Registry, error) {
	r := &Registry{
		nameToBit: make(map[string]int),
		bitToName: make(map[int]string),
	}
	for _, a := range actions {
		if _, err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register assigns the next available bit to the named action.
// Must be called before [Registry.Freeze].
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}
	if name == "" {
		return -1, errors.New("action name cannot be empty")
	}
	if _, exists := r.nameToBit[name]; exists {
		return -1, errors.New("action already registered")
	}

	nextBit := len(r.nameToBit)
	if nextBit >= maxActions {
		return -1, errors.New("action limit exceeded")
	}

	r.nameToBit[name] = nextBit
	r.bitToName[nextBit] = name

	return nextBit, nil
}

// Bit returns the bit index for the named action, or false if not registered.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the action name for the given bit index, or false if unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Names expands a mask back into action names, in bit order.
func (r *Registry) Names(m Mask64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.bitToName))
	for bit := 0; bit < len(r.bitToName); bit++ {
		if m.Has(bit) {
			out = append(out, r.bitToName[bit])
		}
	}
	return out
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered actions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}
