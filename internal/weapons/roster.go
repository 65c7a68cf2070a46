package weapons

import "errors"

// Capacity is the maximum number of weapons a run may carry.
const Capacity = 4

var (
	// ErrRosterFull is returned when adding beyond Capacity.
	ErrRosterFull = errors.New("weapon roster is full")
	// ErrDuplicateWeapon is returned when the weapon id is already equipped.
	ErrDuplicateWeapon = errors.New("weapon already equipped")
	// ErrRosterBusy is returned when Add is called while Each is iterating.
	ErrRosterBusy = errors.New("weapon roster is being iterated")
	// ErrNilHandle is returned when Add receives a nil handle.
	ErrNilHandle = errors.New("nil weapon handle")
)

// Roster is the ordered set of live weapons for one run. It never shrinks.
type Roster struct {
	handles   []*Handle
	iterating int
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{handles: make([]*Handle, 0, Capacity)}
}

// Add appends a handle, enforcing capacity and id uniqueness.
func (r *Roster) Add(handle *Handle) error {
	if handle == nil {
		return ErrNilHandle
	}
	if r.iterating > 0 {
		return ErrRosterBusy
	}
	if r.Has(handle.WeaponID()) {
		return ErrDuplicateWeapon
	}
	if len(r.handles) >= Capacity {
		return ErrRosterFull
	}
	r.handles = append(r.handles, handle)
	return nil
}

// Len returns the number of equipped weapons.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.handles)
}

// Full reports whether the roster has reached Capacity.
func (r *Roster) Full() bool { return r.Len() >= Capacity }

// Each visits every handle in order. Add fails with ErrRosterBusy until fn returns.
func (r *Roster) Each(fn func(*Handle)) {
	if r == nil {
		return
	}
	r.iterating++
	defer func() { r.iterating-- }()
	for _, handle := range r.handles {
		fn(handle)
	}
}

// Has reports whether a weapon id is equipped.
func (r *Roster) Has(weaponID string) bool {
	if r == nil {
		return false
	}
	for _, handle := range r.handles {
		if handle.WeaponID() == weaponID {
			return true
		}
	}
	return false
}

// HasKind reports whether any equipped weapon belongs to kind.
func (r *Roster) HasKind(kind Kind) bool {
	if r == nil {
		return false
	}
	for _, handle := range r.handles {
		if handle.Kind() == kind {
			return true
		}
	}
	return false
}

// Handles returns a copy of the handle slice.
func (r *Roster) Handles() []*Handle {
	if r == nil {
		return nil
	}
	out := make([]*Handle, len(r.handles))
	copy(out, r.handles)
	return out
}

// IDs returns the equipped weapon ids in roster order.
func (r *Roster) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, len(r.handles))
	for i, handle := range r.handles {
		ids[i] = handle.WeaponID()
	}
	return ids
}

// Snapshot describes one handle for journals and network payloads.
type Snapshot struct {
	WeaponID   string     `json:"weaponId"`
	Kind       Kind       `json:"kind"`
	Capability Capability `json:"capability"`
}

// Snapshot returns a read-only view of the roster.
func (r *Roster) Snapshot() []Snapshot {
	if r == nil {
		return nil
	}
	out := make([]Snapshot, len(r.handles))
	for i, handle := range r.handles {
		out[i] = Snapshot{WeaponID: handle.WeaponID(), Kind: handle.Kind(), Capability: handle.Capability()}
	}
	return out
}
