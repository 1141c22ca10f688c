package zone

import (
	"context"
	"sync"
	"time"

	"github.com/sentinelsec/sentinel-core/internal/infrastructure/logging"
)

// Mode is the armed mode a zone-participation question is asked against.
type Mode string

const (
	ModeHome Mode = "home"
	ModeAway Mode = "away"
)

// Registry answers "does this sensor matter right now" questions for the
// alarm state machine.
//
// The database row is the source of truth for bypass state; the registry
// keeps a write-through overlay of bypasses so the hot path (sensor trip
// while armed) doesn't touch the database. The overlay is populated on
// SetBypass and dropped wholesale on ClearAllBypasses.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Registry struct {
	repo   Repository
	logger *logging.Logger

	// now is replaceable in tests.
	now func() time.Time

	mu sync.RWMutex
	// bypass maps zone ID to bypass expiry; the zero time means
	// "until disarm".
	bypass map[string]time.Time
}

// NewRegistry creates a Registry over the given repository.
func NewRegistry(repo Repository, logger *logging.Logger) *Registry {
	return &Registry{
		repo:   repo,
		logger: logger.With("component", "zone"),
		now:    time.Now,
		bypass: make(map[string]time.Time),
	}
}

// Load primes the bypass overlay from the store. Called once at startup
// so bypasses survive a controller restart.
func (r *Registry) Load(ctx context.Context) error {
	zones, err := r.repo.List(ctx)
	if err != nil {
		return err
	}

	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.bypass = make(map[string]time.Time)
	for _, z := range zones {
		if !z.BypassedAt(now) {
			continue
		}
		if z.BypassedUntil != nil {
			r.bypass[z.ID] = *z.BypassedUntil
		} else {
			r.bypass[z.ID] = time.Time{}
		}
	}
	return nil
}

// Register upserts a zone definition.
func (r *Registry) Register(ctx context.Context, z *Zone) error {
	return r.repo.Register(ctx, z)
}

// Get retrieves a zone by ID.
func (r *Registry) Get(ctx context.Context, id string) (*Zone, error) {
	return r.repo.GetByID(ctx, id)
}

// List returns all zones.
func (r *Registry) List(ctx context.Context) ([]Zone, error) {
	return r.repo.List(ctx)
}

// SetBypass bypasses or un-bypasses a zone. A positive duration bounds
// the bypass; zero means it holds until disarm.
func (r *Registry) SetBypass(ctx context.Context, id string, bypassed bool, d time.Duration) error {
	var until *time.Time
	var expiry time.Time
	if bypassed && d > 0 {
		expiry = r.now().Add(d)
		until = &expiry
	}

	if err := r.repo.SetBypass(ctx, id, bypassed, until); err != nil {
		return err
	}

	r.mu.Lock()
	if bypassed {
		r.bypass[id] = expiry
	} else {
		delete(r.bypass, id)
	}
	r.mu.Unlock()

	r.logger.Info("zone bypass changed",
		"zone_id", id,
		"bypassed", bypassed,
	)
	return nil
}

// ClearAllBypasses removes every bypass. Called on disarm: a bypass is a
// property of one arming session, not a standing exclusion.
func (r *Registry) ClearAllBypasses(ctx context.Context) error {
	zones, err := r.repo.List(ctx)
	if err != nil {
		return err
	}

	for _, z := range zones {
		if !z.Bypassed {
			continue
		}
		if err := r.repo.SetBypass(ctx, z.ID, false, nil); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.bypass = make(map[string]time.Time)
	r.mu.Unlock()
	return nil
}

// IsBypassed reports whether the zone is currently bypassed, consulting
// only the overlay. Expiry is lazy: an entry past its moment is treated
// as live and dropped in place; the store row is corrected too so the
// two never diverge for long.
func (r *Registry) IsBypassed(ctx context.Context, id string) bool {
	now := r.now()

	r.mu.RLock()
	until, ok := r.bypass[id]
	r.mu.RUnlock()

	if !ok {
		return false
	}
	if until.IsZero() || now.Before(until) {
		return true
	}

	// Expired: clear overlay and store.
	r.mu.Lock()
	if u, ok := r.bypass[id]; ok && !u.IsZero() && !now.Before(u) {
		delete(r.bypass, id)
	}
	r.mu.Unlock()

	if err := r.repo.SetBypass(ctx, id, false, nil); err != nil {
		r.logger.Error("failed to clear expired bypass", "zone_id", id, "error", err)
	}
	return false
}

// IsActive reports whether a zone trip should matter in the given mode:
// the zone must participate in that mode and not be bypassed.
func (r *Registry) IsActive(ctx context.Context, z *Zone, mode Mode) bool {
	if r.IsBypassed(ctx, z.ID) {
		return false
	}
	switch mode {
	case ModeHome:
		return z.ActiveHome
	case ModeAway:
		return z.ActiveAway
	default:
		return false
	}
}
