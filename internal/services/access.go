package services

import (
	"fmt"
	"sort"

	"guess-reward-backend/internal/models"
)

// AccessControl holds the owner, the pause flag and the minter registry.
// The owner is fixed at construction.
type AccessControl struct {
	k       *kernel
	owner   models.Principal
	paused  bool
	minters map[models.Principal]struct{}
}

func newAccessControl(k *kernel, owner models.Principal) *AccessControl {
	return &AccessControl{
		k:       k,
		owner:   owner,
		minters: make(map[models.Principal]struct{}),
	}
}

func (ac *AccessControl) Owner() models.Principal {
	return ac.owner
}

func (ac *AccessControl) Paused() bool {
	ac.k.mu.RLock()
	defer ac.k.mu.RUnlock()
	return ac.paused
}

func (ac *AccessControl) IsMinter(p models.Principal) bool {
	ac.k.mu.RLock()
	defer ac.k.mu.RUnlock()
	_, ok := ac.minters[p]
	return ok
}

// Minters returns the registry sorted by principal.
func (ac *AccessControl) Minters() []models.Principal {
	ac.k.mu.RLock()
	defer ac.k.mu.RUnlock()

	out := make([]models.Principal, 0, len(ac.minters))
	for p := range ac.minters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (ac *AccessControl) Pause(caller models.Principal) error {
	return ac.setPaused(caller, true)
}

func (ac *AccessControl) Unpause(caller models.Principal) error {
	return ac.setPaused(caller, false)
}

func (ac *AccessControl) setPaused(caller models.Principal, paused bool) error {
	ac.k.mu.Lock()
	defer ac.k.mu.Unlock()

	if err := ac.requireOwnerLocked(caller); err != nil {
		return err
	}
	if ac.paused == paused {
		return nil
	}
	ac.paused = paused

	eventType := models.EventUnpaused
	if paused {
		eventType = models.EventPaused
	}
	ac.k.emit(eventType, map[string]models.Principal{"account": caller}, nil, nil)
	ac.k.log.WithField("paused", paused).Info("pause state changed")
	return nil
}

// AddMinter registers p as a minter. Adding an existing minter is a no-op.
func (ac *AccessControl) AddMinter(caller, p models.Principal) error {
	ac.k.mu.Lock()
	defer ac.k.mu.Unlock()

	if err := ac.requireOwnerLocked(caller); err != nil {
		return err
	}
	if p == models.ZeroPrincipal {
		return fmt.Errorf("add minter: %w", ErrInvalidPrincipal)
	}
	if _, ok := ac.minters[p]; ok {
		return nil
	}
	ac.minters[p] = struct{}{}
	ac.k.emit(models.EventMinterAdded, map[string]models.Principal{"minter": p}, nil, nil)
	ac.k.log.WithField("minter", p).Info("minter added")
	return nil
}

// RemoveMinter drops p from the registry. Removing a non-minter is a no-op.
func (ac *AccessControl) RemoveMinter(caller, p models.Principal) error {
	ac.k.mu.Lock()
	defer ac.k.mu.Unlock()

	if err := ac.requireOwnerLocked(caller); err != nil {
		return err
	}
	if _, ok := ac.minters[p]; !ok {
		return nil
	}
	delete(ac.minters, p)
	ac.k.emit(models.EventMinterRemoved, map[string]models.Principal{"minter": p}, nil, nil)
	ac.k.log.WithField("minter", p).Info("minter removed")
	return nil
}

func (ac *AccessControl) requireOwnerLocked(caller models.Principal) error {
	if caller == models.ZeroPrincipal || caller != ac.owner {
		return fmt.Errorf("%s is not the owner: %w", caller, ErrUnauthorized)
	}
	return nil
}

func (ac *AccessControl) requireNotPausedLocked() error {
	if ac.paused {
		return ErrPaused
	}
	return nil
}

func (ac *AccessControl) canMintLocked(p models.Principal) bool {
	if p == models.ZeroPrincipal {
		return false
	}
	if p == ac.owner {
		return true
	}
	_, ok := ac.minters[p]
	return ok
}
