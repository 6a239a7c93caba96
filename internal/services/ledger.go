package services

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"guess-reward-backend/internal/models"
)

const (
	TokenName   = "Guess Token"
	TokenSymbol = "GUESS"

	maxTransferRecords = 1000
)

// Ledger is the fungible token store. Balance and allowance state is only
// changed through its operations; the engine and distributor use the
// *Locked variants while already holding the kernel lock.
type Ledger struct {
	k      *kernel
	access *AccessControl

	balances    map[models.Principal]uint256.Int
	allowances  map[models.Principal]map[models.Principal]uint256.Int
	totalSupply uint256.Int
	totalMinted uint256.Int
	totalBurned uint256.Int

	transfers []models.TransferRecord
}

func newLedger(k *kernel, access *AccessControl) *Ledger {
	return &Ledger{
		k:          k,
		access:     access,
		balances:   make(map[models.Principal]uint256.Int),
		allowances: make(map[models.Principal]map[models.Principal]uint256.Int),
	}
}

func (l *Ledger) Name() string    { return TokenName }
func (l *Ledger) Symbol() string  { return TokenSymbol }
func (l *Ledger) Decimals() uint8 { return models.TokenDecimals }

func (l *Ledger) BalanceOf(p models.Principal) *uint256.Int {
	l.k.mu.RLock()
	defer l.k.mu.RUnlock()
	return l.balanceLocked(p)
}

func (l *Ledger) Allowance(owner, spender models.Principal) *uint256.Int {
	l.k.mu.RLock()
	defer l.k.mu.RUnlock()
	return l.allowanceLocked(owner, spender)
}

func (l *Ledger) TotalSupply() *uint256.Int {
	l.k.mu.RLock()
	defer l.k.mu.RUnlock()
	return l.totalSupply.Clone()
}

func (l *Ledger) TotalMinted() *uint256.Int {
	l.k.mu.RLock()
	defer l.k.mu.RUnlock()
	return l.totalMinted.Clone()
}

func (l *Ledger) TotalBurned() *uint256.Int {
	l.k.mu.RLock()
	defer l.k.mu.RUnlock()
	return l.totalBurned.Clone()
}

// Holders lists every principal with a non-zero balance, sorted.
func (l *Ledger) Holders() []models.Principal {
	l.k.mu.RLock()
	defer l.k.mu.RUnlock()

	out := make([]models.Principal, 0, len(l.balances))
	for p := range l.balances {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Transfers returns up to limit recent transfer records, newest first.
func (l *Ledger) Transfers(limit int) []models.TransferRecord {
	l.k.mu.RLock()
	defer l.k.mu.RUnlock()

	if limit <= 0 || limit > len(l.transfers) {
		limit = len(l.transfers)
	}
	out := make([]models.TransferRecord, 0, limit)
	for i := len(l.transfers) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.transfers[i])
	}
	return out
}

// Mint creates amount new tokens for to. Only the owner and registered
// minters may mint.
func (l *Ledger) Mint(caller, to models.Principal, amount *uint256.Int) error {
	l.k.mu.Lock()
	defer l.k.mu.Unlock()
	return l.mintLocked(caller, to, amount)
}

func (l *Ledger) Burn(holder models.Principal, amount *uint256.Int) error {
	l.k.mu.Lock()
	defer l.k.mu.Unlock()

	if holder == models.ZeroPrincipal {
		return fmt.Errorf("burn: %w", ErrInvalidPrincipal)
	}
	if amount == nil {
		return fmt.Errorf("burn: %w", ErrInvalidInput)
	}
	bal := l.balanceLocked(holder)
	if bal.Lt(amount) {
		return fmt.Errorf("burn %s from %s: %w", amount.Dec(), holder, ErrInsufficientBalance)
	}
	burned, overflow := new(uint256.Int).AddOverflow(&l.totalBurned, amount)
	if overflow {
		return fmt.Errorf("burn: total burned: %w", ErrOverflow)
	}

	l.setBalanceLocked(holder, bal.Sub(bal, amount))
	l.totalSupply.Sub(&l.totalSupply, amount)
	l.totalBurned = *burned
	l.recordLocked(models.TransferKindBurn, holder, models.ZeroPrincipal, models.ZeroPrincipal, amount)
	return nil
}

// Approve sets the allowance of spender over owner's balance to amount.
// It overwrites, it does not add.
func (l *Ledger) Approve(owner, spender models.Principal, amount *uint256.Int) error {
	l.k.mu.Lock()
	defer l.k.mu.Unlock()
	return l.approveLocked(owner, spender, amount)
}

func (l *Ledger) Transfer(from, to models.Principal, amount *uint256.Int) error {
	l.k.mu.Lock()
	defer l.k.mu.Unlock()
	return l.transferLocked(from, to, models.ZeroPrincipal, amount)
}

// TransferFrom moves amount from from to to on behalf of spender, consuming
// spender's allowance. Allowance is checked before balance.
func (l *Ledger) TransferFrom(spender, from, to models.Principal, amount *uint256.Int) error {
	l.k.mu.Lock()
	defer l.k.mu.Unlock()
	return l.transferFromLocked(spender, from, to, amount)
}

func (l *Ledger) AddMinter(caller, p models.Principal) error {
	return l.access.AddMinter(caller, p)
}

func (l *Ledger) RemoveMinter(caller, p models.Principal) error {
	return l.access.RemoveMinter(caller, p)
}

func (l *Ledger) mintLocked(caller, to models.Principal, amount *uint256.Int) error {
	if !l.access.canMintLocked(caller) {
		return fmt.Errorf("%s cannot mint: %w", caller, ErrUnauthorized)
	}
	if to == models.ZeroPrincipal {
		return fmt.Errorf("mint: %w", ErrInvalidPrincipal)
	}
	if amount == nil {
		return fmt.Errorf("mint: %w", ErrInvalidInput)
	}

	supply, overflow := new(uint256.Int).AddOverflow(&l.totalSupply, amount)
	if overflow {
		return fmt.Errorf("mint: total supply: %w", ErrOverflow)
	}
	minted, overflow := new(uint256.Int).AddOverflow(&l.totalMinted, amount)
	if overflow {
		return fmt.Errorf("mint: total minted: %w", ErrOverflow)
	}
	bal, overflow := new(uint256.Int).AddOverflow(l.balanceLocked(to), amount)
	if overflow {
		return fmt.Errorf("mint: balance of %s: %w", to, ErrOverflow)
	}

	l.setBalanceLocked(to, bal)
	l.totalSupply = *supply
	l.totalMinted = *minted
	l.recordLocked(models.TransferKindMint, models.ZeroPrincipal, to, caller, amount)
	return nil
}

func (l *Ledger) approveLocked(owner, spender models.Principal, amount *uint256.Int) error {
	if owner == models.ZeroPrincipal || spender == models.ZeroPrincipal {
		return fmt.Errorf("approve: %w", ErrInvalidPrincipal)
	}
	if amount == nil {
		return fmt.Errorf("approve: %w", ErrInvalidInput)
	}

	byOwner, ok := l.allowances[owner]
	if !ok {
		byOwner = make(map[models.Principal]uint256.Int)
		l.allowances[owner] = byOwner
	}
	if amount.IsZero() {
		delete(byOwner, spender)
		if len(byOwner) == 0 {
			delete(l.allowances, owner)
		}
	} else {
		byOwner[spender] = *amount
	}

	l.k.emit(models.EventApproval,
		map[string]models.Principal{"owner": owner, "spender": spender},
		map[string]string{"value": amount.Dec()},
		nil)
	return nil
}

func (l *Ledger) transferFromLocked(spender, from, to models.Principal, amount *uint256.Int) error {
	if err := l.checkTransferFromLocked(spender, from, to, amount); err != nil {
		return err
	}

	allowance := l.allowanceLocked(from, spender)
	l.setAllowanceLocked(from, spender, allowance.Sub(allowance, amount))
	l.applyTransferLocked(from, to, spender, amount)
	return nil
}

func (l *Ledger) transferLocked(from, to, spender models.Principal, amount *uint256.Int) error {
	if amount == nil {
		return fmt.Errorf("transfer: %w", ErrInvalidInput)
	}
	if err := l.checkTransferLocked(from, to, amount); err != nil {
		return err
	}
	l.applyTransferLocked(from, to, spender, amount)
	return nil
}

// checkTransferFromLocked reports whether transferFromLocked would succeed
// without changing anything.
func (l *Ledger) checkTransferFromLocked(spender, from, to models.Principal, amount *uint256.Int) error {
	if spender == models.ZeroPrincipal {
		return fmt.Errorf("transfer from: %w", ErrInvalidPrincipal)
	}
	if amount == nil {
		return fmt.Errorf("transfer from: %w", ErrInvalidInput)
	}
	allowance := l.allowanceLocked(from, spender)
	if allowance.Lt(amount) {
		return fmt.Errorf("%s may move %s of %s, requested %s: %w",
			spender, allowance.Dec(), from, amount.Dec(), ErrInsufficientAllowance)
	}
	return l.checkTransferLocked(from, to, amount)
}

// checkTransferLocked performs every validation of a move so that the apply
// step cannot fail halfway.
func (l *Ledger) checkTransferLocked(from, to models.Principal, amount *uint256.Int) error {
	if from == models.ZeroPrincipal || to == models.ZeroPrincipal {
		return fmt.Errorf("transfer: %w", ErrInvalidPrincipal)
	}
	fromBal := l.balanceLocked(from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%s holds %s, requested %s: %w",
			from, fromBal.Dec(), amount.Dec(), ErrInsufficientBalance)
	}
	if from != to {
		if _, overflow := new(uint256.Int).AddOverflow(l.balanceLocked(to), amount); overflow {
			return fmt.Errorf("transfer: balance of %s: %w", to, ErrOverflow)
		}
	}
	return nil
}

func (l *Ledger) applyTransferLocked(from, to, spender models.Principal, amount *uint256.Int) {
	if from != to {
		fromBal := l.balanceLocked(from)
		toBal := l.balanceLocked(to)
		l.setBalanceLocked(from, fromBal.Sub(fromBal, amount))
		l.setBalanceLocked(to, toBal.Add(toBal, amount))
	}
	l.recordLocked(models.TransferKindTransfer, from, to, spender, amount)
}

func (l *Ledger) recordLocked(kind models.TransferKind, from, to, spender models.Principal, amount *uint256.Int) {
	rec := models.TransferRecord{
		ID:        models.GenerateTransferID(),
		Kind:      kind,
		From:      from,
		To:        to,
		Spender:   spender,
		Amount:    *amount,
		Timestamp: l.k.clock(),
	}
	l.transfers = append(l.transfers, rec)
	if len(l.transfers) > maxTransferRecords {
		l.transfers = append(l.transfers[:0], l.transfers[len(l.transfers)-maxTransferRecords:]...)
	}

	principals := map[string]models.Principal{"from": from, "to": to}
	if spender != models.ZeroPrincipal {
		principals["spender"] = spender
	}
	l.k.emit(models.EventTransfer, principals,
		map[string]string{"value": amount.Dec()},
		map[string]string{"kind": string(kind), "transfer_id": rec.ID})

	l.k.log.WithFields(logrus.Fields{
		"kind":   kind,
		"from":   from,
		"to":     to,
		"amount": amount.Dec(),
	}).Debug("ledger transfer")
}

// balanceLocked returns a copy the caller may modify.
func (l *Ledger) balanceLocked(p models.Principal) *uint256.Int {
	bal := l.balances[p]
	return &bal
}

func (l *Ledger) setBalanceLocked(p models.Principal, v *uint256.Int) {
	if v.IsZero() {
		delete(l.balances, p)
		return
	}
	l.balances[p] = *v
}

func (l *Ledger) allowanceLocked(owner, spender models.Principal) *uint256.Int {
	v := l.allowances[owner][spender]
	return &v
}

func (l *Ledger) setAllowanceLocked(owner, spender models.Principal, v *uint256.Int) {
	byOwner, ok := l.allowances[owner]
	if !ok {
		if v.IsZero() {
			return
		}
		byOwner = make(map[models.Principal]uint256.Int)
		l.allowances[owner] = byOwner
	}
	if v.IsZero() {
		delete(byOwner, spender)
		if len(byOwner) == 0 {
			delete(l.allowances, owner)
		}
		return
	}
	byOwner[spender] = *v
}
