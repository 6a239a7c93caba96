package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"guess-reward-backend/internal/models"
)

// targetRange is the number of possible targets, 0 through 100.
const targetRange = models.MaxGuess + 1

// SeedMaterial is what a target is derived from. It is only assembled inside
// a play call, after the guess has been submitted.
type SeedMaterial struct {
	Player    models.Principal
	Nonce     uint64
	Timestamp time.Time
}

func (s SeedMaterial) message() string {
	return fmt.Sprintf("guess:%s:%d:%d", s.Player, s.Nonce, s.Timestamp.Unix())
}

// RandomSource yields a target in [0,100] for the given seed material.
type RandomSource interface {
	NextRandom(seed SeedMaterial) (uint8, error)
}

// HMACRandom derives targets from a secret server seed. The seed's hash is
// published up front and the seed itself is revealed on rotation, so every
// past target can be recomputed with VerifyTarget.
type HMACRandom struct {
	mu         sync.RWMutex
	serverSeed string
}

func NewHMACRandom(serverSeed string) (*HMACRandom, error) {
	if serverSeed == "" {
		seed, err := generateServerSeed()
		if err != nil {
			return nil, err
		}
		serverSeed = seed
	}
	return &HMACRandom{serverSeed: serverSeed}, nil
}

func generateServerSeed() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate server seed: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

func (r *HMACRandom) NextRandom(seed SeedMaterial) (uint8, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return VerifyTarget(r.serverSeed, seed), nil
}

// ServerSeedHash is the commitment to the active server seed.
func (r *HMACRandom) ServerSeedHash() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return HashServerSeed(r.serverSeed)
}

// HashServerSeed is the published form of a server seed.
func HashServerSeed(serverSeed string) string {
	hash := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(hash[:])
}

// RotateServerSeed installs a fresh seed and returns the previous one so
// rounds played under it can be verified.
func (r *HMACRandom) RotateServerSeed() (string, error) {
	next, err := generateServerSeed()
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.serverSeed
	r.serverSeed = next
	return prev, nil
}

// VerifyTarget recomputes the target for seed under serverSeed.
func VerifyTarget(serverSeed string, seed SeedMaterial) uint8 {
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(seed.message()))
	sum := h.Sum(nil)
	return uint8(binary.BigEndian.Uint64(sum[:8]) % targetRange)
}

// FixedRandom replays a fixed list of targets, cycling when exhausted. It
// records the seed material it was asked about.
type FixedRandom struct {
	mu      sync.Mutex
	targets []uint8
	next    int
	Seeds   []SeedMaterial
}

func NewFixedRandom(targets ...uint8) *FixedRandom {
	return &FixedRandom{targets: targets}
}

func (r *FixedRandom) NextRandom(seed SeedMaterial) (uint8, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Seeds = append(r.Seeds, seed)
	if len(r.targets) == 0 {
		return 0, fmt.Errorf("fixed random source has no targets")
	}
	t := r.targets[r.next%len(r.targets)]
	r.next++
	if t > models.MaxGuess {
		return 0, fmt.Errorf("fixed target %d out of range", t)
	}
	return t, nil
}

// Set replaces the queued targets.
func (r *FixedRandom) Set(targets ...uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = targets
	r.next = 0
}
