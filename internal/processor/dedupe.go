package processor

import (
	"errors"
	"fmt"
	"time"

	"github.com/Abdallahnangere/SaukinKarshe/pkg/logger"
	"github.com/Abdallahnangere/SaukinKarshe/pkg/redis"
)

var (
	// ErrConfirmationInFlight means another caller is confirming this
	// reference right now. The holder will advance the record; the loser
	// just reloads and returns the current state.
	ErrConfirmationInFlight = errors.New("confirmation already in flight")
)

type DedupeConfig struct {
	InFlightTTL time.Duration

	SettledTTL time.Duration

	InFlightKeyPrefix string

	SettledKeyPrefix string
}

func DefaultDedupeConfig() DedupeConfig {
	return DedupeConfig{
		InFlightTTL:       30 * time.Second,
		SettledTTL:        24 * time.Hour,
		InFlightKeyPrefix: "confirm:inflight:",
		SettledKeyPrefix:  "confirm:settled:",
	}
}

// DedupeService is a best-effort duplicate suppressor in front of the store's
// conditional transition. It keeps racing webhook redeliveries and client
// polls from issuing redundant gateway verifications; correctness never
// depends on it. When redis is down the processor degrades to CAS-only.
type DedupeService struct {
	redis  redis.RedisAdapter
	config DedupeConfig
}

func NewDedupeService(redisAdapter redis.RedisAdapter, config DedupeConfig) *DedupeService {
	return &DedupeService{
		redis:  redisAdapter,
		config: config,
	}
}

// Claim represents an acquired in-flight marker for one reference.
type Claim struct {
	Reference string
	acquired  bool
	service   *DedupeService
}

// Begin acquires the in-flight marker for a reference. ErrConfirmationInFlight
// means someone else holds it. Redis failures are logged and treated as an
// acquired claim so an outage never blocks confirmation.
func (s *DedupeService) Begin(reference string) (*Claim, error) {
	key := s.config.InFlightKeyPrefix + reference
	value := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))

	acquired, err := s.redis.SetNX(key, value, s.config.InFlightTTL)
	if err != nil {
		logger.Warn("Failed to acquire in-flight marker, proceeding without dedupe", "tx_ref", reference, "error", err)
		return &Claim{Reference: reference, acquired: false, service: s}, nil
	}

	if !acquired {
		logger.Debug("Confirmation already in flight", "tx_ref", reference)
		return nil, ErrConfirmationInFlight
	}

	return &Claim{Reference: reference, acquired: true, service: s}, nil
}

// IsSettled reports whether a reference was recently marked settled. A false
// answer (including on redis failure) just means the caller falls through to
// the store read.
func (s *DedupeService) IsSettled(reference string) bool {
	exists, err := s.redis.Exist(s.config.SettledKeyPrefix + reference)
	if err != nil {
		logger.Warn("Failed to check settled marker", "tx_ref", reference, "error", err)
		return false
	}
	return exists > 0
}

// Settle marks the reference settled for SettledTTL and releases the
// in-flight marker.
func (c *Claim) Settle() {
	s := c.service
	key := s.config.SettledKeyPrefix + c.Reference
	if err := s.redis.Set(key, []byte("1"), s.config.SettledTTL); err != nil {
		logger.Warn("Failed to set settled marker", "tx_ref", c.Reference, "error", err)
	}
	c.Release()
}

// Release drops the in-flight marker so a later trigger can re-drive the
// purchase.
func (c *Claim) Release() {
	if !c.acquired {
		return
	}
	s := c.service
	if err := s.redis.Del(s.config.InFlightKeyPrefix + c.Reference); err != nil {
		logger.Warn("Failed to release in-flight marker", "tx_ref", c.Reference, "error", err)
		return
	}
	c.acquired = false
}
