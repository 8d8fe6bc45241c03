package config

import (
	"fmt"

	pkgerrors "synergy-backend/pkg/errors"
)

// TieBreak decides what happens when a full adjacency set receives an edge whose
// score equals the current minimum.
type TieBreak string

const (
	// TieKeepExisting rejects the newcomer; eviction needs a strictly better score.
	TieKeepExisting TieBreak = "keep_existing"
	// TieReplaceExisting evicts the minimum on equal scores.
	TieReplaceExisting TieBreak = "replace_existing"
)

// DomainConfig holds the business rules of the synergy graph
type DomainConfig struct {
	// Minimum score for an edge to exist, inclusive
	SynergyThreshold float64

	// Maximum outgoing edges per domain
	MaxDomainConnections int

	// Eviction tie-break at capacity
	TieBreak TieBreak

	// Longest accepted domain key
	MaxDomainIDLength int
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		SynergyThreshold:     0.75,
		MaxDomainConnections: 50,
		TieBreak:             TieKeepExisting,
		MaxDomainIDLength:    256,
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.SynergyThreshold < 0 || c.SynergyThreshold > 1 || c.SynergyThreshold != c.SynergyThreshold {
		return pkgerrors.NewValidationError(fmt.Sprintf("synergy threshold must be within [0, 1], got %v", c.SynergyThreshold))
	}
	if c.MaxDomainConnections <= 0 {
		return pkgerrors.NewValidationError(fmt.Sprintf("max domain connections must be > 0, got %d", c.MaxDomainConnections))
	}
	switch c.TieBreak {
	case TieKeepExisting, TieReplaceExisting:
	default:
		return pkgerrors.NewValidationError(fmt.Sprintf("unknown eviction tie-break %q", c.TieBreak))
	}
	if c.MaxDomainIDLength <= 0 {
		return pkgerrors.NewValidationError("max domain id length must be > 0")
	}
	return nil
}
