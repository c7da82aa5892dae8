// Package types defines core domain types shared across all layers.
// This package contains NO planning logic - only type definitions and their validation.
package types

import (
	"math"

	"cu-planner/internal/errors"
)

// OffsetPolicy controls which windows are pre-charged with the start offset
type OffsetPolicy string

const (
	// OffsetFirstWindow charges the start offset to the first window only
	OffsetFirstWindow OffsetPolicy = "first-window"

	// OffsetEveryWindow charges the start offset to every window
	OffsetEveryWindow OffsetPolicy = "every-window"
)

// String returns the string representation of the policy
func (p OffsetPolicy) String() string {
	return string(p)
}

// IsValid checks if the policy is known. The empty policy means OffsetFirstWindow.
func (p OffsetPolicy) IsValid() bool {
	switch p {
	case "", OffsetFirstWindow, OffsetEveryWindow:
		return true
	default:
		return false
	}
}

// Configuration is the per-window budget the partitioner enforces
type Configuration struct {
	// StartOffset is cost already spent before the first step is considered
	StartOffset int64 `json:"start_offset" yaml:"start_offset"`

	// RawCapacity is the absolute resource ceiling per window
	RawCapacity int64 `json:"raw_capacity" yaml:"raw_capacity"`

	// ReservedMargin is left unused in every window (safety padding plus idle reserve)
	ReservedMargin int64 `json:"reserved_margin" yaml:"reserved_margin"`

	// OffsetPolicy selects which windows carry StartOffset
	OffsetPolicy OffsetPolicy `json:"offset_policy,omitempty" yaml:"offset_policy,omitempty"`
}

// EffectiveCapacity is the usable ceiling of a window
func (c Configuration) EffectiveCapacity() int64 {
	return c.RawCapacity - c.ReservedMargin
}

// Policy returns the offset policy, defaulting to OffsetFirstWindow
func (c Configuration) Policy() OffsetPolicy {
	if c.OffsetPolicy == "" {
		return OffsetFirstWindow
	}
	return c.OffsetPolicy
}

// Validate rejects configurations that cannot describe a usable window
func (c Configuration) Validate() error {
	if c.RawCapacity <= 0 {
		return errors.InvalidConfiguration("raw capacity must be positive, got %d", c.RawCapacity).
			WithContext("raw_capacity", c.RawCapacity)
	}
	if c.ReservedMargin < 0 {
		return errors.InvalidConfiguration("reserved margin must not be negative, got %d", c.ReservedMargin).
			WithContext("reserved_margin", c.ReservedMargin)
	}
	if c.StartOffset < 0 {
		return errors.InvalidConfiguration("start offset must not be negative, got %d", c.StartOffset).
			WithContext("start_offset", c.StartOffset)
	}
	if !c.OffsetPolicy.IsValid() {
		return errors.InvalidConfiguration("unknown offset policy %q", c.OffsetPolicy)
	}

	effective := c.EffectiveCapacity()
	if effective <= 0 {
		return errors.InvalidConfiguration("effective capacity %d is not positive (raw %d, margin %d)",
			effective, c.RawCapacity, c.ReservedMargin).
			WithContext("raw_capacity", c.RawCapacity).
			WithContext("reserved_margin", c.ReservedMargin)
	}
	if c.StartOffset > effective {
		return errors.InvalidConfiguration("start offset %d exceeds effective capacity %d",
			c.StartOffset, effective).
			WithContext("start_offset", c.StartOffset)
	}
	if c.Policy() == OffsetEveryWindow && c.StartOffset == effective {
		return errors.InvalidConfiguration("start offset %d leaves no room in any window", c.StartOffset)
	}
	return nil
}

// Budget describes a window budget the way scenarios state it
type Budget struct {
	// MaxUnits is the raw per-window ceiling
	MaxUnits int64 `json:"max_units" yaml:"max_units"`

	// SecurityPadding is a fixed safety buffer kept free in every window
	SecurityPadding int64 `json:"security_padding" yaml:"security_padding"`

	// IdleUnits is the background cost every window must leave room for
	IdleUnits int64 `json:"idle_units" yaml:"idle_units"`

	// StartUnits is the preamble cost charged before the first step
	StartUnits int64 `json:"start_units" yaml:"start_units"`
}

// Margin is the total reserved margin
func (b Budget) Margin() int64 {
	return SaturatingAdd(b.SecurityPadding, b.IdleUnits)
}

// Configuration converts the budget into a partitioner configuration
func (b Budget) Configuration() Configuration {
	return Configuration{
		StartOffset:    b.StartUnits,
		RawCapacity:    b.MaxUnits,
		ReservedMargin: b.Margin(),
	}
}

// SaturatingAdd returns a+b clamped to the int64 range. Window costs are
// accumulated with it so a huge step cannot wrap a sum below the capacity.
func SaturatingAdd(a, b int64) int64 {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	default:
		return a + b
	}
}
