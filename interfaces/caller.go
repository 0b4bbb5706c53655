package interfaces

import (
	"fmt"
	"slices"
	"time"
)

// ZoneConfig holds the governance zone lists a server is configured with.
// They are handed to every operation through Caller instead of living on the
// handlers.
type ZoneConfig struct {
	// SupportedZones limits which assets are visible. Empty means all.
	SupportedZones []string `yaml:"supportedZones" json:"supportedZones,omitempty"`

	// DefaultZones are stamped on newly created assets that do not name any.
	DefaultZones []string `yaml:"defaultZones" json:"defaultZones,omitempty"`

	// PublishZones replace an asset's zones when it is published.
	PublishZones []string `yaml:"publishZones" json:"publishZones,omitempty"`
}

// Visible reports whether an instance in zones is visible under this
// configuration.
func (z ZoneConfig) Visible(zones []string) bool {
	if len(zones) == 0 || len(z.SupportedZones) == 0 {
		return true
	}
	for _, zone := range zones {
		if slices.Contains(z.SupportedZones, zone) {
			return true
		}
	}
	return false
}

// Caller describes who is calling and under which server configuration.
type Caller struct {
	UserID string
	Zones  ZoneConfig

	// EffectiveTime selects which instances are active. Zero means now.
	EffectiveTime time.Time
}

// NewCaller returns a caller for userID with the given zone configuration.
func NewCaller(userID string, zones ZoneConfig) Caller {
	return Caller{UserID: userID, Zones: zones}
}

// AsOf returns a copy of c that reads instances effective at t.
func (c Caller) AsOf(t time.Time) Caller {
	c.EffectiveTime = t
	return c
}

// Validate checks the caller carries a user id.
func (c Caller) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("%w: userId must not be empty", ErrInvalidParameter)
	}
	return nil
}

// Paging selects one page of a result list.
type Paging struct {
	StartFrom int `json:"startFrom"`

	// PageSize of 0 asks for the server maximum.
	PageSize int `json:"pageSize"`
}

// Validate checks the paging bounds against the server maximum and returns
// the effective page size.
func (p Paging) Validate(maxPageSize int) (int, error) {
	if p.StartFrom < 0 {
		return 0, fmt.Errorf("%w: startFrom must not be negative, got %d", ErrInvalidParameter, p.StartFrom)
	}
	if p.PageSize < 0 {
		return 0, fmt.Errorf("%w: pageSize must not be negative, got %d", ErrInvalidParameter, p.PageSize)
	}
	if maxPageSize > 0 && p.PageSize > maxPageSize {
		return 0, fmt.Errorf("%w: pageSize %d exceeds maximum of %d", ErrInvalidParameter, p.PageSize, maxPageSize)
	}
	if p.PageSize == 0 {
		return maxPageSize, nil
	}
	return p.PageSize, nil
}

// Page returns the requested page of items. A page size of 0 returns
// everything from StartFrom onwards.
func Page[T any](items []T, startFrom, pageSize int) []T {
	if startFrom >= len(items) {
		return nil
	}
	end := len(items)
	if pageSize > 0 && startFrom+pageSize < end {
		end = startFrom + pageSize
	}
	return items[startFrom:end]
}
