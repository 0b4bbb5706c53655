package security

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// Policy lists who may change instances. It is loaded from the server's
// configuration file.
type Policy struct {
	// Administrators may change anything.
	Administrators []string `yaml:"administrators" json:"administrators,omitempty"`

	// ZoneWriters maps a governance zone to the users who may change instances
	// in it. Instances in zones with no entry may be changed by anyone who is
	// not read-only.
	ZoneWriters map[string][]string `yaml:"zoneWriters" json:"zoneWriters,omitempty"`

	// ReadOnlyUsers may read but never change anything.
	ReadOnlyUsers []string `yaml:"readOnlyUsers" json:"readOnlyUsers,omitempty"`
}

// ZoneSecurityVerifier implements interfaces.SecurityVerifier on top of zone
// membership. Visibility follows the caller's supported zones, write access
// follows Policy.
type ZoneSecurityVerifier struct {
	policy Policy
	log    *slog.Logger
}

// NewZoneSecurityVerifier creates a verifier enforcing policy.
func NewZoneSecurityVerifier(policy Policy, log *slog.Logger) *ZoneSecurityVerifier {
	if log == nil {
		log = slog.Default()
	}
	return &ZoneSecurityVerifier{policy: policy, log: log}
}

// IsVisible reports whether the entity's zones intersect the caller's
// supported zones. Entities outside every zone are always visible.
func (v *ZoneSecurityVerifier) IsVisible(caller interfaces.Caller, entity *interfaces.EntityDetail) bool {
	if entity == nil {
		return false
	}
	return caller.Zones.Visible(entity.Properties.GetStringSlice(interfaces.ZoneMembershipProperty))
}

// ValidateCreate checks the caller may create an instance in zones.
func (v *ZoneSecurityVerifier) ValidateCreate(caller interfaces.Caller, typeName string, zones []string) error {
	if err := v.checkWrite(caller, zones); err != nil {
		return fmt.Errorf("%w: %s may not create %s: %v", interfaces.ErrUserNotAuthorized, caller.UserID, typeName, err)
	}
	return nil
}

// ValidateUpdate checks the caller may change the entity.
func (v *ZoneSecurityVerifier) ValidateUpdate(caller interfaces.Caller, entity *interfaces.EntityDetail) error {
	if !v.IsVisible(caller, entity) {
		return fmt.Errorf("%w: %s may not see %s %s", interfaces.ErrUserNotAuthorized, caller.UserID, entity.TypeName, entity.GUID)
	}
	if err := v.checkWrite(caller, entity.Properties.GetStringSlice(interfaces.ZoneMembershipProperty)); err != nil {
		return fmt.Errorf("%w: %s may not update %s %s: %v", interfaces.ErrUserNotAuthorized, caller.UserID, entity.TypeName, entity.GUID, err)
	}
	return nil
}

// ValidateDelete checks the caller may remove the entity.
func (v *ZoneSecurityVerifier) ValidateDelete(caller interfaces.Caller, entity *interfaces.EntityDetail) error {
	if !v.IsVisible(caller, entity) {
		return fmt.Errorf("%w: %s may not see %s %s", interfaces.ErrUserNotAuthorized, caller.UserID, entity.TypeName, entity.GUID)
	}
	if err := v.checkWrite(caller, entity.Properties.GetStringSlice(interfaces.ZoneMembershipProperty)); err != nil {
		return fmt.Errorf("%w: %s may not delete %s %s: %v", interfaces.ErrUserNotAuthorized, caller.UserID, entity.TypeName, entity.GUID, err)
	}
	return nil
}

// InitialZones returns the requested zones, or the caller's default zones
// when none were requested.
func (v *ZoneSecurityVerifier) InitialZones(caller interfaces.Caller, requested []string) []string {
	if len(requested) > 0 {
		return slices.Clone(requested)
	}
	return slices.Clone(caller.Zones.DefaultZones)
}

func (v *ZoneSecurityVerifier) checkWrite(caller interfaces.Caller, zones []string) error {
	if slices.Contains(v.policy.Administrators, caller.UserID) {
		return nil
	}
	if slices.Contains(v.policy.ReadOnlyUsers, caller.UserID) {
		return fmt.Errorf("user is read-only")
	}
	for _, zone := range zones {
		writers, restricted := v.policy.ZoneWriters[zone]
		if restricted && !slices.Contains(writers, caller.UserID) {
			v.log.Debug("Zone write denied",
				slog.String("userId", caller.UserID),
				slog.String("zone", zone))
			return fmt.Errorf("not a writer for zone %s", zone)
		}
	}
	return nil
}
