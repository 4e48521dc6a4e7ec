/**
 * @description
 * Account status normalization. The upstream API mixes a boolean "active" sentinel
 * with string sentinels ("suspended", "pending") in the same field. This file maps
 * that raw tri-type value to an explicit tagged variant exactly once, at the JSON
 * boundary; nothing downstream branches on raw booleans or string comparisons.
 *
 * Account tier ("gold", "premium") is a separate concept the upstream sometimes
 * conflates with status. It is modeled as an independent optional field on Account
 * and deliberately not interpreted here.
 */

package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// StatusCode is the tagged variant an account status normalizes to.
type StatusCode string

const (
	StatusActive    StatusCode = "active"
	StatusInactive  StatusCode = "inactive"
	StatusSuspended StatusCode = "suspended"
	StatusPending   StatusCode = "pending"
	StatusUnknown   StatusCode = "unknown"
)

// AccountStatus is the normalized account status. Raw preserves the original
// upstream value verbatim for Unknown statuses so nothing is lost in transit.
type AccountStatus struct {
	Code StatusCode
	Raw  string
}

// IsActive reports whether the account counts as active for aggregate purposes.
// Per the observed upstream contract only the boolean true sentinel does.
func (s AccountStatus) IsActive() bool {
	return s.Code == StatusActive
}

// ParseStatus maps a raw status value (bool or string) to the tagged variant.
func ParseStatus(v any) AccountStatus {
	switch raw := v.(type) {
	case nil:
		return AccountStatus{Code: StatusUnknown}
	case bool:
		if raw {
			return AccountStatus{Code: StatusActive, Raw: "true"}
		}
		return AccountStatus{Code: StatusInactive, Raw: "false"}
	case string:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "active":
			return AccountStatus{Code: StatusActive, Raw: raw}
		case "false", "inactive":
			return AccountStatus{Code: StatusInactive, Raw: raw}
		case "suspended":
			return AccountStatus{Code: StatusSuspended, Raw: raw}
		case "pending":
			return AccountStatus{Code: StatusPending, Raw: raw}
		default:
			return AccountStatus{Code: StatusUnknown, Raw: raw}
		}
	default:
		return AccountStatus{Code: StatusUnknown, Raw: ""}
	}
}

// UnmarshalJSON never fails: any shape the upstream produces maps to a variant,
// with unrecognized values landing in Unknown.
func (s *AccountStatus) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		*s = AccountStatus{Code: StatusUnknown, Raw: string(trimmed)}
		return nil
	}
	*s = ParseStatus(v)
	return nil
}

// MarshalJSON emits the normalized code, or the raw value for Unknown statuses.
func (s AccountStatus) MarshalJSON() ([]byte, error) {
	if s.Code == StatusUnknown && s.Raw != "" {
		return json.Marshal(s.Raw)
	}
	return json.Marshal(string(s.Code))
}
