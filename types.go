package docshield

import (
	"time"
)

// Role is a permission tier assigned to a wallet address.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleFounder   Role = "founder"
	RoleEngineer  Role = "engineer"
	RoleMarketing Role = "marketing"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleOwner, RoleFounder, RoleEngineer, RoleMarketing:
		return Role(s), true
	default:
		return "", false
	}
}

// AccessProfile returns the tier used for policy lookups.
// The owner manages roles but reads the document as a founder.
func (r Role) AccessProfile() Role {
	if r == RoleOwner {
		return RoleFounder
	}
	return r
}

// Sensitivity classifies how confidential a field is.
type Sensitivity string

const (
	SensitivityPublic    Sensitivity = "public"
	SensitivitySensitive Sensitivity = "sensitive"
	SensitivityCritical  Sensitivity = "critical"
)

func ParseSensitivity(s string) (Sensitivity, bool) {
	switch Sensitivity(s) {
	case SensitivityPublic, SensitivitySensitive, SensitivityCritical:
		return Sensitivity(s), true
	default:
		return "", false
	}
}

// MaskKind is the masking transform a policy rule prescribes.
type MaskKind string

const (
	MaskNone     MaskKind = "none"
	MaskPartial  MaskKind = "partial"
	MaskSemantic MaskKind = "semantic"
)

// Decision is the visibility outcome for a (role, field) pair.
type Decision string

const (
	DecisionFull     Decision = "full"
	DecisionPartial  Decision = "partial"
	DecisionSemantic Decision = "semantic"
	DecisionDenied   Decision = "denied"
)

// FieldID names a slot of the protected document.
type FieldID string

// Field is one named piece of the protected document.
type Field struct {
	ID          FieldID     `json:"id"`
	Name        string      `json:"name"`
	Value       string      `json:"value"`
	Sensitivity Sensitivity `json:"sensitivity"`
}

// WalletRole is a durable wallet address to role assignment.
type WalletRole struct {
	Address string  `json:"address"`
	Role    Role    `json:"role"`
	IsOwner bool    `json:"isOwner"`
	Name    *string `json:"name,omitempty"`
}

// RequestStatus is the lifecycle state of an access request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDeclined RequestStatus = "declined"
)

// AccessRequest is a wallet's pending ask for a role.
type AccessRequest struct {
	ID            string        `json:"id"`
	Address       string        `json:"address"`
	Name          string        `json:"name"`
	RequestedRole Role          `json:"requestedRole"`
	Status        RequestStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	ReviewedAt    *time.Time    `json:"reviewedAt,omitempty"`
}

// Event is a change notification for a watched collection scope.
type Event struct {
	Channel string    `json:"channel"`
	Action  string    `json:"action"` // insert, update, delete
	Key     string    `json:"key"`
	At      time.Time `json:"at"`
}

const (
	EventInsert = "insert"
	EventUpdate = "update"
	EventDelete = "delete"
)

const (
	ChannelRoles     = "roles"
	ChannelRequests  = "requests"
	ChannelDocuments = "documents"
)

// ChannelRole scopes notifications to a single wallet's role record.
func ChannelRole(address string) string {
	return "role:" + address
}

// ChannelRequest scopes notifications to a single wallet's requests.
func ChannelRequest(address string) string {
	return "request:" + address
}
