package models

type Subscription string

const (
	SubscriptionStandard   Subscription = "standard"
	SubscriptionPremium    Subscription = "premium"
	SubscriptionEnterprise Subscription = "enterprise"
	SubscriptionCustom     Subscription = "custom"
)

func (s Subscription) Valid() bool {
	switch s {
	case SubscriptionStandard, SubscriptionPremium, SubscriptionEnterprise, SubscriptionCustom:
		return true
	}
	return false
}

type OrganizationStatus string

const (
	OrganizationStatusActive    OrganizationStatus = "active"
	OrganizationStatusPending   OrganizationStatus = "pending"
	OrganizationStatusSuspended OrganizationStatus = "suspended"
)

func (s OrganizationStatus) Valid() bool {
	switch s {
	case OrganizationStatusActive, OrganizationStatusPending, OrganizationStatusSuspended:
		return true
	}
	return false
}

type Organization struct {
	Base
	Name         string             `gorm:"not null" json:"name"`
	Subscription Subscription       `gorm:"not null;default:'standard'" json:"subscription"`
	Status       OrganizationStatus `gorm:"not null;default:'pending'" json:"status"`
	Logo         string             `json:"logo,omitempty"`
}

func (Organization) TableName() string {
	return "organizations"
}

func (o *Organization) IsActive() bool {
	return o != nil && o.Status == OrganizationStatusActive
}

// OrganizationTool is an entitlement edge licensing a tool to an organization.
type OrganizationTool struct {
	OrganizationID string `gorm:"size:64;primaryKey"`
	ToolID         string `gorm:"size:64;primaryKey;index"`
}

func (OrganizationTool) TableName() string {
	return "organization_tools"
}
