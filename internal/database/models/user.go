package models

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superAdmin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Rank orders roles by capability: superAdmin > admin > user.
func (r Role) Rank() int {
	switch r {
	case RoleSuperAdmin:
		return 3
	case RoleAdmin:
		return 2
	case RoleUser:
		return 1
	}
	return 0
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

func (s UserStatus) Valid() bool {
	return s == UserStatusActive || s == UserStatusInactive
}

type User struct {
	Base
	Name           string     `gorm:"not null" json:"name"`
	Email          string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash   string     `json:"-"`
	Role           Role       `gorm:"not null;default:'user'" json:"role"`
	Status         UserStatus `gorm:"not null;default:'active';index" json:"status"`
	OrganizationID string     `gorm:"size:64;not null;index" json:"organization_id"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}
