package models

type Tool struct {
	Base
	Name            string `gorm:"not null" json:"name"`
	Description     string `json:"description"`
	Slug            string `gorm:"uniqueIndex;not null" json:"slug"`
	IsActive        bool   `gorm:"not null" json:"is_active"`
	LaunchURL       string `json:"launch_url,omitempty"`
	EncryptedAPIKey string `json:"-"`
}

func (Tool) TableName() string {
	return "tools"
}

func (t *Tool) HasAPIKey() bool {
	return t != nil && t.EncryptedAPIKey != ""
}

// UserTool is an entitlement edge granting a tool to an individual user.
type UserTool struct {
	UserID string `gorm:"size:64;primaryKey"`
	ToolID string `gorm:"size:64;primaryKey;index"`
}

func (UserTool) TableName() string {
	return "user_tools"
}
