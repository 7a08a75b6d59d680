package models

import "apartment-locator/internal/fields"

// EntityOwner maps an entity to the tenant that owns it
type EntityOwner struct {
	TargetType fields.TargetType `gorm:"type:varchar(20);primaryKey" json:"target_type"`
	TargetID   string            `gorm:"type:varchar(64);primaryKey" json:"target_id"`
	TenantID   string            `gorm:"type:varchar(64);not null;index" json:"tenant_id"`
}

// TableName specifies the table name
func (EntityOwner) TableName() string {
	return "entity_owners"
}

// Member roles
const (
	RoleLocator = "locator"
	RoleAdmin   = "admin"
)

// TenantMember maps a user identity to its tenant
type TenantMember struct {
	UserID   string `gorm:"type:varchar(64);primaryKey" json:"user_id"`
	TenantID string `gorm:"type:varchar(64);not null;index" json:"tenant_id"`
	Role     string `gorm:"type:varchar(20);not null;default:'locator'" json:"role"`
}

// TableName specifies the table name
func (TenantMember) TableName() string {
	return "tenant_members"
}

// EditSource is the source recorded on corrections made by the member.
// Unknown roles record as locator.
func (m TenantMember) EditSource() EditSource {
	if m.Role == RoleAdmin {
		return EditSourceAdmin
	}
	return EditSourceLocator
}
