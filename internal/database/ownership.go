package database

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"apartment-locator/internal/edits"
	"apartment-locator/internal/fields"
	"apartment-locator/internal/models"
)

// GormOwnership reads tenant ownership from entity_owners and tenant_members
type GormOwnership struct {
	db *gorm.DB
}

var _ edits.Ownership = (*GormOwnership)(nil)

// NewGormOwnership creates a directory over db
func NewGormOwnership(db *gorm.DB) *GormOwnership {
	return &GormOwnership{db: db}
}

func (o *GormOwnership) TenantOfEntity(ctx context.Context, targetType fields.TargetType, targetID string) (string, error) {
	var owner models.EntityOwner
	err := o.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		First(&owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", &edits.NotFoundError{Resource: string(targetType), ID: targetID}
	}
	if err != nil {
		return "", edits.NewPersistenceError("tenant of entity", err)
	}
	return owner.TenantID, nil
}

func (o *GormOwnership) MemberOf(ctx context.Context, userID string) (*models.TenantMember, error) {
	var member models.TenantMember
	err := o.db.WithContext(ctx).Where("user_id = ?", userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &edits.NotFoundError{Resource: "user", ID: userID}
	}
	if err != nil {
		return nil, edits.NewPersistenceError("member of tenant", err)
	}
	return &member, nil
}

// AssignEntity records or moves the owning tenant of an entity
func (o *GormOwnership) AssignEntity(ctx context.Context, owner models.EntityOwner) error {
	err := o.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "target_type"}, {Name: "target_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tenant_id"}),
	}).Create(&owner).Error
	return edits.NewPersistenceError("assign entity", err)
}

// AddMember records or moves a user into a tenant
func (o *GormOwnership) AddMember(ctx context.Context, member models.TenantMember) error {
	err := o.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tenant_id", "role"}),
	}).Create(&member).Error
	return edits.NewPersistenceError("add member", err)
}

// StaticOwnership is an in-memory directory used with the memory store
type StaticOwnership struct {
	mu       sync.RWMutex
	entities map[string]string // type/id -> tenant
	members  map[string]models.TenantMember
}

var _ edits.Ownership = (*StaticOwnership)(nil)

// NewStaticOwnership creates an empty directory
func NewStaticOwnership() *StaticOwnership {
	return &StaticOwnership{
		entities: map[string]string{},
		members:  map[string]models.TenantMember{},
	}
}

func entityKey(targetType fields.TargetType, targetID string) string {
	return string(targetType) + "/" + targetID
}

func (o *StaticOwnership) AssignEntity(_ context.Context, owner models.EntityOwner) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entities[entityKey(owner.TargetType, owner.TargetID)] = owner.TenantID
	return nil
}

func (o *StaticOwnership) AddMember(_ context.Context, member models.TenantMember) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if member.Role == "" {
		member.Role = models.RoleLocator
	}
	o.members[member.UserID] = member
	return nil
}

func (o *StaticOwnership) TenantOfEntity(_ context.Context, targetType fields.TargetType, targetID string) (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	tenant, ok := o.entities[entityKey(targetType, targetID)]
	if !ok {
		return "", &edits.NotFoundError{Resource: string(targetType), ID: targetID}
	}
	return tenant, nil
}

func (o *StaticOwnership) MemberOf(_ context.Context, userID string) (*models.TenantMember, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	member, ok := o.members[userID]
	if !ok {
		return nil, &edits.NotFoundError{Resource: "user", ID: userID}
	}
	return &member, nil
}
