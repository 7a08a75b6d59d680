package edits

import (
	"context"
	"errors"
	"fmt"

	"apartment-locator/internal/fields"
	"apartment-locator/internal/models"
)

// Ownership answers tenant questions for write paths. Both lookups return a
// *NotFoundError for unknown ids.
type Ownership interface {
	TenantOfEntity(ctx context.Context, targetType fields.TargetType, targetID string) (string, error)
	MemberOf(ctx context.Context, userID string) (*models.TenantMember, error)
}

// authorize re-derives both tenants from the store of record and returns the
// acting member; nothing supplied by the client is trusted.
func authorize(ctx context.Context, own Ownership, targetType fields.TargetType, targetID, userID string) (*models.TenantMember, error) {
	resource := fmt.Sprintf("%s %s", targetType, targetID)
	if userID == "" {
		return nil, &AuthorizationError{Resource: resource, Reason: "missing identity"}
	}
	member, err := own.MemberOf(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &AuthorizationError{UserID: userID, Resource: resource, Reason: "user belongs to no tenant"}
		}
		return nil, err
	}
	entityTenant, err := own.TenantOfEntity(ctx, targetType, targetID)
	if err != nil {
		return nil, err
	}
	if member.TenantID != entityTenant {
		return nil, &AuthorizationError{UserID: userID, Resource: resource, Reason: "entity belongs to another tenant"}
	}
	return member, nil
}
