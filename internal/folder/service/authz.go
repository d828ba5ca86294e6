package service

import "compliancedocs/internal/folder/model"

// Authorizer is the capability check consulted before every mutating
// operation. Denial surfaces as Forbidden to the caller.
type Authorizer interface {
	CanContribute(actor model.Actor, root model.RootEntityRef) bool
	CanReview(actor model.Actor, root model.RootEntityRef) bool
}

// RoleAuthorizer grants capabilities from the actor's token role.
// Contributors upload and submit, reviewers decide, admins do both.
type RoleAuthorizer struct{}

func (RoleAuthorizer) CanContribute(actor model.Actor, _ model.RootEntityRef) bool {
	return actor.Role == model.RoleContributor || actor.Role == model.RoleAdmin
}

func (RoleAuthorizer) CanReview(actor model.Actor, _ model.RootEntityRef) bool {
	return actor.Role == model.RoleReviewer || actor.Role == model.RoleAdmin
}
