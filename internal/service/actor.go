package service

import "github.com/lshigami/examdesk/internal/model"

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID uint
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

func (a Actor) canAccess(ownerID uint) bool {
	return a.IsAdmin() || a.UserID == ownerID
}
