package auth

import "github.com/dmitrijs2005/educhain/internal/server/models"

// Action is something an identity may attempt on a resource.
type Action string

const (
	ActionRead         Action = "read"
	ActionDownload     Action = "download"
	ActionVerify       Action = "verify"
	ActionUpload       Action = "upload"
	ActionDelete       Action = "delete"
	ActionListAll      Action = "list_all"
	ActionListStudents Action = "list_students"
)

// Can reports whether actor may perform action on a resource owned by
// ownerID. ADMIN may do anything. A STUDENT may only read, download or
// verify resources it owns.
func Can(actor models.Identity, action Action, ownerID string) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleStudent:
		switch action {
		case ActionRead, ActionDownload, ActionVerify:
			return ownerID != "" && ownerID == actor.UserID
		}
	}
	return false
}
