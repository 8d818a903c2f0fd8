package rbac

type Role string
type Action string

// Anonymous callers can browse. Signed-in users and api-token holders can
// change submissions; only api-token holders administer reference data.
const (
	RoleAnonymous Role = "anonymous"
	RoleUser      Role = "user"
	RoleService   Role = "service"
)

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
	ActionAdmin Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleService:
		return true
	case RoleUser:
		return action == ActionRead || action == ActionWrite
	case RoleAnonymous:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleAnonymous, RoleUser, RoleService:
		return Role(role)
	default:
		return RoleAnonymous
	}
}
