package rbac

type Role string
type Action string

const (
	RoleVisitor  Role = "visitor"
	RoleOperator Role = "operator"
)

const (
	ActionReadContent Action = "read_content"
	ActionSearch      Action = "search"
	ActionEdit        Action = "edit"
	ActionSave        Action = "save"
	ActionHistory     Action = "history"
)

// Can reports whether role may perform action. There are no levels beyond
// visitor and operator.
func Can(role Role, action Action) bool {
	switch role {
	case RoleOperator:
		switch action {
		case ActionReadContent, ActionSearch, ActionEdit, ActionSave, ActionHistory:
			return true
		}
		return false
	case RoleVisitor:
		return action == ActionReadContent || action == ActionSearch
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleVisitor, RoleOperator:
		return Role(role)
	default:
		return RoleVisitor
	}
}
