package constants

const (
	Company   = "company"
	Developer = "developer"
)

// ValidRoles is the set of account roles.
var ValidRoles = []string{Company, Developer}

// IsValidRole returns true if role is one of ValidRoles.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
