package enums

// UserRole is the role claim in access tokens.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
	UserRoleCashier  UserRole = "cashier"
)

var userRoles = set[UserRole]{UserRoleCustomer, UserRoleAdmin, UserRoleCashier}

func (r UserRole) IsValid() bool { return userRoles.has(r) }

func ParseUserRole(value string) (UserRole, error) {
	return userRoles.parseFold("user role", value)
}
