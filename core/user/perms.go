package user

// Permission is an action gated by role.
type Permission int

const (
	// PermViewRecords allows reading school records: learners, scores, reports, invoices.
	PermViewRecords Permission = iota + 1
	PermEditAcademics
	PermViewFinance
	PermEditFinance
	PermEditAdmissions
	PermManageSchool
	PermManageUsers
)

// role prefixes allowed per Permission
var permRoles = map[Permission][]string{
	PermViewRecords:    {RoleAdmin, RoleTeacher, RoleFinance, RoleVisitor},
	PermEditAcademics:  {RoleAdmin, RoleTeacher},
	PermViewFinance:    {RoleAdmin, RoleFinance},
	PermEditFinance:    {RoleAdmin, RoleFinance},
	PermEditAdmissions: {RoleAdmin},
	PermManageSchool:   {RoleAdmin},
	PermManageUsers:    {RoleAdmin},
}

var permNames = map[Permission]string{
	PermViewRecords:    "view_records",
	PermEditAcademics:  "edit_academics",
	PermViewFinance:    "view_finance",
	PermEditFinance:    "edit_finance",
	PermEditAdmissions: "edit_admissions",
	PermManageSchool:   "manage_school",
	PermManageUsers:    "manage_users",
}

func (p Permission) String() string {
	return permNames[p]
}

// Can reports whether usr is allowed to perform perm.
// Inactive users can do nothing. Parents only get access to their own children, which callers check separately.
func Can(usr User, perm Permission) bool {
	if !usr.IsActive {
		return false
	}
	for _, prefix := range permRoles[perm] {
		if usr.RoleStartsWith(prefix) {
			return true
		}
	}
	return false
}

// Permissions lists every Permission granted to usr.
func Permissions(usr User) []string {
	perms := make([]string, 0, len(permRoles))
	for p := PermViewRecords; p <= PermManageUsers; p++ {
		if Can(usr, p) {
			perms = append(perms, p.String())
		}
	}
	return perms
}
