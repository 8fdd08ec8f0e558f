package models

// UserDocType tags user documents in the store.
const UserDocType = "userprofile"

type User struct {
	Username       string   `json:"username"`
	Email          string   `json:"email,omitempty"`
	FullName       string   `json:"full_name,omitempty"`
	HashedPassword string   `json:"-"`
	Roles          []Role   `json:"admin_roles"`
	AdminChannels  []string `json:"admin_channels"`
	Disabled       bool     `json:"disabled"`
}

func (u *User) IsActive() bool {
	return !u.Disabled
}

func (u *User) IsSuperuser() bool {
	return u.HasRole(RoleSuperuser)
}

// IsAdmin reports whether the user holds the admin or the superuser role.
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin) || u.HasRole(RoleSuperuser)
}

func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
