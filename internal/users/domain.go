package users

import "time"

// Status values for a user account.
const (
	StatusDisabled = 0
	StatusEnabled  = 1
)

// User represents a principal account.
type User struct {
	ID            int64      `json:"id"`
	UUID          string     `json:"uuid"`
	Username      string     `json:"username"`
	Nickname      string     `json:"nickname"`
	PasswordHash  string     `json:"-"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	Avatar        string     `json:"avatar,omitempty"`
	IsSuperuser   bool       `json:"is_superuser"`
	IsStaff       bool       `json:"is_staff"`
	IsMultiLogin  bool       `json:"is_multi_login"`
	Status        int        `json:"status"`
	DeptID        *int64     `json:"dept_id,omitempty"`
	JoinTime      time.Time  `json:"join_time"`
	LastLoginTime *time.Time `json:"last_login_time,omitempty"`
	RoleIDs       []int64    `json:"role_ids,omitempty"`
	RoleNames     []string   `json:"role_names,omitempty"`
}

// Active reports whether the account may authenticate.
func (u User) Active() bool {
	return u.Status == StatusEnabled
}
