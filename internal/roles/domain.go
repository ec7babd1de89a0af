package roles

import "time"

// Data scope values controlling which departments a role can see.
const (
	DataScopeAll    = 1
	DataScopeCustom = 2
)

// Status values for a role.
const (
	StatusDisabled = 0
	StatusEnabled  = 1
)

// Role groups menus and authorization rules under a shared name.
type Role struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	DataScope int       `json:"data_scope"`
	Status    int       `json:"status"`
	Remark    string    `json:"remark,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	MenuIDs   []int64   `json:"menu_ids,omitempty"`
}

// Enabled reports whether the role participates in authorization.
func (r Role) Enabled() bool {
	return r.Status == StatusEnabled
}
