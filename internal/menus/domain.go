package menus

import "time"

// Menu type values.
const (
	TypeDirectory = 0
	TypeMenu      = 1
	TypeButton    = 2
)

// Status values for a menu entry.
const (
	StatusDisabled = 0
	StatusEnabled  = 1
)

// Menu is a navigation entry or action button. Button entries carry the
// permission identifiers checked in role-menu mode, comma separated.
type Menu struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Name      string    `json:"name"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Sort      int       `json:"sort"`
	Icon      string    `json:"icon,omitempty"`
	Path      string    `json:"path,omitempty"`
	MenuType  int       `json:"menu_type"`
	Component string    `json:"component,omitempty"`
	Perms     string    `json:"perms,omitempty"`
	Status    int       `json:"status"`
	Show      bool      `json:"show"`
	Cache     bool      `json:"cache"`
	Remark    string    `json:"remark,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Node is a menu with its resolved children.
type Node struct {
	Menu
	Children []*Node `json:"children,omitempty"`
}
