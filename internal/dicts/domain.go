// Package dicts manages the shared dictionaries: named types (code-addressed
// groups) and the labelled entries under them. Dictionaries feed UI selects
// and carry no authorization semantics.
package dicts

import "time"

// Dictionary and entry statuses.
const (
	StatusDisabled = 0
	StatusEnabled  = 1
)

// DictType is a dictionary group, addressed by its unique code.
type DictType struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Status    int       `json:"status"`
	Remark    string    `json:"remark,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DictData is one labelled entry belonging to a dictionary type.
type DictData struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	Value     string    `json:"value"`
	Sort      int       `json:"sort"`
	Status    int       `json:"status"`
	Remark    string    `json:"remark,omitempty"`
	TypeID    int64     `json:"type_id"`
	CreatedAt time.Time `json:"created_at"`
}
