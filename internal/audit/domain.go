// Package audit persists the operation and login trails. Records are
// written off the request path whenever the queue is available and fall
// back to a synchronous insert when it is not.
package audit

import "time"

// OperaLog is one recorded API operation.
type OperaLog struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username,omitempty"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CostMs    float64   `json:"cost_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginLog is one recorded login attempt, successful or not.
type LoginLog struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Success   bool      `json:"success"`
	Msg       string    `json:"msg,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
