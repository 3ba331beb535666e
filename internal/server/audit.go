package server

import (
	"time"
)

// AuditLogEntry records one admin-console request.
type AuditLogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Handler    string    `json:"handler"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	AdminUser  string    `json:"admin_user,omitempty"`
	Collection string    `json:"collection,omitempty"`
	TargetID   string    `json:"target_id,omitempty"`
	Request    string    `json:"request,omitempty"`
	Response   string    `json:"response,omitempty"`
}
