package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a named bundle of permissions assigned to a principal.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RoleNurse   Role = "nurse"
	RoleAnalyst Role = "analyst"
	RolePatient Role = "patient"
	RoleViewer  Role = "viewer"
)

// Permission is an atomic capability grant.
type Permission string

const (
	PermReadAssessments   Permission = "read:assessments"
	PermWriteAssessments  Permission = "write:assessments"
	PermDeleteAssessments Permission = "delete:assessments"
	PermReadAnalytics     Permission = "read:analytics"
	PermWriteAnalytics    Permission = "write:analytics"
	PermAdminAccess       Permission = "admin:access"
	PermPatientData       Permission = "access:patient_data"
	PermExportData        Permission = "export:data"
)

// AllPermissions lists every permission known to the system.
var AllPermissions = []Permission{
	PermReadAssessments,
	PermWriteAssessments,
	PermDeleteAssessments,
	PermReadAnalytics,
	PermWriteAnalytics,
	PermAdminAccess,
	PermPatientData,
	PermExportData,
}

// Principal represents an authenticated actor known to the system.
// Principals are never hard-deleted; deactivation flips Active instead.
type Principal struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Username            string     `json:"username"`
	Role                Role       `json:"role"`
	Active              bool       `json:"active"`
	Verified            bool       `json:"verified"`
	MFAEnabled          bool       `json:"mfa_enabled"`
	CredentialHash      string     `json:"-"`
	FailedLoginAttempts int        `json:"-"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
}

// Summary returns the caller-visible projection of the principal.
// Credential hashes and counters never leave the process.
func (p *Principal) Summary() map[string]interface{} {
	return map[string]interface{}{
		"id":       p.ID,
		"username": p.Username,
		"email":    p.Email,
		"role":     string(p.Role),
	}
}

// NewPrincipal creates an active, unverified principal.
func NewPrincipal(email, username string, role Role, credentialHash string) *Principal {
	return &Principal{
		ID:             uuid.NewString(),
		Email:          email,
		Username:       username,
		Role:           role,
		Active:         true,
		CredentialHash: credentialHash,
	}
}
