// Package rbac maps roles to permission sets.
//
// The mapping is an explicit configuration object handed to the registry at
// construction time, so per-deployment policy and isolated tests need no
// shared globals. Lookups are deterministic and side-effect free.
package rbac

import (
	"github.com/healthassess/secure-gateway/models"
)

// RolePolicy assigns each role its explicit permission set. The admin role
// is always resolved as the union of every known permission regardless of
// what the policy lists for it.
type RolePolicy map[models.Role][]models.Permission

// DefaultPolicy returns the stock clinical role mapping.
func DefaultPolicy() RolePolicy {
	return RolePolicy{
		models.RoleDoctor: {
			models.PermReadAssessments,
			models.PermWriteAssessments,
			models.PermReadAnalytics,
			models.PermPatientData,
		},
		models.RoleNurse: {
			models.PermReadAssessments,
			models.PermWriteAssessments,
			models.PermPatientData,
		},
		models.RoleAnalyst: {
			models.PermReadAssessments,
			models.PermReadAnalytics,
			models.PermWriteAnalytics,
			models.PermExportData,
		},
		models.RolePatient: {
			models.PermReadAssessments,
		},
		models.RoleViewer: {
			models.PermReadAssessments,
			models.PermReadAnalytics,
		},
	}
}

// Registry answers role/permission questions from an immutable policy
// snapshot taken at construction time.
type Registry struct {
	grants map[models.Role]map[models.Permission]struct{}
}

// NewRegistry builds a registry from the given policy. The policy is copied;
// later mutation of the input map has no effect on the registry.
func NewRegistry(policy RolePolicy) *Registry {
	grants := make(map[models.Role]map[models.Permission]struct{}, len(policy)+1)
	for role, perms := range policy {
		set := make(map[models.Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		grants[role] = set
	}

	// Admin holds every permission by definition.
	admin := make(map[models.Permission]struct{}, len(models.AllPermissions))
	for _, p := range models.AllPermissions {
		admin[p] = struct{}{}
	}
	grants[models.RoleAdmin] = admin

	return &Registry{grants: grants}
}

// PermissionsFor returns the permission set for a role. Unknown roles yield
// an empty slice rather than an error.
func (r *Registry) PermissionsFor(role models.Role) []models.Permission {
	set, ok := r.grants[role]
	if !ok {
		return nil
	}
	perms := make([]models.Permission, 0, len(set))
	// Iterate AllPermissions to keep output order stable.
	for _, p := range models.AllPermissions {
		if _, granted := set[p]; granted {
			perms = append(perms, p)
		}
	}
	return perms
}

// Check reports whether the role holds the permission.
func (r *Registry) Check(role models.Role, perm models.Permission) bool {
	set, ok := r.grants[role]
	if !ok {
		return false
	}
	_, granted := set[perm]
	return granted
}
