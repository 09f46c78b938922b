// Package authz decides who may view, edit, delete, or approve a leave
// request. Every function is a pure predicate over role flags and department
// labels: no storage access, no side effects, no errors. Callers translate a
// false result into a permission-denied outcome.
package authz

import "github.com/spec-kit/leave-service/internal/domain"

// AccessScope selects which listing variant a caller resolves to.
type AccessScope string

const (
	ScopeOwn        AccessScope = "OWN"
	ScopeDepartment AccessScope = "DEPARTMENT"
	ScopeAll        AccessScope = "ALL"
)

// AccessLevel returns the widest listing scope the user holds. Admin and HR
// see everything; a plain manager sees their department subtree; everyone
// else sees only their own requests.
func AccessLevel(user *domain.User) AccessScope {
	if user.IsAdmin || user.IsHR {
		return ScopeAll
	}
	if user.IsManager {
		return ScopeDepartment
	}
	return ScopeOwn
}

// CanView reports whether the user may read the request.
func CanView(req *domain.LeaveRequest, user *domain.User) bool {
	if user.ID == req.OwnerID {
		return true
	}
	if user.IsAdmin || user.IsHR {
		return true
	}
	return user.IsManager && DepartmentContains(user.Department, req.Department)
}

// CanManageDepartment reports whether the user holds management authority
// over the target department. Authority flows from coarse to fine only: a
// manager of "IT" manages "IT-Support", a manager of "IT-Support" does not
// manage "IT". Admins manage every department.
func CanManageDepartment(user *domain.User, targetDepartment string) bool {
	if user.IsAdmin {
		return true
	}
	if !user.IsManager {
		return false
	}
	return DepartmentContains(user.Department, targetDepartment)
}

// CanEdit reports whether the request may still be edited by the caller.
// Owners may edit only while neither approval stage has acted; admins always.
func CanEdit(req *domain.LeaveRequest, isAdmin, isOwner bool) bool {
	if isAdmin {
		return true
	}
	return isOwner && req.Undecided()
}

// CanDelete follows the same rule as CanEdit.
func CanDelete(req *domain.LeaveRequest, isAdmin, isOwner bool) bool {
	return CanEdit(req, isAdmin, isOwner)
}

// CanManageRequests is the coarse gate applied before per-request checks.
func CanManageRequests(user *domain.User) bool {
	return user.IsAdmin || user.IsManager || user.IsHR
}
