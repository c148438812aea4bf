package ledger

import (
	"fmt"

	"ledgerspace/internal/core"
)

// System role and workspace membership are two separate axes: an admin is
// not implicitly a member of any workspace, and a member holds no directory
// rights.

// IsMember reports whether user is on the workspace roster.
func IsMember(user core.User, ws core.Workspace) bool {
	return ws.HasMember(user.ID)
}

// CanModifyExpense is true iff user belongs to the workspace that owns the
// expense. Ownership of the expense itself does not matter.
func CanModifyExpense(user core.User, ws core.Workspace, e core.Expense) bool {
	return e.WorkspaceID == ws.ID && IsMember(user, ws)
}

func RequireAdmin(user core.User) bool {
	return user.IsAdmin()
}

// VerifyMasterSecret checks a candidate against the stored master hash.
func VerifyMasterSecret(candidate, storedHash string) bool {
	if candidate == "" {
		return false
	}
	return core.CompareSecret(storedHash, candidate)
}

// actor resolves the logged-in user or rejects the call.
func actor(s *core.AppState) (core.User, error) {
	u, ok := s.ActiveUser()
	if !ok {
		return core.User{}, fmt.Errorf("%w: no active user", core.ErrPermissionDenied)
	}
	return u, nil
}

func adminActor(s *core.AppState) (core.User, error) {
	u, err := actor(s)
	if err != nil {
		return u, err
	}
	if !RequireAdmin(u) {
		return core.User{}, fmt.Errorf("%w: %s is not an admin", core.ErrPermissionDenied, u.ID)
	}
	return u, nil
}
