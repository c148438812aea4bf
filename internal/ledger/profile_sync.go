package ledger

import "ledgerspace/internal/core"

// SyncReport describes what a profile cascade touched.
type SyncReport struct {
	Expenses int // expenses whose owner copy was rewritten
	Rosters  int // workspaces listing the user
}

// CascadeProfileEdit copies the user's current display fields into every
// expense they own. It runs inside the profile-edit transition so the edit
// and its cascade land in the same snapshot. Rosters hold user ids only, so
// they are counted, not rewritten.
func CascadeProfileEdit(s *core.AppState, u core.User) SyncReport {
	var r SyncReport
	for i := range s.Expenses {
		e := &s.Expenses[i]
		if e.OwnerID != u.ID {
			continue
		}
		if e.OwnerName != u.Name || e.OwnerAvatar != u.AvatarRef {
			e.OwnerName = u.Name
			e.OwnerAvatar = u.AvatarRef
			r.Expenses++
		}
	}
	for _, w := range s.Workspaces {
		if w.HasMember(u.ID) {
			r.Rosters++
		}
	}
	return r
}
