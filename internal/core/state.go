package core

import (
	"fmt"
	"slices"
)

// Defaults used when no snapshot exists yet.
const (
	DefaultAdminName      = "Administrator"
	DefaultAdminEmail     = "admin@ledgerspace.local"
	DefaultWorkspaceName  = "Household"
	DefaultCurrencySymbol = "$"
	DefaultBudgetCents    = 200000
)

// AppState is the whole ledger aggregate. A value is a snapshot: transitions
// work on a Clone and the store swaps the result in wholesale.
type AppState struct {
	Version            int64       `json:"version"`
	Workspaces         []Workspace `json:"workspaces"`
	Users              []User      `json:"users"`
	CurrentWorkspaceID string      `json:"currentWorkspaceId"`
	Expenses           []Expense   `json:"expenses"`
	ActiveUserID       string      `json:"activeUserId,omitempty"`
	ActiveView         View        `json:"activeView"`
	MasterSecretHash   string      `json:"masterSecretHash,omitempty"`
}

// Clone returns a deep copy that shares no slices with s.
func (s AppState) Clone() AppState {
	out := s
	out.Users = slices.Clone(s.Users)
	out.Expenses = slices.Clone(s.Expenses)
	out.Workspaces = make([]Workspace, len(s.Workspaces))
	for i, w := range s.Workspaces {
		w.MemberIDs = slices.Clone(w.MemberIDs)
		out.Workspaces[i] = w
	}
	return out
}

// DefaultState bootstraps a ledger with one admin and one workspace.
func DefaultState(newID IDGenerator, adminSecret, masterSecret string) (AppState, error) {
	if newID == nil {
		newID = NewID
	}
	hash, err := HashSecret(adminSecret)
	if err != nil {
		return AppState{}, fmt.Errorf("hash admin secret: %w", err)
	}
	var masterHash string
	if masterSecret != "" {
		masterHash, err = HashSecret(masterSecret)
		if err != nil {
			return AppState{}, fmt.Errorf("hash master secret: %w", err)
		}
	}
	admin := User{
		ID:           newID(),
		Name:         DefaultAdminName,
		Email:        DefaultAdminEmail,
		PasswordHash: hash,
		Role:         RoleAdmin,
		ThemeColor:   DefaultThemeColor,
	}
	ws := Workspace{
		ID:             newID(),
		Name:           DefaultWorkspaceName,
		CurrencySymbol: DefaultCurrencySymbol,
		Budget:         Money{Cents: DefaultBudgetCents},
		MemberIDs:      []string{admin.ID},
	}
	return AppState{
		Workspaces:         []Workspace{ws},
		Users:              []User{admin},
		CurrentWorkspaceID: ws.ID,
		Expenses:           []Expense{},
		ActiveView:         ViewDashboard,
		MasterSecretHash:   masterHash,
	}, nil
}

func (s AppState) UserIndex(id string) int {
	return slices.IndexFunc(s.Users, func(u User) bool { return u.ID == id })
}

func (s AppState) WorkspaceIndex(id string) int {
	return slices.IndexFunc(s.Workspaces, func(w Workspace) bool { return w.ID == id })
}

func (s AppState) ExpenseIndex(id string) int {
	return slices.IndexFunc(s.Expenses, func(e Expense) bool { return e.ID == id })
}

// User looks a user up by id.
func (s AppState) User(id string) (User, bool) {
	if i := s.UserIndex(id); i >= 0 {
		return s.Users[i], true
	}
	return User{}, false
}

// UserByEmail matches case-insensitively.
func (s AppState) UserByEmail(email string) (User, bool) {
	for _, u := range s.Users {
		if SameEmail(u.Email, email) {
			return u, true
		}
	}
	return User{}, false
}

func (s AppState) Workspace(id string) (Workspace, bool) {
	if i := s.WorkspaceIndex(id); i >= 0 {
		return s.Workspaces[i], true
	}
	return Workspace{}, false
}

func (s AppState) Expense(id string) (Expense, bool) {
	if i := s.ExpenseIndex(id); i >= 0 {
		return s.Expenses[i], true
	}
	return Expense{}, false
}

// ActiveUser returns the logged-in user, if any.
func (s AppState) ActiveUser() (User, bool) {
	if s.ActiveUserID == "" {
		return User{}, false
	}
	return s.User(s.ActiveUserID)
}

func (s AppState) CurrentWorkspace() (Workspace, bool) {
	return s.Workspace(s.CurrentWorkspaceID)
}

// Validate checks the aggregate invariants. A snapshot that fails here must
// never replace a valid one.
func (s AppState) Validate() error {
	if len(s.Workspaces) == 0 {
		return fmt.Errorf("%w: state has no workspaces", ErrValidation)
	}
	if _, ok := s.CurrentWorkspace(); !ok {
		return fmt.Errorf("%w: current workspace %q", ErrNotFound, s.CurrentWorkspaceID)
	}
	if s.ActiveUserID != "" {
		if _, ok := s.ActiveUser(); !ok {
			return fmt.Errorf("%w: active user %q", ErrNotFound, s.ActiveUserID)
		}
	}
	for i, u := range s.Users {
		for _, other := range s.Users[i+1:] {
			if u.ID == other.ID {
				return fmt.Errorf("%w: duplicate user id %s", ErrValidation, u.ID)
			}
			if SameEmail(u.Email, other.Email) {
				return fmt.Errorf("%w: %s", ErrDuplicateEmail, u.Email)
			}
		}
	}
	for _, w := range s.Workspaces {
		if err := w.Validate(); err != nil {
			return err
		}
		for _, id := range w.MemberIDs {
			if _, ok := s.User(id); !ok {
				return fmt.Errorf("%w: workspace %s lists unknown member %s", ErrNotFound, w.ID, id)
			}
		}
	}
	for _, e := range s.Expenses {
		if _, ok := s.Workspace(e.WorkspaceID); !ok {
			return fmt.Errorf("%w: expense %s references workspace %s", ErrNotFound, e.ID, e.WorkspaceID)
		}
	}
	return nil
}
