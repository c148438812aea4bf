package ledger

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"ledgerspace/internal/core"
)

// Transition is one named change to the aggregate. Apply mutates the working
// copy it is handed; the store discards that copy when Apply fails, so a
// transition may bail out halfway without cleaning up.
type Transition interface {
	Kind() string
	Apply(env Env, s *core.AppState) error
}

// Env carries the clock and id source transitions may use.
type Env struct {
	Now   func() time.Time
	NewID core.IDGenerator
}

// errNoChange lets a transition succeed without producing a new snapshot.
var errNoChange = errors.New("no change")

// scoped is implemented by transitions that target a specific workspace.
type scoped interface {
	Scope(s core.AppState) string
}

type (
	RegisterUser struct {
		Name   string
		Email  string
		Secret string

		// UserID is set once the transition succeeds.
		UserID string
	}

	// Authenticate logs a user in. Identifier is a user id or an email.
	Authenticate struct {
		Identifier string
		Secret     string
	}

	Logout struct{}

	// UpdateOwnProfile edits the active user's profile. An empty UserID means
	// the active user.
	UpdateOwnProfile struct {
		UserID    string
		Name      string
		Email     string
		AvatarRef string

		Report SyncReport
	}

	DeleteUser struct {
		TargetID string
	}

	ToggleWorkspaceMembership struct {
		WorkspaceID string
		UserID      string

		// Added reports the direction of the toggle after success.
		Added bool
	}

	// UpdateWorkspaceSettings changes only the fields that are set.
	UpdateWorkspaceSettings struct {
		WorkspaceID    string
		Name           *string
		CurrencySymbol *string
		Budget         *core.Money
	}

	UpdateOwnTheme struct {
		Color string
	}

	AddExpense struct {
		WorkspaceID string // defaults to the current workspace
		Description string
		Amount      core.Money
		Category    core.Category
		Date        *core.Date

		Created core.Expense
	}

	DeleteExpense struct {
		ExpenseID string

		workspaceID string
	}

	// DeleteExpenses removes a batch atomically: one unauthorized target
	// rejects the whole batch.
	DeleteExpenses struct {
		ExpenseIDs []string

		Removed    int
		workspaces []string
	}

	CreateWorkspace struct {
		Name           string
		CurrencySymbol string
		Budget         core.Money

		WorkspaceID string
	}

	SwitchWorkspace struct {
		WorkspaceID string
	}

	SetActiveView struct {
		View core.View
	}

	// ResetCredential replaces a user's secret. It is authorized either by an
	// admin session or by presenting the master secret.
	ResetCredential struct {
		TargetID     string
		NewSecret    string
		MasterSecret string
	}
)

func (*RegisterUser) Kind() string { return "register_user" }
func (*Authenticate) Kind() string { return "authenticate" }
func (*Logout) Kind() string { return "logout" }
func (*UpdateOwnProfile) Kind() string { return "update_own_profile" }
func (*DeleteUser) Kind() string { return "delete_user" }
func (*ToggleWorkspaceMembership) Kind() string { return "toggle_workspace_membership" }
func (*UpdateWorkspaceSettings) Kind() string { return "update_workspace_settings" }
func (*UpdateOwnTheme) Kind() string { return "update_own_theme" }
func (*AddExpense) Kind() string { return "add_expense" }
func (*DeleteExpense) Kind() string { return "delete_expense" }
func (*DeleteExpenses) Kind() string { return "delete_expenses" }
func (*CreateWorkspace) Kind() string { return "create_workspace" }
func (*SwitchWorkspace) Kind() string { return "switch_workspace" }
func (*SetActiveView) Kind() string { return "set_active_view" }
func (*ResetCredential) Kind() string { return "reset_credential" }

func (t *RegisterUser) Apply(env Env, s *core.AppState) error {
	name := strings.TrimSpace(t.Name)
	email := strings.TrimSpace(t.Email)
	if err := validateProfile(name, email); err != nil {
		return err
	}
	if _, taken := s.UserByEmail(email); taken {
		return fmt.Errorf("%w: %s", core.ErrDuplicateEmail, email)
	}
	if len(s.Workspaces) == 0 {
		return fmt.Errorf("%w: no default workspace", core.ErrNotFound)
	}
	hash, err := core.HashSecret(t.Secret)
	if err != nil {
		return err
	}
	u := core.User{
		ID:           env.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         core.RoleMember,
		ThemeColor:   core.DefaultThemeColor,
	}
	s.Users = append(s.Users, u)
	s.ActiveUserID = u.ID

	def := &s.Workspaces[0]
	def.MemberIDs = append(def.MemberIDs, u.ID)
	s.CurrentWorkspaceID = def.ID

	t.UserID = u.ID
	return nil
}

func (t *Authenticate) Apply(_ Env, s *core.AppState) error {
	u, ok := s.User(t.Identifier)
	if !ok {
		u, ok = s.UserByEmail(t.Identifier)
	}
	if !ok || !core.CompareSecret(u.PasswordHash, t.Secret) {
		return core.ErrInvalidCredentials
	}
	s.ActiveUserID = u.ID

	// land in a workspace the user can see
	if cur, ok := s.CurrentWorkspace(); ok && !cur.HasMember(u.ID) {
		for _, w := range s.Workspaces {
			if w.HasMember(u.ID) {
				s.CurrentWorkspaceID = w.ID
				break
			}
		}
	}
	return nil
}

func (*Logout) Apply(_ Env, s *core.AppState) error {
	s.ActiveUserID = ""
	return nil
}

func (t *UpdateOwnProfile) Apply(_ Env, s *core.AppState) error {
	me, err := actor(s)
	if err != nil {
		return err
	}
	if t.UserID != "" && t.UserID != me.ID {
		return fmt.Errorf("%w: profile of %s can only be edited by its owner", core.ErrPermissionDenied, t.UserID)
	}
	name := strings.TrimSpace(t.Name)
	email := strings.TrimSpace(t.Email)
	if err := validateProfile(name, email); err != nil {
		return err
	}
	for _, other := range s.Users {
		if other.ID != me.ID && core.SameEmail(other.Email, email) {
			return fmt.Errorf("%w: %s", core.ErrDuplicateEmail, email)
		}
	}

	i := s.UserIndex(me.ID)
	s.Users[i].Name = name
	s.Users[i].Email = email
	s.Users[i].AvatarRef = strings.TrimSpace(t.AvatarRef)

	t.Report = CascadeProfileEdit(s, s.Users[i])
	return nil
}

func (t *DeleteUser) Apply(_ Env, s *core.AppState) error {
	if t.TargetID != "" && t.TargetID == s.ActiveUserID {
		return fmt.Errorf("%w: %s", core.ErrSelfDeletionForbidden, t.TargetID)
	}
	if _, err := adminActor(s); err != nil {
		return err
	}
	i := s.UserIndex(t.TargetID)
	if i < 0 {
		return fmt.Errorf("%w: user %s", core.ErrNotFound, t.TargetID)
	}
	for wi := range s.Workspaces {
		w := &s.Workspaces[wi]
		if !w.HasMember(t.TargetID) {
			continue
		}
		if len(w.MemberIDs) == 1 {
			return fmt.Errorf("%w: %s is the only member of workspace %s", core.ErrLastMemberProtection, t.TargetID, w.ID)
		}
		w.MemberIDs = slices.DeleteFunc(w.MemberIDs, func(id string) bool { return id == t.TargetID })
	}
	s.Users = slices.Delete(s.Users, i, i+1)
	return nil
}

func (t *ToggleWorkspaceMembership) Apply(_ Env, s *core.AppState) error {
	if _, err := adminActor(s); err != nil {
		return err
	}
	wi := s.WorkspaceIndex(t.WorkspaceID)
	if wi < 0 {
		return fmt.Errorf("%w: workspace %s", core.ErrNotFound, t.WorkspaceID)
	}
	w := &s.Workspaces[wi]
	if w.HasMember(t.UserID) {
		if len(w.MemberIDs) == 1 {
			return fmt.Errorf("%w: cannot remove the last member of %s", core.ErrLastMemberProtection, w.ID)
		}
		w.MemberIDs = slices.DeleteFunc(w.MemberIDs, func(id string) bool { return id == t.UserID })
		t.Added = false
		return nil
	}
	if _, ok := s.User(t.UserID); !ok {
		return fmt.Errorf("%w: user %s", core.ErrNotFound, t.UserID)
	}
	w.MemberIDs = append(w.MemberIDs, t.UserID)
	t.Added = true
	return nil
}

func (t *ToggleWorkspaceMembership) Scope(core.AppState) string { return t.WorkspaceID }

func (t *UpdateWorkspaceSettings) Apply(_ Env, s *core.AppState) error {
	if _, err := adminActor(s); err != nil {
		return err
	}
	wi := s.WorkspaceIndex(t.WorkspaceID)
	if wi < 0 {
		return fmt.Errorf("%w: workspace %s", core.ErrNotFound, t.WorkspaceID)
	}
	w := &s.Workspaces[wi]
	if t.Name != nil {
		name := strings.TrimSpace(*t.Name)
		if name == "" {
			return fmt.Errorf("%w: workspace name is required", core.ErrValidation)
		}
		w.Name = name
	}
	if t.CurrencySymbol != nil {
		sym := strings.TrimSpace(*t.CurrencySymbol)
		if sym == "" {
			return fmt.Errorf("%w: currency symbol is required", core.ErrValidation)
		}
		w.CurrencySymbol = sym
	}
	if t.Budget != nil {
		if t.Budget.Cents <= 0 {
			return core.ErrInvalidBudget
		}
		w.Budget = *t.Budget
	}
	return nil
}

func (t *UpdateWorkspaceSettings) Scope(core.AppState) string { return t.WorkspaceID }

func (t *UpdateOwnTheme) Apply(_ Env, s *core.AppState) error {
	i := s.UserIndex(s.ActiveUserID)
	if s.ActiveUserID == "" || i < 0 {
		return errNoChange
	}
	color := strings.TrimSpace(t.Color)
	if s.Users[i].ThemeColor == color {
		return errNoChange
	}
	s.Users[i].ThemeColor = color
	return nil
}

func (t *AddExpense) Apply(env Env, s *core.AppState) error {
	me, err := actor(s)
	if err != nil {
		return err
	}
	wsID := t.WorkspaceID
	if wsID == "" {
		wsID = s.CurrentWorkspaceID
	}
	ws, ok := s.Workspace(wsID)
	if !ok {
		return fmt.Errorf("%w: workspace %s", core.ErrNotFound, wsID)
	}
	if !IsMember(me, ws) {
		return fmt.Errorf("%w: %s is not a member of %s", core.ErrPermissionDenied, me.ID, ws.ID)
	}
	category := t.Category
	if category == "" {
		category = core.Other
	}
	date := core.Date{Time: env.Now().UTC()}
	if t.Date != nil && !t.Date.IsZero() {
		date = *t.Date
	}
	e := core.Expense{
		ID:          env.NewID(),
		Amount:      t.Amount,
		Description: strings.TrimSpace(t.Description),
		Category:    category,
		Date:        date,
		OwnerID:     me.ID,
		OwnerName:   me.Name,
		OwnerAvatar: me.AvatarRef,
		WorkspaceID: ws.ID,
	}
	if err := e.Validate(); err != nil {
		return err
	}
	s.Expenses = slices.Insert(s.Expenses, 0, e)
	t.Created = e
	return nil
}

func (t *AddExpense) Scope(s core.AppState) string {
	if t.WorkspaceID != "" {
		return t.WorkspaceID
	}
	return s.CurrentWorkspaceID
}

func (t *DeleteExpense) Apply(env Env, s *core.AppState) error {
	batch := DeleteExpenses{ExpenseIDs: []string{t.ExpenseID}}
	t.workspaceID = ""
	if err := batch.Apply(env, s); err != nil {
		return err
	}
	t.workspaceID = batch.Scope(*s)
	return nil
}

// Scope is the workspace the expense lived in, which need not be the current
// one.
func (t *DeleteExpense) Scope(core.AppState) string {
	return t.workspaceID
}

func (t *DeleteExpenses) Apply(_ Env, s *core.AppState) error {
	me, err := actor(s)
	if err != nil {
		return err
	}
	t.Removed, t.workspaces = 0, nil
	targets := make(map[string]struct{}, len(t.ExpenseIDs))
	var touched []string
	for _, id := range t.ExpenseIDs {
		e, ok := s.Expense(id)
		if !ok {
			continue
		}
		ws, ok := s.Workspace(e.WorkspaceID)
		if !ok || !CanModifyExpense(me, ws, e) {
			return fmt.Errorf("%w: %s may not modify expense %s", core.ErrPermissionDenied, me.ID, e.ID)
		}
		targets[id] = struct{}{}
		if !slices.Contains(touched, ws.ID) {
			touched = append(touched, ws.ID)
		}
	}
	if len(targets) == 0 {
		return errNoChange
	}
	before := len(s.Expenses)
	s.Expenses = slices.DeleteFunc(s.Expenses, func(e core.Expense) bool {
		_, hit := targets[e.ID]
		return hit
	})
	t.Removed = before - len(s.Expenses)
	t.workspaces = touched
	return nil
}

// Scope names the single workspace the batch touched. A batch spanning
// several workspaces reports "" so subscribers refresh all of them.
func (t *DeleteExpenses) Scope(core.AppState) string {
	if len(t.workspaces) == 1 {
		return t.workspaces[0]
	}
	return ""
}

func (t *CreateWorkspace) Apply(env Env, s *core.AppState) error {
	me, err := adminActor(s)
	if err != nil {
		return err
	}
	ws := core.Workspace{
		ID:             env.NewID(),
		Name:           strings.TrimSpace(t.Name),
		CurrencySymbol: strings.TrimSpace(t.CurrencySymbol),
		Budget:         t.Budget,
		MemberIDs:      []string{me.ID},
	}
	if ws.CurrencySymbol == "" {
		ws.CurrencySymbol = core.DefaultCurrencySymbol
	}
	if err := ws.Validate(); err != nil {
		return err
	}
	s.Workspaces = append(s.Workspaces, ws)
	s.CurrentWorkspaceID = ws.ID
	t.WorkspaceID = ws.ID
	return nil
}

func (t *SwitchWorkspace) Apply(_ Env, s *core.AppState) error {
	me, err := actor(s)
	if err != nil {
		return err
	}
	ws, ok := s.Workspace(t.WorkspaceID)
	if !ok {
		return fmt.Errorf("%w: workspace %s", core.ErrNotFound, t.WorkspaceID)
	}
	if !IsMember(me, ws) && !RequireAdmin(me) {
		return fmt.Errorf("%w: %s is not a member of %s", core.ErrPermissionDenied, me.ID, ws.ID)
	}
	if s.CurrentWorkspaceID == ws.ID {
		return errNoChange
	}
	s.CurrentWorkspaceID = ws.ID
	return nil
}

func (t *SwitchWorkspace) Scope(core.AppState) string { return t.WorkspaceID }

func (t *SetActiveView) Apply(_ Env, s *core.AppState) error {
	if !t.View.Valid() {
		return fmt.Errorf("%w: unknown view %q", core.ErrValidation, t.View)
	}
	if s.ActiveView == t.View {
		return errNoChange
	}
	s.ActiveView = t.View
	return nil
}

func (t *ResetCredential) Apply(_ Env, s *core.AppState) error {
	if t.MasterSecret != "" {
		if !VerifyMasterSecret(t.MasterSecret, s.MasterSecretHash) {
			return fmt.Errorf("%w: master secret mismatch", core.ErrPermissionDenied)
		}
	} else if _, err := adminActor(s); err != nil {
		return err
	}
	i := s.UserIndex(t.TargetID)
	if i < 0 {
		return fmt.Errorf("%w: user %s", core.ErrNotFound, t.TargetID)
	}
	hash, err := core.HashSecret(t.NewSecret)
	if err != nil {
		return err
	}
	s.Users[i].PasswordHash = hash
	return nil
}
