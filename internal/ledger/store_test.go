package ledger

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ledgerspace/internal/core"
	"ledgerspace/internal/log"
)

func init() {
	core.SecretCost = bcrypt.MinCost
}

const adminSecret = "admin-secret"

type recordingPersister struct {
	saved []core.AppState
	err   error
}

func (p *recordingPersister) Save(_ context.Context, s core.AppState) error {
	if p.err != nil {
		return p.err
	}
	p.saved = append(p.saved, s)
	return nil
}

type recordingPublisher struct {
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.events = append(p.events, ev)
	return p.err
}

type fixture struct {
	t         *testing.T
	store     *Store
	persister *recordingPersister
	publisher *recordingPublisher
	adminID   string
	wsID      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	n := 0
	ids := func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
	initial, err := core.DefaultState(ids, adminSecret, "master-secret")
	if err != nil {
		t.Fatalf("default state: %v", err)
	}
	p := &recordingPersister{}
	pub := &recordingPublisher{}
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	st, err := NewStore(initial,
		WithPersister(p),
		WithPublisher(pub),
		WithLogger(log.Discard()),
		WithIDGenerator(ids),
		WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}),
	)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return &fixture{
		t:         t,
		store:     st,
		persister: p,
		publisher: pub,
		adminID:   initial.Users[0].ID,
		wsID:      initial.Workspaces[0].ID,
	}
}

func (f *fixture) apply(tr Transition) core.AppState {
	f.t.Helper()
	s, err := f.store.Apply(context.Background(), tr)
	if err != nil {
		f.t.Fatalf("%s: unexpected error: %v", tr.Kind(), err)
	}
	return s
}

func (f *fixture) reject(tr Transition, want error) {
	f.t.Helper()
	before := f.store.Snapshot()
	_, err := f.store.Apply(context.Background(), tr)
	if !errors.Is(err, want) {
		f.t.Fatalf("%s: got %v, want %v", tr.Kind(), err, want)
	}
	if after := f.store.Snapshot(); !reflect.DeepEqual(before, after) {
		f.t.Fatalf("%s: rejected transition changed the snapshot", tr.Kind())
	}
}

func (f *fixture) loginAdmin() {
	f.t.Helper()
	f.apply(&Authenticate{Identifier: core.DefaultAdminEmail, Secret: adminSecret})
}

func (f *fixture) register(name, email string) string {
	f.t.Helper()
	r := &RegisterUser{Name: name, Email: email, Secret: "pw-" + name}
	f.apply(r)
	return r.UserID
}

func (f *fixture) addExpense(desc string, cents int64, cat core.Category) core.Expense {
	f.t.Helper()
	a := &AddExpense{Description: desc, Amount: core.Money{Cents: cents}, Category: cat}
	f.apply(a)
	return a.Created
}

func TestRegisterThenAuthenticate(t *testing.T) {
	f := newFixture(t)
	id := f.register("Alice", "alice@example.com")

	s := f.store.Snapshot()
	if s.ActiveUserID != id {
		t.Fatalf("registered user not active")
	}
	u, _ := s.User(id)
	if u.Role != core.RoleMember || u.ThemeColor != core.DefaultThemeColor {
		t.Fatalf("unexpected new user %+v", u)
	}
	if !s.Workspaces[0].HasMember(id) {
		t.Fatalf("new user not added to default workspace")
	}

	f.apply(&Logout{})
	if f.store.Snapshot().ActiveUserID != "" {
		t.Fatalf("logout did not clear active user")
	}

	f.apply(&Authenticate{Identifier: "ALICE@example.com", Secret: "pw-Alice"})
	if f.store.Snapshot().ActiveUserID != id {
		t.Fatalf("authenticate by email did not log in")
	}
	f.apply(&Logout{})
	f.apply(&Authenticate{Identifier: id, Secret: "pw-Alice"})
	if f.store.Snapshot().ActiveUserID != id {
		t.Fatalf("authenticate by id did not log in")
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	f.reject(&Authenticate{Identifier: core.DefaultAdminEmail, Secret: "wrong"}, core.ErrInvalidCredentials)
	f.reject(&Authenticate{Identifier: "nobody@example.com", Secret: adminSecret}, core.ErrInvalidCredentials)
}

func TestRegisterDuplicateEmailIgnoresCase(t *testing.T) {
	f := newFixture(t)
	f.register("Alice", "alice@example.com")
	f.reject(&RegisterUser{Name: "Other", Email: "Alice@Example.COM", Secret: "secret"}, core.ErrDuplicateEmail)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	f.reject(&RegisterUser{Name: "", Email: "a@example.com", Secret: "secret"}, core.ErrValidation)
	f.reject(&RegisterUser{Name: "A", Email: "not-an-email", Secret: "secret"}, core.ErrValidation)
	f.reject(&RegisterUser{Name: "A", Email: "a@example.com", Secret: "x"}, core.ErrValidation)
}

func TestToggleMembershipNeverEmptiesWorkspace(t *testing.T) {
	f := newFixture(t)
	f.loginAdmin()

	before := f.store.Snapshot().Workspaces[0].MemberIDs
	if len(before) != 1 {
		t.Fatalf("expected a single member, got %v", before)
	}
	f.reject(&ToggleWorkspaceMembership{WorkspaceID: f.wsID, UserID: f.adminID}, core.ErrLastMemberProtection)
}

func TestToggleMembershipAddsAndRemoves(t *testing.T) {
	f := newFixture(t)
	bob := f.register("Bob", "bob@example.com")
	f.apply(&Logout{})
	f.loginAdmin()

	create := &CreateWorkspace{Name: "Trip", CurrencySymbol: "€", Budget: core.Money{Cents: 50000}}
	f.apply(create)

	add := &ToggleWorkspaceMembership{WorkspaceID: create.WorkspaceID, UserID: bob}
	s := f.apply(add)
	if !add.Added {
		t.Fatalf("expected addition")
	}
	ws, _ := s.Workspace(create.WorkspaceID)
	if !ws.HasMember(bob) {
		t.Fatalf("bob not added")
	}

	remove := &ToggleWorkspaceMembership{WorkspaceID: create.WorkspaceID, UserID: bob}
	s = f.apply(remove)
	ws, _ = s.Workspace(create.WorkspaceID)
	if remove.Added || ws.HasMember(bob) {
		t.Fatalf("bob not removed")
	}

	f.reject(&ToggleWorkspaceMembership{WorkspaceID: create.WorkspaceID, UserID: "ghost"}, core.ErrNotFound)
	f.reject(&ToggleWorkspaceMembership{WorkspaceID: "nowhere", UserID: bob}, core.ErrNotFound)
}

func TestToggleMembershipRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	f.register("Bob", "bob@example.com")
	f.reject(&ToggleWorkspaceMembership{WorkspaceID: f.wsID, UserID: f.adminID}, core.ErrPermissionDenied)
}

func TestDeleteSelfAlwaysForbidden(t *testing.T) {
	f := newFixture(t)
	f.loginAdmin()
	f.reject(&DeleteUser{TargetID: f.adminID}, core.ErrSelfDeletionForbidden)

	f.apply(&Logout{})
	bob := f.register("Bob", "bob@example.com")
	f.reject(&DeleteUser{TargetID: bob}, core.ErrSelfDeletionForbidden)
}

func TestDeleteUserCascadesRostersKeepsExpenses(t *testing.T) {
	f := newFixture(t)
	bob := f.register("Bob", "bob@example.com")
	spent := f.addExpense("Groceries", 4200, core.Food)
	f.apply(&Logout{})

	f.register("Carol", "carol@example.com")
	f.reject(&DeleteUser{TargetID: bob}, core.ErrPermissionDenied)
	f.apply(&Logout{})

	f.loginAdmin()
	s := f.apply(&DeleteUser{TargetID: bob})
	if _, ok := s.User(bob); ok {
		t.Fatalf("bob still in directory")
	}
	for _, w := range s.Workspaces {
		if w.HasMember(bob) {
			t.Fatalf("bob still on roster of %s", w.ID)
		}
	}
	e, ok := s.Expense(spent.ID)
	if !ok || e.OwnerID != bob || e.OwnerName != "Bob" {
		t.Fatalf("historical expense lost or altered: %+v", e)
	}
	f.reject(&DeleteUser{TargetID: bob}, core.ErrNotFound)
}

func TestDeleteUserProtectsSoleMember(t *testing.T) {
	f := newFixture(t)
	bob := f.register("Bob", "bob@example.com")
	f.apply(&Logout{})
	f.loginAdmin()

	create := &CreateWorkspace{Name: "Solo", Budget: core.Money{Cents: 100}}
	f.apply(create)
	f.apply(&ToggleWorkspaceMembership{WorkspaceID: create.WorkspaceID, UserID: bob})
	f.apply(&ToggleWorkspaceMembership{WorkspaceID: create.WorkspaceID, UserID: f.adminID})

	f.reject(&DeleteUser{TargetID: bob}, core.ErrLastMemberProtection)
}

func TestProfileEditCascadesOnlyOwnExpenses(t *testing.T) {
	f := newFixture(t)
	alice := f.register("Alice", "alice@example.com")
	a1 := f.addExpense("Coffee", 350, core.Food)
	a2 := f.addExpense("Bus", 220, core.Transportation)
	f.apply(&Logout{})

	f.register("Bob", "bob@example.com")
	b1 := f.addExpense("Cinema", 1200, core.Entertainment)
	f.apply(&Logout{})

	f.apply(&Authenticate{Identifier: alice, Secret: "pw-Alice"})
	edit := &UpdateOwnProfile{Name: "Alice Doe", Email: "alice@example.com", AvatarRef: "avatars/alice.png"}
	s := f.apply(edit)

	if edit.Report.Expenses != 2 || edit.Report.Rosters != 1 {
		t.Fatalf("unexpected sync report %+v", edit.Report)
	}
	for _, id := range []string{a1.ID, a2.ID} {
		e, _ := s.Expense(id)
		if e.OwnerName != "Alice Doe" || e.OwnerAvatar != "avatars/alice.png" {
			t.Fatalf("expense %s not cascaded: %+v", id, e)
		}
	}
	if e, _ := s.Expense(b1.ID); e.OwnerName != "Bob" {
		t.Fatalf("other user's expense touched: %+v", e)
	}
}

func TestProfileEditRules(t *testing.T) {
	f := newFixture(t)
	f.reject(&UpdateOwnProfile{Name: "X", Email: "x@example.com"}, core.ErrPermissionDenied)

	f.register("Alice", "alice@example.com")
	f.reject(&UpdateOwnProfile{UserID: f.adminID, Name: "X", Email: "x@example.com"}, core.ErrPermissionDenied)
	f.reject(&UpdateOwnProfile{Name: "Alice", Email: "ADMIN@ledgerspace.local"}, core.ErrDuplicateEmail)
	f.reject(&UpdateOwnProfile{Name: "", Email: "alice@example.com"}, core.ErrValidation)

	// keeping one's own email is not a duplicate
	f.apply(&UpdateOwnProfile{Name: "Alice B", Email: "Alice@example.com"})
}

func TestAddExpenseDefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	f.reject(&AddExpense{Description: "x", Amount: core.Money{Cents: 1}}, core.ErrPermissionDenied)

	f.loginAdmin()
	f.reject(&AddExpense{Description: "", Amount: core.Money{Cents: 100}, Category: core.Food}, core.ErrValidation)
	f.reject(&AddExpense{Description: "Rent", Amount: core.Money{Cents: 0}, Category: core.Housing}, core.ErrValidation)
	f.reject(&AddExpense{Description: "Rent", Amount: core.Money{Cents: -10}, Category: core.Housing}, core.ErrValidation)

	first := f.addExpense("Rent", 90000, core.Housing)
	second := f.addExpense("Misc", 100, "")
	if second.Category != core.Other {
		t.Fatalf("expected fallback category, got %q", second.Category)
	}
	if first.Date.IsZero() || first.OwnerName != core.DefaultAdminName || first.WorkspaceID != f.wsID {
		t.Fatalf("unexpected denormalized expense %+v", first)
	}

	s := f.store.Snapshot()
	if s.Expenses[0].ID != second.ID || s.Expenses[1].ID != first.ID {
		t.Fatalf("expenses not prepended")
	}

	d := core.NewDate(2024, 12, 24)
	dated := &AddExpense{Description: "Gifts", Amount: core.Money{Cents: 5000}, Category: core.Shopping, Date: &d}
	f.apply(dated)
	if !dated.Created.Date.Equal(d.Time) {
		t.Fatalf("explicit date ignored: %v", dated.Created.Date)
	}
}

func TestNonMemberCannotDeleteExpense(t *testing.T) {
	f := newFixture(t)
	bob := f.register("Bob", "bob@example.com")
	e := f.addExpense("Lunch", 1500, core.Food)
	f.apply(&Logout{})

	f.loginAdmin()
	f.apply(&ToggleWorkspaceMembership{WorkspaceID: f.wsID, UserID: f.adminID})
	ws, _ := f.store.Snapshot().Workspace(f.wsID)
	if ws.HasMember(f.adminID) || !ws.HasMember(bob) {
		t.Fatalf("unexpected roster %v", ws.MemberIDs)
	}

	// admin role does not grant workspace membership
	f.reject(&DeleteExpense{ExpenseID: e.ID}, core.ErrPermissionDenied)
	if _, ok := f.store.Snapshot().Expense(e.ID); !ok {
		t.Fatalf("expense removed")
	}
}

func TestAnyMemberMayDeleteAnyExpense(t *testing.T) {
	f := newFixture(t)
	f.register("Alice", "alice@example.com")
	e := f.addExpense("Dinner", 6000, core.Food)
	f.apply(&Logout{})

	f.register("Bob", "bob@example.com")
	s := f.apply(&DeleteExpense{ExpenseID: e.ID})
	if _, ok := s.Expense(e.ID); ok {
		t.Fatalf("expense not removed")
	}

	// idempotent
	before := f.store.Snapshot().Version
	s = f.apply(&DeleteExpense{ExpenseID: e.ID})
	if s.Version != before {
		t.Fatalf("repeated delete produced a new snapshot")
	}
}

func TestBulkDeleteIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.loginAdmin()
	home := f.addExpense("Power", 8000, core.Utilities)

	create := &CreateWorkspace{Name: "Office", Budget: core.Money{Cents: 100000}}
	f.apply(create)
	office := f.addExpense("Paper", 900, core.Shopping)
	f.apply(&Logout{})

	f.register("Bob", "bob@example.com")
	f.reject(&DeleteExpenses{ExpenseIDs: []string{home.ID, office.ID}}, core.ErrPermissionDenied)
	s := f.store.Snapshot()
	if _, ok := s.Expense(home.ID); !ok {
		t.Fatalf("partial delete happened")
	}

	bulk := &DeleteExpenses{ExpenseIDs: []string{home.ID, "missing"}}
	s = f.apply(bulk)
	if bulk.Removed != 1 {
		t.Fatalf("removed %d, want 1", bulk.Removed)
	}
	if _, ok := s.Expense(home.ID); ok {
		t.Fatalf("expense not removed")
	}
}

func TestUpdateWorkspaceSettings(t *testing.T) {
	f := newFixture(t)
	f.loginAdmin()

	zero := core.Money{Cents: 0}
	f.reject(&UpdateWorkspaceSettings{WorkspaceID: f.wsID, Budget: &zero}, core.ErrValidation)
	neg := core.Money{Cents: -100}
	f.reject(&UpdateWorkspaceSettings{WorkspaceID: f.wsID, Budget: &neg}, core.ErrValidation)
	empty := " "
	f.reject(&UpdateWorkspaceSettings{WorkspaceID: f.wsID, CurrencySymbol: &empty}, core.ErrValidation)
	f.reject(&UpdateWorkspaceSettings{WorkspaceID: "nowhere"}, core.ErrNotFound)

	budget := core.Money{Cents: 150000}
	euro := "€"
	s := f.apply(&UpdateWorkspaceSettings{WorkspaceID: f.wsID, Budget: &budget, CurrencySymbol: &euro})
	ws, _ := s.Workspace(f.wsID)
	if ws.Budget != budget || ws.CurrencySymbol != "€" || ws.Name != core.DefaultWorkspaceName {
		t.Fatalf("unexpected settings %+v", ws)
	}

	f.apply(&Logout{})
	f.register("Bob", "bob@example.com")
	f.reject(&UpdateWorkspaceSettings{WorkspaceID: f.wsID, Budget: &budget}, core.ErrPermissionDenied)
}

func TestUpdateOwnTheme(t *testing.T) {
	f := newFixture(t)
	before := f.store.Snapshot()
	s := f.apply(&UpdateOwnTheme{Color: "#000000"})
	if !reflect.DeepEqual(before, s) {
		t.Fatalf("theme change without active user altered state")
	}

	f.loginAdmin()
	s = f.apply(&UpdateOwnTheme{Color: "#ff0000"})
	if u, _ := s.User(f.adminID); u.ThemeColor != "#ff0000" {
		t.Fatalf("theme not applied: %q", u.ThemeColor)
	}
}

func TestSwitchWorkspaceAndView(t *testing.T) {
	f := newFixture(t)
	f.loginAdmin()
	create := &CreateWorkspace{Name: "Trip", Budget: core.Money{Cents: 1000}}
	s := f.apply(create)
	if s.CurrentWorkspaceID != create.WorkspaceID {
		t.Fatalf("create did not switch workspace")
	}
	s = f.apply(&SwitchWorkspace{WorkspaceID: f.wsID})
	if s.CurrentWorkspaceID != f.wsID {
		t.Fatalf("switch failed")
	}
	f.apply(&Logout{})

	f.register("Bob", "bob@example.com")
	f.reject(&SwitchWorkspace{WorkspaceID: create.WorkspaceID}, core.ErrPermissionDenied)

	s = f.apply(&SetActiveView{View: core.ViewTransactions})
	if s.ActiveView != core.ViewTransactions {
		t.Fatalf("view not set")
	}
	f.reject(&SetActiveView{View: "charts"}, core.ErrValidation)
}

func TestResetCredential(t *testing.T) {
	f := newFixture(t)
	bob := f.register("Bob", "bob@example.com")
	f.apply(&Logout{})

	f.reject(&ResetCredential{TargetID: bob, NewSecret: "new-secret", MasterSecret: "guess"}, core.ErrPermissionDenied)
	f.reject(&ResetCredential{TargetID: bob, NewSecret: "new-secret"}, core.ErrPermissionDenied)

	f.apply(&ResetCredential{TargetID: bob, NewSecret: "new-secret", MasterSecret: "master-secret"})
	f.apply(&Authenticate{Identifier: bob, Secret: "new-secret"})
	f.apply(&Logout{})

	f.loginAdmin()
	f.apply(&ResetCredential{TargetID: bob, NewSecret: "other-secret"})
	f.reject(&ResetCredential{TargetID: "ghost", NewSecret: "other-secret"}, core.ErrNotFound)
	f.apply(&Logout{})
	f.reject(&Authenticate{Identifier: bob, Secret: "new-secret"}, core.ErrInvalidCredentials)
}

func TestApplyPersistsAndPublishes(t *testing.T) {
	f := newFixture(t)
	f.loginAdmin()
	e := f.addExpense("Fuel", 6000, core.Transportation)

	if n := len(f.persister.saved); n != 2 {
		t.Fatalf("expected 2 saves, got %d", n)
	}
	last := f.persister.saved[len(f.persister.saved)-1]
	if last.Version != 2 || last.Expenses[0].ID != e.ID {
		t.Fatalf("saved snapshot is not the committed one: version=%d", last.Version)
	}
	if n := len(f.publisher.events); n != 2 {
		t.Fatalf("expected 2 events, got %d", n)
	}
	ev := f.publisher.events[1]
	if ev.Transition != "add_expense" || ev.WorkspaceID != f.wsID || ev.ActorID != f.adminID || ev.Version != 2 {
		t.Fatalf("unexpected event %+v", ev)
	}

	// rejected transitions are neither saved nor published
	f.reject(&DeleteUser{TargetID: f.adminID}, core.ErrSelfDeletionForbidden)
	if len(f.persister.saved) != 2 || len(f.publisher.events) != 2 {
		t.Fatalf("rejected transition leaked to side channels")
	}
}

func TestDeleteEventsNameTheExpenseWorkspace(t *testing.T) {
	f := newFixture(t)
	f.loginAdmin()
	home := f.addExpense("Power", 8000, core.Utilities)
	rent := f.addExpense("Rent", 90000, core.Housing)

	create := &CreateWorkspace{Name: "Office", Budget: core.Money{Cents: 100000}}
	f.apply(create)
	office := f.addExpense("Paper", 900, core.Shopping)
	if cur := f.store.Snapshot().CurrentWorkspaceID; cur != create.WorkspaceID {
		t.Fatalf("current workspace = %s, want %s", cur, create.WorkspaceID)
	}

	last := func() Event {
		t.Helper()
		return f.publisher.events[len(f.publisher.events)-1]
	}

	f.apply(&DeleteExpense{ExpenseID: home.ID})
	if ev := last(); ev.Transition != "delete_expense" || ev.WorkspaceID != f.wsID {
		t.Fatalf("single delete event = %+v, want workspace %s", ev, f.wsID)
	}

	f.apply(&DeleteExpenses{ExpenseIDs: []string{rent.ID, office.ID}})
	if ev := last(); ev.Transition != "delete_expenses" || ev.WorkspaceID != "" {
		t.Fatalf("cross-workspace batch event = %+v, want empty workspace", ev)
	}
}

func TestApplyReportsPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.persister.err = errors.New("disk full")
	f.publisher.err = errors.New("broker down")

	s, err := f.store.Apply(context.Background(), &Authenticate{Identifier: f.adminID, Secret: adminSecret})
	if !errors.Is(err, ErrNotPersisted) {
		t.Fatalf("expected ErrNotPersisted, got %v", err)
	}
	if s.ActiveUserID != f.adminID || f.store.Snapshot().ActiveUserID != f.adminID {
		t.Fatalf("in-memory commit lost")
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	f := newFixture(t)
	snap := f.store.Snapshot()
	snap.Users[0].Name = "mutated"
	snap.Workspaces[0].MemberIDs = nil
	if f.store.Snapshot().Users[0].Name == "mutated" {
		t.Fatalf("snapshot aliases store state")
	}
}

func TestNewStoreRejectsInvalidState(t *testing.T) {
	if _, err := NewStore(core.AppState{}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
