package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"ledgerspace/internal/advisor"
	"ledgerspace/internal/core"
	"ledgerspace/internal/ledger"
	"ledgerspace/internal/query"
	"ledgerspace/internal/ratelimit"
	"ledgerspace/internal/services"
	"ledgerspace/internal/trace"
)

// errUsage marks a malformed command line; main exits with status 2.
var errUsage = errors.New("usage")

// app is what every command runs against. logins and tracer are optional.
type app struct {
	store    *ledger.Store
	expenses *services.ExpenseService
	logins   *ratelimit.Limiter
	tracer   *trace.Tracer
	out      io.Writer
}

type command struct {
	summary string
	run     func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error
}

var commands = map[string]command{
	"register":         {"register -name N -email E -secret S", cmdRegister},
	"login":            {"login -id EMAIL_OR_ID -secret S", cmdLogin},
	"logout":           {"logout", cmdLogout},
	"whoami":           {"whoami", cmdWhoami},
	"profile":          {"profile [-user ID] [-name N] [-email E] [-avatar REF]", cmdProfile},
	"theme":            {"theme -color HEX", cmdTheme},
	"users":            {"users", cmdUsers},
	"delete-user":      {"delete-user -user ID", cmdDeleteUser},
	"reset-credential": {"reset-credential -user ID -secret NEW [-master SECRET]", cmdResetCredential},
	"workspaces":       {"workspaces", cmdWorkspaces},
	"workspace-create": {"workspace-create -name N [-currency $] -budget 1000.00", cmdWorkspaceCreate},
	"switch":           {"switch -workspace ID", cmdSwitch},
	"members":          {"members -workspace ID -user ID", cmdMembers},
	"settings":         {"settings [-workspace ID] [-name N] [-currency C] [-budget B]", cmdSettings},
	"view":             {"view -view NAME", cmdView},
	"add":              {"add -desc D -amount 12.50 [-category C] [-date YYYY-MM-DD] [-workspace ID]", cmdAdd},
	"delete":           {"delete -id ID", cmdDelete},
	"bulk-delete":      {"bulk-delete ID [ID...]", cmdBulkDelete},
	"list":             {"list [-workspace ID] [-q TERM] [-category C] [-sort KEY] [-dir asc|desc]", cmdList},
	"summary":          {"summary [-workspace ID]", cmdSummary},
	"categorize":       {"categorize -text T [-desc D] [-amount A] [-category C] [-save] [-date YYYY-MM-DD]", cmdCategorize},
	"advise":           {"advise [-workspace ID]", cmdAdvise},
}

func usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "usage: ledgerspace <command> [flags]")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].summary)
	}
}

// dispatch runs one command line against a.
func dispatch(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if a.tracer == nil {
		return cmd.run(ctx, a, fs, args[1:])
	}
	return a.tracer.Run(ctx, args[0], func(ctx context.Context) error {
		return cmd.run(ctx, a, fs, args[1:])
	})
}

// throttle spends one credential attempt for key.
func (a *app) throttle(key string) error {
	if a.logins != nil && !a.logins.Allow(key) {
		return fmt.Errorf("%w: too many attempts for %s, try again in a minute", core.ErrPermissionDenied, key)
	}
	return nil
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: -%s is required", errUsage, name)
	}
	return nil
}

func parseAmount(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("amount %q: %w", s, err)
	}
	return core.Money{Cents: cents}, nil
}

func parseDate(s string) (*core.Date, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q must be YYYY-MM-DD", core.ErrValidation, s)
	}
	d := core.NewDate(t.Year(), int(t.Month()), t.Day())
	return &d, nil
}

func parseCategory(s string) (core.Category, error) {
	if s == "" {
		return "", nil
	}
	return core.ParseCategory(s)
}

// memberWorkspace resolves id (or the current workspace) and requires the
// active user to be on its roster.
func memberWorkspace(s core.AppState, id string) (core.Workspace, error) {
	if id == "" {
		id = s.CurrentWorkspaceID
	}
	user, ok := s.ActiveUser()
	if !ok {
		return core.Workspace{}, fmt.Errorf("%w: not logged in", core.ErrPermissionDenied)
	}
	ws, ok := s.Workspace(id)
	if !ok {
		return core.Workspace{}, fmt.Errorf("%w: workspace %s", core.ErrNotFound, id)
	}
	if !ledger.IsMember(user, ws) {
		return core.Workspace{}, fmt.Errorf("%w: not a member of %s", core.ErrPermissionDenied, ws.Name)
	}
	return ws, nil
}

func cmdRegister(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	secret := fs.String("secret", "", "password")
	if err := parse(fs, args); err != nil {
		return err
	}
	t := &ledger.RegisterUser{Name: *name, Email: *email, Secret: *secret}
	if _, err := a.store.Apply(ctx, t); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "registered %s (%s)\n", *email, t.UserID)
	return nil
}

func cmdLogin(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	id := fs.String("id", "", "email or user id")
	secret := fs.String("secret", "", "password")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required("id", *id); err != nil {
		return err
	}
	if err := a.throttle(*id); err != nil {
		return err
	}
	s, err := a.store.Apply(ctx, &ledger.Authenticate{Identifier: *id, Secret: *secret})
	if err != nil {
		return err
	}
	if a.logins != nil {
		a.logins.Reset(*id)
	}
	u, _ := s.ActiveUser()
	fmt.Fprintf(a.out, "logged in as %s <%s>\n", u.Name, u.Email)
	return nil
}

func cmdLogout(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	if _, err := a.store.Apply(ctx, &ledger.Logout{}); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func cmdWhoami(_ context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	s := a.store.Snapshot()
	u, ok := s.ActiveUser()
	if !ok {
		fmt.Fprintln(a.out, "not logged in")
		return nil
	}
	ws, _ := s.CurrentWorkspace()
	fmt.Fprintf(a.out, "%s <%s> %s, workspace %s, view %s\n", u.Name, u.Email, u.Role, ws.Name, s.ActiveView)
	return nil
}

func cmdProfile(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	user := fs.String("user", "", "user id (default: yourself)")
	name := fs.String("name", "", "new display name")
	email := fs.String("email", "", "new email")
	avatar := fs.String("avatar", "", "avatar reference")
	if err := parse(fs, args); err != nil {
		return err
	}
	// omitted flags keep the current values
	if me, ok := a.store.Snapshot().ActiveUser(); ok {
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if !set["name"] {
			*name = me.Name
		}
		if !set["email"] {
			*email = me.Email
		}
		if !set["avatar"] {
			*avatar = me.AvatarRef
		}
	}
	t := &ledger.UpdateOwnProfile{UserID: *user, Name: *name, Email: *email, AvatarRef: *avatar}
	if _, err := a.store.Apply(ctx, t); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "profile updated; %d expenses and %d rosters refreshed\n", t.Report.Expenses, t.Report.Rosters)
	return nil
}

func cmdTheme(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	color := fs.String("color", "", "theme color")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required("color", *color); err != nil {
		return err
	}
	_, err := a.store.Apply(ctx, &ledger.UpdateOwnTheme{Color: *color})
	return err
}

func cmdUsers(_ context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	s := a.store.Snapshot()
	me, ok := s.ActiveUser()
	if !ok || !ledger.RequireAdmin(me) {
		return fmt.Errorf("%w: the user directory is admin only", core.ErrPermissionDenied)
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE")
	for _, u := range s.Users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
	}
	return tw.Flush()
}

func cmdDeleteUser(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	user := fs.String("user", "", "user id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required("user", *user); err != nil {
		return err
	}
	if _, err := a.store.Apply(ctx, &ledger.DeleteUser{TargetID: *user}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted user %s\n", *user)
	return nil
}

func cmdResetCredential(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	user := fs.String("user", "", "user id")
	secret := fs.String("secret", "", "new password")
	master := fs.String("master", "", "master secret, when not logged in as admin")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required("user", *user); err != nil {
		return err
	}
	if *master != "" {
		if err := a.throttle("master:" + *user); err != nil {
			return err
		}
	}
	if _, err := a.store.Apply(ctx, &ledger.ResetCredential{TargetID: *user, NewSecret: *secret, MasterSecret: *master}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "credential reset for %s\n", *user)
	return nil
}

func cmdWorkspaces(_ context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	s := a.store.Snapshot()
	me, _ := s.ActiveUser()
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tBUDGET\tMEMBERS\t")
	for _, ws := range s.Workspaces {
		if !ledger.IsMember(me, ws) && !ledger.RequireAdmin(me) {
			continue
		}
		marker := ""
		if ws.ID == s.CurrentWorkspaceID {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", ws.ID, ws.Name, ws.Budget.Format(ws.CurrencySymbol), len(ws.MemberIDs), marker)
	}
	return tw.Flush()
}

func cmdWorkspaceCreate(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	name := fs.String("name", "", "workspace name")
	currency := fs.String("currency", core.DefaultCurrencySymbol, "currency symbol")
	budget := fs.String("budget", "", "monthly budget limit")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required("budget", *budget); err != nil {
		return err
	}
	limit, err := parseAmount(*budget)
	if err != nil {
		return err
	}
	t := &ledger.CreateWorkspace{Name: *name, CurrencySymbol: *currency, Budget: limit}
	if _, err := a.store.Apply(ctx, t); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created workspace %s (%s)\n", *name, t.WorkspaceID)
	return nil
}

func cmdSwitch(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	ws := fs.String("workspace", "", "workspace id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required("workspace", *ws); err != nil {
		return err
	}
	_, err := a.store.Apply(ctx, &ledger.SwitchWorkspace{WorkspaceID: *ws})
	return err
}

func cmdMembers(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	ws := fs.String("workspace", "", "workspace id")
	user := fs.String("user", "", "user id to add or remove")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required("user", *user); err != nil {
		return err
	}
	if *ws == "" {
		*ws = a.store.Snapshot().CurrentWorkspaceID
	}
	t := &ledger.ToggleWorkspaceMembership{WorkspaceID: *ws, UserID: *user}
	if _, err := a.store.Apply(ctx, t); err != nil {
		return err
	}
	verb := "removed from"
	if t.Added {
		verb = "added to"
	}
	fmt.Fprintf(a.out, "%s %s %s\n", *user, verb, *ws)
	return nil
}

func cmdSettings(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	ws := fs.String("workspace", "", "workspace id (default: current)")
	name := fs.String("name", "", "new name")
	currency := fs.String("currency", "", "new currency symbol")
	budget := fs.String("budget", "", "new budget limit")
	if err := parse(fs, args); err != nil {
		return err
	}
	t := &ledger.UpdateWorkspaceSettings{WorkspaceID: *ws}
	if t.WorkspaceID == "" {
		t.WorkspaceID = a.store.Snapshot().CurrentWorkspaceID
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			t.Name = name
		case "currency":
			t.CurrencySymbol = currency
		}
	})
	if *budget != "" {
		limit, err := parseAmount(*budget)
		if err != nil {
			return err
		}
		t.Budget = &limit
	}
	_, err := a.store.Apply(ctx, t)
	return err
}

func cmdView(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	view := fs.String("view", "", "dashboard, transactions, members, settings, profile or insights")
	if err := parse(fs, args); err != nil {
		return err
	}
	_, err := a.store.Apply(ctx, &ledger.SetActiveView{View: core.View(strings.ToLower(*view))})
	return err
}

func cmdAdd(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	desc := fs.String("desc", "", "description")
	amount := fs.String("amount", "", "amount, e.g. 12.50")
	category := fs.String("category", "", "category (default Other)")
	date := fs.String("date", "", "date YYYY-MM-DD (default today)")
	ws := fs.String("workspace", "", "workspace id (default: current)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required("amount", *amount); err != nil {
		return err
	}
	money, err := parseAmount(*amount)
	if err != nil {
		return err
	}
	cat, err := parseCategory(*category)
	if err != nil {
		return err
	}
	d, err := parseDate(*date)
	if err != nil {
		return err
	}
	t := &ledger.AddExpense{WorkspaceID: *ws, Description: *desc, Amount: money, Category: cat, Date: d}
	if _, err := a.store.Apply(ctx, t); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "added %s %s %s (%s)\n", t.Created.Date.Format("2006-01-02"), t.Created.Amount, t.Created.Description, t.Created.ID)
	return nil
}

func cmdDelete(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	id := fs.String("id", "", "expense id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required("id", *id); err != nil {
		return err
	}
	_, err := a.store.Apply(ctx, &ledger.DeleteExpense{ExpenseID: *id})
	return err
}

func cmdBulkDelete(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: at least one expense id is required", errUsage)
	}
	t := &ledger.DeleteExpenses{ExpenseIDs: fs.Args()}
	if _, err := a.store.Apply(ctx, t); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %d expenses\n", t.Removed)
	return nil
}

func cmdList(_ context.Context, a *app, fs *flag.FlagSet, args []string) error {
	wsID := fs.String("workspace", "", "workspace id (default: current)")
	term := fs.String("q", "", "search description or owner")
	category := fs.String("category", "", "category filter (All for none)")
	key := fs.String("sort", "date", "date, amount, description, category or owner")
	dir := fs.String("dir", "desc", "asc or desc")
	if err := parse(fs, args); err != nil {
		return err
	}
	s := a.store.Snapshot()
	ws, err := memberWorkspace(s, *wsID)
	if err != nil {
		return err
	}
	cat, err := parseCategory(*category)
	if err != nil {
		return err
	}
	k, err := query.ParseSortKey(*key)
	if err != nil {
		return err
	}
	d, err := query.ParseDirection(*dir)
	if err != nil {
		return err
	}
	rows := query.View(s.Expenses, query.Filter{WorkspaceID: ws.ID, Term: *term, Category: cat, Key: k, Direction: d})

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tAMOUNT\tCATEGORY\tDESCRIPTION\tOWNER\tID")
	for _, e := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Date.Format("2006-01-02"), e.Amount.Format(ws.CurrencySymbol), e.Category, e.Description, e.OwnerName, e.ID)
	}
	return tw.Flush()
}

func cmdSummary(_ context.Context, a *app, fs *flag.FlagSet, args []string) error {
	wsID := fs.String("workspace", "", "workspace id (default: current)")
	if err := parse(fs, args); err != nil {
		return err
	}
	s := a.store.Snapshot()
	ws, err := memberWorkspace(s, *wsID)
	if err != nil {
		return err
	}
	o := query.Summary(ws, s.Expenses)
	sym := o.CurrencySymbol
	fmt.Fprintf(a.out, "%s: spent %s of %s (%.1f%%), remaining %s\n",
		ws.Name, o.Total.Format(sym), o.Budget.Format(sym), o.Percentage, o.Remaining.Format(sym))
	if o.OverBudget() {
		fmt.Fprintln(a.out, "over budget")
	}
	for _, c := range o.ByCategory {
		fmt.Fprintf(a.out, "  %-15s %s\n", c.Category, c.Amount.Format(sym))
	}
	return nil
}

func cmdCategorize(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	text := fs.String("text", "", "free text describing the expense")
	desc := fs.String("desc", "", "draft description")
	amount := fs.String("amount", "", "draft amount")
	category := fs.String("category", "", "draft category")
	save := fs.Bool("save", false, "record the merged draft as an expense")
	date := fs.String("date", "", "date YYYY-MM-DD when saving")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required("text", *text); err != nil {
		return err
	}
	draft := advisor.Draft{Description: *desc}
	if *amount != "" {
		m, err := parseAmount(*amount)
		if err != nil {
			return err
		}
		draft.Amount = m
	}
	cat, err := parseCategory(*category)
	if err != nil {
		return err
	}
	draft.Category = cat

	if !*save {
		merged := a.expenses.Categorize(ctx, *text, draft)
		fmt.Fprintf(a.out, "description: %s\namount: %s\ncategory: %s\n", merged.Description, merged.Amount, merged.Category)
		return nil
	}
	d, err := parseDate(*date)
	if err != nil {
		return err
	}
	e, err := a.expenses.CreateFromText(ctx, *text, draft, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "added %s %s %s (%s)\n", e.Date.Format("2006-01-02"), e.Amount, e.Description, e.ID)
	return nil
}

func cmdAdvise(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	wsID := fs.String("workspace", "", "workspace id (default: current)")
	if err := parse(fs, args); err != nil {
		return err
	}
	advice, err := a.expenses.Advise(ctx, *wsID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, advice)
	return nil
}
