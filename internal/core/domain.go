package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

const (
	Food           Category = "Food"
	Transportation Category = "Transportation"
	Housing        Category = "Housing"
	Utilities      Category = "Utilities"
	Entertainment  Category = "Entertainment"
	Healthcare     Category = "Healthcare"
	Shopping       Category = "Shopping"
	Education      Category = "Education"
	Other          Category = "Other"

	// AllCategories is the filter value that matches every category.
	AllCategories Category = "All"
)

const (
	ViewDashboard    View = "dashboard"
	ViewTransactions View = "transactions"
	ViewMembers      View = "members"
	ViewSettings     View = "settings"
	ViewProfile      View = "profile"
	ViewInsights     View = "insights"
)

// DefaultThemeColor is assigned to newly registered users.
const DefaultThemeColor = "#4f46e5"

const maxDescriptionLen = 200

type (
	Role     string
	Category string
	View     string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		Email        string `json:"email"`
		PasswordHash string `json:"passwordHash"`
		AvatarRef    string `json:"avatarRef"`
		Role         Role   `json:"role"`
		ThemeColor   string `json:"themeColor,omitempty"`
	}

	Workspace struct {
		ID             string   `json:"id"`
		Name           string   `json:"name"`
		CurrencySymbol string   `json:"currencySymbol"`
		Budget         Money    `json:"budgetLimit"`
		MemberIDs      []string `json:"memberIds"`
	}

	Expense struct {
		ID          string   `json:"id"`
		Amount      Money    `json:"amount"`
		Description string   `json:"description"`
		Category    Category `json:"category"`
		Date        Date     `json:"date"`
		OwnerID     string   `json:"ownerUserId"`
		OwnerName   string   `json:"ownerName"`
		OwnerAvatar string   `json:"ownerAvatarRef"`
		WorkspaceID string   `json:"workspaceId"`
	}
)

// Categories lists the fixed category enum in display order.
func Categories() []Category {
	return []Category{Food, Transportation, Housing, Utilities, Entertainment, Healthcare, Shopping, Education, Other}
}

// ParseCategory matches s case-insensitively against the enum.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, string(AllCategories)) {
		return AllCategories, nil
	}
	for _, c := range Categories() {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrValidation, s)
}

func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

func (v View) Valid() bool {
	switch v {
	case ViewDashboard, ViewTransactions, ViewMembers, ViewSettings, ViewProfile, ViewInsights:
		return true
	}
	return false
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current UTC date with the time of day preserved, so
// expenses added on the same day keep their insertion order when sorted.
func Today() Date {
	return Date{Time: time.Now().UTC()}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrValidation)
	}
	return nil
}

// isoLayout is RFC 3339 in UTC with a fixed nine-digit fraction. Trailing
// zeros are kept so that lexicographic order of ISO strings is chronological
// order.
const isoLayout = "2006-01-02T15:04:05.000000000Z"

// ISO returns the fixed-width UTC encoding.
func (d Date) ISO() string {
	return d.UTC().Format(isoLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.ISO() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// plain calendar dates are accepted too
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return fmt.Errorf("parse date %q: %w", s, err)
		}
	}
	d.Time = t.UTC()
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description too long (max %d characters)", ErrValidation, maxDescriptionLen)
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, e.Category)
	}
	return nil
}

func (w Workspace) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("%w: workspace name is required", ErrValidation)
	}
	if strings.TrimSpace(w.CurrencySymbol) == "" {
		return fmt.Errorf("%w: currency symbol is required", ErrValidation)
	}
	if w.Budget.Cents <= 0 {
		return ErrInvalidBudget
	}
	if len(w.MemberIDs) == 0 {
		return fmt.Errorf("%w: workspace %s has no members", ErrLastMemberProtection, w.ID)
	}
	return nil
}

// HasMember reports whether userID is on the workspace roster.
func (w Workspace) HasMember(userID string) bool {
	for _, id := range w.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// SameEmail compares addresses the way the directory enforces uniqueness.
func SameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
