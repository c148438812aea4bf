package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"ledgerspace/internal/core"
)

var validate = validator.New()

type profileInput struct {
	Name  string `validate:"required,max=80"`
	Email string `validate:"required,email,max=254"`
}

// validateProfile checks display name and email, reporting the first failing
// field as a core.ErrValidation.
func validateProfile(name, email string) error {
	in := profileInput{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed %q", core.ErrValidation, strings.ToLower(fe.Field()), fe.Tag())
	}
	return fmt.Errorf("%w: %v", core.ErrValidation, err)
}
