package credentials

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/usagebar/internal/models"
)

var orgIDFormat = regexp.MustCompile(`^[a-f0-9-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("orgid", func(fl validator.FieldLevel) bool {
		return orgIDFormat.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("credentials: register orgid validation: %v", err))
	}
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		bundle := sl.Current().Interface().(models.CredentialBundle)
		if len(bundle.Cookies) > 0 && bundle.SessionKey() == "" {
			sl.ReportError(bundle.Cookies, "Cookies", "cookies", "sessionkey", "")
		}
	}, models.CredentialBundle{})
	return v
}

// Validate checks the bundle invariants: organization id present and well formed,
// at least one cookie, and a non-empty sessionKey cookie.
func Validate(bundle *models.CredentialBundle) error {
	if bundle == nil {
		return errors.New("credential bundle is nil")
	}
	if err := validate.Struct(bundle); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid credential bundle: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid credential bundle: %w", err)
	}
	return nil
}
