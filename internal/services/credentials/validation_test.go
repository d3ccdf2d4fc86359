package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/usagebar/internal/models"
)

func TestNewValidator_RegistersOrgIDRule(t *testing.T) {
	require.NotPanics(t, func() { newValidator() })

	bundle := &models.CredentialBundle{
		OrganizationID: "ABC-123",
		Cookies:        []models.Cookie{{Name: models.SessionCookieName, Value: "s"}},
	}
	err := Validate(bundle)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"orgid"`)

	bundle.OrganizationID = "abc-123"
	assert.NoError(t, Validate(bundle))
}

func TestValidate_RequiresSessionKey(t *testing.T) {
	err := Validate(&models.CredentialBundle{
		OrganizationID: "abc",
		Cookies:        []models.Cookie{{Name: "other", Value: "v"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sessionkey")

	assert.Error(t, Validate(nil))
}
