package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateUserHashesPassword(t *testing.T) {
	user, err := CreateUser("jane", "jane@example.com", "secret123", ROLE_FREELANCER)
	assert.NoError(t, err)
	assert.NotEqual(t, "secret123", user.Password)
	assert.True(t, user.CheckPassword("secret123"))
	assert.False(t, user.CheckPassword("wrong"))
	assert.Equal(t, STATUS_INACTIVE, user.Status)
	assert.True(t, user.IsFreelancer())
	assert.False(t, user.IsCreator())
}

func TestCreateUserRejectsInvalidInput(t *testing.T) {
	_, err := CreateUser("j", "not-an-email", "secret123", ROLE_CREATOR)
	assert.Error(t, err)

	_, err = CreateUser("jane", "jane@example.com", "secret123", "superuser")
	assert.Error(t, err)
}

func TestGenerateActivationToken(t *testing.T) {
	user, err := CreateUser("jane", "jane@example.com", "secret123", ROLE_CREATOR)
	assert.NoError(t, err)

	assert.NoError(t, user.GenerateActivationToken())
	assert.NotEmpty(t, user.ActivationToken)
	assert.NotNil(t, user.ActivationSentAt)

	first := user.ActivationToken
	assert.NoError(t, user.GenerateActivationToken())
	assert.NotEqual(t, first, user.ActivationToken)
}
