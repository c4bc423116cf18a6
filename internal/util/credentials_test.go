package util

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stubPassword(value string, err error) func() (string, error) {
	return func() (string, error) { return value, err }
}

func TestPromptCredentialsKeepsProvidedValues(t *testing.T) {
	var out strings.Builder
	username, password, err := PromptCredentials("me@example.com", "hunter2",
		strings.NewReader(""), &out, stubPassword("", errors.New("should not be called")))

	assert.NoError(t, err)
	assert.Equal(t, "me@example.com", username)
	assert.Equal(t, "hunter2", password)
	assert.Empty(t, out.String(), "nothing prompted when both values are set")
}

func TestPromptCredentialsReadsMissingValues(t *testing.T) {
	var out strings.Builder
	username, password, err := PromptCredentials("", "",
		strings.NewReader("me@example.com\n"), &out, stubPassword("hunter2", nil))

	assert.NoError(t, err)
	assert.Equal(t, "me@example.com", username)
	assert.Equal(t, "hunter2", password)
	assert.Contains(t, out.String(), "email")
	assert.Contains(t, out.String(), "Password")
}

func TestPromptCredentialsPasswordOnly(t *testing.T) {
	var out strings.Builder
	username, password, err := PromptCredentials("me@example.com", "",
		strings.NewReader(""), &out, stubPassword("hunter2", nil))

	assert.NoError(t, err)
	assert.Equal(t, "me@example.com", username)
	assert.Equal(t, "hunter2", password)
	assert.NotContains(t, out.String(), "email")
}

func TestPromptCredentialsEmptyInputFails(t *testing.T) {
	var out strings.Builder
	_, _, err := PromptCredentials("", "",
		strings.NewReader("\n"), &out, stubPassword("", nil))
	assert.Error(t, err)

	_, _, err = PromptCredentials("me@example.com", "",
		strings.NewReader(""), &out, stubPassword("", nil))
	assert.Error(t, err)
}

func TestPromptCredentialsPasswordReadError(t *testing.T) {
	var out strings.Builder
	_, _, err := PromptCredentials("me@example.com", "",
		strings.NewReader(""), &out, stubPassword("", errors.New("not a terminal")))
	assert.ErrorContains(t, err, "not a terminal")
}
