package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionAllows(t *testing.T) {
	assert.True(t, PermissionRead.Allows(PermissionRead))
	assert.False(t, PermissionRead.Allows(PermissionEdit))
	assert.True(t, PermissionEdit.Allows(PermissionRead))
	assert.True(t, PermissionEdit.Allows(PermissionEdit))
}

func TestPermissionValid(t *testing.T) {
	assert.True(t, PermissionRead.Valid())
	assert.True(t, PermissionEdit.Valid())
	assert.False(t, Permission("full").Valid())
	assert.False(t, Permission("").Valid())
}
