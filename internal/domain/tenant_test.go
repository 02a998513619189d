package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTenant(t *testing.T) {
	tenant, err := NewTenant(TenantParams{ID: 7, Name: "Acme", Active: true})
	require.NoError(t, err)
	assert.Equal(t, "Acme", tenant.Name)

	_, err = NewTenant(TenantParams{Name: "Acme"})
	require.Error(t, err)

	_, err = NewTenant(TenantParams{ID: 7, Name: strings.Repeat("x", 101)})
	require.Error(t, err)
}

func TestTenant_WithActive(t *testing.T) {
	tenant := Tenant{ID: 7, Name: "Acme", Active: true}
	off := tenant.WithActive(false)
	assert.False(t, off.Active)
	assert.True(t, tenant.Active)
}
