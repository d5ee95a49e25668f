package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestPromoCodeSchema_StringListColumns(t *testing.T) {
	s, err := schema.Parse(&PromoCode{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	for _, name := range []string{"ProductIDs", "Categories"} {
		field := s.LookUpField(name)
		require.NotNil(t, field, name)
		assert.Equal(t, schema.DataType("text"), field.DataType, name)
	}

	active := s.LookUpField("IsActive")
	require.NotNil(t, active)
	assert.False(t, active.HasDefaultValue, "inactive codes must be written as false")
}
