package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectIDRoundTrip(t *testing.T) {
	var id ObjectID
	id[0] = 0xab
	id[31] = 0xcd

	parsed, err := ParseObjectID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestObjectIDIsZero(t *testing.T) {
	assert.True(t, Zero.IsZero())

	var id ObjectID
	id[5] = 1
	assert.False(t, id.IsZero())
}

func TestParseObjectIDRejectsBadInput(t *testing.T) {
	_, err := ParseObjectID("not-hex")
	require.Error(t, err)

	var invalid *InvalidObjectIDError
	assert.ErrorAs(t, err, &invalid)
}
