package refreshtoken

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientValue(t *testing.T) {
	v, ok := Some("10.0.0.1").Get()
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.1", v)

	assert.False(t, Some("").IsSet())
	assert.False(t, None().IsSet())
	assert.Equal(t, None(), ClientValue{})
}

func TestClientValue_SQL(t *testing.T) {
	v, err := None().Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = Some("UA1").Value()
	require.NoError(t, err)
	assert.Equal(t, "UA1", v)

	var c ClientValue
	require.NoError(t, c.Scan([]byte("UA1")))
	assert.Equal(t, Some("UA1"), c)
	require.NoError(t, c.Scan(nil))
	assert.False(t, c.IsSet())
	assert.Error(t, c.Scan(42))
}

func TestClientValue_JSON(t *testing.T) {
	data, err := json.Marshal(TokenMetadata{IPAddress: Some("10.0.0.1")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"IPAddress":"10.0.0.1","UserAgent":null,"SessionID":""}`, string(data))

	var md TokenMetadata
	require.NoError(t, json.Unmarshal(data, &md))
	assert.Equal(t, Some("10.0.0.1"), md.IPAddress)
	assert.False(t, md.UserAgent.IsSet())
}

func TestRefreshToken_ExpiredAt(t *testing.T) {
	rec := &RefreshToken{ExpiresAt: baseTime}

	assert.False(t, rec.ExpiredAt(baseTime.Add(-time.Millisecond)))
	assert.True(t, rec.ExpiredAt(baseTime))
	assert.True(t, rec.ExpiredAt(baseTime.Add(time.Millisecond)))
}

func TestRefreshToken_Clone(t *testing.T) {
	parent := "p1"
	rec := &RefreshToken{ID: "c1", ParentToken: &parent}

	c := rec.clone()
	*c.ParentToken = "changed"

	assert.Equal(t, "p1", *rec.ParentToken)
	assert.False(t, c.IsRoot())
	assert.True(t, (&RefreshToken{}).IsRoot())
}
