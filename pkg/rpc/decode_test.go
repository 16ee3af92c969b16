package rpc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Goden-Gun/ezadmin/pkg/errs"
)

type userRoles struct {
	UserID int64    `json:"userId"`
	Roles  []string `json:"roles"`
}

func TestDecodeStatusErrorIgnoresBody(t *testing.T) {
	body := []byte(`{"success":true,"code":200,"message":"success","data":{"userId":1}}`)
	_, err := Decode[userRoles](503, body)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, KindStatus, te.Kind)
	assert.Equal(t, 503, te.StatusCode)
	assert.True(t, te.Retryable())

	_, err = Decode[userRoles](404, body)
	require.True(t, errors.As(err, &te))
	assert.False(t, te.Retryable())
}

func TestDecodeEmptyBody(t *testing.T) {
	assert.NoError(t, DecodeVoid(200, nil))
	assert.NoError(t, DecodeVoid(204, []byte("  ")))

	_, err := Decode[userRoles](200, nil)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, KindEmpty, te.Kind)
}

func TestDecodeNullEnvelope(t *testing.T) {
	_, err := Decode[userRoles](200, []byte("null"))
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, KindEmpty, te.Kind)
	assert.Contains(t, te.Error(), "remote returned empty result")
}

func TestDecodeBusinessFailure(t *testing.T) {
	body := []byte(`{"success":false,"code":1100002,"message":"invalid username or password","data":null,"timestamp":1,"traceId":"t1"}`)
	_, err := Decode[userRoles](200, body)

	var re *errs.RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 1100002, re.Code)
	assert.Equal(t, "invalid username or password", re.Message)
	assert.Equal(t, "t1", re.TraceID)
	assert.False(t, re.Retryable())

	var te *TransportError
	assert.False(t, errors.As(err, &te))
}

func TestDecodeSuccess(t *testing.T) {
	body := []byte(`{"success":true,"code":200,"message":"success","data":{"userId":7,"roles":["admin"]},"timestamp":1,"traceId":"x"}`)
	v, err := Decode[userRoles](200, body)
	require.NoError(t, err)
	assert.Equal(t, userRoles{UserID: 7, Roles: []string{"admin"}}, v)

	err = DecodeVoid(200, []byte(`{"success":true,"code":200,"message":"success","data":null}`))
	assert.NoError(t, err)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode[userRoles](200, []byte(`{"code":`))
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, KindDecode, te.Kind)
	assert.True(t, te.Retryable())
}
