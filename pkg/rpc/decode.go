package rpc

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/Goden-Gun/ezadmin/pkg/codes"
	"github.com/Goden-Gun/ezadmin/pkg/envelope"
	"github.com/Goden-Gun/ezadmin/pkg/errs"
)

var errEmptyResult = errors.New("remote returned empty result")

// Decode unwraps a remote envelope into its payload.
//
// A status >= 400 is a transport failure whatever the body says. An empty
// body or a null envelope is a transport failure too, since the caller needs
// data. A non-success code becomes *errs.RemoteError with the remote code and
// message untouched.
func Decode[T any](status int, body []byte) (T, error) {
	return decode[T](status, body, false)
}

// DecodeVoid is Decode for calls whose caller expects no payload; an empty
// body is success.
func DecodeVoid(status int, body []byte) error {
	_, err := decode[json.RawMessage](status, body, true)
	return err
}

func decode[T any](status int, body []byte, void bool) (T, error) {
	var zero T
	if status >= 400 {
		return zero, &TransportError{Kind: KindStatus, StatusCode: status}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if void {
			return zero, nil
		}
		return zero, &TransportError{Kind: KindEmpty, StatusCode: status, Err: errEmptyResult}
	}
	var res *envelope.Result[T]
	if err := json.Unmarshal(body, &res); err != nil {
		return zero, &TransportError{Kind: KindDecode, StatusCode: status, Err: err}
	}
	if res == nil {
		return zero, &TransportError{Kind: KindEmpty, StatusCode: status, Err: errEmptyResult}
	}
	if res.Code() != codes.SuccessCode {
		return zero, &errs.RemoteError{Code: res.Code(), Message: res.Message(), TraceID: res.TraceID()}
	}
	return res.Data(), nil
}
