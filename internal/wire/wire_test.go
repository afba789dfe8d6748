package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsandbox/signbroker-go/internal/brokererr"
)

func TestError_Conversion(t *testing.T) {
	err := fmt.Errorf("approve 3: %w", brokererr.ErrWrongSecret)

	w := NewError(err)
	require.NotNil(t, w)
	assert.Equal(t, brokererr.CodeWrongSecret, w.Code)

	back := w.Err()
	assert.True(t, errors.Is(back, brokererr.ErrWrongSecret))
	assert.False(t, errors.Is(back, brokererr.ErrCancelled))

	assert.Nil(t, NewError(nil))
	var nilErr *Error
	assert.NoError(t, nilErr.Err())
}

func TestResponse_JSON(t *testing.T) {
	resp := Response{ID: 7, Error: NewError(brokererr.ErrCancelled)}
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"error":{"code":"cancelled","message":"request cancelled"}}`, string(data))

	var decoded Response
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.ErrorIs(t, decoded.Error.Err(), brokererr.ErrCancelled)
}

func TestProblem_Err(t *testing.T) {
	p := &Problem{Status: 409, Title: "Conflict", Code: brokererr.CodeStaleRequest, Detail: "request 4"}
	assert.ErrorIs(t, p.Err(), brokererr.ErrStaleRequest)

	assert.NoError(t, (&Problem{Status: 500}).Err())
}
