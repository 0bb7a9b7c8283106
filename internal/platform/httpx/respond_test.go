package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phoenix-garage/garage/internal/shared"
)

func TestRespondErrorEnvelope(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.NewFieldError("name", "is required"), http.StatusBadRequest},
		{fmt.Errorf("get part: %w", shared.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("insert: %w", shared.ErrConflict), http.StatusConflict},
		{shared.ErrLockTimeout, http.StatusGatewayTimeout},
		{fmt.Errorf("list: %w", shared.ErrStorage), http.StatusServiceUnavailable},
		{shared.ErrPartialReconciliation, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.err.Error())

		var env Envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		require.Equal(t, "error", env.Status)
		require.NotEmpty(t, env.Message)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, ErrBadRequest)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Brake Pad"}`))
	require.NoError(t, DecodeJSON(req, &target))
	require.Equal(t, "Brake Pad", target.Name)
}

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, http.StatusCreated, map[string]string{"jobId": "JC-0001"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.JSONEq(t, `{"status":"success","data":{"jobId":"JC-0001"}}`, rec.Body.String())
}
