package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInstance = `NAME: tiny
SIZE: 3
CAPACITY: 10
NODES
0 0 0 0 0 100 0 0 0
1 3 4 5 0 100 2 1 0
2 6 8 -5 0 100 2 0 1
EDGES
0 5 10
5 0 5
10 5 0
EOF
`

const testSolution = `Instance name : tiny
Authors : tester
Solution
Route 1 : 1 2
Route 2 : 2
`

// newContext builds an echo context for a JSON request with optional path params.
func newContext(method, target string, body interface{}, params map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}

	e := echo.New()
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	names := make([]string, 0, len(params))
	values := make([]string, 0, len(params))
	for k, v := range params {
		names = append(names, k)
		values = append(values, v)
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c, rec
}

func assertAPIError(t *testing.T, err error, status int, code string) *APIError {
	t.Helper()
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok, "expected *APIError, got %T: %v", err, err)
	assert.Equal(t, status, apiErr.Status)
	if code != "" {
		assert.Equal(t, code, apiErr.Code)
	}
	return apiErr
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}
