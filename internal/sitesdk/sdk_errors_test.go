package sitesdk

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAPIError_MessageFields(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"msg", `{"msg":"from msg"}`, "from msg"},
		{"message", `{"message":"from message"}`, "from message"},
		{"error", `{"error":"from error"}`, "from error"},
		{"details", `{"details":{"msg":"from details"}}`, "from details"},
		{"empty body falls back to status text", ``, "Bad Request"},
		{"garbage body falls back to status text", `<html>nope</html>`, "Bad Request"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			apiErr := parseAPIError(http.StatusBadRequest, []byte(tc.body))
			assert.Equal(t, tc.want, apiErr.Message)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		})
	}
}

func TestParseAPIError_Suggestions(t *testing.T) {
	body := `{"msg":"name already taken","details":{"suggestions":["payments-2","my-payments"]}}`
	apiErr := parseAPIError(http.StatusConflict, []byte(body))

	assert.True(t, apiErr.IsNameTaken())
	assert.Equal(t, []string{"payments-2", "my-payments"}, apiErr.Suggestions)
}

func TestAPIError_Predicates(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 401}).IsAuth())
	assert.True(t, (&APIError{StatusCode: 403}).IsAuth())
	assert.False(t, (&APIError{StatusCode: 500}).IsAuth())

	assert.True(t, (&APIError{StatusCode: 500}).IsServerError())
	assert.False(t, (&APIError{StatusCode: 409}).IsServerError())

	assert.True(t, (&APIError{StatusCode: 400, Message: "name is reserved"}).IsNameTaken())
	assert.False(t, (&APIError{StatusCode: 400, Message: "nope"}).IsNameTaken())
}
