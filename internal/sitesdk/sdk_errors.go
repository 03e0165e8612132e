package sitesdk

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/imroc/req/v3"
)

var (
	ErrNoServerURL = errors.New("sdk: server url missing")
	ErrNoAPIKey    = errors.New("sdk: api key missing")
)

// APIError is a typed error for non-2xx responses. The server's error body
// is loosely shaped; the message may live under msg, message, error or
// details, and 409 name conflicts carry suggestions under details.
type APIError struct {
	StatusCode  int
	Message     string
	Suggestions []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %d - %s", e.StatusCode, e.Message)
}

// IsAuth reports whether the error is an authentication failure.
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsNameTaken reports whether the server rejected a name as taken or reserved.
func (e *APIError) IsNameTaken() bool {
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "already taken") || strings.Contains(msg, "is reserved")
}

// IsServerError reports a 5xx response.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// errorBody mirrors the loose shapes the server emits for errors.
type errorBody struct {
	Msg     string `json:"msg"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Details struct {
		Msg         string   `json:"msg"`
		Suggestions []string `json:"suggestions"`
	} `json:"details"`
}

func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var parsed errorBody
	if err := jsonUnmarshal(body, &parsed); err == nil {
		switch {
		case parsed.Msg != "":
			apiErr.Message = parsed.Msg
		case parsed.Message != "":
			apiErr.Message = parsed.Message
		case parsed.Error != "":
			apiErr.Message = parsed.Error
		case parsed.Details.Msg != "":
			apiErr.Message = parsed.Details.Msg
		}
		apiErr.Suggestions = parsed.Details.Suggestions
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(statusCode)
	}

	return apiErr
}

// handleAPIError folds transport errors and error-state responses into a
// single error value for an operation.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s: %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		body, _ := resp.ToBytes()
		return fmt.Errorf("%s: %w", operation, parseAPIError(resp.StatusCode, body))
	}

	return nil
}
