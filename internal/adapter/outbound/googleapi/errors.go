package googleapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"mediaenrich/internal/application/common/slogger"
	"mediaenrich/internal/port/outbound"
)

// ErrorResponse is the standard Google API error envelope.
type ErrorResponse struct {
	Error ErrorDetails `json:"error"`
}

// ErrorDetails contains detailed error information.
type ErrorDetails struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// HandleHTTPError converts a non-2xx response into a ServiceError. The body is consumed.
func HandleHTTPError(ctx context.Context, service string, response *http.Response) *outbound.ServiceError {
	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))

	var apiErrorMessage string
	if readErr == nil && len(body) > 0 {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			apiErrorMessage = errorResp.Error.Message
		}
	}

	slogger.Error(ctx, "HTTP error received from Google API", slogger.Fields{
		"service":         service,
		"status_code":     response.StatusCode,
		"status":          response.Status,
		"response_length": len(body),
		"api_message":     apiErrorMessage,
	})

	withDetail := func(message string) string {
		if apiErrorMessage != "" {
			return fmt.Sprintf("%s: %s", message, apiErrorMessage)
		}
		return message
	}

	serviceErr := &outbound.ServiceError{
		Service:    service,
		StatusCode: response.StatusCode,
		RequestID:  response.Request.Header.Get("X-Request-ID"),
	}

	switch response.StatusCode {
	case http.StatusUnauthorized:
		serviceErr.Code = "unauthorized"
		serviceErr.Type = "auth"
		serviceErr.Message = withDetail(fmt.Sprintf("Authentication failed (HTTP %d)", response.StatusCode))

	case http.StatusForbidden:
		serviceErr.Code = "access_denied"
		serviceErr.Type = "auth"
		serviceErr.Message = withDetail(fmt.Sprintf("Access denied (HTTP %d). Check credentials and permissions", response.StatusCode))

	case http.StatusTooManyRequests:
		message := fmt.Sprintf("Rate limit exceeded (HTTP %d)", response.StatusCode)
		if retryAfter := response.Header.Get("Retry-After"); retryAfter != "" {
			message = fmt.Sprintf("%s. Retry after %s seconds", message, retryAfter)
		}
		serviceErr.Code = "rate_limit_exceeded"
		serviceErr.Type = "quota"
		serviceErr.Message = withDetail(message)
		serviceErr.Retryable = true

	case http.StatusBadRequest:
		serviceErr.Code = "invalid_request"
		serviceErr.Type = "validation"
		serviceErr.Message = withDetail(fmt.Sprintf("Bad request (HTTP %d)", response.StatusCode))

	case http.StatusRequestTimeout:
		serviceErr.Code = "request_timeout"
		serviceErr.Type = "network"
		serviceErr.Message = withDetail(fmt.Sprintf("Request timeout (HTTP %d)", response.StatusCode))
		serviceErr.Retryable = true

	default:
		serviceErr.Code = "http_error"
		serviceErr.Type = "server"
		serviceErr.Message = withDetail(fmt.Sprintf("HTTP error: %s", response.Status))
		serviceErr.Retryable = response.StatusCode >= 500
		if serviceErr.Retryable {
			serviceErr.Code = "server_error"
		}
	}

	return serviceErr
}

// HandleNetworkError converts a transport failure into a retryable ServiceError.
func HandleNetworkError(service string, err error) *outbound.ServiceError {
	if errors.Is(err, context.Canceled) {
		return &outbound.ServiceError{
			Service:   service,
			Code:      "request_canceled",
			Type:      "network",
			Message:   "request was canceled",
			Retryable: true,
			Cause:     err,
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &outbound.ServiceError{
			Service:   service,
			Code:      "connection_timeout",
			Type:      "network",
			Message:   "connection timeout",
			Retryable: true,
			Cause:     err,
		}
	}

	if strings.Contains(err.Error(), "connection refused") {
		return &outbound.ServiceError{
			Service:   service,
			Code:      "connection_refused",
			Type:      "network",
			Message:   "connection refused",
			Retryable: true,
			Cause:     err,
		}
	}

	return &outbound.ServiceError{
		Service:   service,
		Code:      "network_error",
		Type:      "network",
		Message:   "request failed",
		Retryable: true,
		Cause:     err,
	}
}
