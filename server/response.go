package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/backyard/apierror"
	"github.com/tech-arch1tect/backyard/services/logging"
	"go.uber.org/zap"
)

const (
	MessageSuccess = "success"
	MessageError   = "error"

	MsgServerError = "A server error occurred."
)

// Envelope is the body of every API response.
type Envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
	Error   any    `json:"error"`
}

func Success(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Message: MessageSuccess, Data: data})
}

func OK(c echo.Context, data any) error {
	return Success(c, http.StatusOK, data)
}

// ErrorHandler renders failures into the envelope. *apierror.Error keeps its
// status and detail, echo errors keep their code, anything else is logged
// and answered with a generic 500.
func ErrorHandler(logger *logging.Service) echo.HTTPErrorHandler {
	logger = logger.Named("http")
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, detail := errorDetail(err)
		if status >= http.StatusInternalServerError {
			logger.Error("unhandled error",
				zap.Error(err),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path))
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, Envelope{Message: MessageError, Error: detail})
		}
		if writeErr != nil {
			logger.Error("failed to write error response", zap.Error(writeErr))
		}
	}
}

func errorDetail(err error) (int, any) {
	if apiErr, ok := apierror.As(err); ok {
		return apiErr.Status, apiErr.Detail()
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			return he.Code, []string{MsgServerError}
		}
		message := he.Message
		if message == nil {
			message = http.StatusText(he.Code)
		}
		return he.Code, []string{fmt.Sprint(message)}
	}

	return http.StatusInternalServerError, []string{MsgServerError}
}
