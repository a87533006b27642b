package api

import (
	"errors"
	"io"
	"net/http"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/deepviewml/deepview-go/pkg/deepviewrt"
)

const headerRequestID = "X-Request-Id"

// requestID tags every request with an id, reusing the client's when it
// sent one. Error envelopes echo it back.
func requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		id := c.Request().Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Response().Header().Set(headerRequestID, id)
		return next(c)
	}
}

func writeJSON(c *echo.Context, status int, v any) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	res.WriteHeader(status)
	return gojson.NewEncoder(res).Encode(v)
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	if err := gojson.NewDecoder(r).Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func writeError(c *echo.Context, status int, code, msg string) error {
	return writeJSON(c, status, map[string]any{
		"error": map[string]string{
			"code":       code,
			"message":    msg,
			"request_id": c.Response().Header().Get(headerRequestID),
		},
	})
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg)
}

// writeRuntimeError renders any error from the runner or the bindings.
// Native runtime failures surface their code string; everything else
// maps onto the generic envelope codes.
func writeRuntimeError(c *echo.Context, err error) error {
	var native *deepviewrt.NativeError
	switch {
	case errors.Is(err, deepviewrt.ErrNoModel),
		errors.Is(err, deepviewrt.ErrLayerNotFound):
		return writeNotFound(c, err.Error())
	case errors.Is(err, ErrBadInput):
		return writeBadRequest(c, err.Error())
	case errors.Is(err, ErrMismatch):
		return writeError(c, http.StatusConflict, "conflict_error", err.Error())
	case errors.As(err, &native):
		return writeError(c, nativeStatus(native.Code), native.Code.String(), err.Error())
	}
	var wrapper *deepviewrt.WrapperError
	if errors.As(err, &wrapper) {
		return writeBadRequest(c, err.Error())
	}
	var system *deepviewrt.SystemError
	if errors.As(err, &system) {
		return writeBadRequest(c, err.Error())
	}
	return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
}

func nativeStatus(code deepviewrt.ErrorCode) int {
	switch code {
	case deepviewrt.CodeTypeMismatch, deepviewrt.CodeShapeMismatch,
		deepviewrt.CodeInvalidShape, deepviewrt.CodeInvalidQuant:
		return http.StatusConflict
	case deepviewrt.CodeModelMissing, deepviewrt.CodeMissingResource:
		return http.StatusNotFound
	case deepviewrt.CodeModelInvalid, deepviewrt.CodeInvalidParameter:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
