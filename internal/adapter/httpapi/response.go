package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"reply-orchestrator/internal/domain"
)

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func respondOK(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, envelope{Success: false, Error: &errorBody{
		Kind:    string(domain.KindValidation),
		Message: msg,
	}})
}

func respondError(c echo.Context, err error) error {
	kind := domain.KindOf(err)
	return c.JSON(statusFor(kind), envelope{Success: false, Error: &errorBody{
		Kind:    string(kind),
		Message: err.Error(),
	}})
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindStale:
		return http.StatusConflict
	case domain.KindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
