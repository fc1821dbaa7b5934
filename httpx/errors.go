package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/survey-builder/fault"
	"github.com/mbolis/survey-builder/log"
)

// Will log an error, and send an HTTP response with status 500 and default text
func LogInternalError(w http.ResponseWriter, code string, err error) {
	log.Errorf("%s: %s", code, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Will log a debug message, and send an HTTP response with status 404 and default text
func LogNotFound(w http.ResponseWriter, code string, id any) {
	log.Debugf("%s: not found (%v)", code, id)
	http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
}

// Will log an error code at the given level, and send
// an HTTP response with status and default text
func LogStatus(w http.ResponseWriter, status int, level log.Level, code string) {
	log.Log(level, code)
	http.Error(w, http.StatusText(status), status)
}

// Will log an error code and message at the given level,
// and send an HTTP response with the given status and formatted message
func LogStatusMsg(w http.ResponseWriter, status int, level log.Level, code string, msg string, args ...any) {
	errMsg := fmt.Sprintf(msg, args...)
	log.Log(level, code+":", errMsg)
	http.Error(w, errMsg, status)
}

type errorBody struct {
	Error string `json:"error"`
}

// StatusOf maps an error returned by a store onto an HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, fault.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fault.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, fault.ErrUniqueViolation), errors.Is(err, fault.ErrConflict), errors.Is(err, fault.ErrBoundary):
		return http.StatusConflict
	case fault.IsClientError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Fail replies to a failed store operation. Client errors carry their message,
// anything else is logged under code and answered with a generic 500.
func Fail(w http.ResponseWriter, r *http.Request, code string, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		LogInternalError(w, code, err)
		return
	}

	log.Debugf("%s: %v", code, err)
	render.Status(r, status)
	render.JSON(w, r, errorBody{Error: fault.Message(err, http.StatusText(status))})
}

// BadRequest replies 400 with msg.
func BadRequest(w http.ResponseWriter, r *http.Request, msg string, args ...any) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, errorBody{Error: fmt.Sprintf(msg, args...)})
}

// Invalid replies 422 with per-field messages.
func Invalid(w http.ResponseWriter, r *http.Request, fields map[string][]string) {
	render.Status(r, http.StatusUnprocessableEntity)
	render.JSON(w, r, map[string]any{"errors": fields})
}
