package httpx

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/mbolis/quick-survey/log"
)

// Will log an error, and send an HTTP response with status 500 and default text
func LogInternalError(w http.ResponseWriter, code string, err error) {
	log.WithError(err).Error(code)
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

// ErrorBody is what LogValidation sends.
type ErrorBody struct {
	Error string         `json:"error"`
	Code  string         `json:"code"`
	Extra map[string]any `json:"extra,omitempty"`
}

// Will log a rejected input at debug level, and send an HTTP response with
// status 422 and a JSON body naming the problem
func LogValidation(w http.ResponseWriter, r *http.Request, code string, err error, extra ...map[string]any) {
	log.Debugf("%s: %s", code, err)
	body := ErrorBody{Error: err.Error(), Code: code}
	if len(extra) > 0 {
		body.Extra = extra[0]
	}
	render.Status(r, http.StatusUnprocessableEntity)
	render.JSON(w, r, body)
}
