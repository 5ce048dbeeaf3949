package devserver

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// errorBody is the JSON shape of every non-2xx answer.
type errorBody struct {
	Error  string              `json:"error"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// logInternalError logs err and answers 500 with the default text.
func (s *Server) logInternalError(w http.ResponseWriter, r *http.Request, code string, err error) {
	s.logger.WithError(err).Error(code)
	s.status(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// logNotFound logs at debug level and answers 404.
func (s *Server) logNotFound(w http.ResponseWriter, r *http.Request, code string, id any) {
	s.logger.WithField("id", id).Debugf("%s: not found", code)
	s.status(w, r, http.StatusNotFound, "not found")
}

// logStatus logs code at level and answers status with msg.
func (s *Server) logStatus(w http.ResponseWriter, r *http.Request, status int, level logrus.Level, code, msg string) {
	s.logger.WithField("status", status).Logf(level, "%s: %s", code, msg)
	s.status(w, r, status, msg)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorBody{Error: msg})
}
