package httptransport

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"roadscan-server-go/internal/domain/analysis"
	"roadscan-server-go/internal/domain/companion"
	"roadscan-server-go/internal/domain/estimator"
	"roadscan-server-go/internal/domain/image"
)

type statusRule struct {
	target error
	status int
}

// statusRules is checked in order; the first sentinel found in the chain wins.
var statusRules = []statusRule{
	{image.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType},
	{image.ErrTooLarge, http.StatusRequestEntityTooLarge},
	{image.ErrInvalidImage, http.StatusUnprocessableEntity},
	{companion.ErrArtifactNotFound, http.StatusNotFound},
	{estimator.ErrDecode, http.StatusUnprocessableEntity},
	{estimator.ErrEmptyImage, http.StatusUnprocessableEntity},
	{analysis.ErrSessionNotFound, http.StatusNotFound},
	{analysis.ErrInvalidTransition, http.StatusConflict},
	{analysis.ErrNoFile, http.StatusConflict},
	{context.DeadlineExceeded, http.StatusRequestTimeout},
	{context.Canceled, http.StatusRequestTimeout},
}

// StatusFor maps a domain error to an HTTP status and the message shown to
// the client. Unknown errors are 500 with a generic message.
func StatusFor(err error) (int, string) {
	if err == nil {
		return http.StatusOK, "ok"
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge, image.ErrTooLarge.Error()
	}
	for _, rule := range statusRules {
		if errors.Is(err, rule.target) {
			return rule.status, rule.target.Error()
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

// RespondFailure writes err through the envelope and records it on the context.
func RespondFailure(c *gin.Context, err error) {
	status, message := StatusFor(err)
	_ = c.Error(err)
	RespondError(c, status, message, gin.H{"error": err.Error()})
}
