package api

import (
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/maxaizer/car-tracker/internal/logger"
	log "github.com/sirupsen/logrus"
	"net/http"
)

// ProblemDetails follows RFC 7807: Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

func (pd *ProblemDetails) Error() string {
	return fmt.Sprintf("%d %s: %s", pd.Status, pd.Title, pd.Detail)
}

func writeError(c *gin.Context, status int, detail string) {
	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(status, &ProblemDetails{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: c.Request.URL.Path,
	})
}

func writeInternalServerError(c *gin.Context, err error) {
	log.WithField(logger.ErrorTypeField, logger.ErrorTypeApi).
		Errorf("request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	writeError(c, http.StatusInternalServerError, err.Error())
}

func writeBadRequest(c *gin.Context, detail string) {
	writeError(c, http.StatusBadRequest, detail)
}

func writeNotFound(c *gin.Context, detail string) {
	writeError(c, http.StatusNotFound, detail)
}
