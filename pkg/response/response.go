package response

import (
	"errors"
	"log"
	"net/http"

	"anoa.com/studentlms/internal/access"
	"anoa.com/studentlms/pkg/apperror"
	"github.com/gin-gonic/gin"
)

// GetIdentity retrieves the authenticated identity from the request context.
func GetIdentity(c *gin.Context) (*access.Identity, error) {
	identity, ok := access.FromContext(c.Request.Context())
	if !ok {
		return nil, apperror.ErrUnauthorized
	}
	return identity, nil
}

// HTML renders a page template with the identity and pending flash messages
// of the current request added to data.
func HTML(c *gin.Context, code int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if identity, ok := access.FromContext(c.Request.Context()); ok {
		data["Identity"] = identity
	}
	data["Messages"] = PopFlash(c)
	c.HTML(code, name, data)
}

// Redirect ends a request with a 303 so browsers follow up with a GET.
func Redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}

// ResponseError renders the error page matching err.
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	// Log internal errors
	if code == http.StatusInternalServerError {
		log.Printf("[Internal Error]: %v", err)
	}

	name := "500.html"
	message := "Something went wrong. Please try again later."
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		name = "404.html"
		message = "The page you were looking for does not exist."
	case code < http.StatusInternalServerError:
		name = "error.html"
		message = err.Error()
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Message != "" {
			message = appErr.Message
		}
	}

	HTML(c, code, name, gin.H{"Status": code, "Message": message})
	c.Abort()
}
