package response

import (
	"encoding/gob"
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const flashSession = "lms_flash"

const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelError   = "error"
)

// FlashMessage is a one-shot notice shown on the next rendered page.
type FlashMessage struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func init() {
	gob.Register(FlashMessage{})
}

// FlashSessions mounts the signed cookie session that carries flash messages
// across redirects. Authentication sessions live in Redis, not here.
func FlashSessions(secret string, secure bool) gin.HandlerFunc {
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(flashSession, store)
}

// flashes returns the flash session, or nil when the middleware is not mounted.
func flashes(c *gin.Context) sessions.Session {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return nil
	}
	return sessions.Default(c)
}

// SetFlash queues a message for the next page the client renders.
func SetFlash(c *gin.Context, level, message string) {
	session := flashes(c)
	if session == nil {
		return
	}
	session.AddFlash(FlashMessage{Level: level, Message: message})
	if err := session.Save(); err != nil {
		log.Printf("Failed to save flash message: %v", err)
	}
}

func Success(c *gin.Context, message string) { SetFlash(c, LevelSuccess, message) }
func Info(c *gin.Context, message string)    { SetFlash(c, LevelInfo, message) }
func Error(c *gin.Context, message string)   { SetFlash(c, LevelError, message) }

// PopFlash returns and clears every queued message.
func PopFlash(c *gin.Context) []FlashMessage {
	session := flashes(c)
	if session == nil {
		return nil
	}

	stored := session.Flashes()
	if len(stored) == 0 {
		return nil
	}
	if err := session.Save(); err != nil {
		log.Printf("Failed to clear flash messages: %v", err)
	}

	messages := make([]FlashMessage, 0, len(stored))
	for _, v := range stored {
		if msg, ok := v.(FlashMessage); ok {
			messages = append(messages, msg)
		}
	}
	return messages
}
