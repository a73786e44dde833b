package ui

import (
	"crypto/subtle"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"extruder/ui/templates/fragments"
)

const (
	sessionCookie = "spc_session"
	// sessionExpiresKey holds the unix time the login stops being valid
	sessionExpiresKey = "expires"
)

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	staticFS, err := fs.Sub(embeddedFiles, "static")
	if err != nil {
		log.Printf("[setupMiddleware] Error creating static filesystem: %v", err)
		return
	}
	s.router.StaticFS("/static", http.FS(staticFS))

	if s.auth.Enabled() {
		store := cookie.NewStore([]byte(s.auth.SessionSecret))
		store.Options(sessions.Options{
			Path:     "/",
			MaxAge:   int(s.auth.SessionTTL.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		s.router.Use(sessions.Sessions(sessionCookie, store))
	}
}

// requireSession gates everything behind the dashboard password. Pages
// redirect to the login form, API and chart requests get a 401.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.auth.Enabled() {
			c.Next()
			return
		}
		if s.loggedIn(sessions.Default(c)) {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/charts/") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "UNAUTHORIZED",
				"message": "login required",
			})
			return
		}
		c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
	}
}

func (s *Server) handleLoginPage(c *gin.Context) {
	if !s.auth.Enabled() {
		c.Redirect(http.StatusFound, "/")
		return
	}
	s.renderTemplate(c, http.StatusOK, fragments.Login, gin.H{
		"Title": "Sign in",
		"Next":  safeNext(c.Query("next")),
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	if !s.auth.Enabled() {
		c.Redirect(http.StatusFound, "/")
		return
	}
	next := safeNext(c.PostForm("next"))
	password := c.PostForm("password")
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.auth.Password)) != 1 {
		log.Printf("[Auth] Rejected login from %s", c.ClientIP())
		s.renderTemplate(c, http.StatusUnauthorized, fragments.Login, gin.H{
			"Title": "Sign in",
			"Next":  next,
			"Error": "Incorrect password",
		})
		return
	}

	session := sessions.Default(c)
	session.Set(sessionExpiresKey, s.now().Add(s.auth.SessionTTL).Unix())
	if err := session.Save(); err != nil {
		log.Printf("[Auth] Failed to save session: %v", err)
		s.renderTemplate(c, http.StatusInternalServerError, fragments.Login, gin.H{
			"Title": "Sign in",
			"Next":  next,
			"Error": "Could not start a session",
		})
		return
	}
	c.Redirect(http.StatusFound, next)
}

func (s *Server) handleLogout(c *gin.Context) {
	if s.auth.Enabled() {
		session := sessions.Default(c)
		session.Clear()
		session.Options(sessions.Options{Path: "/", MaxAge: -1})
		if err := session.Save(); err != nil {
			log.Printf("[Auth] Failed to clear session: %v", err)
		}
	}
	c.Redirect(http.StatusFound, "/login")
}

// loggedIn reports whether the signed session carries an unexpired login.
// The cookie MaxAge only instructs the browser, so expiry is checked here.
func (s *Server) loggedIn(session sessions.Session) bool {
	expires, ok := session.Get(sessionExpiresKey).(int64)
	return ok && s.now().Unix() < expires
}

// safeNext only allows local redirects
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
