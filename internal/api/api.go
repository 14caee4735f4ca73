// Package api exposes the query facade over HTTP for browser front ends and other processes.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/propertydex/propertydex-store/internal/auth"
	"github.com/propertydex/propertydex-store/pkg/client"
	"github.com/propertydex/propertydex-store/pkg/schema"
)

type Handler struct {
	Client *client.Client
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	authGroup := r.Group("/auth/v1")
	{
		authGroup.GET("/session", h.GetSession)
		authGroup.POST("/token", h.SignIn)
		authGroup.POST("/signup", h.SignUp)
		authGroup.POST("/logout", h.SignOut)
		authGroup.GET("/events", h.Events)
	}

	restGroup := r.Group("/rest/v1")
	{
		restGroup.GET("/:table", h.Select)
		restGroup.POST("/:table", h.Insert)
	}
}

// NotFound answers unknown routes with an envelope.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, client.Result[any]{Error: &client.Error{Message: "route not found"}})
}

// CORS allows the listed origins. An empty list or "*" allows any origin.
func CORS(origins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case len(origins) == 0 || slices.Contains(origins, "*"):
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case slices.Contains(origins, origin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, client.Result[any]{Error: &client.Error{Message: err.Error()}})
}

func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.Client.Auth().GetSession())
}

func (h *Handler) SignIn(c *gin.Context) {
	var creds client.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Client.Auth().SignInWithPassword(creds))
}

func (h *Handler) SignUp(c *gin.Context) {
	var creds client.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Client.Auth().SignUp(creds))
}

func (h *Handler) SignOut(c *gin.Context) {
	c.JSON(http.StatusOK, h.Client.Auth().SignOut())
}

type authState struct {
	event   auth.AuthEvent
	session *schema.Session
}

// Events streams auth state changes as server-sent events until the client disconnects.
// The current state is sent first.
func (h *Handler) Events(c *gin.Context) {
	states := make(chan authState, 16)
	unsubscribe := h.Client.Auth().OnAuthStateChange(func(ev auth.AuthEvent, s *schema.Session) {
		select {
		case states <- authState{event: ev, session: s}:
		default:
			// Slow reader; it will catch up on the next change.
		}
	})
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-states:
			c.SSEvent(string(st.event), client.SessionData{Session: st.session})
			c.Writer.Flush()
		}
	}
}

func (h *Handler) Select(c *gin.Context) {
	table := c.Param("table")
	c.JSON(http.StatusOK, h.Client.From(table).Select(c.QueryArray("select")...))
}

func (h *Handler) Insert(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}
	if !json.Valid(body) {
		badRequest(c, errors.New("invalid JSON body"))
		return
	}

	res, err := h.Client.From(c.Param("table")).Insert(body)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
