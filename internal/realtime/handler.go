package realtime

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sekikawa/project-management-api/internal/auth"
	"github.com/sekikawa/project-management-api/internal/authz"
)

// Application close codes, distinguishable from generic transport closes.
const (
	StatusUnauthorized websocket.StatusCode = 4401
	StatusForbidden    websocket.StatusCode = 4403
)

const writeTimeout = 5 * time.Second

// Handler serves the websocket endpoints. The credential arrives as a
// ?token= query parameter: browsers cannot set headers during the websocket
// handshake, so the query string is the sole supported mechanism here.
type Handler struct {
	hub        *Hub
	validator  *auth.Validator
	authorizer *authz.Authorizer
	logger     *zap.Logger
}

func NewHandler(hub *Hub, validator *auth.Validator, authorizer *authz.Authorizer, logger *zap.Logger) *Handler {
	return &Handler{
		hub:        hub,
		validator:  validator,
		authorizer: authorizer,
		logger:     logger,
	}
}

type clientMessage struct {
	Type      string `json:"type"`
	ProjectID uint64 `json:"project_id"`
}

// Notifications handles the inbox channel. The session joins its personal
// group on open and may subscribe to project rooms dynamically.
func (h *Handler) Notifications(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return
	}

	principal := h.validator.Validate(c.Query("token"))
	if !principal.IsAuthenticated() {
		h.logger.Debug("rejecting unauthenticated websocket connection")
		_ = conn.Close(StatusUnauthorized, "authentication required")
		return
	}

	sess := h.hub.Register(principal)
	h.hub.Join(sess, UserGroup(principal.ID))
	h.logger.Info("websocket connected", zap.Uint64("user_id", principal.ID))

	h.serve(c.Request.Context(), conn, sess)
}

// Project handles a resource-scoped channel. The principal must be able to
// view the project; otherwise the connection closes before joining any
// group.
func (h *Handler) Project(c *gin.Context) {
	projectID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Status(400)
		return
	}

	conn, acceptErr := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if acceptErr != nil {
		return
	}

	principal := h.validator.Validate(c.Query("token"))
	if !principal.IsAuthenticated() {
		_ = conn.Close(StatusUnauthorized, "authentication required")
		return
	}
	if !h.authorizer.CanViewProjectID(principal, projectID) {
		_ = conn.Close(StatusForbidden, "access denied")
		return
	}

	sess := h.hub.Register(principal)
	h.hub.Join(sess, ProjectGroup(projectID))
	h.logger.Info("websocket connected to project room",
		zap.Uint64("user_id", principal.ID), zap.Uint64("project_id", projectID))

	sess.Send(mustMarshal(map[string]any{
		"type":       "connection_established",
		"project_id": projectID,
	}))

	h.serve(c.Request.Context(), conn, sess)
}

// serve runs the write pump and read loop until the connection dies, then
// detaches the session from every group.
func (h *Handler) serve(ctx context.Context, conn *websocket.Conn, sess *Session) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer h.hub.Detach(sess)

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for data := range sess.Outbound() {
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			wcancel()
			if err != nil {
				// Detach closes the outbound channel, ending this loop
				// after the remaining queue is discarded.
				h.hub.Detach(sess)
			}
		}
		_ = conn.Close(websocket.StatusNormalClosure, "closed")
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		h.handleMessage(sess, data)
	}

	h.hub.Detach(sess)
	<-writeDone
	h.logger.Info("websocket disconnected", zap.Uint64("user_id", sess.Principal.ID))
}

// handleMessage processes one client frame. Malformed JSON and unknown
// types are logged and ignored; they never terminate the connection.
func (h *Handler) handleMessage(sess *Session, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Debug("ignoring malformed websocket message", zap.Error(err))
		return
	}

	switch msg.Type {
	case "ping":
		sess.Send(mustMarshal(map[string]string{"type": "pong"}))

	case "subscribe_project", "subscribe_resource":
		// Denial is silent so that probing cannot reveal which projects
		// exist.
		if !h.authorizer.CanViewProjectID(sess.Principal, msg.ProjectID) {
			h.logger.Debug("ignoring unauthorized subscribe",
				zap.Uint64("user_id", sess.Principal.ID),
				zap.Uint64("project_id", msg.ProjectID))
			return
		}
		h.hub.Join(sess, ProjectGroup(msg.ProjectID))
		sess.Send(mustMarshal(map[string]any{
			"type":       "subscribed",
			"project_id": msg.ProjectID,
		}))

	case "unsubscribe_project", "unsubscribe_resource":
		h.hub.Leave(sess, ProjectGroup(msg.ProjectID))

	default:
		h.logger.Debug("ignoring unknown websocket message type", zap.String("type", msg.Type))
	}
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
