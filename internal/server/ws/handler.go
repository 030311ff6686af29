// Package ws bridges websocket connections to the room: it upgrades the
// HTTP request, decodes client events, applies them to the store, and
// relays the committed event stream back over the socket.
package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/kotobachat/kotoba/internal/auth"
	"github.com/kotobachat/kotoba/internal/chat"
	"github.com/kotobachat/kotoba/internal/common"
	"github.com/kotobachat/kotoba/internal/logging"
	"github.com/kotobachat/kotoba/internal/protocol"
	"github.com/kotobachat/kotoba/internal/room"
)

// directBuffer holds per-connection replies (rejections) that bypass the
// hub. Sized generously; a connection produces at most one per read.
const directBuffer = 16

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler serves the websocket endpoint.
type Handler struct {
	store        *room.Store
	registry     *room.Registry
	logger       logging.Logger
	ticketSecret []byte
	gated        bool
}

// NewHandler returns a websocket handler. When gated is true, a join must
// carry a valid entry ticket signed with ticketSecret.
func NewHandler(store *room.Store, registry *room.Registry, logger logging.Logger, ticketSecret []byte, gated bool) *Handler {
	return &Handler{
		store:        store,
		registry:     registry,
		logger:       logger.With("module", "ws"),
		ticketSecret: ticketSecret,
		gated:        gated,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		h:         h,
		conn:      conn,
		direct:    make(chan protocol.ServerEvent, directBuffer),
		sessionCh: make(chan *room.Session, 1),
	}

	go c.writeLoop()
	c.readLoop(r.Context())
}

// client is one websocket connection. The read loop owns sess, identity
// and joined; the write loop owns the connection's write side and is fed
// through direct and sessionCh.
type client struct {
	h    *Handler
	conn *websocket.Conn

	// direct carries per-connection replies. Closed by the read loop when
	// it exits, which stops the write loop.
	direct chan protocol.ServerEvent
	// sessionCh hands the hub session to the write loop after a join.
	sessionCh chan *room.Session

	sess     *room.Session
	identity chat.Identity
	joined   bool
}

// writeLoop is the only writer on the connection. Until a join completes
// the session channel is nil and its case never fires.
func (c *client) writeLoop() {
	defer c.conn.Close()

	var events <-chan protocol.ServerEvent
	for {
		select {
		case ev, ok := <-c.direct:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case s := <-c.sessionCh:
			events = s.Events()
		case ev, ok := <-events:
			if !ok {
				// the hub dropped this session as too slow
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func (c *client) readLoop(ctx context.Context) {
	defer c.cleanup()

	for {
		var ev protocol.ClientEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.h.logger.Debug(ctx, "websocket read failed", "error", err)
			}
			return
		}

		switch ev.Type {
		case protocol.TypeJoin:
			if !c.handleJoin(ctx, ev) {
				return
			}
		case protocol.TypeSend:
			c.handleSend(ctx, ev)
		case protocol.TypeDelete:
			c.handleDelete(ctx, ev)
		case protocol.TypeAdminClear:
			c.handleAdminClear(ctx, ev)
		default:
			c.h.logger.Debug(ctx, "unknown client event", "type", ev.Type)
		}
	}
}

// handleJoin admits the connection into the room. A bad ticket on a gated
// room terminates the connection; a duplicate join or a blank name is
// ignored. Returns false when the connection must be closed.
func (c *client) handleJoin(ctx context.Context, ev protocol.ClientEvent) bool {
	if c.joined {
		c.h.logger.Debug(ctx, "duplicate join ignored")
		return true
	}
	if c.h.gated {
		if err := auth.VerifyTicket(ev.Ticket, c.h.ticketSecret); err != nil {
			c.h.logger.Warn(ctx, "join rejected: invalid ticket", "error", err)
			return false
		}
	}
	if strings.TrimSpace(ev.Identity.Name) == "" {
		c.h.logger.Warn(ctx, "join ignored: blank name")
		return true
	}

	// Subscribe first so the history snapshot precedes the presence
	// broadcast triggered by Join.
	c.sess = c.h.store.Subscribe()
	c.sessionCh <- c.sess
	c.identity = ev.Identity
	c.joined = true
	c.h.registry.Join(c.sess.ID(), ev.Identity)
	return true
}

func (c *client) handleSend(ctx context.Context, ev protocol.ClientEvent) {
	if !c.joined {
		c.h.logger.Debug(ctx, "send before join ignored")
		return
	}
	if _, err := c.h.store.Append(ctx, c.identity, ev.Text); err != nil {
		if errors.Is(err, common.ErrValidation) {
			c.h.logger.Debug(ctx, "send rejected", "error", err)
			return
		}
		c.h.logger.Error(ctx, "append failed", "error", err)
	}
}

func (c *client) handleDelete(ctx context.Context, ev protocol.ClientEvent) {
	err := common.ErrNotJoined
	if c.joined {
		err = c.h.store.Delete(ctx, ev.ID, c.identity)
	}
	switch {
	case err == nil:
	case errors.Is(err, common.ErrNotJoined):
		c.direct <- protocol.NewDeleteRejected(ev.ID, protocol.ReasonNotJoined)
	case errors.Is(err, common.ErrNotFound):
		c.direct <- protocol.NewDeleteRejected(ev.ID, protocol.ReasonNotFound)
	case errors.Is(err, common.ErrNotOwner):
		c.direct <- protocol.NewDeleteRejected(ev.ID, protocol.ReasonNotOwner)
	default:
		c.h.logger.Error(ctx, "delete failed", "error", err)
	}
}

// handleAdminClear does not require a prior join: the operator CLI
// authenticates with the admin credential alone.
func (c *client) handleAdminClear(ctx context.Context, ev protocol.ClientEvent) {
	err := c.h.store.Clear(ctx, ev.Credential)
	switch {
	case err == nil:
		if !c.joined {
			// not subscribed, so the broadcast will not reach this
			// connection; confirm directly
			c.direct <- protocol.NewCleared()
		}
	case errors.Is(err, common.ErrUnauthorized):
		c.direct <- protocol.NewAdminClearRejected(protocol.ReasonBadCredential)
	default:
		c.h.logger.Error(ctx, "clear failed", "error", err)
	}
}

func (c *client) cleanup() {
	if c.sess != nil {
		c.h.registry.Leave(c.sess.ID())
		c.h.store.Unsubscribe(c.sess)
	}
	close(c.direct)
}
