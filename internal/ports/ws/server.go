package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"yahtzee/internal/app"
	"yahtzee/internal/domain"
)

// Inbound event names.
const (
	evJoin          = "join"
	evReady         = "ready"
	evRollDice      = "rollDice"
	evKeepDice      = "keepDice"
	evScoreCategory = "scoreCategory"
	evGetGameState  = "getGameState"
	evNewGame       = "newGame"
)

type joinRequest struct {
	Name string `json:"name"`
}

type keepRequest struct {
	KeepIndices []int `json:"keepIndices"`
}

type scoreRequest struct {
	Category string `json:"category"`
}

// IdentityResponse answers GET /api/identity.
type IdentityResponse struct {
	ClientKey string `json:"clientKey"`
	SavedName string `json:"savedName"`
	Known     bool   `json:"known"`
}

// ProxyPolicy controls where the client address comes from.
//
// TrustForwardedFor must be explicitly enabled for X-Real-IP and
// X-Forwarded-For to be considered; otherwise the key is the TCP peer address.
type ProxyPolicy struct {
	TrustForwardedFor bool
}

// Server maps websocket events onto the game service.
type Server struct {
	svc      *app.Service
	hub      *Hub
	log      zerolog.Logger
	tracer   trace.Tracer
	upgrader websocket.Upgrader
	origins  []string
	proxy    ProxyPolicy
	newID    func() string
}

// NewServer builds the transport. allowedOrigins applies to both CORS and the
// websocket handshake; "*" allows any origin.
func NewServer(svc *app.Service, log zerolog.Logger, allowedOrigins []string, proxy ProxyPolicy) *Server {
	log = log.With().Str("component", "ws").Logger()
	s := &Server{
		svc:     svc,
		hub:     NewHub(log),
		log:     log,
		tracer:  otel.Tracer("yahtzee/ws"),
		origins: allowedOrigins,
		proxy:   proxy,
		newID:   uuid.NewString,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.proxy.TrustForwardedFor {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/ws", s.handleWS)
	r.Get("/api/state", s.handleState)
	r.Get("/api/identity", s.handleIdentity)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return r
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.svc.View())
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	key := clientKey(r)
	name, known := s.svc.Identity(key)
	writeJSON(w, IdentityResponse{ClientKey: key, SavedName: name, Known: known})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:   s.newID(),
		key:  clientKey(r),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	s.hub.register(c)
	s.log.Info().Str("conn_id", c.id).Str("client_key", c.key).Msg("client connected")

	go s.hub.writePump(c)
	s.readPump(c)
}

// readPump runs on the request goroutine until the connection drops.
func (s *Server) readPump(c *client) {
	defer func() {
		s.hub.unregister(c)
		_ = c.conn.Close()
		s.log.Info().Str("conn_id", c.id).Msg("client disconnected")
		s.hub.Dispatch(s.svc.Disconnect(context.Background(), c.id))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Str("conn_id", c.id).Msg("websocket unexpected close")
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.hub.Dispatch([]app.Event{app.ErrorEvent(c.id, fmt.Errorf("%w: malformed message", domain.ErrValidation))})
			continue
		}
		s.hub.Dispatch(s.handle(context.Background(), c, env))
	}
}

// handle runs one inbound event and returns what to send.
func (s *Server) handle(ctx context.Context, c *client, env envelope) []app.Event {
	ctx, span := s.tracer.Start(ctx, "yahtzee."+env.Event, trace.WithAttributes(
		attribute.String("conn_id", c.id),
		attribute.String("event", env.Event),
	))
	defer span.End()

	events, err := s.dispatch(ctx, c, env)
	outcome := "ok"
	if err != nil {
		outcome = domain.ErrorCode(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Debug().Err(err).Str("conn_id", c.id).Str("event", env.Event).Msg("request rejected")
		if env.Event == evJoin {
			events = []app.Event{app.JoinErrorEvent(c.id, err)}
		} else {
			events = []app.Event{app.ErrorEvent(c.id, err)}
		}
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	return events
}

func (s *Server) dispatch(ctx context.Context, c *client, env envelope) ([]app.Event, error) {
	switch env.Event {
	case evJoin:
		var req joinRequest
		if err := decode(env.Data, &req); err != nil {
			return nil, err
		}
		return s.svc.Join(ctx, c.id, c.key, req.Name)
	case evReady:
		return s.svc.Ready(ctx, c.id), nil
	case evRollDice:
		var req keepRequest
		if err := decode(env.Data, &req); err != nil {
			return nil, err
		}
		return s.svc.RollDice(ctx, c.id, req.KeepIndices)
	case evKeepDice:
		var req keepRequest
		if err := decode(env.Data, &req); err != nil {
			return nil, err
		}
		return s.svc.KeepDice(ctx, c.id, req.KeepIndices)
	case evScoreCategory:
		var req scoreRequest
		if err := decode(env.Data, &req); err != nil {
			return nil, err
		}
		return s.svc.ScoreCategory(ctx, c.id, req.Category)
	case evGetGameState:
		return []app.Event{app.GameStateEvent(c.id, s.svc.GameStateFor(c.key))}, nil
	case evNewGame:
		return s.svc.NewGame(ctx, c.id)
	default:
		return nil, fmt.Errorf("%w: unknown event %q", domain.ErrValidation, env.Event)
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// clientKey is the requester's address: the TCP peer, or the forwarded
// address when RealIP is installed.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func decode(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: malformed payload", domain.ErrValidation)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
