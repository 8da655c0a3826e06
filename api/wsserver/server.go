// Package wsserver is the transport collaborator: it decodes client
// messages into submissions and hands every one of them through the
// service boundary. It never touches the book directly.
package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"clob/errs"
	"clob/service"
)

type Server struct {
	svc      *service.OrderService
	log      *zap.Logger
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

func New(svc *service.OrderService, log *zap.Logger) *Server {
	s := &Server{
		svc: svc,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.httpSrv = &http.Server{Handler: s}
	return s
}

// ListenAndServe blocks until the listener is shut down.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errs.E(errs.Transport, "wsserver.ListenAndServe", err)
	}
	s.log.Info("listening", zap.String("addr", addr))

	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errs.E(errs.Transport, "wsserver.ListenAndServe", err)
	}
	return nil
}

// Shutdown stops accepting new connections. In-flight submissions are
// not rolled back; open connections are closed by the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Handshake failures drop the connection; engine state is
		// untouched.
		s.log.Warn("websocket handshake failed",
			zap.String("remote", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	go s.handleConn(conn)
}

func (s *Server) handleConn(conn *websocket.Conn) {
	defer conn.Close()
	log := s.log.With(zap.String("remote", conn.RemoteAddr().String()))
	ctx := context.Background()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("connection read failed", zap.Error(err))
			}
			return
		}

		var sub Submission
		if err := json.Unmarshal(data, &sub); err != nil {
			s.reject(conn, log, errs.E(errs.Decode, "wsserver.handleConn", err))
			continue
		}

		order, err := sub.toOrder()
		if err != nil {
			s.reject(conn, log, err)
			continue
		}

		res, err := s.svc.SubmitLimitOrder(ctx, order)
		if err != nil {
			log.Error("submission failed", zap.Error(err))
			s.reject(conn, log, err)
			continue
		}

		resp := Response{OrderID: res.OrderID, Remaining: res.Remaining}
		if err := conn.WriteJSON(resp); err != nil {
			log.Warn("response write failed", zap.Error(err))
			return
		}
	}
}

// reject answers a bad message without mutating the book and keeps the
// connection open.
func (s *Server) reject(conn *websocket.Conn, log *zap.Logger, err error) {
	log.Warn("submission rejected", zap.String("kind", errs.KindOf(err).String()), zap.Error(err))
	if werr := conn.WriteJSON(errorResponse{Error: err.Error()}); werr != nil {
		log.Warn("reject write failed", zap.Error(werr))
	}
}
