package status

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"strings"

	"go.uber.org/zap"

	"github.com/zbynekdrlik/dantetimesync/internal/metrics"
)

const getStatusRequest = "GET_STATUS"

// Server accepts IPC connections and serves the publisher's current
// snapshot in response to a GET_STATUS request, one line in, one line of
// JSON out.
type Server struct {
	Log       *zap.Logger
	Publisher *Publisher

	listener net.Listener
}

func NewServer(log *zap.Logger, pub *Publisher, listener net.Listener) *Server {
	return &Server{Log: log, Publisher: pub, listener: listener}
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handle(conn)
	}
}

func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}
	if strings.TrimSpace(line) != getStatusRequest {
		s.Log.Debug("ignoring unrecognized IPC request", zap.String("request", line))
		return
	}

	snap := s.Publisher.Current()
	enc := json.NewEncoder(conn)
	if err := enc.Encode(snap); err != nil {
		s.Log.Warn("failed writing status response", zap.Error(err))
		return
	}
	metrics.StatusReqsServed.Inc()
}
