package transport

import (
	"context"
	"encoding/base64"
	"net"
	"net/url"
	"sync"

	"github.com/danmuck/mpdctl/internal/logging"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Subprotocol is negotiated with websockify-style bridges: every frame is a
// base64 text message carrying raw stream bytes.
const Subprotocol = "base64"

// WebSocket carries the protocol through a WebSocket bridge.
type WebSocket struct {
	lifecycle

	url  string
	opts Options
	log  zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWebSocket(rawURL string, opts Options) *WebSocket {
	return &WebSocket{
		lifecycle: newLifecycle(),
		url:       rawURL,
		opts:      opts,
		log:       logging.Component("transport").With().Str("network", "websocket").Str("addr", rawURL).Logger(),
	}
}

func (w *WebSocket) String() string {
	return w.url
}

func (w *WebSocket) Connect(ctx context.Context, onReceive func(chunk string)) error {
	if w.url == "" {
		return ErrAddressRequired
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		return ErrAlreadyConnected
	}
	if w.isClosed() {
		return net.ErrClosed
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: w.opts.ConnectTimeout,
		Subprotocols:     []string{Subprotocol},
	}
	if u, err := url.Parse(w.url); err == nil && u.Scheme == "wss" && w.opts.TLS.Enabled {
		if err := w.opts.TLS.Validate(); err != nil {
			return err
		}
		tlsCfg, err := w.opts.TLS.ClientConfig(u.Host)
		if err != nil {
			return err
		}
		dialer.TLSClientConfig = tlsCfg
	}
	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return err
	}
	w.conn = conn
	w.log.Debug().Str("subprotocol", conn.Subprotocol()).Msg("connected")
	go w.readLoop(conn, onReceive)
	return nil
}

func (w *WebSocket) readLoop(conn *websocket.Conn, onReceive func(string)) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !w.isClosed() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				w.log.Warn().Err(err).Msg("read failed")
			}
			w.finish(err)
			return
		}
		if len(msg) == 0 {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(string(msg))
		if err != nil {
			w.log.Warn().Err(err).Msg("dropping undecodable frame")
			continue
		}
		onReceive(string(decoded))
	}
}

// Send writes text as one frame. Writes are serialized because the
// connection allows a single concurrent writer.
func (w *WebSocket) Send(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return ErrNotConnected
	}
	enc := base64.StdEncoding.EncodeToString([]byte(text))
	return w.conn.WriteMessage(websocket.TextMessage, []byte(enc))
}

func (w *WebSocket) Close() error {
	if w.markClosed() {
		return nil
	}
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		w.finish(nil)
		return nil
	}
	return conn.Close()
}
