package live

import (
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait       = 10 * time.Second
	maxMessageSize  = 512
	defaultPing     = 15 * time.Second
	defaultSendSize = 16
)

// ExpectedWebSocketBody отдаётся с 426, когда рукопожатие не удалось
const ExpectedWebSocketBody = "Expected WebSocket"

type Config struct {
	AllowedOrigins []string // пустой список разрешает любой origin
	PingInterval   time.Duration
	SendBuffer     int
}

// NewUpgrader создаёт upgrader, принимающий только заданные origin.
// "*" или пустой список разрешают всё.
func NewUpgrader(cfg Config) *websocket.Upgrader {
	allowAll := len(cfg.AllowedOrigins) == 0 || slices.Contains(cfg.AllowedOrigins, "*")
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(cfg.AllowedOrigins, origin)
		},
		Error: handshakeError,
	}
}

// handshakeError сохраняет 403 для чужого origin и 5xx для ошибок сервера,
// остальные сбои рукопожатия отвечают 426
func handshakeError(w http.ResponseWriter, r *http.Request, status int, reason error) {
	if status != http.StatusForbidden && status < http.StatusInternalServerError {
		status = http.StatusUpgradeRequired
		w.Header().Set("Sec-WebSocket-Version", "13")
	}
	body := http.StatusText(status)
	if status == http.StatusUpgradeRequired {
		body = ExpectedWebSocketBody
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// WSObserver пересылает сообщения hub в одно websocket соединение
type WSObserver struct {
	conn   *websocket.Conn
	hub    *Hub
	logger *zap.Logger

	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	pingInterval time.Duration
}

func NewWSObserver(conn *websocket.Conn, hub *Hub, cfg Config, logger *zap.Logger) *WSObserver {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPing
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSObserver{
		conn:         conn,
		hub:          hub,
		logger:       logger,
		send:         make(chan []byte, cfg.SendBuffer),
		done:         make(chan struct{}),
		pingInterval: cfg.PingInterval,
	}
}

// Send ставит msg в очередь без блокировки. Возвращает false после закрытия
// соединения или при заполненном буфере.
func (o *WSObserver) Send(msg []byte) bool {
	select {
	case <-o.done:
		return false
	default:
	}

	select {
	case o.send <- msg:
		return true
	default:
		return false
	}
}

// Serve регистрирует наблюдателя и блокируется до отключения клиента.
// До возврата наблюдатель удаляется из hub.
func (o *WSObserver) Serve() {
	o.hub.Add(o)
	defer o.close()

	go o.writePump()
	o.readPump()
}

func (o *WSObserver) close() {
	o.closeOnce.Do(func() {
		o.hub.Remove(o)
		close(o.done)
		o.conn.Close()
	})
}

// readPump отбрасывает сообщения клиента и нужен, чтобы заметить закрытие
func (o *WSObserver) readPump() {
	pongWait := 2 * o.pingInterval

	o.conn.SetReadLimit(maxMessageSize)
	o.conn.SetReadDeadline(time.Now().Add(pongWait))
	o.conn.SetPongHandler(func(string) error {
		return o.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := o.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				o.logger.Debug("Live connection closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}

func (o *WSObserver) writePump() {
	ticker := time.NewTicker(o.pingInterval)
	defer func() {
		ticker.Stop()
		o.close()
	}()

	for {
		select {
		case <-o.done:
			return
		case msg := <-o.send:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				o.logger.Debug("Live write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				o.logger.Debug("Live ping failed", zap.Error(err))
				return
			}
		}
	}
}
