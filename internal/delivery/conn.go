package delivery

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer   = 256
	writeTimeout = 10 * time.Second
	pingPeriod   = 30 * time.Second
	pongWait     = 60 * time.Second
	maxInbound   = 4096
)

var (
	// ErrSlowConsumer: буфер отправки клиента переполнен
	ErrSlowConsumer = errors.New("клиент не успевает читать")
	// ErrConnClosed: соединение уже закрыто
	ErrConnClosed = errors.New("соединение закрыто")
)

// Conn: исходящая сторона клиентского соединения. Send не должен
// блокировать диспетчер.
type Conn interface {
	Send(f Frame) error
	Close() error
}

// WSConn: websocket-соединение с буферизованной отправкой. Запись в сокет
// выполняет отдельная горутина writePump.
type WSConn struct {
	ws   *websocket.Conn
	send chan Frame

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewWSConn оборачивает сокет и запускает writePump
func NewWSConn(ws *websocket.Conn) *WSConn {
	c := &WSConn{
		ws:   ws,
		send: make(chan Frame, sendBuffer),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

// Send ставит кадр в буфер отправки
func (c *WSConn) Send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close закрывает буфер; writePump дописывает остаток и закрывает сокет
func (c *WSConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	return nil
}

// Done закрывается, когда writePump завершился и сокет закрыт
func (c *WSConn) Done() <-chan struct{} { return c.done }

// ReadMessage читает входящее сообщение клиента
func (c *WSConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

// prepareRead настраивает лимиты и дедлайны чтения
func (c *WSConn) prepareRead() {
	c.ws.SetReadLimit(maxInbound)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func (c *WSConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		close(c.done)
	}()

	for {
		select {
		case f, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			kind := websocket.TextMessage
			if f.Compressed {
				kind = websocket.BinaryMessage
			}
			if err := c.ws.WriteMessage(kind, f.Data); err != nil {
				c.markClosed()
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.markClosed()
				return
			}
		}
	}
}

// markClosed запрещает дальнейшие Send после ошибки записи
func (c *WSConn) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
