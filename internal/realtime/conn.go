package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/bus"
	"github.com/matheus3301/souk/internal/status"
	"go.uber.org/zap"
)

var (
	ErrNotConnected    = errors.New("realtime: not connected")
	ErrReconnectFailed = errors.New("realtime: reconnect attempts exhausted")
	ErrNoSession       = errors.New("realtime: no active session")
)

const (
	DefaultMaxAttempts  = 5
	DefaultBaseDelay    = time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultDialTimeout  = 10 * time.Second
	DefaultWriteTimeout = 5 * time.Second

	readLimit = 1 << 20
)

// TokenSource provides the access token used to authenticate the socket. An empty
// token means the session has ended and reconnects stop.
type TokenSource interface {
	Access() string
}

// Options tunes a Conn. Zero values fall back to the defaults above.
type Options struct {
	BaseURL      string
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	HTTPClient   *http.Client
}

func (o *Options) fill() {
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
}

// Failure is the payload of realtime.failed events.
type Failure struct {
	Channel string
	Err     error
}

// Conn is one authenticated realtime channel that reconnects itself after an
// unclean close.
type Conn struct {
	opts    Options
	path    string
	scope   backend.ID
	tokens  TokenSource
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger

	mu         sync.Mutex
	ws         *websocket.Conn
	cancelRead context.CancelFunc
	dialing    chan struct{}
	dialErr    error
	epoch      int
	attempts   int
	timer      *time.Timer
	handlers   Handlers
}

// NewGlobal creates the per-user notification channel. Conversations are joined
// and left as scopes on this one socket.
func NewGlobal(opts Options, tokens TokenSource, b *bus.Bus, logger *zap.Logger) *Conn {
	return newConn(opts, "/notifications/", "", "global", tokens, b, logger)
}

// NewChat creates a dedicated channel for one conversation.
func NewChat(chatID backend.ID, opts Options, tokens TokenSource, b *bus.Bus, logger *zap.Logger) *Conn {
	path := "/chat/" + url.PathEscape(string(chatID)) + "/"
	return newConn(opts, path, chatID, "chat:"+string(chatID), tokens, b, logger)
}

func newConn(opts Options, path string, scope backend.ID, channel string, tokens TokenSource, b *bus.Bus, logger *zap.Logger) *Conn {
	opts.fill()
	return &Conn{
		opts:    opts,
		path:    path,
		scope:   scope,
		tokens:  tokens,
		machine: status.NewMachine(channel, b),
		bus:     b,
		logger:  logger.With(zap.String("channel", channel)),
	}
}

// Channel returns the label used in logs and status events.
func (c *Conn) Channel() string {
	return c.machine.Channel()
}

// State returns the link state.
func (c *Conn) State() status.State {
	return c.machine.Current()
}

// Connected reports whether the socket is open.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// SetHandlers replaces the inbound frame handlers.
func (c *Conn) SetHandlers(h Handlers) {
	c.mu.Lock()
	c.handlers = h
	c.mu.Unlock()
}

// Connect opens the socket. Calls while connected return nil; calls while a dial is
// in flight wait for that dial instead of opening another socket.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.ws != nil {
		c.mu.Unlock()
		return nil
	}
	if ch := c.dialing; ch != nil {
		c.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.ws != nil {
			return nil
		}
		return c.dialErr
	}
	if c.tokens.Access() == "" {
		c.mu.Unlock()
		return ErrNoSession
	}
	c.stopTimerLocked()
	c.attempts = 0
	ch, epoch := c.beginDialLocked()
	c.mu.Unlock()

	return c.dial(ctx, ch, epoch, false)
}

// Disconnect closes the socket with a normal closure and cancels any pending reconnect.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	c.epoch++
	c.stopTimerLocked()
	c.attempts = 0
	ws := c.ws
	c.ws = nil
	cancel := c.cancelRead
	c.cancelRead = nil
	if !c.machine.Is(status.Disconnected) {
		c.transitionLocked(status.Disconnected)
	}
	c.mu.Unlock()

	if ws != nil {
		if err := ws.Close(websocket.StatusNormalClosure, "client disconnect"); err != nil {
			c.logger.Debug("close handshake incomplete", zap.Error(err))
		}
	}
	if cancel != nil {
		cancel()
	}
}

func (c *Conn) url() string {
	return c.opts.BaseURL + c.path + "?token=" + url.QueryEscape(c.tokens.Access())
}

// beginDialLocked marks a dial in flight. Caller holds c.mu.
func (c *Conn) beginDialLocked() (chan struct{}, int) {
	ch := make(chan struct{})
	c.dialing = ch
	c.dialErr = nil
	c.transitionLocked(status.Connecting)
	return ch, c.epoch
}

func (c *Conn) dial(ctx context.Context, ch chan struct{}, epoch int, reconnecting bool) error {
	dctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	ws, _, err := websocket.Dial(dctx, c.url(), &websocket.DialOptions{HTTPClient: c.opts.HTTPClient})
	cancel()

	c.mu.Lock()
	c.dialing = nil
	var after func()
	defer func() {
		close(ch)
		c.mu.Unlock()
		if after != nil {
			after()
		}
	}()

	if epoch != c.epoch {
		if ws != nil {
			_ = ws.CloseNow()
		}
		c.dialErr = ErrNotConnected
		return c.dialErr
	}
	if err != nil {
		c.dialErr = fmt.Errorf("dial %s: %w", c.Channel(), err)
		switch {
		case reconnecting:
			c.logger.Warn("reconnect attempt failed", zap.Int("attempt", c.attempts), zap.Error(err))
			after = c.scheduleReconnectLocked(err)
		case ctx.Err() != nil:
			c.transitionLocked(status.Disconnected)
		default:
			// A refused handshake is an unclean close: back off and retry.
			c.logger.Warn("realtime dial failed", zap.Error(err))
			after = c.scheduleReconnectLocked(err)
		}
		return c.dialErr
	}

	ws.SetReadLimit(readLimit)
	readCtx, cancelRead := context.WithCancel(context.Background())
	c.ws = ws
	c.cancelRead = cancelRead
	c.attempts = 0
	c.transitionLocked(status.Connected)
	c.logger.Info("realtime connected")
	go c.readLoop(readCtx, ws)
	return nil
}

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			c.closed(ws, err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Conn) closed(ws *websocket.Conn, err error) {
	c.mu.Lock()
	if c.ws != ws {
		c.mu.Unlock()
		return
	}
	c.ws = nil
	if c.cancelRead != nil {
		c.cancelRead()
		c.cancelRead = nil
	}

	code := websocket.CloseStatus(err)
	if code == websocket.StatusNormalClosure {
		c.logger.Info("realtime closed by server")
		c.transitionLocked(status.Disconnected)
		c.mu.Unlock()
		return
	}
	c.logger.Warn("realtime connection lost", zap.Int("code", int(code)), zap.Error(err))
	after := c.scheduleReconnectLocked(err)
	c.mu.Unlock()
	if after != nil {
		after()
	}
}

// scheduleReconnectLocked arms the backoff timer, or gives up. The returned func
// must run after c.mu is released.
func (c *Conn) scheduleReconnectLocked(cause error) func() {
	if c.tokens.Access() == "" {
		c.logger.Info("session ended, not reconnecting")
		c.transitionLocked(status.Disconnected)
		return nil
	}

	c.attempts++
	if c.attempts > c.opts.MaxAttempts {
		c.attempts = 0
		c.transitionLocked(status.Failed)
		err := fmt.Errorf("%w: %v", ErrReconnectFailed, cause)
		c.logger.Error("realtime gave up", zap.Int("max_attempts", c.opts.MaxAttempts), zap.Error(cause))
		c.bus.Emit(bus.RealtimeFailed, Failure{Channel: c.Channel(), Err: err})
		onError := c.handlers.Error
		if onError == nil {
			return nil
		}
		return func() { onError(err) }
	}

	delay := c.backoff(c.attempts)
	c.transitionLocked(status.Reconnecting)
	c.logger.Info("reconnect scheduled", zap.Int("attempt", c.attempts), zap.Duration("delay", delay))
	epoch := c.epoch
	c.timer = time.AfterFunc(delay, func() { c.reconnect(epoch) })
	return nil
}

func (c *Conn) reconnect(epoch int) {
	c.mu.Lock()
	if epoch != c.epoch || c.ws != nil || c.dialing != nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	ch, ep := c.beginDialLocked()
	c.mu.Unlock()

	_ = c.dial(context.Background(), ch, ep, true)
}

// backoff returns base * 2^(attempt-1), capped at MaxDelay.
func (c *Conn) backoff(attempt int) time.Duration {
	d := c.opts.BaseDelay
	for i := 1; i < attempt && d < c.opts.MaxDelay; i++ {
		d *= 2
	}
	return min(d, c.opts.MaxDelay)
}

func (c *Conn) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Conn) transitionLocked(to status.State) {
	if err := c.machine.Transition(to); err != nil {
		c.logger.Debug("ignored state change", zap.Error(err))
	}
}

func (c *Conn) dispatch(data []byte) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		c.logger.Warn("malformed realtime frame", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}

	c.mu.Lock()
	h := c.handlers
	c.mu.Unlock()

	chatID := f.ChatID
	if chatID == "" {
		chatID = c.scope
	}

	switch f.Type {
	case "message", "new_message", "chat_message":
		msg, ok := f.chatMessage()
		if !ok {
			c.logger.Warn("message frame without message body")
			return
		}
		if msg.Chat == "" {
			msg.Chat = chatID
		}
		if h.Message != nil {
			h.Message(msg, f.TempID)
		}
	case "typing_start", "typing_stop", "typing":
		evt := TypingEvent{ChatID: chatID, UserID: f.UserID, Username: f.Username}
		start := f.Type == "typing_start" || (f.Type == "typing" && f.IsTyping != nil && *f.IsTyping)
		if start && h.TypingStart != nil {
			h.TypingStart(evt)
		} else if !start && h.TypingStop != nil {
			h.TypingStop(evt)
		}
	case "read_receipt", "messages_read":
		if h.Read != nil {
			h.Read(ReadReceipt{ChatID: chatID, UserID: f.UserID, MessageIDs: f.MessageIDs})
		}
	case "connection_established", "connected":
		c.logger.Debug("connection confirmed", zap.String("user_id", string(f.UserID)))
		if h.Connected != nil {
			h.Connected(f.UserID)
		}
	case "error":
		err := &ServerError{Code: f.Code, Message: f.text()}
		c.logger.Warn("realtime error frame", zap.Error(err))
		if h.Error != nil {
			h.Error(err)
		}
	case "notification":
		n := Notification{Category: f.Category, Title: f.Title, Message: f.text()}
		if f.Notification != nil {
			n = *f.Notification
		}
		if h.Notification != nil {
			h.Notification(n)
		}
	default:
		c.logger.Warn("unknown realtime frame", zap.String("type", f.Type))
	}
}

func (c *Conn) write(ctx context.Context, f outboundFrame) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, ws, f); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

func (c *Conn) chat(chatID backend.ID) backend.ID {
	if chatID == "" {
		return c.scope
	}
	return chatID
}

// SendText sends a text message. tempID is echoed back by backends that support it.
func (c *Conn) SendText(ctx context.Context, chatID backend.ID, text, tempID string) error {
	return c.write(ctx, outboundFrame{Type: FrameSendMessage, ChatID: c.chat(chatID), Content: text, MessageType: backend.MessageText, TempID: tempID})
}

// SendImage sends a message referencing an already uploaded image.
func (c *Conn) SendImage(ctx context.Context, chatID backend.ID, imageURL, tempID string) error {
	return c.write(ctx, outboundFrame{Type: FrameSendMessage, ChatID: c.chat(chatID), ImageURL: imageURL, MessageType: backend.MessageImage, TempID: tempID})
}

// TypingStart tells the peer the user started typing.
func (c *Conn) TypingStart(ctx context.Context, chatID backend.ID) error {
	return c.write(ctx, outboundFrame{Type: FrameTypingStart, ChatID: c.chat(chatID)})
}

// TypingStop tells the peer the user stopped typing.
func (c *Conn) TypingStop(ctx context.Context, chatID backend.ID) error {
	return c.write(ctx, outboundFrame{Type: FrameTypingStop, ChatID: c.chat(chatID)})
}

// MarkRead acknowledges a conversation.
func (c *Conn) MarkRead(ctx context.Context, chatID backend.ID) error {
	return c.write(ctx, outboundFrame{Type: FrameMarkRead, ChatID: c.chat(chatID)})
}

// Join subscribes the socket to a conversation's events.
func (c *Conn) Join(ctx context.Context, chatID backend.ID) error {
	return c.write(ctx, outboundFrame{Type: FrameJoinChat, ChatID: c.chat(chatID)})
}

// Leave unsubscribes the socket from a conversation's events.
func (c *Conn) Leave(ctx context.Context, chatID backend.ID) error {
	return c.write(ctx, outboundFrame{Type: FrameLeaveChat, ChatID: c.chat(chatID)})
}
