package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	sse "github.com/tmaxmax/go-sse"
)

const (
	sessionTopic = "session"

	EventDeadline = "deadline"
	EventResolved = "resolved"
)

// events fans session state changes out to every open tab.
type events struct {
	provider sse.Provider
	closing  chan struct{}
	once     sync.Once
	mu       sync.Mutex
	final    *sse.Message
	log      *slog.Logger
}

type channelMessageWriter struct {
	ch chan *sse.Message
}

func (w *channelMessageWriter) Send(message *sse.Message) error {
	select {
	case w.ch <- message.Clone():
		return nil
	default:
		return errors.New("sse subscriber is backpressured")
	}
}

func (w *channelMessageWriter) Flush() error {
	return nil
}

func newEvents(log *slog.Logger) (*events, error) {
	replayer, err := sse.NewValidReplayer(time.Hour, false)
	if err != nil {
		return nil, err
	}
	return &events{
		provider: &sse.Joe{Replayer: replayer},
		closing:  make(chan struct{}),
		log:      log,
	}, nil
}

func newMessage(eventType string, payload any) (*sse.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	msg := &sse.Message{
		ID:   sse.ID(ulid.Make().String()),
		Type: sse.Type(eventType),
	}
	msg.AppendData(string(data))
	return msg, nil
}

func (e *events) publish(eventType string, payload any) *sse.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	msg, err := newMessage(eventType, payload)
	if err != nil {
		e.log.Warn("failed to encode event", slog.String("type", eventType), slog.Any("err", err))
		return nil
	}
	if err := e.provider.Publish(msg, []string{sessionTopic}); err != nil && !errors.Is(err, sse.ErrProviderClosed) {
		e.log.Debug("failed to publish event", slog.String("type", eventType), slog.Any("err", err))
	}
	return msg
}

// finish publishes the last event of the session and closes every stream.
// Publishing is asynchronous, so streams that close before the provider
// delivers it send it themselves.
func (e *events) finish(ctx context.Context, eventType string, payload any) {
	msg := e.publish(eventType, payload)
	e.mu.Lock()
	e.final = msg
	e.mu.Unlock()
	e.shutdown(ctx)
}

func (e *events) finalMessage() *sse.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.final
}

func (e *events) shutdown(ctx context.Context) {
	e.once.Do(func() {
		close(e.closing)
		_ = e.provider.Shutdown(ctx)
	})
}

// serve streams events to one tab, starting with snapshot. A reconnecting
// tab sends Last-Event-ID and gets everything it missed replayed.
func (e *events) serve(w http.ResponseWriter, r *http.Request, snapshot *sse.Message) {
	lastEventID := strings.TrimSpace(r.Header.Get("Last-Event-ID"))

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	ready := &sse.Message{}
	ready.AppendComment("ready")
	if err := sess.Send(ready); err != nil {
		return
	}
	if snapshot != nil {
		if err := sess.Send(snapshot); err != nil {
			return
		}
	}
	_ = sess.Flush()

	writer := &channelMessageWriter{ch: make(chan *sse.Message, 32)}
	sub := sse.Subscription{
		Client: writer,
		Topics: []string{sessionTopic},
	}
	if lastEventID != "" {
		if id, err := sse.NewID(lastEventID); err == nil {
			sub.LastEventID = id
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	subscribeErr := make(chan error, 1)
	go func() {
		subscribeErr <- e.provider.Subscribe(ctx, sub)
	}()

	var lastSent sse.EventID
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.closing:
			e.drain(sess, writer, lastSent)
			return
		case <-subscribeErr:
			e.drain(sess, writer, lastSent)
			return
		case message := <-writer.ch:
			if err := sess.Send(message); err != nil {
				return
			}
			lastSent = message.ID
			_ = sess.Flush()
		}
	}
}

// drain sends messages already queued for the tab, then the final event if
// the provider had not delivered it yet.
func (e *events) drain(sess *sse.Session, writer *channelMessageWriter, lastSent sse.EventID) {
	for {
		select {
		case message := <-writer.ch:
			if err := sess.Send(message); err != nil {
				return
			}
			lastSent = message.ID
		default:
			if final := e.finalMessage(); final != nil && final.ID != lastSent {
				_ = sess.Send(final)
			}
			_ = sess.Flush()
			return
		}
	}
}
