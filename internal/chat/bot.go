package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"finbot/internal/logger"
	"finbot/internal/models"
)

// ErrBotRunning is returned by Start when the bot is already running.
var ErrBotRunning = errors.New("chat bot already running")

// Inbound is a message received by a Messenger together with the address to
// reply to.
type Inbound struct {
	Message
	ReplyTo string
}

// Messenger connects the bot to a messaging network.
type Messenger interface {
	Channel() models.ChatChannel
	// Listen delivers messages until ctx is cancelled, then closes the channel.
	Listen(ctx context.Context) (<-chan Inbound, error)
	Send(ctx context.Context, to, text string) error
}

// Handler produces the reply to a message. *Dispatcher implements it.
type Handler interface {
	Handle(ctx context.Context, msg Message) string
}

// Status describes a Bot for the admin API.
type Status struct {
	Channel   models.ChatChannel `json:"channel"`
	Running   bool               `json:"running"`
	StartedAt *time.Time         `json:"startedAt,omitempty"`
	Handled   int64              `json:"handled"`
	Failed    int64              `json:"failed"`
	LastError string             `json:"lastError,omitempty"`
}

// Bot pumps messages from a Messenger through a Handler. It is constructed
// explicitly and owned by the caller; nothing starts until Start.
type Bot struct {
	messenger Messenger
	handler   Handler
	log       *zap.SugaredLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	status Status
}

// NewBot creates a stopped Bot.
func NewBot(messenger Messenger, handler Handler) *Bot {
	return &Bot{
		messenger: messenger,
		handler:   handler,
		log:       logger.Named("bot"),
		status:    Status{Channel: messenger.Channel()},
	}
}

// Start begins receiving messages. The bot runs until Stop or until ctx is
// cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		return ErrBotRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	inbox, err := b.messenger.Listen(runCtx)
	if err != nil {
		cancel()
		b.status.LastError = err.Error()
		return err
	}

	now := time.Now().UTC()
	b.cancel = cancel
	b.done = make(chan struct{})
	b.status.Running = true
	b.status.StartedAt = &now
	b.status.LastError = ""

	go b.run(runCtx, inbox, b.done)
	b.log.Infow("Chat bot started", "channel", b.status.Channel)
	return nil
}

func (b *Bot) run(ctx context.Context, inbox <-chan Inbound, done chan struct{}) {
	defer close(done)
	defer func() {
		b.mu.Lock()
		b.status.Running = false
		// A closed inbox ends the run without Stop; release it so Start works again.
		if b.done == done {
			b.cancel()
			b.cancel, b.done = nil, nil
		}
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-inbox:
			if !ok {
				return
			}
			b.handle(ctx, in)
		}
	}
}

func (b *Bot) handle(ctx context.Context, in Inbound) {
	reply := b.handler.Handle(ctx, in.Message)
	if reply == "" {
		return
	}
	err := b.messenger.Send(ctx, in.ReplyTo, reply)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.status.Failed++
		b.status.LastError = err.Error()
		b.log.Warnw("Failed to send chat reply", "to", in.ReplyTo, "error", err)
		return
	}
	b.status.Handled++
}

// Stop halts the bot and waits for the in-flight message to finish. Stopping
// a stopped bot is a no-op.
func (b *Bot) Stop() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	b.log.Infow("Chat bot stopped", "channel", b.messenger.Channel())
}

// Restart stops the bot if it is running and starts it again.
func (b *Bot) Restart(ctx context.Context) error {
	b.Stop()
	return b.Start(ctx)
}

// Status returns a snapshot of the bot's state.
func (b *Bot) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.status
	if st.StartedAt != nil {
		t := *st.StartedAt
		st.StartedAt = &t
	}
	return st
}
