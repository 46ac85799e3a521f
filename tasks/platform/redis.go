package platform

import (
	"bgactions/logger"
	"bgactions/tasks"
	"bgactions/tasks/events"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CommandOp is the operation a platform agent should carry out.
type CommandOp string

const (
	OpStart  CommandOp = "start"
	OpStop   CommandOp = "stop"
	OpUpdate CommandOp = "update_notification"
)

// Command is the envelope pushed onto the command list for the agent that
// owns the real OS integration.
type Command struct {
	ID           string                    `json:"id"`
	Op           CommandOp                 `json:"op"`
	TaskID       string                    `json:"task_id"`
	Start        *tasks.StartConfig        `json:"start,omitempty"`
	Notification *tasks.NotificationConfig `json:"notification,omitempty"`
	SentAt       time.Time                 `json:"sent_at"`
}

var (
	_ Platform     = (*Redis)(nil)
	_ LiveNotifier = (*Redis)(nil)
)

// Redis bridges the registry to an out-of-process platform agent. Commands
// are LPUSHed as JSON onto "<prefix>:commands" (the agent BRPOPs them, FIFO),
// and the agent publishes expirations on "<prefix>:expirations".
type Redis struct {
	client      *redis.Client
	prefix      string
	logger      *logger.Logger
	expirations *events.Channel[ExpirationSignal]
	pump        *expirationPump
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// NewRedis connects to url and subscribes to the expiration channel. The
// subscription is confirmed before NewRedis returns.
func NewRedis(url, prefix string, lg *logger.Logger) (*Redis, error) {
	if lg == nil {
		lg = logger.Discard()
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r := &Redis{
		client: client,
		prefix: prefix,
		logger: lg,
		expirations: events.NewChannel[ExpirationSignal](events.KindExpiration, func(_ events.Kind, p any) {
			lg.Error("expiration subscriber panicked", map[string]any{"panic": p})
		}),
	}

	pubsub := client.Subscribe(ctx, r.ExpirationsChannel())
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		client.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.ExpirationsChannel(), err)
	}

	r.pump = newExpirationPump(pubsub, r.deliver, lg)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.pump.Start(context.Background())
	}()

	return r, nil
}

// CommandsKey is the Redis list commands are pushed onto.
func (r *Redis) CommandsKey() string {
	return r.prefix + ":commands"
}

// ExpirationsChannel is the pub/sub channel expirations arrive on.
func (r *Redis) ExpirationsChannel() string {
	return r.prefix + ":expirations"
}

func (r *Redis) push(ctx context.Context, cmd Command) error {
	cmd.ID = uuid.New().String()
	cmd.SentAt = time.Now().UTC()

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal %s command: %w", cmd.Op, err)
	}

	// Left push for FIFO with right pop on the agent side
	if err := r.client.LPush(ctx, r.CommandsKey(), data).Err(); err != nil {
		return fmt.Errorf("failed to push %s command: %w", cmd.Op, err)
	}

	r.logger.TaskDebug(cmd.TaskID, "platform command sent", map[string]any{
		"command_id": cmd.ID,
		"op":         string(cmd.Op),
	})
	return nil
}

func (r *Redis) Start(ctx context.Context, cfg tasks.StartConfig) error {
	return r.push(ctx, Command{Op: OpStart, TaskID: cfg.ID, Start: &cfg})
}

func (r *Redis) Stop(ctx context.Context, id string) error {
	return r.push(ctx, Command{Op: OpStop, TaskID: id})
}

func (r *Redis) UpdateNotification(ctx context.Context, cfg tasks.NotificationConfig) error {
	return r.push(ctx, Command{Op: OpUpdate, TaskID: cfg.ID, Notification: &cfg})
}

// LiveNotifications reports true: the agent renders notification updates
// whichever strategy started the task.
func (r *Redis) LiveNotifications() bool {
	return true
}

func (r *Redis) SubscribeExpiration(fn func(ExpirationSignal)) func() {
	sub := r.expirations.Subscribe(fn)
	return func() {
		r.expirations.Unsubscribe(sub)
	}
}

func (r *Redis) deliver(sig ExpirationSignal) {
	r.expirations.Publish(sig)
}

// NextCommand blocks until a command is available. It is the agent side of
// the bridge.
func (r *Redis) NextCommand(ctx context.Context) (*Command, error) {
	// Blocking right pop with 0 timeout (wait indefinitely)
	result, err := r.client.BRPop(ctx, 0, r.CommandsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read command: %w", err)
	}

	// BRPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPop result format. Should have %d elements but got %d", 2, len(result))
	}

	var cmd Command
	if err := json.Unmarshal([]byte(result[1]), &cmd); err != nil {
		return nil, fmt.Errorf("failed to unmarshal command: %w", err)
	}
	return &cmd, nil
}

// PendingCommands returns the number of commands not yet taken by the agent.
func (r *Redis) PendingCommands(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.CommandsKey()).Result()
}

// PublishExpiration is the agent side of expiration delivery.
func (r *Redis) PublishExpiration(ctx context.Context, taskID string) error {
	data, err := json.Marshal(ExpirationSignal{TaskID: taskID})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.ExpirationsChannel(), data).Err()
}

// Close stops the expiration pump and closes the client.
func (r *Redis) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.pump.Stop()
		r.wg.Wait()
		err = r.client.Close()
	})
	return err
}

// expirationPump drains the pub/sub subscription and hands decoded signals
// to deliver until stopped.
type expirationPump struct {
	pubsub   *redis.PubSub
	deliver  func(ExpirationSignal)
	logger   *logger.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newExpirationPump(pubsub *redis.PubSub, deliver func(ExpirationSignal), lg *logger.Logger) *expirationPump {
	return &expirationPump{
		pubsub:  pubsub,
		deliver: deliver,
		logger:  lg,
		stopCh:  make(chan struct{}),
	}
}

// Start runs the receive loop; it returns when stopped or ctx is done.
func (p *expirationPump) Start(ctx context.Context) {
	p.logger.Debug("expiration pump starting")
	defer p.logger.Debug("expiration pump stopped")

	msgs := p.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return

		case <-p.stopCh:
			return

		case msg, ok := <-msgs:
			if !ok {
				return
			}
			p.handle(msg)
		}
	}
}

func (p *expirationPump) handle(msg *redis.Message) {
	var sig ExpirationSignal
	if msg.Payload != "" {
		if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
			// An unparseable payload still means something expired
			p.logger.Warn("malformed expiration payload", map[string]any{
				"channel": msg.Channel,
				"error":   err.Error(),
			})
			sig = ExpirationSignal{}
		}
	}
	p.deliver(sig)
}

// Stop signals the pump to exit and closes the subscription.
func (p *expirationPump) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		if err := p.pubsub.Close(); err != nil {
			p.logger.Warn("failed to close expiration subscription", map[string]any{
				"error": err.Error(),
			})
		}
	})
}
