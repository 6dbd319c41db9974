package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"huddle/internal/featureflags"
	"huddle/internal/middleware"
	"huddle/internal/models"
	"huddle/internal/observability"
	"huddle/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const (
	queueFullError   = "queue full"
	noDeviceError    = "no device tokens"
	activeIDPageSize = 1000
)

// Sender is what services use to notify a user.
type Sender interface {
	Send(ctx context.Context, msg Message) (*models.Notification, error)
}

// DispatcherConfig sizes the push worker pool.
type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	RatePerSec  float64
	Burst       int
	PushTimeout time.Duration
}

// DefaultDispatcherConfig returns the production defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:     4,
		QueueSize:   1024,
		RatePerSec:  50,
		Burst:       10,
		PushTimeout: 10 * time.Second,
	}
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	def := DefaultDispatcherConfig()
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = def.RatePerSec
	}
	if c.Burst <= 0 {
		c.Burst = def.Burst
	}
	if c.PushTimeout <= 0 {
		c.PushTimeout = def.PushTimeout
	}
	return c
}

type pushJob struct {
	notificationID uint
	receiverID     uint
	notifType      models.NotificationType
	payload        PushPayload
}

// Dispatcher stores notifications synchronously and pushes them to devices from a
// bounded worker pool. Push outcomes are written back to the stored row and never
// reach the caller.
type Dispatcher struct {
	notifications repository.NotificationRepository
	devices       repository.DeviceTokenRepository
	users         repository.UserRepository

	pusher    Pusher
	publisher *Publisher
	flags     *featureflags.Manager
	templates *Templates
	limiter   *rate.Limiter
	cfg       DispatcherConfig

	queue chan pushJob

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// DispatcherDeps are the collaborators of a Dispatcher. Publisher, Flags and
// Templates are optional.
type DispatcherDeps struct {
	Notifications repository.NotificationRepository
	Devices       repository.DeviceTokenRepository
	Users         repository.UserRepository
	Pusher        Pusher
	Publisher     *Publisher
	Flags         *featureflags.Manager
	Templates     *Templates
}

// NewDispatcher creates a dispatcher. Call Start to run the workers.
func NewDispatcher(deps DispatcherDeps, cfg DispatcherConfig) *Dispatcher {
	cfg = cfg.withDefaults()
	pusher := deps.Pusher
	if pusher == nil {
		pusher = NewLogPusher()
	}
	templates := deps.Templates
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &Dispatcher{
		notifications: deps.Notifications,
		devices:       deps.Devices,
		users:         deps.Users,
		pusher:        pusher,
		publisher:     deps.Publisher,
		flags:         deps.Flags,
		templates:     templates,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		cfg:           cfg,
		queue:         make(chan pushJob, cfg.QueueSize),
	}
}

// Start launches the worker pool. Workers exit when Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	middleware.Logger.Info("notification dispatcher started",
		"workers", d.cfg.Workers, "queue_size", d.cfg.QueueSize, "pusher", d.pusher.Name())
}

// Stop refuses new jobs and waits for queued ones to drain. When ctx expires first,
// in-flight pushes are cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	cancel := d.cancel
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if cancel != nil {
			cancel()
		}
		return nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		<-done
		return ctx.Err()
	}
}

// Send stores one notification, publishes it to the receiver's sockets and queues
// the device push. Push problems never fail the call.
func (d *Dispatcher) Send(ctx context.Context, msg Message) (*models.Notification, error) {
	if msg.ReceiverID == 0 {
		return nil, models.NewValidationError("notification receiver is required")
	}
	if err := d.templates.Render(&msg); err != nil {
		return nil, models.NewInternalError(err)
	}

	status, err := d.initialStatus(ctx, msg.ReceiverID)
	if err != nil {
		return nil, err
	}
	record := msg.record(status)
	if err := d.notifications.Create(ctx, &record); err != nil {
		return nil, err
	}
	observability.NotificationsCreated.WithLabelValues(string(record.Type)).Inc()

	d.publisher.PublishUser(ctx, record.ReceiverID, EventNotificationCreated, record)
	d.dispatch(ctx, &record)
	return &record, nil
}

// SendToUsers stores one notification per receiver in batches and queues their pushes.
// It returns the number of rows written.
func (d *Dispatcher) SendToUsers(ctx context.Context, receiverIDs []uint, msg Message) (int, error) {
	receivers := uniqueIDs(receiverIDs)
	if len(receivers) == 0 {
		return 0, nil
	}
	if err := d.templates.Render(&msg); err != nil {
		return 0, models.NewInternalError(err)
	}

	withDevices, err := d.devices.UserIDsWithDevices(ctx, receivers)
	if err != nil {
		return 0, err
	}

	records := make([]models.Notification, 0, len(receivers))
	for _, id := range receivers {
		m := msg
		m.ReceiverID = id
		status := models.DeliveryNoDevice
		switch {
		case !d.pushEnabled(id):
			status = models.DeliveryDisabled
		case withDevices[id]:
			status = models.DeliveryPending
		}
		records = append(records, m.record(status))
	}

	if err := d.notifications.CreateBatch(ctx, records); err != nil {
		return 0, err
	}
	observability.NotificationsCreated.WithLabelValues(string(msg.Type)).Add(float64(len(records)))

	for i := range records {
		d.publisher.PublishUser(ctx, records[i].ReceiverID, EventNotificationCreated, records[i])
		d.dispatch(ctx, &records[i])
	}
	return len(records), nil
}

// SendToAll notifies every active user, paging through ids.
func (d *Dispatcher) SendToAll(ctx context.Context, msg Message) (int, error) {
	if d.users == nil {
		return 0, errors.New("dispatcher has no user repository")
	}
	var (
		total   int
		afterID uint
	)
	for {
		ids, err := d.users.ActiveIDs(ctx, afterID, activeIDPageSize)
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}
		n, err := d.SendToUsers(ctx, ids, msg)
		total += n
		if err != nil {
			return total, err
		}
		afterID = ids[len(ids)-1]
		if len(ids) < activeIDPageSize {
			return total, nil
		}
	}
}

// QueueDepth reports how many pushes are waiting.
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

func (d *Dispatcher) pushEnabled(userID uint) bool {
	return d.flags.EnabledOr(featureflags.FlagPushNotifications, userID, true)
}

func (d *Dispatcher) initialStatus(ctx context.Context, receiverID uint) (models.DeliveryStatus, error) {
	if !d.pushEnabled(receiverID) {
		return models.DeliveryDisabled, nil
	}
	withDevices, err := d.devices.UserIDsWithDevices(ctx, []uint{receiverID})
	if err != nil {
		return "", err
	}
	if !withDevices[receiverID] {
		return models.DeliveryNoDevice, nil
	}
	return models.DeliveryPending, nil
}

// dispatch queues a push for pending rows and counts the others as settled.
func (d *Dispatcher) dispatch(ctx context.Context, n *models.Notification) {
	if n.DeliveryStatus != models.DeliveryPending {
		observability.NotificationPushTotal.WithLabelValues(string(n.DeliveryStatus)).Inc()
		return
	}
	d.enqueue(ctx, jobFor(n))
}

func jobFor(n *models.Notification) pushJob {
	data := map[string]string{
		"notification_id": strconv.FormatUint(uint64(n.ID), 10),
		"type":            string(n.Type),
	}
	if n.InstanceID != nil {
		data["instance_id"] = strconv.FormatUint(uint64(*n.InstanceID), 10)
		data["instance_type"] = string(n.InstanceType)
	}
	return pushJob{
		notificationID: n.ID,
		receiverID:     n.ReceiverID,
		notifType:      n.Type,
		payload: PushPayload{
			Title: n.Title,
			Body:  n.Message,
			Image: n.Image,
			Data:  data,
		},
	}
}

// enqueue never blocks. A full or stopped queue marks the row failed.
func (d *Dispatcher) enqueue(ctx context.Context, job pushJob) {
	d.mu.RLock()
	if d.stopped {
		d.mu.RUnlock()
		d.drop(ctx, job, "dispatcher stopped")
		return
	}
	select {
	case d.queue <- job:
		d.mu.RUnlock()
		observability.NotificationQueueDepth.Set(float64(len(d.queue)))
	default:
		d.mu.RUnlock()
		d.drop(ctx, job, queueFullError)
	}
}

func (d *Dispatcher) drop(ctx context.Context, job pushJob, reason string) {
	observability.NotificationPushTotal.WithLabelValues("dropped").Inc()
	middleware.Logger.WarnContext(ctx, "push dropped",
		"notification_id", job.notificationID, "reason", reason)
	if err := d.notifications.SetDeliveryStatus(context.WithoutCancel(ctx),
		[]uint{job.notificationID}, models.DeliveryFailed, reason); err != nil {
		middleware.Logger.ErrorContext(ctx, "mark dropped push failed",
			"notification_id", job.notificationID, "error", err)
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for job := range d.queue {
		observability.NotificationQueueDepth.Set(float64(len(d.queue)))
		d.process(ctx, job)
	}
}

func (d *Dispatcher) process(ctx context.Context, job pushJob) {
	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.Error("panic in push worker", "notification_id", job.notificationID, "panic", r)
		}
	}()

	span, ctx := observability.NewSpan(ctx, "notifications.push")
	defer span.End()
	span.AddAttributes(
		attribute.Int64("notification.id", int64(job.notificationID)),
		attribute.Int64("notification.receiver_id", int64(job.receiverID)),
		attribute.String("notification.type", string(job.notifType)),
	)

	status, lastErr := d.deliver(ctx, job)
	if lastErr != "" {
		span.SetError(errors.New(lastErr))
	}
	span.AddAttributes(attribute.String("notification.delivery_status", string(status)))

	if err := d.notifications.RecordDelivery(ctx, job.notificationID, status, lastErr); err != nil {
		middleware.Logger.ErrorContext(ctx, "record push outcome failed",
			"notification_id", job.notificationID, "error", err)
	}
}

// deliver pushes to every token of the receiver. One success is enough for the row
// to count as delivered.
func (d *Dispatcher) deliver(ctx context.Context, job pushJob) (models.DeliveryStatus, string) {
	tokens, err := d.devices.ListByUser(ctx, job.receiverID)
	if err != nil {
		observability.NotificationPushTotal.WithLabelValues("failed").Inc()
		return models.DeliveryFailed, err.Error()
	}
	if len(tokens) == 0 {
		observability.NotificationPushTotal.WithLabelValues("no_device").Inc()
		return models.DeliveryNoDevice, noDeviceError
	}

	if unread, err := d.notifications.CountUnread(ctx, job.receiverID); err == nil {
		job.payload.Badge = int(unread)
	}

	var (
		delivered int
		lastErr   error
	)
	for _, token := range tokens {
		if err := d.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}
		if err := d.pushOne(ctx, token, job.payload); err != nil {
			lastErr = err
			continue
		}
		delivered++
	}

	if delivered > 0 {
		observability.NotificationPushTotal.WithLabelValues("delivered").Inc()
		return models.DeliveryDelivered, ""
	}
	observability.NotificationPushTotal.WithLabelValues("failed").Inc()
	if lastErr == nil {
		lastErr = errors.New("push failed")
	}
	return models.DeliveryFailed, lastErr.Error()
}

func (d *Dispatcher) pushOne(ctx context.Context, token models.DeviceToken, payload PushPayload) error {
	pushCtx, cancel := context.WithTimeout(ctx, d.cfg.PushTimeout)
	defer cancel()

	start := time.Now()
	err := d.pusher.Push(pushCtx, token.Token, payload)
	observability.NotificationPushLatency.Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrTokenUnregistered) {
		if delErr := d.devices.DeleteToken(ctx, token.Token); delErr != nil {
			middleware.Logger.WarnContext(ctx, "delete unregistered token failed",
				"device_token_id", token.ID, "error", delErr)
		}
	}
	middleware.Logger.WarnContext(ctx, "push to device failed",
		"device_token_id", token.ID, "platform", token.Platform, "error", err)
	return fmt.Errorf("%s token %d: %w", token.Platform, token.ID, err)
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
