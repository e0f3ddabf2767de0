// Package events announces confirmed orders to the invoice and email
// workers.
package events

import (
	"context"
	"strconv"
	"sync"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/candle-checkout/internal/domain/checkout"
	"github.com/xenking/candle-checkout/internal/domain/order"
)

// TypeOrderConfirmed is the event_type attribute of confirmation events.
const TypeOrderConfirmed = "order.confirmed"

const defaultPublishTimeout = 15 * time.Second

type publisher interface {
	Publish(context.Context, *pubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

var (
	_ checkout.Notifier = (*PubSubNotifier)(nil)
	_ checkout.Notifier = LogNotifier{}
)

// PubSubNotifier publishes order.confirmed events to a Pub/Sub topic.
// Publishing never blocks the caller; server acks are awaited in the
// background and failures are logged.
type PubSubNotifier struct {
	pub     publisher
	timeout time.Duration
	now     func() time.Time
	pending sync.WaitGroup
}

// NewPubSubNotifier publishes through p, a publisher from
// pubsub.Client.Publisher.
func NewPubSubNotifier(p *pubsub.Publisher) *PubSubNotifier {
	return newPubSubNotifier(&gcpPublisher{Publisher: p})
}

func newPubSubNotifier(p publisher) *PubSubNotifier {
	return &PubSubNotifier{
		pub:     p,
		timeout: defaultPublishTimeout,
		now:     time.Now,
	}
}

// OrderConfirmed hands the event to the publisher and returns.
func (n *PubSubNotifier) OrderConfirmed(ctx context.Context, o *order.Order) error {
	id := uuid.New()
	msg := &pubsub.Message{
		Data: EncodeOrderConfirmed(o),
		Attributes: map[string]string{
			"event_id":     id.String(),
			"event_type":   TypeOrderConfirmed,
			"order_number": strconv.FormatInt(o.Number, 10),
			"created_at":   n.now().UTC().Format(time.RFC3339Nano),
		},
	}

	// The request may finish before the ack arrives.
	ctx = context.WithoutCancel(ctx)
	res := n.pub.Publish(ctx, msg)

	lg := zctx.From(ctx).With(
		zap.String("order_reference", o.Reference),
		zap.String("event_id", id.String()),
	)
	n.pending.Add(1)
	go func() {
		defer n.pending.Done()

		ctx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()

		serverID, err := res.Get(ctx)
		if err != nil {
			lg.Error("Order confirmation not published",
				zap.Error(errors.Wrapf(err, "publish %s", TypeOrderConfirmed)),
			)
			return
		}
		lg.Debug("Order confirmation published", zap.String("message_id", serverID))
	}()
	return nil
}

// Wait blocks until every published event was acked or timed out.
func (n *PubSubNotifier) Wait() {
	n.pending.Wait()
}

// LogNotifier only logs confirmations. It is used when no topic is
// configured.
type LogNotifier struct{}

// OrderConfirmed logs o.
func (LogNotifier) OrderConfirmed(ctx context.Context, o *order.Order) error {
	zctx.From(ctx).Info("Order confirmed",
		zap.String("order_reference", o.Reference),
		zap.String("email", o.Customer.Email),
		zap.String("total", o.Breakdown.Total.StringFixed(2)),
	)
	return nil
}

// EncodeOrderConfirmed renders the event payload.
func EncodeOrderConfirmed(o *order.Order) []byte {
	b := o.Breakdown.Rounded()

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str(TypeOrderConfirmed) })
		e.Field("orderNumber", func(e *jx.Encoder) { e.Int64(o.Number) })
		e.Field("reference", func(e *jx.Encoder) { e.Str(o.Reference) })
		e.Field("attemptId", func(e *jx.Encoder) { e.Str(o.AttemptID.String()) })
		e.Field("customer", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("uid", func(e *jx.Encoder) { e.Str(o.Customer.UID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(o.Customer.Name) })
				e.Field("email", func(e *jx.Encoder) { e.Str(o.Customer.Email) })
				e.Field("phone", func(e *jx.Encoder) { e.Str(o.Customer.Phone) })
			})
		})
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range o.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(l.ProductID) })
						e.Field("title", func(e *jx.Encoder) { e.Str(l.Title) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.EffectiveQuantity()) })
						e.Field("unitPrice", func(e *jx.Encoder) { e.Str(l.EffectivePrice().StringFixed(2)) })
					})
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { e.Str(b.Subtotal.StringFixed(2)) })
		e.Field("tax", func(e *jx.Encoder) { e.Str(b.Tax.StringFixed(2)) })
		e.Field("discount", func(e *jx.Encoder) { e.Str(b.DiscountAmount.StringFixed(2)) })
		e.Field("shipping", func(e *jx.Encoder) { e.Str(b.ShippingCost.StringFixed(2)) })
		e.Field("total", func(e *jx.Encoder) { e.Str(b.Total.StringFixed(2)) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(o.Payment.Currency) })
		e.Field("paymentId", func(e *jx.Encoder) { e.Str(o.Payment.PaymentID) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
	})
	return e.Bytes()
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
