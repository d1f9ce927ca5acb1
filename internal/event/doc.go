// Package event provides the publish/subscribe bus that connects the
// preview pipeline to its consumers.
//
// Events are published on hierarchical topics (see package topic) and
// delivered to every active subscription whose pattern matches. Delivery is
// synchronous by default: PublishSync returns after every synchronous
// handler has run, which is how the pipeline guarantees a patch is applied
// before the next render cycle starts. Subscriptions created with
// WithDeliveryMode(DeliveryAsync) are served in publish order by a single
// worker goroutine.
//
// # Usage
//
//	bus := event.NewBus()
//	_ = bus.Start()
//	defer bus.Stop(context.Background())
//
//	sub, _ := bus.SubscribeFunc(events.TopicPreviewPatch, func(ctx context.Context, ev any) error {
//		e := ev.(event.Event[events.PatchPublished])
//		view.Apply(e.Payload.Patch)
//		return nil
//	})
//	defer bus.Unsubscribe(sub)
//
// Payload types and topic constants live in package events.
package event
