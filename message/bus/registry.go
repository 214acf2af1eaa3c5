package bus

import (
	"context"
	"fmt"

	"fulfillment/entities"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/message"
)

type SubscriberConstructor func(consumerGroup string) (message.Subscriber, error)

// Handler binds one (topic, tag selector, consumer group) to a handler function.
type Handler struct {
	Name          string
	Topic         string
	Selector      string
	ConsumerGroup string
	Middlewares   []message.HandlerMiddleware

	handle func(msg *message.Message) error
}

func NewHandler[T any](
	name string,
	topic string,
	selector string,
	consumerGroup string,
	handle func(ctx context.Context, payload *T) error,
) Handler {
	return Handler{
		Name:          name,
		Topic:         topic,
		Selector:      selector,
		ConsumerGroup: consumerGroup,
		handle: func(msg *message.Message) error {
			payload := new(T)
			if err := marshaler.Unmarshal(msg, payload); err != nil {
				return entities.PermanentError{Err: fmt.Errorf("could not unmarshal %T: %w", payload, err)}
			}

			return handle(msg.Context(), payload)
		},
	}
}

func (h Handler) WithMiddlewares(middlewares ...message.HandlerMiddleware) Handler {
	h.Middlewares = append(append([]message.HandlerMiddleware{}, h.Middlewares...), middlewares...)
	return h
}

type subscription struct {
	handler  Handler
	selector TagSelector
}

// Registry is the startup-time mapping from (topic, tag selector) to handlers.
type Registry struct {
	subscriptions []subscription
	names         map[string]struct{}
	// listeners sharing a topic and a group would compete and ack each other's tags
	groups map[topicGroup]string
}

type topicGroup struct {
	topic string
	group string
}

func NewRegistry() *Registry {
	return &Registry{
		names:  map[string]struct{}{},
		groups: map[topicGroup]string{},
	}
}

func (r *Registry) Add(handlers ...Handler) error {
	for _, h := range handlers {
		if h.Name == "" || h.Topic == "" || h.ConsumerGroup == "" {
			return fmt.Errorf("handler %q: name, topic and consumer group must be set", h.Name)
		}
		if h.handle == nil {
			return fmt.Errorf("handler %q: must be created with NewHandler", h.Name)
		}
		if _, ok := r.names[h.Name]; ok {
			return fmt.Errorf("handler %q already registered", h.Name)
		}

		selector, err := ParseSelector(h.Selector)
		if err != nil {
			return fmt.Errorf("handler %q: %w", h.Name, err)
		}

		key := topicGroup{topic: h.Topic, group: h.ConsumerGroup}
		if other, ok := r.groups[key]; ok {
			return fmt.Errorf("handler %q: consumer group %q already listens on %s with handler %q", h.Name, h.ConsumerGroup, h.Topic, other)
		}

		r.names[h.Name] = struct{}{}
		r.groups[key] = h.Name
		r.subscriptions = append(r.subscriptions, subscription{handler: h, selector: selector})
	}

	return nil
}

func (r *Registry) Handlers() []Handler {
	handlers := make([]Handler, 0, len(r.subscriptions))
	for _, s := range r.subscriptions {
		handlers = append(handlers, s.handler)
	}
	return handlers
}

// Mount adds every registered handler to the router, each with its own subscriber.
func (r *Registry) Mount(router *message.Router, newSubscriber SubscriberConstructor) error {
	for _, s := range r.subscriptions {
		sub, err := newSubscriber(s.handler.ConsumerGroup)
		if err != nil {
			return fmt.Errorf("could not create subscriber for %s: %w", s.handler.Name, err)
		}

		h := router.AddNoPublisherHandler(s.handler.Name, s.handler.Topic, sub, s.dispatch)
		for _, m := range s.handler.Middlewares {
			h.AddMiddleware(m)
		}
	}

	return nil
}

func (s subscription) dispatch(msg *message.Message) error {
	tag := msg.Metadata.Get(TagMetadataKey)
	if !s.selector.Matches(tag) {
		return nil
	}

	log.FromContext(msg.Context()).
		WithField("handler", s.handler.Name).
		WithField("tag", tag).
		Debug("Dispatching message")

	return s.handler.handle(msg)
}
