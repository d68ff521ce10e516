// Package feed distributes race notifications to in-process subscribers,
// for example the event stream of the api server.
package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/rally-manager-go/log"
	"github.com/mpapenbr/rally-manager-go/pkg/notify"
)

var ErrClosed = errors.New("feed closed")

const listenerBuffer = 16

type (
	Feed struct {
		name           string
		source         chan *notify.RaceSettled
		listeners      []chan *notify.RaceSettled
		addListener    chan chan *notify.RaceSettled
		removeListener chan (<-chan *notify.RaceSettled)
		ctx            context.Context
		cancel         context.CancelFunc
		done           chan struct{}
		sendTimeout    time.Duration
		log            *log.Logger
		meter          metric.Meter

		numRcv       atomic.Int64
		numSnd       atomic.Int64
		numSkip      atomic.Int64
		numListeners atomic.Int64
	}
	Option func(*Feed)
)

var _ notify.Publisher = (*Feed)(nil)

func WithLogger(l *log.Logger) Option {
	return func(f *Feed) {
		f.log = l
	}
}

func WithMeter(m metric.Meter) Option {
	return func(f *Feed) {
		f.meter = m
	}
}

// WithSendTimeout sets how long a message waits for a slow listener
// before it is skipped for that listener.
func WithSendTimeout(d time.Duration) Option {
	return func(f *Feed) {
		f.sendTimeout = d
	}
}

func New(name string, opts ...Option) *Feed {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Feed{
		name:           name,
		source:         make(chan *notify.RaceSettled),
		addListener:    make(chan chan *notify.RaceSettled),
		removeListener: make(chan (<-chan *notify.RaceSettled)),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
		sendTimeout:    50 * time.Millisecond,
		log:            log.Default().Named("feed"),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.meter == nil {
		f.meter = otel.GetMeterProvider().Meter("rally.feed")
	}
	f.setupMetrics()
	go f.serve()
	return f
}

// Subscribe registers a listener. The channel is closed when the
// subscription is cancelled or the feed is closed.
func (f *Feed) Subscribe() <-chan *notify.RaceSettled {
	ch := make(chan *notify.RaceSettled, listenerBuffer)
	select {
	case f.addListener <- ch:
	case <-f.ctx.Done():
		close(ch)
	}
	return ch
}

func (f *Feed) CancelSubscription(ch <-chan *notify.RaceSettled) {
	select {
	case f.removeListener <- ch:
	case <-f.ctx.Done():
	}
}

func (f *Feed) PublishRaceSettled(ctx context.Context, msg *notify.RaceSettled) error {
	select {
	case f.source <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-f.ctx.Done():
		return ErrClosed
	}
}

// Close stops the feed and closes all listener channels
func (f *Feed) Close() {
	f.cancel()
	<-f.done
	f.log.Info("feed closed",
		log.String("name", f.name),
		log.Int64("rcv", f.numRcv.Load()),
		log.Int64("snd", f.numSnd.Load()),
		log.Int64("skip", f.numSkip.Load()))
}

//nolint:lll // readability
func (f *Feed) setupMetrics() {
	register := func(metricName, desc string, valueProvider func() int64) {
		if _, err := f.meter.Int64ObservableGauge(
			metricName,
			metric.WithDescription(desc),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(valueProvider(),
					metric.WithAttributes(attribute.String("name", f.name)))
				return nil
			})); err != nil {
			f.log.Error("failed to register metric",
				log.String("metric", metricName),
				log.ErrorField(err))
		}
	}
	register("rally.feed.rcv", "Number of received messages", f.numRcv.Load)
	register("rally.feed.snd", "Number of delivered messages", f.numSnd.Load)
	register("rally.feed.skip", "Number of messages skipped for slow listeners", f.numSkip.Load)
	register("rally.feed.listener", "Number of listeners", f.numListeners.Load)
}

func (f *Feed) serve() {
	defer func() {
		for _, listener := range f.listeners {
			close(listener)
		}
		f.listeners = nil
		f.numListeners.Store(0)
		close(f.done)
	}()
	for {
		select {
		case <-f.ctx.Done():
			return
		case ch := <-f.addListener:
			f.listeners = append(f.listeners, ch)
			f.numListeners.Store(int64(len(f.listeners)))
		case ch := <-f.removeListener:
			for i, listener := range f.listeners {
				if listener == ch {
					f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
					close(listener)
					break
				}
			}
			f.numListeners.Store(int64(len(f.listeners)))
		case msg := <-f.source:
			f.numRcv.Add(1)
			f.deliver(msg)
		}
	}
}

func (f *Feed) deliver(msg *notify.RaceSettled) {
	for _, listener := range f.listeners {
		select {
		case listener <- msg:
			f.numSnd.Add(1)
		default:
			// buffer is full, give the listener a moment
			select {
			case listener <- msg:
				f.numSnd.Add(1)
			case <-time.After(f.sendTimeout):
				f.numSkip.Add(1)
				f.log.Debug("skipped slow listener",
					log.String("name", f.name),
					log.String("runID", msg.RunID.String()))
			}
		}
	}
}
