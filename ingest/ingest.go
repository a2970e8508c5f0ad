package ingest

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/sipwatch/sipwatch/callstore"
	"github.com/sipwatch/sipwatch/sipmsg"
)

type constError string

func (e constError) Error() string { return string(e) }

const (
	// ErrFull indicates that more outstanding packets await admission than
	// the internal queue can hold; the packet passed to Accept is dropped.
	ErrFull = constError("ingest queue is full")
)

// Ingester receives packets from the capture frontend and feeds them to a
// callstore.Registry, generalizing collect.Collecter from filtering raw
// layers.SIP messages before publish to admitting packets into the call
// registry before any consumer ever sees them. It uses an internal channel
// to queue so that Accept never blocks the capture loop.
type Ingester struct {
	metrics *Metrics
	reg     *callstore.Registry
	packets chan callstore.Packet
}

// New returns an Ingester that admits packets into reg. depth controls how
// many packets may be internally queued before Accept starts discarding.
func New(reg *callstore.Registry, depth int) *Ingester {
	return &Ingester{
		reg:     reg,
		metrics: NewMetrics(),
		packets: make(chan callstore.Packet, depth),
	}
}

// Accept enqueues pkt for admission. If the internal queue is full it drops
// the packet and returns ErrFull, matching the "capture frontend should
// never block" requirement implied by §5's bounded-time guarantee.
func (i *Ingester) Accept(pkt callstore.Packet) error {
	select {
	case i.packets <- pkt:
		return nil
	default:
		i.metrics.QueueDropped.Inc()
		return ErrFull
	}
}

// Run drains the internal queue, admitting each packet into the registry,
// until ctx is cancelled or the queue is closed.
func (i *Ingester) Run(ctx context.Context) {
	log := zerolog.Ctx(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-i.packets:
			if !ok {
				log.Info().Msg("ingest queue closed, run loop exiting")
				return
			}
			msg, err := i.reg.CheckPacket(pkt)
			if err != nil {
				log.Err(err).Msg("check packet failed")
				continue
			}
			if msg == nil {
				continue
			}
			log.Debug().Str("summary", sipmsg.GetMsgHeader(msg)).Msg("accepted message")
		}
	}
}

// Metrics returns a list of prometheus.Collector interfaces, suitable for
// passing to a prometheus.Registry.
func (i *Ingester) Metrics() []prometheus.Collector { return i.metrics.List() }
