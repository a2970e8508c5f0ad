package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/povilasv/prommod"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"
	"github.com/rs/zerolog"

	"github.com/sipwatch/sipwatch/callstore"
	"github.com/sipwatch/sipwatch/filters"
	"github.com/sipwatch/sipwatch/ingest"
	"github.com/sipwatch/sipwatch/publisher"
	"github.com/sipwatch/sipwatch/sipmsg"
	"github.com/sipwatch/sipwatch/sipsplitter"
)

var (
	// The following vars are meant to be filled in by
	// `go build -ldflags -X=main.<X>=<Value>`.

	// Version is the git tag of this build (v1.2.3)
	Version = "unknown"
	// Build is the git short hash ref of this build (123abcdef)
	Build = "unknown"
	// Branch is the git branch for this build (master)
	Branch = "unknown"
	// Date is when this build was created (2020-01-02T03:04:05Z)
	Date = "unknown"
)

// streamConn reads one TCP connection, splitting the byte stream into
// individual SIP messages before handing each to accept.
func streamConn(ctx context.Context, conn net.Conn, accept func(callstore.Packet) error) {
	log := zerolog.Ctx(ctx)
	defer conn.Close()

	src := sipmsg.NewEndpoint(tcpIP(conn.RemoteAddr()), tcpPort(conn.RemoteAddr()))
	dst := sipmsg.NewEndpoint(tcpIP(conn.LocalAddr()), tcpPort(conn.LocalAddr()))

	splitter := &sipsplitter.Splitter{}
	scanner := bufio.NewScanner(conn)
	scanner.Split(splitter.SplitSIP)
	scanner.Buffer(make([]byte, 4096), 1<<20)

	for scanner.Scan() {
		payload := append([]byte(nil), scanner.Bytes()...)
		if err := accept(callstore.Packet{
			Source:      src,
			Destination: dst,
			Transport:   sipmsg.TransportTCP,
			Timestamp:   time.Now(),
			Payload:     payload,
		}); err != nil {
			log.Warn().Err(err).Msg("dropping message from tcp stream")
		}
	}
	if err := scanner.Err(); err != nil {
		log.Debug().Err(err).Msg("tcp stream ended")
	}
}

func tcpIP(addr net.Addr) net.IP {
	if a, ok := addr.(*net.TCPAddr); ok {
		return a.IP
	}
	return nil
}

func tcpPort(addr net.Addr) uint16 {
	if a, ok := addr.(*net.TCPAddr); ok {
		return uint16(a.Port)
	}
	return 0
}

func serveTCP(ctx context.Context, listen string, accept func(callstore.Packet) error) error {
	log := zerolog.Ctx(ctx)
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", listen, err)
	}
	go func() { <-ctx.Done(); ln.Close() }()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Msg("accept failed")
			continue
		}
		go streamConn(ctx, conn, accept)
	}
}

func serveUDP(ctx context.Context, listen string, accept func(callstore.Packet) error) error {
	log := zerolog.Ctx(ctx)
	addr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", listen, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", listen, err)
	}
	go func() { <-ctx.Done(); conn.Close() }()

	dst := sipmsg.NewEndpoint(addr.IP, uint16(addr.Port))
	buf := make([]byte, 1<<16)
	for {
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Msg("udp read failed")
			continue
		}
		payload := append([]byte(nil), buf[:n]...)
		if result, _ := sipmsg.Validate(payload, sipmsg.TransportUDP); result != sipmsg.Complete {
			continue
		}
		src := sipmsg.NewEndpoint(raddr.IP, uint16(raddr.Port))
		if err := accept(callstore.Packet{
			Source:      src,
			Destination: dst,
			Transport:   sipmsg.TransportUDP,
			Timestamp:   time.Now(),
			Payload:     payload,
		}); err != nil {
			log.Warn().Err(err).Msg("dropping udp message")
		}
	}
}

func run(args []string, stdout io.Writer) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := zerolog.New(stdout).With().Timestamp().Str("app", "sipwatch").Logger()
	ctx = log.WithContext(ctx)

	cfg := &config{}
	if err := cfg.Load(args); err != nil {
		return fmt.Errorf("unable to load config: %w", err)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Debug().Msg("debug logging active")

	log.Debug().Msg("setting up signal handling")
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() { <-signals; log.Debug().Msg("received quit signal"); cancel() }()

	log.Debug().Msg("building call registry")
	reg, err := callstore.New(
		callstore.CaptureOpts{Limit: uint32(cfg.Limit), Rotate: cfg.Rotate},
		callstore.MatchOpts{Invite: cfg.Invite, Complete: cfg.Complete, Expr: cfg.SIPFilter},
		callstore.SortOpts{By: callstore.AttrCallIndex, Asc: true},
	)
	if err != nil {
		return fmt.Errorf("unable to build call registry: %w", err)
	}

	var engine filters.Engine
	if cfg.FilterField != "" {
		if err := engine.Set(filters.FieldFrom, cfg.FilterField, false, false); err != nil {
			return fmt.Errorf("unable to compile display filter: %w", err)
		}
	}

	log.Debug().Msg("building packet ingester")
	ingester := ingest.New(reg, 10000)
	go ingester.Run(ctx)

	var publ *publisher.MQTTPublisher
	if cfg.MQTTEnabled {
		log.Debug().Msg("creating MQTT publisher")
		publ = publisher.NewMQTT(cfg.MQTT)
		if err := publ.Connect(ctx); err != nil {
			return fmt.Errorf("unable to connect to MQTT broker: %w", err)
		}
		go publishChanges(ctx, reg, publ)
	}

	if cfg.MetricsAddr != "" {
		log.Debug().Msg("creating Prometheus registry")
		promreg := prometheus.NewRegistry()
		version.Version = Version
		version.Revision = Build
		version.Branch = Branch
		version.BuildDate = Date
		promreg.MustRegister(
			version.NewCollector("sipwatch"),
			prommod.NewCollector("sipwatch"),
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		)
		promreg.MustRegister(reg.Metrics().List()...)
		promreg.MustRegister(ingester.Metrics()...)

		log.Debug().Str("address", cfg.MetricsAddr).Str("path", "/metrics").Msg("publishing Prometheus endpoint")
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promreg, promhttp.HandlerOpts{}))
		srv := &http.Server{Handler: mux, Addr: cfg.MetricsAddr}
		go log.Err(srv.ListenAndServe()).Msg("http metrics endpoint failed")
	}

	log.Debug().Msg("starting idle-purge ticker")
	go func() {
		ticker := time.NewTicker(callstore.DefaultActiveIdleTimeout)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				reg.ActiveIdlePurge(now)
			}
		}
	}()

	log.Info().Str("listen", cfg.Listen).Msg("beginning SIP capture")
	go func() {
		if err := serveUDP(ctx, cfg.Listen, ingester.Accept); err != nil {
			log.Err(err).Msg("udp listener failed")
		}
	}()
	if err := serveTCP(ctx, cfg.Listen, ingester.Accept); err != nil {
		return fmt.Errorf("tcp listener failed: %w", err)
	}

	if publ != nil {
		publ.Close()
	}
	log.Info().Msg("shutdown complete.")
	return nil
}

// publishChanges polls the registry's change flag and, whenever it is set,
// publishes a lifecycle event for every active call, generalizing the
// teacher's per-message publish loop from raw messages to call-state
// snapshots.
func publishChanges(ctx context.Context, reg *callstore.Registry, publ *publisher.MQTTPublisher) {
	log := zerolog.Ctx(ctx)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !reg.HasChanged() {
				continue
			}
			for _, call := range reg.ActiveCalls() {
				event := publisher.NewCallEvent(call)
				if err := publ.Publish(ctx, event); err != nil {
					log.Warn().Err(err).Str("call_id", call.CallID).Msg("publish failed")
				}
			}
		}
	}
}

func main() {
	// these are stateful global module level changes; only do them in main
	time.Local = time.UTC
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.999Z07:00"

	if err := run(os.Args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
