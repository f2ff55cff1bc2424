package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/streamcore/internal/admin"
	"github.com/danmuck/streamcore/internal/auth"
	"github.com/danmuck/streamcore/internal/config"
	"github.com/danmuck/streamcore/internal/logging"
	"github.com/danmuck/streamcore/internal/observability"
	"github.com/danmuck/streamcore/internal/protocol/appframe"
	"github.com/danmuck/streamcore/internal/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const requestStream = transport.RequestStreamID

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "streamctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("streamctl", flag.ContinueOnError)
	nodePath := fs.String("node", "", "node config (TOML)")
	runPath := fs.String("run", "", "run overrides (TOML)")
	modeFlag := fs.String("mode", "", "listen or dial")
	addrFlag := fs.String("addr", "", "stream address to listen on or dial")
	if err := fs.Parse(args); err != nil {
		return err
	}

	node := config.NodeConfig{}
	var err error
	if *nodePath != "" {
		node, err = config.Load(*nodePath)
	} else {
		node, err = config.Parse(nil)
	}
	if err != nil {
		return err
	}

	rc := defaultRunConfig()
	if *runPath != "" {
		if rc, err = loadRunConfig(*runPath); err != nil {
			return err
		}
	}
	if *modeFlag != "" {
		if rc.Mode, err = parseMode(*modeFlag); err != nil {
			return err
		}
	}
	if *addrFlag != "" {
		rc.Addr = *addrFlag
	}
	if rc.Addr == "" {
		rc.Addr = node.ListenAddr
	}

	logger := observability.InitLogger("streamctl")
	if lvl, ok := logging.ParseLevel(node.LogLevel); ok {
		zerolog.SetGlobalLevel(lvl)
	}
	tcfg := node.Transport()

	switch rc.Mode {
	case modeDial:
		ctx, cancel := context.WithTimeout(ctx, rc.Timeout)
		defer cancel()
		return dialEcho(ctx, rc, tcfg, logger, out)
	default:
		return listenEcho(ctx, node, rc.Addr, tcfg, logger)
	}
}

func listenEcho(ctx context.Context, node config.NodeConfig, addr string, tcfg transport.Config, logger zerolog.Logger) error {
	ln, err := transport.Listen(addr, tcfg)
	if err != nil {
		return err
	}
	var guard auth.Validator
	if node.AdminToken != "" {
		guard = auth.StaticToken(node.AdminToken)
	}
	adm := admin.New(node.ID, node.AdminAddr, node.CorsOrigins, guard)
	go func() {
		if err := adm.Serve(ctx); err != nil {
			logger.Error().Err(err).Msg("admin server stopped")
		}
	}()
	adm.SetReady(true)
	logger.Info().Str("addr", ln.Addr().String()).Msg("stream listener up")
	return serveEcho(ctx, ln, node.ID, tcfg, logger, adm)
}

// serveEcho accepts connections until ctx is done and echoes every stream
// back to its sender, closing each echoed stream once the peer's side ends.
func serveEcho(ctx context.Context, ln net.Listener, nodeID string, tcfg transport.Config, logger zerolog.Logger, adm *admin.Server) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	var seq atomic.Uint64
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		id := fmt.Sprintf("%s-%d", nodeID, seq.Add(1))
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := transport.NewConn(id, tcfg, observability.ConnLogger(logger, id, nc.RemoteAddr().String()))
			if adm != nil {
				adm.Track(c)
				defer adm.Untrack(id)
			}
			if err := echoConn(ctx, c, nc); err != nil {
				c.Close()
				log.Warn().Str("conn", id).Err(err).Msg("echo connection ended")
				return
			}
			c.Close()
		}()
	}
}

func echoConn(ctx context.Context, c *transport.Conn, nc net.Conn) error {
	defer nc.Close()
	served := make(chan error, 1)
	go func() {
		served <- c.Serve(ctx, nc)
	}()

	finished := make(map[uint64]bool)
	for {
		select {
		case err := <-served:
			return err
		case <-c.ReadableNotify():
		}
		for _, id := range c.Readable() {
			if _, err := c.Write(id, c.Read(id)); err != nil {
				return err
			}
		}
		for _, st := range c.Stats() {
			if st.RecvFinished && !finished[st.ID] {
				c.Finish(st.ID)
				finished[st.ID] = true
			}
		}
		if _, err := c.FlushConn(nc); err != nil {
			return err
		}
	}
}

// dialEcho sends the request and payload, then waits for both streams to be
// echoed back in full.
func dialEcho(ctx context.Context, rc runConfig, tcfg transport.Config, logger zerolog.Logger, out io.Writer) error {
	nc, err := transport.Dial(ctx, rc.Addr, tcfg)
	if err != nil {
		return err
	}
	defer nc.Close()

	id := fmt.Sprintf("dial-%d", time.Now().UnixNano())
	c := transport.NewConn(id, tcfg, observability.ConnLogger(logger, id, rc.Addr))
	defer c.Close()

	served := make(chan error, 1)
	go func() {
		served <- c.Serve(ctx, nc)
	}()

	if err := c.SendRequest([]byte(rc.Request)); err != nil {
		return err
	}
	if err := c.SendBody(rc.StreamID, []byte(rc.Payload)); err != nil {
		return err
	}
	if _, err := c.FlushConn(nc); err != nil {
		return err
	}

	dec := appframe.NewDecoder(0)
	var echoed []byte
	for !c.RecvFinished(requestStream) || !c.RecvFinished(rc.StreamID) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-served:
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return fmt.Errorf("connection closed before echo completed: %w", err)
		case <-c.ReadableNotify():
		}
		frames, err := c.ReadFrames(requestStream, dec)
		if err != nil {
			return err
		}
		for _, f := range frames {
			fmt.Fprintf(out, "%s %q\n", appframe.TypeName(f.Type), f.Payload)
		}
		echoed = append(echoed, c.Read(rc.StreamID)...)
	}
	if dec.Buffered() > 0 {
		return errors.New("request stream ended mid-frame")
	}
	body, err := appframe.DecodeFrames(echoed)
	if err != nil {
		return fmt.Errorf("decode echoed body: %w", err)
	}
	for _, f := range body {
		fmt.Fprintf(out, "stream %d %s %q\n", rc.StreamID, appframe.TypeName(f.Type), f.Payload)
	}
	return nil
}
