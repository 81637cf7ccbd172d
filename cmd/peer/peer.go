package main

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkeye/duet/internal/adapters/rtc"
	sig "github.com/dkeye/duet/internal/adapters/signal"
	"github.com/dkeye/duet/internal/app/orch"
	"github.com/dkeye/duet/internal/config"
	"github.com/dkeye/duet/internal/core"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// runPeer wires one peer, runs start once the identity is registered, then
// serves chat until interrupted. Interruption always tears the peer down.
func runPeer(parent context.Context, start func(context.Context, *orch.Orchestrator) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	api, err := rtc.NewAPI(rtc.NewLoggerFactory(zerolog.WarnLevel))
	if err != nil {
		return err
	}
	capture, err := newCapture(cfg)
	if err != nil {
		return err
	}
	client := sig.New(sig.Config{
		URL:         cfg.Signal.URL,
		DialTimeout: cfg.Signal.DialTimeout,
		PingPeriod:  cfg.PingPeriod,
	}, api)

	o := orch.New(client, capture, core.Options{ICEServers: cfg.ICEServers()})
	defer func() {
		tctx, tcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer tcancel()
		if err := o.Teardown(tctx); err != nil {
			log.Error().Err(err).Str("module", "cmd.peer").Msg("teardown")
		}
		color.New(color.Faint).Println("Bye.")
	}()

	if _, err := o.InitIdentity(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return printMessages(gctx, o) })
	g.Go(func() error { return watchRemote(gctx, o) })
	g.Go(func() error { return printFailures(gctx, o) })
	g.Go(func() error {
		if err := start(gctx, o); err != nil {
			return err
		}
		return readChat(gctx, o)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readChat sends every stdin line as a chat message.
func readChat(ctx context.Context, o *orch.Orchestrator) error {
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	me := color.New(color.FgCyan)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				return ctx.Err()
			}
			if line == "" {
				continue
			}
			if line == "/end" {
				o.EndSession()
				color.New(color.Faint).Println("Session ended; chat stays open.")
				continue
			}
			if err := o.SendChatMessage(line); err != nil {
				color.New(color.FgRed).Printf("not sent: %v\n", err)
				continue
			}
			me.Printf("you: %s\n", line)
		}
	}
}

func printMessages(ctx context.Context, o *orch.Orchestrator) error {
	sub := o.Messages().Subscribe()
	defer sub.Cancel()
	them := color.New(color.FgYellow)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-sub.C():
			if !ok {
				return nil
			}
			if m != nil {
				them.Printf("%s [%s]: %s\n", m.From, m.At.Format("15:04:05"), m.Text)
			}
		}
	}
}

func printFailures(ctx context.Context, o *orch.Orchestrator) error {
	sub := o.Failures().Subscribe()
	defer sub.Cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err != nil {
				color.New(color.FgRed).Printf("session failed: %v\n", err)
			}
		}
	}
}

// watchRemote drains the received tracks and reports what arrives. A
// terminal cannot render video, so packets are only counted.
func watchRemote(ctx context.Context, o *orch.Orchestrator) error {
	sub := o.RemoteStream().Subscribe()
	defer sub.Cancel()
	reading := map[core.Track]bool{}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var current core.MediaStream
	scan := func() {
		if current == nil {
			return
		}
		for _, t := range current.Tracks() {
			rt, ok := t.(*rtc.RemoteTrack)
			if !ok || reading[t] {
				continue
			}
			reading[t] = true
			color.New(color.FgGreen).Printf("receiving %s (%s)\n", rt.Kind(), rt.MimeType())
			go drain(rt)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-sub.C():
			if !ok {
				return nil
			}
			if s == nil && current != nil {
				color.New(color.Faint).Println("remote media ended")
			}
			current = s
			scan()
		case <-ticker.C:
			scan()
		}
	}
}

func drain(t *rtc.RemoteTrack) {
	var packets, bytes int
	for {
		p, err := t.ReadRTP()
		if err != nil {
			log.Debug().Str("module", "cmd.peer").Str("track_id", t.ID()).
				Int("packets", packets).Int("bytes", bytes).Msg("remote track done")
			return
		}
		packets++
		bytes += len(p.Payload)
	}
}
