package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/vburojevic/readtime/internal/domain"
	"github.com/vburojevic/readtime/internal/output"
	"github.com/vburojevic/readtime/internal/reporter"
	"github.com/vburojevic/readtime/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SimulateCmd opens synthetic reading contexts against a running tracker.
// Each context enters a page, feeds input for a while and reports ticks
// through a real reporter.
type SimulateCmd struct {
	Contexts  int           `short:"n" default:"2" help:"Number of synthetic contexts"`
	Duration  time.Duration `short:"d" default:"30s" help:"How long to run"`
	URL       string        `default:"https://demo.substack.com/p/reading-time" help:"Page URL every context reports"`
	InputFor  time.Duration `default:"0s" help:"Stop generating input after this long (0 = whole run)"`
	InputRate time.Duration `default:"500ms" help:"Interval between synthetic input signals"`
	Dismiss   bool          `help:"Dismiss the prompt as soon as it is shown"`
}

// Run executes the simulate command
func (c *SimulateCmd) Run(globals *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.simulate(ctx, globals)
}

// lockedEmitter serializes output from concurrent contexts. Write errors
// are logged at debug; a broken stdout must not stop the simulation.
type lockedEmitter struct {
	mu     sync.Mutex
	e      output.Emitter
	logger *zap.Logger
}

func (l *lockedEmitter) do(fn func(output.Emitter) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := fn(l.e)
	if err != nil && l.logger != nil {
		l.logger.Debug("output write failed", zap.Error(err))
	}
	return err
}

// simPrompter reports prompt transitions and optionally dismisses.
type simPrompter struct {
	out     *lockedEmitter
	quiet   bool
	dismiss func(contextID string)
}

func (p *simPrompter) Show(contextID string, result domain.TickResult) {
	if !p.quiet {
		p.out.do(func(e output.Emitter) error { return e.WriteTick(result) })
	}
	if p.dismiss != nil {
		go p.dismiss(contextID)
	}
}

func (p *simPrompter) Hide(contextID string) {
	if !p.quiet {
		p.out.do(func(e output.Emitter) error {
			return e.WriteInfo("prompt hidden", map[string]any{"context_id": contextID})
		})
	}
}

func (c *SimulateCmd) simulate(ctx context.Context, globals *Globals) error {
	if err := validateFlags(globals); err != nil {
		return err
	}
	if c.Contexts < 1 {
		return outputErrorCommon(globals, codeInvalidFlags, "--contexts must be at least 1")
	}
	if c.Duration <= 0 {
		return outputErrorCommon(globals, codeInvalidFlags, "--duration must be positive")
	}
	if c.InputRate <= 0 {
		return outputErrorCommon(globals, codeInvalidFlags, "--input-rate must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, c.Duration)
	defer cancel()

	logger := globals.logger().Named("simulate")
	out := &lockedEmitter{e: globals.Emitter(), logger: logger}
	page := domain.Page{URL: c.URL, Generator: globals.Config.Site.Generator, Markers: globals.Config.Site.Markers}
	url := transport.WSURL(globals.Addr)

	clients := make([]*transport.Client, 0, c.Contexts)
	ids := make([]string, 0, c.Contexts)
	defer func() {
		for _, cl := range clients {
			cl.Close()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.Contexts; i++ {
		id := "sim-" + uuid.NewString()

		client, err := transport.Dial(ctx, url, nil, logger)
		if err != nil {
			return outputErrorCommon(globals, codeConnectFailed, err.Error(), "start the tracker with 'readtime serve'")
		}
		clients = append(clients, client)
		ids = append(ids, id)

		tracked, err := client.ContextEntered(ctx, id, page)
		if err != nil {
			return outputRequestError(globals, err)
		}
		globals.Info("context entered", map[string]any{"context_id": id, "tracked": tracked})
		if !tracked {
			continue
		}

		prompter := &simPrompter{out: out, quiet: globals.Quiet}
		rep := reporter.New(id, client, reporter.Options{
			Logger:       logger,
			Prompter:     prompter,
			IdleTimeout:  globals.Config.Reporter.IdleTimeout,
			Debounce:     globals.Config.Reporter.Debounce,
			TickInterval: globals.Config.Reporter.TickInterval,
		})
		if c.Dismiss {
			prompter.dismiss = func(contextID string) {
				if err := rep.Respond(gctx, reporter.ResponseDismiss, c.URL); err != nil {
					logger.Debug("dismiss failed", zap.String("context_id", contextID), zap.Error(err))
				}
			}
		}

		g.Go(func() error { return rep.Run(gctx) })
		g.Go(func() error {
			c.feedInput(gctx, rep)
			return nil
		})
		g.Go(func() error {
			c.relayPushes(gctx, client, rep, out, globals.Quiet)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outputErrorCommon(globals, codeRequestFailed, err.Error())
	}

	if len(clients) == 0 {
		return nil
	}
	leaveCtx, leaveCancel := context.WithTimeout(context.Background(), requestTimeout)
	defer leaveCancel()
	st, err := clients[0].Status(leaveCtx)
	if err != nil {
		return outputRequestError(globals, err)
	}
	if err := out.do(func(e output.Emitter) error { return e.WriteStatus(st) }); err != nil {
		return err
	}

	// Leave explicitly so the tracker logs each departure.
	for i, cl := range clients {
		if err := cl.ContextLeft(leaveCtx, ids[i]); err != nil {
			logger.Debug("context left failed", zap.String("context_id", ids[i]), zap.Error(err))
		}
	}
	return nil
}

var inputCycle = []reporter.InputKind{reporter.InputScroll, reporter.InputPointer, reporter.InputKey}

func (c *SimulateCmd) feedInput(ctx context.Context, rep *reporter.Reporter) {
	ticker := time.NewTicker(c.InputRate)
	defer ticker.Stop()
	var stopAt <-chan time.Time
	if c.InputFor > 0 {
		timer := time.NewTimer(c.InputFor)
		defer timer.Stop()
		stopAt = timer.C
	}
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-stopAt:
			return
		case <-ticker.C:
			rep.Input(inputCycle[i%len(inputCycle)])
		}
	}
}

func (c *SimulateCmd) relayPushes(ctx context.Context, client *transport.Client, rep *reporter.Reporter, out *lockedEmitter, quiet bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-client.Pushes():
			if !ok {
				return
			}
			rep.HandlePush(msg)
			if !quiet {
				out.do(func(e output.Emitter) error { return e.WritePush(msg) })
			}
		}
	}
}
