package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/emdash/internal/app"
	"github.com/derickschaefer/emdash/internal/dashboard"
	"github.com/derickschaefer/emdash/internal/model"
	"github.com/derickschaefer/emdash/internal/render"
	"github.com/derickschaefer/emdash/internal/scheduler"
)

// watchCommand is one line typed at the watch prompt.
type watchCommand struct {
	Verb string // station, param, preset, refresh, quit, help
	Arg  string
}

var errQuit = errors.New("quit")

// parseWatchCommand parses a prompt line. Parameters are validated here so
// a typo never reaches the store.
func parseWatchCommand(line string) (watchCommand, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return watchCommand{}, errors.New("empty command")
	}
	verb := strings.ToLower(fields[0])
	arg := strings.Join(fields[1:], " ")

	switch verb {
	case "q", "quit", "exit":
		return watchCommand{Verb: "quit"}, nil
	case "r", "refresh":
		return watchCommand{Verb: "refresh"}, nil
	case "h", "help", "?":
		return watchCommand{Verb: "help"}, nil
	case "station", "s":
		if arg == "" {
			return watchCommand{}, errors.New("usage: station <ID>")
		}
		return watchCommand{Verb: "station", Arg: arg}, nil
	case "param", "p", "parameter":
		p, err := model.ParseParameter(arg)
		if err != nil {
			return watchCommand{}, err
		}
		return watchCommand{Verb: "param", Arg: string(p)}, nil
	case "preset":
		if arg == "" {
			return watchCommand{}, errors.New("usage: preset <NAME>")
		}
		return watchCommand{Verb: "preset", Arg: arg}, nil
	}
	return watchCommand{}, fmt.Errorf("unknown command %q (type help)", fields[0])
}

const watchHelp = `commands: station <ID> | param <pm25|pm10|o3|no2> | preset <NAME> | refresh | quit`

// watcher runs the interactive dashboard loop.
type watcher struct {
	deps     *app.Deps
	composer *dashboard.Composer
	every    time.Duration
	out      io.Writer
	errOut   io.Writer
	tty      bool
	redraw   chan struct{}
}

func runWatch(cmd *cobra.Command, deps *app.Deps, sel model.Selection, every time.Duration) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := &watcher{
		deps:     deps,
		composer: deps.NewComposer(sel),
		every:    every,
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
		redraw:   make(chan struct{}, 1),
	}
	if f, ok := w.out.(*os.File); ok {
		w.tty = isatty.IsTerminal(f.Fd())
	}
	w.composer.OnChange(w.requestRedraw)

	drawDone := make(chan struct{})
	go func() {
		defer close(drawDone)
		w.drawLoop(ctx)
	}()

	if err := w.composer.Mount(ctx); err != nil {
		deps.Logger.Debug("mount incomplete", "err", err)
	}
	w.requestRedraw()

	sched := scheduler.New(every, w.composer.Refresh, deps.Logger)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	lines := make(chan string)
	go readLines(ctx, cmd.InOrStdin(), lines)

	for {
		select {
		case <-ctx.Done():
			return w.shutdown(drawDone)
		case line, ok := <-lines:
			if !ok {
				// stdin closed: keep watching until interrupted
				lines = nil
				continue
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := w.apply(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					stop()
					return w.shutdown(drawDone)
				}
				fmt.Fprintf(w.errOut, "⚠  %v\n", err)
			}
		}
	}
}

func (w *watcher) shutdown(drawDone <-chan struct{}) error {
	<-drawDone
	w.composer.Wait()
	return nil
}

// apply executes one prompt line against the composer.
func (w *watcher) apply(ctx context.Context, line string) error {
	c, err := parseWatchCommand(line)
	if err != nil {
		return err
	}
	series := w.composer.Series()
	switch c.Verb {
	case "quit":
		return errQuit
	case "help":
		fmt.Fprintln(w.errOut, watchHelp)
	case "refresh":
		go func() {
			if err := w.composer.Refresh(ctx); err != nil {
				w.deps.Logger.Debug("refresh incomplete", "err", err)
			}
		}()
	case "station":
		series.SetStation(ctx, c.Arg)
		w.remember(series.State().Selection)
	case "param":
		series.SetParameter(ctx, model.Parameter(c.Arg))
		w.remember(series.State().Selection)
	case "preset":
		st, err := w.deps.RequireStore()
		if err != nil {
			return err
		}
		p, err := st.GetPreset(c.Arg)
		if err != nil {
			return fmt.Errorf("preset %q: %w", c.Arg, err)
		}
		series.Select(ctx, p.Selection)
		w.remember(p.Selection)
	}
	return nil
}

// remember persists sel so the next dashboard starts where this one left
// off. Failure only costs that convenience.
func (w *watcher) remember(sel model.Selection) {
	st, err := w.deps.RequireStore()
	if err != nil {
		w.deps.Logger.Debug("local store unavailable", "err", err)
		return
	}
	if err := st.SaveLastSelection(sel); err != nil {
		w.deps.Logger.Warn("saving last selection", "err", err)
	}
}

func (w *watcher) requestRedraw() {
	select {
	case w.redraw <- struct{}{}:
	default:
	}
}

func (w *watcher) drawLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.redraw:
			if err := w.draw(); err != nil {
				w.deps.Logger.Error("drawing dashboard", "err", err)
			}
		}
	}
}

func (w *watcher) draw() error {
	view := w.composer.View()
	if w.tty {
		fmt.Fprint(w.out, "\033[H\033[2J")
	}
	fmt.Fprintf(w.out, "emdash  %s  refresh every %s  (type help for commands)\n\n",
		view.GeneratedAt.Local().Format("15:04:05"), w.every)
	result := newResult(model.KindView, "dashboard --watch", &view, len(view.Map.Markers), view.GeneratedAt)
	return render.Render(w.out, result, render.FormatTable)
}

// readLines forwards lines from r until EOF or ctx is done, then closes out.
func readLines(ctx context.Context, r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case out <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}
