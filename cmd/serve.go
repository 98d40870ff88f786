package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/emdash/internal/model"
	"github.com/derickschaefer/emdash/internal/scheduler"
	"github.com/derickschaefer/emdash/internal/server"
)

var (
	serveSel   selectionFlags
	serveAddr  string
	serveEvery time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard view model over HTTP",
	Long: `Mount one dashboard and serve its view model as JSON for a browser front end.
Every store is refetched each --every interval.

Routes:
  GET  /health                    liveness probe
  GET  /api/view                  current view model
  PUT  /api/selection             {"station_id": "...", "parameter": "..."}
  POST /api/refresh               refetch everything, then return the view
  GET  /api/presets               saved presets
  POST /api/presets/:ref/apply    select a preset by name or ID

Selection changes are remembered in the local database when one is
configured, so the next "emdash dashboard" starts where the browser left off.`,
	Example: `  emdash serve
  emdash serve --addr 127.0.0.1:9000 --every 5m
  curl -s localhost:8080/api/view | jq .metrics`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := deps.Config.Validate(); err != nil {
			return err
		}

		sel, err := serveSel.resolve(deps.Config)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c := deps.NewComposer(sel)
		opts := server.Options{Logger: deps.Logger, CORSOrigins: deps.Config.CORSOrigins}
		if st, err := deps.RequireStore(); err != nil {
			deps.Logger.Warn("presets disabled", "err", err)
		} else {
			opts.Presets = st
			opts.OnSelect = func(sel model.Selection) {
				if err := st.SaveLastSelection(sel); err != nil {
					deps.Logger.Warn("saving selection", "err", err)
				}
			}
		}
		srv := server.New(c, opts)

		if err := c.Mount(ctx); err != nil {
			deps.Logger.Warn("mount incomplete", "err", err)
		}

		every := deps.Config.RefreshInterval
		if serveEvery > 0 {
			every = serveEvery
		}
		sched := scheduler.New(every, c.Refresh, deps.Logger)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()

		addr := deps.Config.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		err = srv.Listen(ctx, addr)
		c.Wait()
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveSel.register(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: listen_addr)")
	serveCmd.Flags().DurationVar(&serveEvery, "every", 0, "refresh interval (default: refresh_interval)")
}
