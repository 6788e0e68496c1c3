package starter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

func NewCLI() *CLI {
	return &CLI{errOutput: os.Stderr}
}

// makePluginSpec describes the single plugin given on the command line
func makePluginSpec(opts *options) PluginSpec {
	spec := PluginSpec{
		ID:             opts.ID,
		Command:        opts.Args,
		Address:        opts.Address,
		Port:           opts.Port,
		SupportedSlots: opts.Slots,
		Dir:            opts.Dir,
		Envdir:         opts.Envdir,
		StopSignal:     opts.StopSignal,
	}
	if spec.ID == "" && len(opts.Args) > 0 {
		spec.ID = filepath.Base(opts.Args[0])
	}
	if opts.StopTimeout.Valid {
		spec.StopTimeout = opts.StopTimeout.Value.String()
	}
	return spec
}

func (cli *CLI) ParseArgs(args ...string) (*options, error) {
	var opts options
	p := flags.NewParser(&opts, flags.PassDoubleDash)
	rest, err := p.ParseArgs(args)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse arguments")
	}
	if len(rest) > 0 {
		opts.Args = rest
	}

	if opts.Help || opts.Version {
		return &opts, nil
	}

	if opts.Config == "" && len(opts.Args) == 0 {
		return nil, errors.New("plugin program not specified")
	}

	if opts.StopSignal != "" {
		if _, err := SignalFromName(opts.StopSignal); err != nil {
			return nil, errors.Wrap(err, "invalid --stop-signal")
		}
	}

	return &opts, nil
}

func (cli *CLI) Run(ctx context.Context) error {
	return cli.run(ctx, os.Args[1:])
}

func (cli *CLI) run(ctx context.Context, args []string) error {
	opts, err := cli.ParseArgs(args...)
	if err != nil {
		return err
	}

	if opts.Help {
		cli.showHelp()
		return nil
	}

	if opts.Version {
		fmt.Printf("%s\n", version)
		return nil
	}

	logger := NewLogger(cli.errOutput, opts.LogLevel, opts.LogFormat)
	shared := []Option{
		WithLogger(logger),
		WithNotifier(NewWriterNotifierWithLogger(cli.errOutput, logger)),
	}

	if opts.MetricsListen != "" {
		pmc := NewPrometheusMetricsCollector("")
		shared = append(shared, WithMetrics(pmc))

		mux := http.NewServeMux()
		mux.Handle("/metrics", pmc.Handler())
		srv := &http.Server{Addr: opts.MetricsListen, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "address", opts.MetricsListen, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	r := NewRegistry(shared...)
	if opts.Config != "" {
		m, err := LoadManifest(opts.Config)
		if err != nil {
			return err
		}
		if err := r.Load(m); err != nil {
			return err
		}
	} else {
		if _, err := r.Add(makePluginSpec(opts)); err != nil {
			return err
		}
	}

	startErr := r.StartAll()
	if startErr != nil && !anyRunning(r) {
		return startErr
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		logger.Info("context canceled, stopping plugins")
	case sig := <-sigCh:
		logger.Info(fmt.Sprintf("received %s, stopping plugins", signame(sig)))
	}

	if err := r.StopAll(); err != nil {
		return err
	}
	return startErr
}

func anyRunning(r *Registry) bool {
	for _, s := range r.Supervisors() {
		if s.IsRunning() {
			return true
		}
	}
	return false
}

func (cli *CLI) showHelp() {
	// The ONLY reason we're not using go-flags' help option is
	// because I wanted to tweak the format just a bit... but
	// there wasn't an easy way to do so
	w := cli.errOutput
	io.WriteString(w, `
Usage:
      engine_starter [options] -- plugin-prog plugin-arg1 plugin-arg2 ...
      engine_starter [options] --config=plugins.yaml

      # start a slicing plugin on a free port of the loopback interface
      engine_starter --id=slicer --slot=100 -- /opt/plugins/slicer --verbose

Options:
`)

	t := reflect.TypeOf(options{})

	// display order
	names := []string{
		"Config",
		"ID",
		"Address",
		"Port",
		"Slots",
		"Dir",
		"Envdir",
		"StopSignal",
		"StopTimeout",
		"MetricsListen",
		"LogLevel",
		"LogFormat",
		"Help",
		"Version",
	}

	for _, name := range names {
		f, ok := t.FieldByName(name)
		if !ok {
			continue
		}

		tag := f.Tag
		if tag == "" {
			continue
		}
		if s := tag.Get("long"); s != "" {
			fmt.Fprintf(w, "  --%s", s)
			if a := tag.Get("arg"); a != "" {
				fmt.Fprintf(w, "=%s", a)
			}
			fmt.Fprintf(w, ":\n")
		}
		for _, l := range strings.Split(tag.Get("description"), "\n") {
			fmt.Fprintf(w, "    %s\n", l)
		}
		fmt.Fprintf(w, "\n")
	}
}
