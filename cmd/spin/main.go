// Command spin draws from a pool file in the terminal, runs fairness
// simulations, or drives a running wheel server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtding233/fairwheel/internal/config"
	"github.com/xtding233/fairwheel/internal/pool"
	"github.com/xtding233/fairwheel/internal/sched"
	"github.com/xtding233/fairwheel/internal/server"
	"github.com/xtding233/fairwheel/internal/store"
	"github.com/xtding233/fairwheel/internal/wheel"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "spin:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "wheel.yaml", "YAML config file (optional)")
	poolPath := flag.String("pool", "", "pool CSV file, overrides pool.path")
	n := flag.Int("n", 1, "winners to draw")
	simulate := flag.Int("simulate", 0, "run this many batches without animation and print statistics")
	seed := flag.Uint64("seed", 0, "seed for reproducible draws (0 = crypto random)")
	remote := flag.String("remote", "", "address of a wheel server to drive instead of drawing locally")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *poolPath != "" {
		settings.PoolPath = *poolPath
	}
	log := config.NewLogger(os.Stderr, settings.LogLevel, settings.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *remote != "" {
		return runRemote(ctx, *remote, int32(*n), os.Stdout)
	}

	csv := store.NewCSVStore(settings.PoolPath, log)
	p, err := csv.LoadPool()
	if err != nil {
		return err
	}
	rng := wheel.DefaultRNG()
	if *seed != 0 {
		rng = wheel.NewSeededRNG(*seed)
	}

	if *simulate > 0 {
		res, err := wheel.Simulate(p, *n, *simulate, rng)
		if err != nil {
			return err
		}
		return printSimulation(os.Stdout, p, res)
	}
	return runLocal(ctx, p, csv, settings.Spin, rng, log, *n)
}

func runLocal(ctx context.Context, p *pool.Pool, sink wheel.PoolSink, cfg wheel.SpinConfig, rng wheel.RandomSource, log zerolog.Logger, n int) error {
	names := make([]string, p.Len())
	for i := range names {
		names[i] = p.Name(i)
	}
	view := newTermPresenter(os.Stdout, names)

	loop := sched.NewLoop()
	go func() { _ = loop.Run(context.Background()) }()
	defer loop.Stop()

	engine, err := wheel.New(p, wheel.Options{
		Config:    cfg,
		Scheduler: loop,
		RNG:       rng,
		Presenter: view,
		Sink:      sink,
		Logger:    log,
	})
	if err != nil {
		return err
	}
	var startErr error
	if err := loop.Do(ctx, func() { startErr = engine.StartBatch(n) }); err != nil {
		return err
	}
	if startErr != nil {
		return startErr
	}

	return awaitBatch(ctx, view, func() {
		_ = loop.Do(context.Background(), func() { engine.AbortBatch() })
	})
}

// errAborted is returned when the engine gives up on a batch, for example
// because the pool emptied underneath it.
var errAborted = errors.New("draw aborted")

// awaitBatch blocks until the running batch finishes or aborts. On
// cancellation it calls abort and returns the context error.
func awaitBatch(ctx context.Context, view *termPresenter, abort func()) error {
	select {
	case <-view.done:
		return nil
	case id := <-view.aborted:
		return fmt.Errorf("%w: batch %s", errAborted, id)
	case <-ctx.Done():
		abort()
		return ctx.Err()
	}
}

func runRemote(ctx context.Context, addr string, n int32, out io.Writer) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()
	client := server.NewClient(conn)

	events, err := client.WatchEvents(ctx)
	if err != nil {
		return err
	}
	st, err := client.StartBatch(ctx, n)
	if err != nil {
		return err
	}
	batchID := st.GetFields()["batch"].GetStructValue().GetFields()["id"].GetStringValue()
	for {
		ev, err := events.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				_, _ = client.AbortBatch(context.Background())
				return ctx.Err()
			}
			return err
		}
		if done, err := handleEvent(out, ev.GetFields(), batchID); done {
			return err
		}
	}
}

// handleEvent prints one server event. It reports done once the batch
// identified by batchID has finished or been aborted; events about batches
// started by other clients are only printed.
func handleEvent(out io.Writer, f map[string]*structpb.Value, batchID string) (bool, error) {
	switch f["type"].GetStringValue() {
	case server.EventStatus:
		fmt.Fprintln(out, f["text"].GetStringValue())
	case server.EventFinished:
		s := f["summary"].GetStructValue().GetFields()
		if s["batch"].GetStringValue() != batchID {
			return false, nil
		}
		var names []string
		for _, w := range s["winners"].GetListValue().GetValues() {
			names = append(names, w.GetStructValue().GetFields()["name"].GetStringValue())
		}
		fmt.Fprintf(out, "winners: %s\n", strings.Join(names, ", "))
		return true, nil
	case server.EventAborted:
		if id := f["batch"].GetStringValue(); id == batchID {
			return true, fmt.Errorf("%w: batch %s", errAborted, id)
		}
	}
	return false, nil
}

func printSimulation(out io.Writer, p *pool.Pool, res wheel.SimResult) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "batches\t%d\n", res.Batches)
	fmt.Fprintf(tw, "draws\t%d\n", res.Draws)
	fmt.Fprintf(tw, "repeats\t%d\n", res.Repeats)
	fmt.Fprintf(tw, "wins mean\t%.2f\n", res.WinStats.Mean)
	fmt.Fprintf(tw, "wins stddev\t%.2f\n", res.WinStats.StdDev)
	fmt.Fprintf(tw, "wins min/max\t%d/%d\n", res.WinStats.Min, res.WinStats.Max)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "name\twins\tcounter")
	for i, w := range res.Wins {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", p.Name(i), w, res.Final[i].Counter)
	}
	return tw.Flush()
}
