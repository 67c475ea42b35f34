// Command bargate is a batch command-line front end for the embedded
// ordered key-value store implemented by this module's root package.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashgrove/bargate"
	"github.com/ashgrove/bargate/internal/logger"
	"github.com/ashgrove/bargate/internal/metrics"
	"github.com/ashgrove/bargate/internal/pfm"
)

var (
	create      = flag.Bool("create", false, "create a new store at path instead of opening an existing one")
	branch      = flag.Int("branch", 32, "branching factor for a newly created store")
	initialSize = flag.Int64("initial-size", pfm.DefaultInitialSize, "byte budget to pre-allocate for a newly created store")
	metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090) for the duration of the command")
	logLevel    = flag.String("log-level", "info", "log level: debug, info, warn, error")
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: bargate [flags] <path> <command> [args...]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  contains <key>")
	fmt.Fprintln(os.Stderr, "  clear")
	fmt.Fprintln(os.Stderr, "  count")
	fmt.Fprintln(os.Stderr, "  delete <key>")
	fmt.Fprintln(os.Stderr, "  entries [asc|desc]")
	fmt.Fprintln(os.Stderr, "  get <key>")
	fmt.Fprintln(os.Stderr, "  help")
	fmt.Fprintln(os.Stderr, "  info")
	fmt.Fprintln(os.Stderr, "  insert <key> <value>")
	fmt.Fprintln(os.Stderr, "  keys [asc|desc]")
	fmt.Fprintln(os.Stderr, "  nodes")
	fmt.Fprintln(os.Stderr, "  utilization")
	fmt.Fprintln(os.Stderr, "  values [asc|desc]")
	fmt.Fprintln(os.Stderr, "  verify")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "flags:")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	logger.InitGlobalLogger(logger.Config{Level: *logLevel, Pretty: true})
	log := logger.GetGlobalLogger()

	args := flag.Args()
	if len(args) >= 1 && args[0] == "help" {
		usage()
		os.Exit(0)
	}
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}
	path, command, rest := args[0], args[1], args[2:]

	var m *metrics.Metrics
	if *metricsAddr != "" {
		m = metrics.NewMetrics()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error("metrics server exited").Err(err).Send()
			}
		}()
	}

	opts := []bargate.Option{bargate.WithLogger(log)}
	if m != nil {
		opts = append(opts, bargate.WithMetrics(m))
	}

	store, err := openOrCreate(path, command, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bargate: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := run(store, command, rest); err != nil {
		fmt.Fprintf(os.Stderr, "bargate: %v\n", err)
		os.Exit(1)
	}
}

func openOrCreate(path, command string, opts ...bargate.Option) (*bargate.Store[string, string], error) {
	if *create {
		opts = append(opts, bargate.WithInitialSize(*initialSize))
		return bargate.New[string, string](path, *branch, opts...)
	}
	return bargate.Open[string, string](path, opts...)
}

func run(store *bargate.Store[string, string], command string, args []string) error {
	switch command {
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("get requires exactly one key argument")
		}
		v, ok, err := store.Get(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("key not found")
		}
		fmt.Println(v)
		return nil

	case "contains":
		if len(args) != 1 {
			return fmt.Errorf("contains requires exactly one key argument")
		}
		ok, err := store.Contains(args[0])
		if err != nil {
			return err
		}
		fmt.Println(ok)
		return nil

	case "insert":
		if len(args) != 2 {
			return fmt.Errorf("insert requires a key and a value argument")
		}
		return store.Insert(args[0], args[1])

	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("delete requires exactly one key argument")
		}
		existed, err := store.Delete(args[0])
		if err != nil {
			return err
		}
		fmt.Println(existed)
		return nil

	case "clear":
		return store.Clear()

	case "count":
		fmt.Println(store.Count())
		return nil

	case "nodes":
		fmt.Println(store.Nodes())
		return nil

	case "utilization":
		fmt.Printf("%.4f\n", store.Utilization())
		return nil

	case "verify":
		return store.Verify()

	case "info":
		store.Info()
		return nil

	case "entries":
		dir, err := parseDirArg(args)
		if err != nil {
			return err
		}
		for k, v := range store.Entries(dir) {
			fmt.Printf("%s\t%s\n", k, v)
		}
		return nil

	case "keys":
		dir, err := parseDirArg(args)
		if err != nil {
			return err
		}
		for k := range store.Keys(dir) {
			fmt.Println(k)
		}
		return nil

	case "values":
		dir, err := parseDirArg(args)
		if err != nil {
			return err
		}
		for v := range store.Values(dir) {
			fmt.Println(v)
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func parseDirArg(args []string) (bargate.Direction, error) {
	if len(args) == 0 {
		return bargate.Ascending, nil
	}
	if len(args) != 1 {
		return bargate.Ascending, fmt.Errorf("expected at most one direction argument")
	}
	return bargate.ParseDirection(args[0])
}
