package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-kit/log"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/hashicorp/consul/api"
	"github.com/ichigozero/gtdlite/client"
	"github.com/ichigozero/gtdlite/session"
)

func main() {
	fs := flag.NewFlagSet("taskctl", flag.ExitOnError)
	var (
		serverAddr = fs.String(
			"server",
			getEnv("GTDLITE_SERVER", "http://localhost:4000"),
			"Server address",
		)
		consulAddr = fs.String(
			"consul.addr",
			getEnv("CONSUL_ADDR", ""),
			"Consul agent address; when set, servers are discovered instead of -server",
		)
		sessionDir = fs.String(
			"session.dir",
			getEnv("GTDLITE_SESSION_DIR", defaultSessionDir()),
			"Directory holding the session token",
		)
		sessionConsul = fs.String(
			"session.consul",
			getEnv("GTDLITE_SESSION_CONSUL", ""),
			"Consul KV prefix holding the session token instead of -session.dir",
		)
		retryMax = fs.Int(
			"retry.max",
			getEnvAsInt("RETRY_MAX", 3),
			"per-request retries to different instances",
		)
		retryTimeout = fs.Duration(
			"retry.timeout",
			time.Duration(getEnvAsInt("RETRY_TIMEOUT", 5000))*time.Millisecond,
			"per-request timeout, including retries",
		)
		debug = fs.Bool("debug", false, "Log requests to stderr")
	)

	fs.Usage = usageFor(fs, os.Args[0]+" [flags] <command> [args...]")
	fs.Parse(os.Args[1:])

	var logger log.Logger
	{
		logger = log.NewNopLogger()
		if *debug {
			logger = log.NewLogfmtLogger(os.Stderr)
			logger = log.With(logger, "ts", log.DefaultTimestampUTC)
			logger = log.With(logger, "caller", log.DefaultCaller)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var consulClient *api.Client
	if *consulAddr != "" || *sessionConsul != "" {
		consulConfig := api.DefaultConfig()
		if len(*consulAddr) > 0 {
			consulConfig.Address = *consulAddr
		}
		var err error
		consulClient, err = api.NewClient(consulConfig)
		if err != nil {
			fatal(err)
		}
	}

	var storage session.Storage
	{
		if *sessionConsul != "" {
			storage = session.NewConsulStorage(consulClient, *sessionConsul)
		} else {
			fileStorage, err := session.NewFileStorage(*sessionDir)
			if err != nil {
				fatal(err)
			}
			storage = fileStorage
		}
	}

	sess, err := session.New(ctx, storage)
	if err != nil {
		fatal(err)
	}

	var c *client.Client
	{
		if *consulAddr != "" {
			d := client.NewDiscovery(consulsd.NewClient(consulClient), logger, *retryMax, *retryTimeout)
			defer d.Stop()
			c = client.New(d.Auth, d.Tasks, sess)
		} else {
			c, err = client.NewHTTP(*serverAddr, sess, logger)
			if err != nil {
				fatal(err)
			}
		}
	}

	if err := run(ctx, c, fs.Args(), os.Stdout); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "taskctl: %v\n", err)
	os.Exit(1)
}

func defaultSessionDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".gtdlite"
	}
	return filepath.Join(dir, "gtdlite")
}

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "COMMANDS\n")
		w := tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
		for _, cmd := range commands {
			fmt.Fprintf(w, "\t%s %s\t%s\n", cmd.name, cmd.args, cmd.help)
		}
		w.Flush()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		w = tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(w, "\t-%s %s\t%s\n", f.Name, f.DefValue, f.Usage)
		})
		w.Flush()
		fmt.Fprintf(os.Stderr, "\n")
	}
}

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}

	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
