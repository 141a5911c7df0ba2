// Command cratebuddy asks the recommendation service for records a
// Bandcamp fan might like and prints them as cards.
//
//	cratebuddy [-url http://localhost:5000] [-why] <username | fan page URL>
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/actuallystonmai/cratebuddy/internal/client"
	"github.com/actuallystonmai/cratebuddy/internal/config"
	"github.com/actuallystonmai/cratebuddy/internal/logging"
	"github.com/actuallystonmai/cratebuddy/internal/render"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	apiURL := flag.String("url", cfg.APIURL, "recommendation service base URL")
	why := flag.Bool("why", false, "show the score breakdown for each card")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <username | fan page URL>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	c := client.New(*apiURL, client.WithHTTPClient(&http.Client{}))
	input := strings.Join(flag.Args(), " ")

	if strings.TrimSpace(input) == "" {
		fmt.Fprintln(os.Stderr, "Provide a Bandcamp username or fan page URL.")
		flag.Usage()
		return 2
	}

	render.Snapshot(os.Stderr, client.Snapshot{State: client.StateLoading, Input: input}, false)
	if err := c.Submit(ctx, input); err != nil {
		render.Snapshot(os.Stderr, c.Snapshot(), false)
		return 1
	}

	render.Snapshot(os.Stdout, c.Snapshot(), *why)
	return 0
}
