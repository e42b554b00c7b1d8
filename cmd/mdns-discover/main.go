// Command mdns-discover prints the mDNS responses for a DNS-SD service type.
//
//	mdns-discover -service _googlecast._tcp -interval 5s
//	mdns-discover -service _ipp._tcp -iface 192.168.1.10 -json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	mdns "github.com/elum-utils/mdnsdiscovery"
	"github.com/elum-utils/mdnsdiscovery/mdnsjson"
)

var (
	service   = flag.String("service", "_googlecast._tcp", "Service type, optionally with a subtype: _http._tcp,_printer")
	domain    = flag.String("domain", mdns.DefaultDomain, "Search domain")
	interval  = flag.Duration("interval", 15*time.Second, "Time between queries")
	iface     = flag.String("iface", "", "IPv4 address of the interface to use (default: all interfaces)")
	showEmpty = flag.Bool("show-empty", false, "Do not drop empty responses")
	timeout   = flag.Duration("timeout", 0, "Stop after this long (0: run until interrupted)")
	asJSON    = flag.Bool("json", false, "Print responses as JSON")
	verbose   = flag.Bool("v", false, "Debug logging")
)

func main() {
	flag.Parse()

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Error("discovery failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	name := mdns.ServiceName(*service, *domain)
	d, err := open(name, logger)
	if err != nil {
		return err
	}
	d.IgnoreEmpty(!*showEmpty)

	logger.Info("browsing", zap.String("service", name), zap.Duration("interval", *interval))
	for resp, err := range d.Listen(ctx) {
		if err != nil {
			if mdns.KindOf(err) == mdns.KindTimeout {
				return nil
			}
			var merr *mdns.Error
			if errors.As(err, &merr) && merr.Fatal() {
				return err
			}
			continue
		}
		if err := printResponse(resp); err != nil {
			return err
		}
	}
	return nil
}

func open(name string, logger *zap.Logger) (*mdns.Discovery, error) {
	opts := []mdns.Option{mdns.WithLogger(logger)}
	if *iface == "" {
		return mdns.All(name, *interval, opts...)
	}
	addr := net.ParseIP(*iface)
	if addr == nil {
		return nil, fmt.Errorf("invalid interface address %q", *iface)
	}
	return mdns.Interface(name, *interval, addr, opts...)
}

func printResponse(resp *mdns.Response) error {
	if *asJSON {
		b, err := mdnsjson.Marshal(resp)
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}

	ts := time.Now().Format("15:04:05.000")
	host, _ := resp.Hostname()
	addr := "-"
	if ap, ok := resp.SocketAddress(); ok {
		addr = ap.String()
	}
	fmt.Printf("%s  %-40s %s\n", ts, host, addr)
	for _, e := range resp.TxtRecords() {
		fmt.Printf("%14s%s=%s\n", "", e.Key, e.Value)
	}
	return nil
}
