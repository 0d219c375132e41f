package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"meshtalk/internal/discovery"
	"meshtalk/internal/logging"
	"meshtalk/internal/relay"
	"meshtalk/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		addr      string
		advertise string
		neighbors []string
		dataDir   string
		mdns      bool
		instance  string
		queue     int
		logLevel  string
		pretty    bool
	)
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "MeshTalk store-and-forward relay",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(logLevel, pretty)
			if err := os.MkdirAll(dataDir, 0o700); err != nil {
				return err
			}
			if advertise == "" {
				advertise = defaultAdvertise(addr)
			}

			srv := relay.NewServer(relay.ServerConfig{
				Advertise:  advertise,
				Neighbors:  neighbors,
				Keys:       store.NewPeerKeyFileStore(dataDir),
				QueueLimit: queue,
				Logger:     log,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if mdns {
				port, err := portOf(addr)
				if err != nil {
					return err
				}
				if instance == "" {
					instance, _ = os.Hostname()
				}
				d := discovery.New(discovery.Config{
					Instance:  "meshtalk-" + instance,
					Port:      port,
					Advertise: advertise,
					Logger:    log,
				}, srv.Forwarder())
				if err := d.Register(); err != nil {
					return err
				}
				defer d.Shutdown()
				go func() {
					if err := d.Run(ctx); err != nil {
						log.Error().Err(err).Msg("discovery stopped")
					}
				}()
			}

			return srv.ListenAndServe(ctx, addr)
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":8080", "listen address")
	f.StringVar(&advertise, "advertise", "", "base URL neighbours reach us at (default http://<host>:<port>)")
	f.StringSliceVar(&neighbors, "neighbor", nil, "neighbour relay base URL (repeatable)")
	f.StringVar(&dataDir, "data", "relay-data", "directory for the key directory")
	f.BoolVar(&mdns, "mdns", false, "advertise and discover relays on the LAN")
	f.StringVar(&instance, "name", "", "mDNS instance name (default hostname)")
	f.IntVar(&queue, "queue", relay.DefaultQueueLimit, "packets kept per node")
	f.StringVar(&logLevel, "log-level", "info", "log level")
	f.BoolVar(&pretty, "pretty", false, "human readable logs")
	return cmd
}

func portOf(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("listen address %q: %w", addr, err)
	}
	return strconv.Atoi(p)
}

func defaultAdvertise(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		if h, err := os.Hostname(); err == nil {
			host = h
		} else {
			host = "localhost"
		}
	}
	return "http://" + net.JoinHostPort(host, port)
}
