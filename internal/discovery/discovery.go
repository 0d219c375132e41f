// Package discovery finds neighbour relays on the local network over mDNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog"
)

const (
	// ServiceType is the DNS-SD service relays advertise.
	ServiceType = "_meshtalk._tcp"
	// Domain is the mDNS browse domain.
	Domain = "local."

	// DefaultInterval separates browse cycles.
	DefaultInterval = 30 * time.Second
	browseWindow    = 5 * time.Second

	urlKey = "url="
)

// Neighbors receives discovered relay base URLs.
type Neighbors interface {
	AddNeighbor(base string) bool
}

// Config configures a Service.
type Config struct {
	// Instance is the advertised instance name.
	Instance string
	Port     int
	// Advertise is this relay's base URL. It is published in TXT and used
	// to skip our own advertisement.
	Advertise string
	Interval  time.Duration
	Logger    zerolog.Logger
}

// Service advertises this relay and browses for others.
type Service struct {
	cfg       Config
	neighbors Neighbors
	log       zerolog.Logger
	server    *zeroconf.Server
}

// New returns a discovery service feeding neighbors.
func New(cfg Config, neighbors Neighbors) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Service{
		cfg:       cfg,
		neighbors: neighbors,
		log:       cfg.Logger.With().Str("component", "discovery").Logger(),
	}
}

// Register starts advertising the relay.
func (s *Service) Register() error {
	txt := []string{"version=1"}
	if s.cfg.Advertise != "" {
		txt = append(txt, urlKey+s.cfg.Advertise)
	}
	server, err := zeroconf.Register(s.cfg.Instance, ServiceType, Domain, s.cfg.Port, txt, nil)
	if err != nil {
		return fmt.Errorf("register mdns service: %w", err)
	}
	s.server = server
	s.log.Info().Str("instance", s.cfg.Instance).Int("port", s.cfg.Port).Msg("advertising relay")
	return nil
}

// Shutdown stops advertising.
func (s *Service) Shutdown() {
	if s.server != nil {
		s.server.Shutdown()
		s.server = nil
	}
}

// Run browses every interval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("mdns resolver: %w", err)
	}
	for {
		if err := s.browse(ctx, resolver); err != nil {
			s.log.Warn().Err(err).Msg("browse")
		}
		t := time.NewTimer(s.cfg.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (s *Service) browse(ctx context.Context, resolver *zeroconf.Resolver) error {
	ctx, cancel := context.WithTimeout(ctx, browseWindow)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	done := make(chan int)
	go func() {
		added := 0
		defer func() { done <- added }()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-entries:
				if !ok {
					return
				}
				if s.handle(e) {
					added++
				}
			}
		}
	}()

	err := resolver.Browse(ctx, ServiceType, Domain, entries)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		cancel()
		<-done
		return err
	}
	<-ctx.Done()
	added := <-done
	if added > 0 {
		s.log.Info().Int("added", added).Msg("browse cycle")
	}
	return nil
}

func (s *Service) handle(e *zeroconf.ServiceEntry) bool {
	base := EntryURL(e)
	if base == "" || base == strings.TrimRight(s.cfg.Advertise, "/") {
		return false
	}
	return s.neighbors.AddNeighbor(base)
}

// EntryURL returns the relay base URL an entry points at. A url TXT record
// wins over the resolved address.
func EntryURL(e *zeroconf.ServiceEntry) string {
	if e == nil {
		return ""
	}
	for _, t := range e.Text {
		if strings.HasPrefix(t, urlKey) {
			return strings.TrimRight(strings.TrimPrefix(t, urlKey), "/")
		}
	}
	var ip net.IP
	switch {
	case len(e.AddrIPv4) > 0:
		ip = e.AddrIPv4[0]
	case len(e.AddrIPv6) > 0:
		ip = e.AddrIPv6[0]
	default:
		return ""
	}
	return "http://" + net.JoinHostPort(ip.String(), strconv.Itoa(e.Port))
}
