package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/grandcat/zeroconf"
)

// DNS-SD identifiers.
const (
	ServiceType = "_scenerotator._tcp"
	Domain      = "local."
)

// Info describes the advertised API.
type Info struct {
	Instance string // defaults to the hostname
	Port     int
	Version  string
	Auth     bool
	Panel    bool
}

// Logger is the logging interface used by this package.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// registration is a live mDNS announcement.
type registration interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (registration, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (registration, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// Advertiser announces the API until its context ends.
type Advertiser struct {
	info     Info
	logger   Logger
	register registerFunc
}

// NewAdvertiser creates an Advertiser for info (logger may be nil).
func NewAdvertiser(info Info, logger Logger) *Advertiser {
	if logger == nil {
		logger = noopLogger{}
	}
	if info.Instance == "" {
		info.Instance = defaultInstance()
	}
	return &Advertiser{info: info, logger: logger, register: zeroconfRegister}
}

// Run registers the service on every interface, blocks until ctx is
// cancelled and then withdraws the announcement.
func (a *Advertiser) Run(ctx context.Context) error {
	if a.info.Port <= 0 {
		return fmt.Errorf("discovery: invalid port %d", a.info.Port)
	}

	txt := a.TXT()
	reg, err := a.register(a.info.Instance, ServiceType, Domain, a.info.Port, txt, nil)
	if err != nil {
		return fmt.Errorf("discovery: registering %s: %w", ServiceType, err)
	}
	a.logger.Info("mdns service registered",
		"instance", a.info.Instance,
		"service", ServiceType,
		"port", a.info.Port,
	)

	<-ctx.Done()
	reg.Shutdown()
	a.logger.Info("mdns service withdrawn", "instance", a.info.Instance)
	return nil
}

// TXT returns the TXT records announced for the service.
func (a *Advertiser) TXT() []string {
	return []string{
		"version=" + a.info.Version,
		"api=/api/v1",
		"ws=/api/v1/ws",
		"auth=" + strconv.FormatBool(a.info.Auth),
		"panel=" + strconv.FormatBool(a.info.Panel),
	}
}

func defaultInstance() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return "scenerotator-" + host
	}
	return "scenerotator"
}
