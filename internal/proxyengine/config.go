package proxyengine

import "strconv"

// ServicePair describes one proxy+tun service pair: the uplink's own
// pair, plus one per PPPoE session (§4.6).
type ServicePair struct {
	Name      string `json:"name"`
	Interface string `json:"interface"`
	Table     int    `json:"table"`
	APIAddr   string `json:"api_addr"`
}

// Config is the serialized JSON configuration built from session
// count and log level that the external proxy binary is spawned with
// (§4.6, SPEC_FULL.md Supplemented Features).
type Config struct {
	LogLevel      string        `json:"log_level"`
	Services      []ServicePair `json:"services"`
	BypassCIDRs   []string      `json:"bypass_cidrs"`
	APIAddr       string        `json:"api_addr"`
	MetricsAddr   string        `json:"metrics_addr"`
}

// rfc1918AndLoopback is the shared bypass list every service pair
// shares (§4.6 "a shared bypass list for RFC1918/loopback"). The IPv6
// loopback/ULA entries match original_source/jeffpeng3-pppoe-socks's
// proxy/server.rs bypass matcher list, which the initial distillation
// into spec.md dropped along with everything else IPv6.
var rfc1918AndLoopback = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
	"fc00::/7",
}

const (
	uplinkTable = 100
	sessionBase = 101
)

// BuildConfig builds the proxy binary's configuration for sessionCount
// PPPoE sessions plus the underlying uplink (§4.6).
func BuildConfig(sessionCount int, logLevel string) Config {
	services := make([]ServicePair, 0, sessionCount+1)
	services = append(services, ServicePair{
		Name:      "uplink",
		Interface: "tun0",
		Table:     uplinkTable,
		APIAddr:   "127.0.0.1:8081",
	})
	for i := 0; i < sessionCount; i++ {
		services = append(services, ServicePair{
			Name:      serviceName(i),
			Interface: ifaceName(i),
			Table:     sessionBase + i,
			APIAddr:   "127.0.0.1:0",
		})
	}

	return Config{
		LogLevel:    logLevel,
		Services:    services,
		BypassCIDRs: append([]string(nil), rfc1918AndLoopback...),
		APIAddr:     "127.0.0.1:8080",
		MetricsAddr: "127.0.0.1:9090",
	}
}

func serviceName(i int) string { return "session" + strconv.Itoa(i) }
func ifaceName(i int) string   { return "ppp" + strconv.Itoa(i) }
