package config

import (
	"strings"
	"sync/atomic"

	"campaignready/internal/support"
)

// hostSet matches a host and all of its subdomains.
type hostSet map[string]struct{}

var websiteBlocklist atomic.Pointer[hostSet]

func init() {
	websiteBlocklist.Store(&hostSet{})
}

// NormalizeWebsiteBlacklist reduces URLs and hostnames to unique ASCII hosts,
// keeping first-seen order.
func NormalizeWebsiteBlacklist(entries []string) []string {
	seen := make(hostSet, len(entries))
	hosts := make([]string, 0, len(entries))
	for _, raw := range entries {
		host := support.HostFromURL(raw)
		if host == "" {
			continue
		}
		if _, dup := seen[host]; dup {
			continue
		}
		seen[host] = struct{}{}
		hosts = append(hosts, host)
	}
	return hosts
}

func updateWebsiteBlocklist(entries []string) {
	set := make(hostSet, len(entries))
	for _, host := range NormalizeWebsiteBlacklist(entries) {
		set[host] = struct{}{}
	}
	websiteBlocklist.Store(&set)
}

// IsWebsiteBlocked reports whether a URL or hostname falls under a blacklisted
// host. Scans and probes check it before any request leaves the node.
func IsWebsiteBlocked(rawURL string) bool {
	return websiteBlocklist.Load().matches(support.HostFromURL(rawURL))
}

func (s *hostSet) matches(host string) bool {
	if host == "" || len(*s) == 0 {
		return false
	}
	for {
		if _, ok := (*s)[host]; ok {
			return true
		}
		dot := strings.IndexByte(host, '.')
		if dot < 0 {
			return false
		}
		host = host[dot+1:]
	}
}
