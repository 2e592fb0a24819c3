package geo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"
	"golang.org/x/sync/singleflight"

	"campaignready/internal/domain"
)

const (
	HostingDatacenter = "datacenter"
	HostingCDN        = "cdn"
	HostingISP        = "isp"
	HostingUnknown    = "unknown"
)

var (
	cdnRegex        = regexp.MustCompile(`(?i)(cloudflare|akamai|fastly|edgecast|stackpath|bunny|cloudfront|limelight|imperva|incapsula)`)
	datacenterRegex = regexp.MustCompile(`(?i)(amazon|google|microsoft|digitalocean|linode|hetzner|ovh|vultr|ibm|alibaba|tencent|rackspace|hostinger|upcloud|azure|oracle|scaleway|leaseweb)`)
	ispKeywords     = regexp.MustCompile(`(?i)(isp|broadband|telecom|communications|networks|carrier)`)
)

type dnsCacheEntry struct {
	ips     []net.IP
	expires time.Time
}

type lookupFunc func(ctx context.Context, host string) ([]net.IP, error)

// Resolver places a website host on the map: first address, country and ASN.
type Resolver struct {
	countryDB *geoip2.Reader
	asnDB     *geoip2.Reader
	lookup    lookupFunc

	dnsCache    sync.Map
	dnsGroup    singleflight.Group
	dnsCacheTTL time.Duration
}

// Open loads the MaxMind databases from disk. Either path may be empty; a
// resolver without databases still reports the resolved address.
func Open(cityOrCountryPath, asnPath string) (*Resolver, error) {
	r := newResolver()

	var errs []error
	if cityOrCountryPath != "" {
		db, err := geoip2.Open(cityOrCountryPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("open country database: %w", err))
		} else {
			r.countryDB = db
		}
	}
	if asnPath != "" {
		db, err := geoip2.Open(asnPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("open asn database: %w", err))
		} else {
			r.asnDB = db
		}
	}

	return r, errors.Join(errs...)
}

func newResolver() *Resolver {
	return &Resolver{
		lookup:      defaultLookup,
		dnsCacheTTL: 10 * time.Minute,
	}
}

func defaultLookup(ctx context.Context, host string) ([]net.IP, error) {
	return net.DefaultResolver.LookupIP(ctx, "ip", host)
}

func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.countryDB != nil {
		errs = append(errs, r.countryDB.Close())
	}
	if r.asnDB != nil {
		errs = append(errs, r.asnDB.Close())
	}
	return errors.Join(errs...)
}

// Lookup resolves host and enriches it from the databases. The bool is false
// when the host does not resolve; lookups never fail a scan.
func (r *Resolver) Lookup(ctx context.Context, host string) (domain.Origin, bool) {
	host = strings.TrimSpace(strings.ToLower(host))
	if r == nil || host == "" {
		return domain.Origin{}, false
	}

	ips := r.resolve(ctx, host)
	if len(ips) == 0 {
		return domain.Origin{Host: host}, false
	}

	ip := preferIPv4(ips)
	origin := domain.Origin{Host: host, IP: ip.String(), HostingType: HostingUnknown}

	if r.countryDB != nil {
		if record, err := r.countryDB.Country(ip); err == nil {
			origin.Country = record.Country.IsoCode
		} else {
			log.Debug("geo: country lookup failed", "ip", origin.IP, "error", err)
		}
	}
	if r.asnDB != nil {
		if record, err := r.asnDB.ASN(ip); err == nil {
			origin.ASN = record.AutonomousSystemNumber
			origin.Organization = record.AutonomousSystemOrganization
			origin.HostingType = ClassifyOrganization(record.AutonomousSystemOrganization)
		} else {
			log.Debug("geo: asn lookup failed", "ip", origin.IP, "error", err)
		}
	}

	return origin, true
}

func (r *Resolver) resolve(ctx context.Context, host string) []net.IP {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}
	}

	now := time.Now()
	if entry, ok := r.dnsCache.Load(host); ok {
		cached := entry.(dnsCacheEntry)
		if now.Before(cached.expires) {
			return cached.ips
		}
	}

	result, _, _ := r.dnsGroup.Do(host, func() (any, error) {
		ips, err := r.lookup(ctx, host)
		if err != nil {
			log.Debug("geo: dns lookup failed", "host", host, "error", err)
			return []net.IP{}, nil
		}
		return ips, nil
	})

	ips, _ := result.([]net.IP)
	r.dnsCache.Store(host, dnsCacheEntry{ips: ips, expires: now.Add(r.dnsCacheTTL)})
	return ips
}

func preferIPv4(ips []net.IP) net.IP {
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip
		}
	}
	return ips[0]
}

// ClassifyOrganization guesses the hosting type from an ASN organization name.
func ClassifyOrganization(org string) string {
	switch {
	case org == "":
		return HostingUnknown
	case cdnRegex.MatchString(org):
		return HostingCDN
	case datacenterRegex.MatchString(org):
		return HostingDatacenter
	case ispKeywords.MatchString(org):
		return HostingISP
	default:
		return HostingUnknown
	}
}
