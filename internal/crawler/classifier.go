package crawler

import (
	"errors"
	"net/url"
	"strings"

	"github.com/masahif/postcrawl/internal/config"
)

var errNotAbsolute = errors.New("not an absolute http(s) URL")

// Policy decides which extracted links are post candidates, which are
// outbound discoveries and which are noise. Its methods are pure: they
// never consult or mutate crawl state.
type Policy struct {
	ContentPathMarker string
	CommentSegments   []string
	PlatformDomains   []string
	Granularity       string
	RevisitSeedHost   bool
}

// NewPolicy builds a Policy from its configuration section
func NewPolicy(cfg config.PolicyConfig) Policy {
	segments := make([]string, 0, len(cfg.CommentSegments))
	for _, s := range cfg.CommentSegments {
		if s = strings.ToLower(strings.Trim(s, "/ ")); s != "" {
			segments = append(segments, s)
		}
	}
	domains := make([]string, 0, len(cfg.PlatformDomains))
	for _, d := range cfg.PlatformDomains {
		if d = strings.ToLower(strings.Trim(d, ". ")); d != "" {
			domains = append(domains, d)
		}
	}
	granularity := cfg.Granularity
	if granularity == "" {
		granularity = config.GranularityHost
	}
	return Policy{
		ContentPathMarker: cfg.ContentPathMarker,
		CommentSegments:   segments,
		PlatformDomains:   domains,
		Granularity:       granularity,
		RevisitSeedHost:   cfg.RevisitSeedHost,
	}
}

// PostCandidates returns the links found on the index page base that point
// to posts of the same site, normalized, deduplicated and in input order.
func (p Policy) PostCandidates(base string, links []string) []string {
	baseURL, err := parseAbsolute(base)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{}, len(links))
	var posts []string
	for _, link := range links {
		u, err := parseAbsolute(link)
		if err != nil || !sameSite(baseURL, u) {
			continue
		}
		if p.ContentPathMarker != "" && !strings.Contains(u.EscapedPath(), p.ContentPathMarker) {
			continue
		}
		if p.isComment(u) {
			continue
		}
		normalized := u.String()
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		posts = append(posts, normalized)
	}
	return posts
}

// OutboundLinks returns the links found on a post page that are worth
// keeping: everything absolute except the hosting platform's own pages.
func (p Policy) OutboundLinks(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	var kept []string
	for _, link := range links {
		u, err := parseAbsolute(link)
		if err != nil || p.IsPlatformHost(u.Hostname()) {
			continue
		}
		normalized := u.String()
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		kept = append(kept, normalized)
	}
	return kept
}

// FilterComments drops every URL whose path contains a comment segment.
// Applying it twice gives the same result as applying it once.
func (p Policy) FilterComments(links []string) []string {
	filtered := make([]string, 0, len(links))
	for _, link := range links {
		if p.IsComment(link) {
			continue
		}
		filtered = append(filtered, link)
	}
	return filtered
}

// IsComment reports whether link points to a comment thread.
// Unparsable links are not comments.
func (p Policy) IsComment(link string) bool {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return false
	}
	return p.isComment(u)
}

func (p Policy) isComment(u *url.URL) bool {
	if len(p.CommentSegments) == 0 {
		return false
	}
	for _, segment := range strings.Split(strings.ToLower(u.Path), "/") {
		for _, marker := range p.CommentSegments {
			if segment == marker {
				return true
			}
		}
	}
	return false
}

// IsPlatformHost reports whether host is a platform domain or a subdomain of one
func (p Policy) IsPlatformHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, domain := range p.PlatformDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// SiteKey returns the frontier entry a discovered link contributes:
// scheme://host for host granularity, the normalized link for url granularity.
func (p Policy) SiteKey(link string) (string, bool) {
	u, err := parseAbsolute(link)
	if err != nil {
		return "", false
	}
	if p.Granularity == config.GranularityURL {
		return u.String(), true
	}
	return hostKey(u), true
}

// hostKey returns scheme://host for u
func hostKey(u *url.URL) string {
	return u.Scheme + "://" + strings.ToLower(u.Host)
}

// parseAbsolute parses raw and requires an http(s) scheme and a host.
// The fragment is removed; scheme and host are lower-cased by net/url and here.
func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &url.Error{Op: "parse", URL: raw, Err: errNotAbsolute}
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	return u, nil
}

func sameSite(a, b *url.URL) bool {
	return a.Scheme == b.Scheme && strings.EqualFold(a.Host, b.Host)
}
