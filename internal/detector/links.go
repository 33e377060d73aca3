package detector

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/robalyx/chatguard/internal/setup/config"
)

// LinksName is the configuration key of the link blocklist detector.
const LinksName = "links"

// urlPattern finds links with or without a scheme.
var urlPattern = regexp.MustCompile(`(?i)\b(?:https?://)?(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}(?::\d+)?(?:/[^\s<>"]*)?`)

// LinkDetector flags messages linking to blocked domains.
type LinkDetector struct {
	blocked    map[string]struct{}
	confidence float64
}

// NewLinkDetector creates a detector for the configured blocklist.
func NewLinkDetector(cfg *config.Links) *LinkDetector {
	blocked := make(map[string]struct{}, len(cfg.BlockedDomains))
	for _, domain := range cfg.BlockedDomains {
		domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
		if domain != "" {
			blocked[domain] = struct{}{}
		}
	}

	confidence := cfg.Confidence
	if confidence <= 0 {
		confidence = 100
	}

	return &LinkDetector{
		blocked:    blocked,
		confidence: confidence,
	}
}

// Name returns the configuration key of the detector.
func (d *LinkDetector) Name() string {
	return LinksName
}

// ContentKind returns the content the detector inspects.
func (d *LinkDetector) ContentKind() enum.ContentKind {
	return enum.ContentKindText
}

// Check reports spam if any link in the text points at a blocked domain or one of its subdomains.
func (d *LinkDetector) Check(_ context.Context, req *types.ContentCheckRequest) (*types.CheckResult, error) {
	for _, host := range ExtractHosts(req.Text) {
		if domain, ok := d.blockedDomain(host); ok {
			return &types.CheckResult{
				Verdict:    enum.VerdictSpam,
				Confidence: d.confidence,
				Reason:     "link to blocked domain " + domain,
			}, nil
		}
	}

	return &types.CheckResult{
		Verdict: enum.VerdictClean,
		Reason:  "no blocked links",
	}, nil
}

// blockedDomain walks the host's parent domains looking for a blocked one.
func (d *LinkDetector) blockedDomain(host string) (string, bool) {
	for {
		if _, ok := d.blocked[host]; ok {
			return host, true
		}

		dot := strings.IndexByte(host, '.')
		if dot < 0 {
			return "", false
		}
		host = host[dot+1:]
	}
}

// ExtractHosts returns the lowercased host of every link in the text.
func ExtractHosts(text string) []string {
	found := urlPattern.FindAllString(text, -1)
	if len(found) == 0 {
		return nil
	}

	hosts := make([]string, 0, len(found))
	for _, raw := range found {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}

		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}

		hosts = append(hosts, strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."))
	}

	return hosts
}
