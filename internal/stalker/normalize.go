package stalker

import "strings"

// portalSuffixes are stripped from user-supplied portal URLs to recover the
// bare origin. Order matters: longer, more specific suffixes first, and only
// one suffix is stripped per call so normalization never cascades.
var portalSuffixes = []string{
	"/stalker_portal/c/",
	"/stalker_portal/c",
	"/c/",
	"/c",
	"/portal.php",
	"/stalker_portal/server/load.php",
	"/server/load.php",
}

// NormalizeURL reduces a portal URL to its origin. Idempotent: a normalized
// origin comes back unchanged.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	for _, suffix := range portalSuffixes {
		if strings.HasSuffix(u, suffix) {
			u = u[:len(u)-len(suffix)]
			break
		}
	}
	// A trailing /stalker_portal would be duplicated by the first handshake
	// endpoint candidate.
	u = strings.TrimSuffix(u, "/stalker_portal")
	return strings.TrimRight(u, "/")
}
