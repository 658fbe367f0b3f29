package client

import (
	"net/url"
	"strconv"
	"strings"
)

// parseLinks parses an RFC 8288 Link header into a rel -> URL map.
func parseLinks(header string) map[string]string {
	links := make(map[string]string)
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(strings.TrimSpace(part), ";")
		if len(segments) < 2 {
			continue
		}

		target := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		target = target[1 : len(target)-1]

		for _, param := range segments[1:] {
			key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || strings.TrimSpace(key) != "rel" {
				continue
			}
			for _, rel := range strings.Fields(strings.Trim(value, `"`)) {
				links[rel] = target
			}
		}
	}
	return links
}

// lastPage returns the page number of the rel="last" link, or 0 if absent.
func lastPage(header string) int {
	target, ok := parseLinks(header)["last"]
	if !ok {
		return 0
	}

	u, err := url.Parse(target)
	if err != nil {
		return 0
	}
	page, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil || page < 1 {
		return 0
	}
	return page
}
