// Package robotspolicy implements the out-of-scope robots.txt policy
// collaborator: the crawl engine only ever calls through the Evaluator
// interface, never this package's concrete adapter directly.
package robotspolicy

import (
	"fmt"
	"io"
	"net/http"

	"github.com/temoto/robotstxt"
)

// Evaluator decides whether a page path may be fetched for a given
// user agent. Grounded on the teacher's isAllowedByRobots.
type Evaluator interface {
	Allowed(userAgent, page string) bool
}

// Group wraps a parsed robots.txt document for one host.
type Group struct {
	data  *robotstxt.RobotsData
	agent string
}

// Fetch retrieves and parses host's robots.txt over client.
func Fetch(client *http.Client, scheme, host, userAgent string) (*Group, error) {
	resp, err := client.Get(scheme + "://" + host + "/robots.txt")
	if err != nil {
		return nil, fmt.Errorf("robotspolicy: fetch %s/robots.txt: %w", host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// No robots.txt means everything is allowed.
		return &Group{data: nil, agent: userAgent}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("robotspolicy: read %s/robots.txt: %w", host, err)
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("robotspolicy: parse %s/robots.txt: %w", host, err)
	}

	return &Group{data: data, agent: userAgent}, nil
}

// Allowed implements Evaluator.
func (g *Group) Allowed(userAgent, page string) bool {
	if g == nil || g.data == nil {
		return true
	}
	return g.data.FindGroup(userAgent).Test(page)
}

// AllowAll is the zero-configuration Evaluator used when robots.txt
// policy is disabled for a run.
type AllowAll struct{}

// Allowed always returns true.
func (AllowAll) Allowed(string, string) bool { return true }
