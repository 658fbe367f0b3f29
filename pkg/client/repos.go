package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/gh-org-repos/pkg/pagination"
)

// MaxPerPage is the largest page size GitHub accepts.
const MaxPerPage = 100

// ListOrgRepos fetches one page of an organization's public repositories.
// HasMore is set when the page is full; LastPage comes from the Link header.
func (c *Client) ListOrgRepos(ctx context.Context, org string, page, perPage int) (pagination.Page[Repository], error) {
	org = strings.TrimSpace(org)
	if org == "" {
		return pagination.Page[Repository]{}, validationError("organization is required")
	}
	if page < 1 {
		return pagination.Page[Repository]{}, validationError("page must be >= 1 (got %d)", page)
	}
	if perPage < 1 || perPage > MaxPerPage {
		return pagination.Page[Repository]{}, validationError("per_page must be between 1 and %d (got %d)", MaxPerPage, perPage)
	}

	query := url.Values{
		"type":     []string{"public"},
		"page":     []string{strconv.Itoa(page)},
		"per_page": []string{strconv.Itoa(perPage)},
	}

	resp, err := c.Get(ctx, "/orgs/"+url.PathEscape(org)+"/repos", query)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			apiErr.Resource = fmt.Sprintf("Organization %q", org)
		}
		return pagination.Page[Repository]{}, err
	}
	defer resp.Body.Close()

	var repos []Repository
	if err := json.NewDecoder(resp.Body).Decode(&repos); err != nil {
		return pagination.Page[Repository]{}, fmt.Errorf("decode repositories: %w", err)
	}

	c.logger.Debug().
		Str("org", org).
		Int("page", page).
		Int("per_page", perPage).
		Int("received", len(repos)).
		Msg("Listed organization repositories")

	return pagination.Page[Repository]{
		Items:    repos,
		HasMore:  len(repos) == perPage,
		LastPage: lastPage(resp.Header.Get("Link")),
	}, nil
}
