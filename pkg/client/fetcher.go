package client

import (
	"context"

	"github.com/Sternrassler/gh-org-repos/pkg/pagination"
)

// OrgRepoFetcher pages through the public repositories of one organization.
type OrgRepoFetcher struct {
	client *Client
	org    string
}

// NewOrgRepoFetcher returns a pagination.PageFetcher for org.
func NewOrgRepoFetcher(client *Client, org string) *OrgRepoFetcher {
	return &OrgRepoFetcher{client: client, org: org}
}

// FetchPage implements pagination.PageFetcher.
func (f *OrgRepoFetcher) FetchPage(ctx context.Context, page, perPage int) (pagination.Page[Repository], error) {
	return f.client.ListOrgRepos(ctx, f.org, page, perPage)
}

// Org returns the organization being listed.
func (f *OrgRepoFetcher) Org() string {
	return f.org
}

var _ pagination.PageFetcher[Repository] = (*OrgRepoFetcher)(nil)
