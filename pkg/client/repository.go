package client

import "time"

// Repository is a GitHub repository as returned by the list endpoints.
type Repository struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	Description     string    `json:"description"`
	HTMLURL         string    `json:"html_url"`
	Language        string    `json:"language"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	Topics          []string  `json:"topics,omitempty"`
	Fork            bool      `json:"fork"`
	Archived        bool      `json:"archived"`
	Private         bool      `json:"private"`
	UpdatedAt       time.Time `json:"updated_at"`
}
