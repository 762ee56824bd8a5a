package models

import "encoding/json"

// Platform identifies the code host a document was harvested from.
type Platform string

const (
	PlatformGitHub Platform = "github"
	PlatformGitLab Platform = "gitlab"
)

// UnknownOrganization is recorded as a node source when a document names
// neither an organization nor a group.
const UnknownOrganization = "Unknown"

// OrgDocument is one harvested organization (GitHub) or group (GitLab).
type OrgDocument struct {
	Organization string       `json:"organization,omitempty"`
	Group        string       `json:"group,omitempty"`
	Platform     Platform     `json:"platform,omitempty"`
	ExtractedAt  string       `json:"extracted_at,omitempty"`
	Members      []Member     `json:"members,omitempty"`
	Repositories []Repository `json:"repositories"`
}

// OrgName returns the organization, falling back to the GitLab group path
// and then to UnknownOrganization.
func (d *OrgDocument) OrgName() string {
	return OrgNameOf(d.Organization, d.Group)
}

// OrgNameOf applies the OrgName fallback to raw fields.
func OrgNameOf(organization, group string) string {
	switch {
	case organization != "":
		return organization
	case group != "":
		return group
	default:
		return UnknownOrganization
	}
}

// Member is an organization member as listed by the host. Members are
// informational; only activity creates graph nodes.
type Member struct {
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Repository is the activity of one repository or GitLab project.
// Contributors holds commit author logins, or "email::<address>" when a
// commit is not linked to an account.
type Repository struct {
	Name          string        `json:"name"`
	FullPath      string        `json:"full_path,omitempty"`
	Languages     []string      `json:"languages,omitempty"`
	Contributors  []string      `json:"contributors,omitempty"`
	PullRequests  []PullRequest `json:"pull_requests,omitempty"`
	MergeRequests []PullRequest `json:"merge_requests,omitempty"`
	Issues        []Issue       `json:"issues,omitempty"`
}

// ChangeRequests returns pull requests followed by merge requests.
func (r *Repository) ChangeRequests() []PullRequest {
	if len(r.MergeRequests) == 0 {
		return r.PullRequests
	}
	out := make([]PullRequest, 0, len(r.PullRequests)+len(r.MergeRequests))
	out = append(out, r.PullRequests...)
	return append(out, r.MergeRequests...)
}

// PullRequest covers both GitHub pull requests and GitLab merge requests.
// GitLab reports the iid as a string, hence json.Number.
type PullRequest struct {
	Number     json.Number `json:"number,omitempty"`
	Title      string      `json:"title,omitempty"`
	Author     string      `json:"author"`
	MergedBy   string      `json:"merged_by,omitempty"`
	Reviewers  []string    `json:"reviewers,omitempty"`
	Commenters []string    `json:"commenters,omitempty"`
}

// Issue is a GitHub or GitLab issue. ClosedBy is empty while it is open or
// when the platform does not report the closer.
type Issue struct {
	Number     json.Number `json:"number,omitempty"`
	Title      string      `json:"title,omitempty"`
	State      string      `json:"state,omitempty"`
	CreatedAt  string      `json:"created_at,omitempty"`
	ClosedAt   string      `json:"closed_at,omitempty"`
	Author     string      `json:"author"`
	ClosedBy   string      `json:"closed_by,omitempty"`
	Assignees  []string    `json:"assignees,omitempty"`
	Commenters []string    `json:"commenters,omitempty"`
}
