package gitlab

import "github.com/shurcooL/graphql"

type pageInfo struct {
	EndCursor   graphql.String
	HasNextPage graphql.Boolean
}

type userRef struct {
	Username graphql.String
}

type membersQuery struct {
	Group *struct {
		GroupMembers struct {
			PageInfo pageInfo
			Nodes    []struct {
				User *struct {
					Username    graphql.String
					Name        graphql.String
					PublicEmail graphql.String
				}
			}
		} `graphql:"groupMembers(first: 100, after: $cursor)"`
	} `graphql:"group(fullPath: $groupPath)"`
}

type projectNode struct {
	Name       graphql.String
	FullPath   graphql.String
	Archived   graphql.Boolean
	Repository *struct {
		RootRef graphql.String
	}
	Languages []struct {
		Name  graphql.String
		Share graphql.Float
	}
}

type projectsQuery struct {
	Group *struct {
		Projects struct {
			PageInfo pageInfo
			Nodes    []projectNode
		} `graphql:"projects(includeSubgroups: true, first: 50, after: $cursor)"`
	} `graphql:"group(fullPath: $groupPath)"`
}

type commitsQuery struct {
	Project *struct {
		Repository *struct {
			Tree *struct {
				LastCommit *struct {
					History struct {
						PageInfo pageInfo
						Nodes    []struct {
							AuthorName  graphql.String
							AuthorEmail graphql.String
							Author      *userRef
						}
					} `graphql:"history(first: 50, after: $cursor)"`
				}
			} `graphql:"tree(ref: $branch)"`
		}
	} `graphql:"project(fullPath: $fullPath)"`
}

type mergeRequestNode struct {
	Iid        graphql.String
	Title      graphql.String
	Author     *userRef
	MergeUser  *userRef
	ApprovedBy struct {
		Nodes []userRef
	} `graphql:"approvedBy(first: 20)"`
	Discussions struct {
		Nodes []struct {
			Notes struct {
				Nodes []struct {
					Author *userRef
				}
			} `graphql:"notes(first: 1)"`
		}
	} `graphql:"discussions(first: 20)"`
}

type mergeRequestsQuery struct {
	Project *struct {
		MergeRequests struct {
			PageInfo pageInfo
			Nodes    []mergeRequestNode
		} `graphql:"mergeRequests(first: 50, after: $cursor, state: merged)"`
	} `graphql:"project(fullPath: $fullPath)"`
}

type issueNode struct {
	Iid       graphql.String
	Title     graphql.String
	State     graphql.String
	CreatedAt graphql.String
	ClosedAt  graphql.String
	Author    *userRef
	Assignees struct {
		Nodes []userRef
	} `graphql:"assignees(first: 20)"`
}

type issuesQuery struct {
	Project *struct {
		Issues struct {
			PageInfo pageInfo
			Nodes    []issueNode
		} `graphql:"issues(first: 50, after: $cursor)"`
	} `graphql:"project(fullPath: $fullPath)"`
}
