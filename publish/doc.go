// Package publish files rendered blueprints as issues on GitHub, GitLab or Jira.
//
// Implementations:
//   - GitHub: issues via go-github with an oauth2 token source
//   - GitLab: issues via go-gitlab
//   - Jira: REST API v3 issues with the body converted to Atlassian
//     Document Format
//
// Example usage:
//
//	p, err := publish.New(publish.Config{
//	    Provider:    publish.ProviderGitHub,
//	    GitHubToken: token,
//	    GitHubRepo:  "acme/platform",
//	})
//	issue := publish.NewBuilder(projectID).WithParadigm(paradigm).WithMarkdown(md).Build()
//	published, err := p.Publish(ctx, issue)
package publish
