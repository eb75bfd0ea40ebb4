package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/dhrits/job-hopper/agent/contract"
	promptx "github.com/dhrits/job-hopper/agent/prompt"
)

const (
	ToolResolveURL          = "resolve_url"
	ToolResumeConsultant    = "resume_consultant"
	ToolJobMarketConsultant = "job_market_consultant"
	ToolResumeWriter        = "resume_writer"
	ToolCoverLetterWriter   = "cover_letter_writer"
	ToolWebSearch           = "web_search"
)

const defaultRetrievalK = 5

// CatalogDeps are the collaborators the job-coach tools are built on.
type CatalogDeps struct {
	Writer     contractx.Completer
	Retriever  contractx.Retriever
	Searcher   contractx.WebSearcher
	Fetcher    contractx.URLFetcher
	Prompts    promptx.PromptSet
	RetrievalK int
}

func (d CatalogDeps) validate() error {
	if d.Writer == nil {
		return errors.New("writer completer is required")
	}
	if d.Retriever == nil {
		return errors.New("retriever is required")
	}
	if d.Searcher == nil {
		return errors.New("web searcher is required")
	}
	if d.Fetcher == nil {
		return errors.New("url fetcher is required")
	}
	return nil
}

// BuildCatalog assembles the per-session registry. The resume-aware tools
// close over the session's resume text; the registry is immutable once built.
func BuildCatalog(sess contractx.SessionContext, deps CatalogDeps) (*Registry, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}

	k := deps.RetrievalK
	if k <= 0 {
		k = defaultRetrievalK
	}

	registry := NewRegistry()
	specs := []Spec{
		{
			Name:        ToolResolveURL,
			Description: "Given a URL, resolves it to the textual contents of the page. Use this when the user shares a link to a job posting.",
			Parameters:  objectSchema(map[string]any{"url": stringProp("The URL to resolve")}, "url"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				url, err := stringArg(args, "url")
				if err != nil {
					return "", err
				}
				return deps.Fetcher.Fetch(ctx, url)
			},
		},
		{
			Name:        ToolResumeConsultant,
			Description: "Answers questions about the user's resume: their experience, skills, fit for roles, and how to present themselves.",
			Parameters:  objectSchema(map[string]any{"question": stringProp("The question about the user's resume")}, "question"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				question, err := stringArg(args, "question")
				if err != nil {
					return "", err
				}
				rendered := promptx.Render(deps.Prompts.ResumeConsultant, map[string]string{
					"resume":   sess.Resume,
					"question": question,
				})
				return subComplete(ctx, deps.Writer, rendered)
			},
		},
		{
			Name:        ToolJobMarketConsultant,
			Description: "Answers questions about the job market: current openings, required skills, companies, and hiring trends.",
			Parameters:  objectSchema(map[string]any{"question": stringProp("The job-market question")}, "question"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				question, err := stringArg(args, "question")
				if err != nil {
					return "", err
				}
				docs, err := deps.Retriever.Retrieve(ctx, question, k)
				if err != nil {
					return "", err
				}
				rendered := promptx.Render(deps.Prompts.AnswerWithContext, map[string]string{
					"question": question,
					"context":  formatDocuments(docs),
				})
				return subComplete(ctx, deps.Writer, rendered)
			},
		},
		{
			Name:        ToolResumeWriter,
			Description: "Given a job description, tailors the user's resume to that specific job.",
			Parameters:  objectSchema(map[string]any{"job_description": stringProp("The full job description to tailor the resume to")}, "job_description"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				jd, err := stringArg(args, "job_description")
				if err != nil {
					return "", err
				}
				rendered := promptx.Render(deps.Prompts.ResumeWriter, map[string]string{
					"resume":          sess.Resume,
					"job_description": jd,
				})
				return subComplete(ctx, deps.Writer, rendered)
			},
		},
		{
			Name:        ToolCoverLetterWriter,
			Description: "Given a job description, writes a cover letter tailored to that specific job based on the user's resume.",
			Parameters:  objectSchema(map[string]any{"job_description": stringProp("The full job description to write a cover letter for")}, "job_description"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				jd, err := stringArg(args, "job_description")
				if err != nil {
					return "", err
				}
				rendered := promptx.Render(deps.Prompts.CoverLetter, map[string]string{
					"resume":          sess.Resume,
					"job_description": jd,
				})
				return subComplete(ctx, deps.Writer, rendered)
			},
		},
		{
			Name:        ToolWebSearch,
			Description: "Searches the web for the query and answers it using the results. Use this for anything not covered by the other tools.",
			Parameters:  objectSchema(map[string]any{"query": stringProp("The search query")}, "query"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				query, err := stringArg(args, "query")
				if err != nil {
					return "", err
				}
				docs, err := deps.Searcher.Search(ctx, query, k)
				if err != nil {
					return "", err
				}
				rendered := promptx.Render(deps.Prompts.AnswerWithContext, map[string]string{
					"question": query,
					"context":  formatDocuments(docs),
				})
				answer, err := subComplete(ctx, deps.Writer, rendered)
				if err != nil {
					return "", err
				}
				if sources := formatSources(docs); sources != "" {
					answer += "\n\nSources:\n" + sources
				}
				return answer, nil
			},
		},
	}

	for _, spec := range specs {
		if err := registry.Register(spec); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func subComplete(ctx context.Context, completer contractx.Completer, rendered string) (string, error) {
	msg, err := completer.Complete(ctx, []contractx.Message{contractx.NewUserMessage(rendered)}, nil)
	if err != nil {
		return "", err
	}
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return "", errors.New("empty completion")
	}
	return content, nil
}

func formatDocuments(docs []contractx.Document) string {
	if len(docs) == 0 {
		return "(no results)"
	}
	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if doc.Title != "" {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, doc.Title)
		} else {
			fmt.Fprintf(&b, "[%d]\n", i+1)
		}
		b.WriteString(doc.Content)
	}
	return b.String()
}

func formatSources(docs []contractx.Document) string {
	var b strings.Builder
	for _, doc := range docs {
		if doc.URL == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s\n", doc.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%s is required", key)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%s is empty", key)
	}
	return value, nil
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(desc string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": desc,
	}
}
