package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/coach.txt
	coachRaw string

	//go:embed template/summary_initial.txt
	summaryInitialRaw string

	//go:embed template/summary_extend.txt
	summaryExtendRaw string

	//go:embed template/resume_writer.txt
	resumeWriterRaw string

	//go:embed template/cover_letter.txt
	coverLetterRaw string

	//go:embed template/answer_with_context.txt
	answerWithContextRaw string

	//go:embed template/resume_consultant.txt
	resumeConsultantRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Coach             string
	SummaryInitial    string
	SummaryExtend     string
	ResumeWriter      string
	CoverLetter       string
	AnswerWithContext string
	ResumeConsultant  string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// Safe to call concurrently; the embed is compile-time, and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Coach:             strings.TrimSpace(coachRaw),
		SummaryInitial:    strings.TrimSpace(summaryInitialRaw),
		SummaryExtend:     strings.TrimSpace(summaryExtendRaw),
		ResumeWriter:      strings.TrimSpace(resumeWriterRaw),
		CoverLetter:       strings.TrimSpace(coverLetterRaw),
		AnswerWithContext: strings.TrimSpace(answerWithContextRaw),
		ResumeConsultant:  strings.TrimSpace(resumeConsultantRaw),
	}
}

// Render substitutes {key} placeholders in a template.
func Render(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
