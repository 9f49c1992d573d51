// Package aisvc produces short natural-language summaries of a class's
// performance for the teacher. The model output is advisory text only;
// it never feeds back into grades.
package aisvc

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/trezcool/edugrade/core"
	"github.com/trezcool/edugrade/core/grading"
	"github.com/trezcool/edugrade/core/school"
)

// FallbackMessage is returned whenever the completion fails; callers get
// a stable message instead of an error.
const FallbackMessage = "Class analysis is unavailable right now. Please try again later."

const systemPrompt = "You are an assistant for school teachers. " +
	"Given a class's grades, write a short summary (max 150 words) of how the class is doing: " +
	"overall performance, students at risk of failing the year and any standout improvements. " +
	"Grades are on a 0-10 scale; the passing average is 7 and a final exam is required below it. " +
	"Be concrete and name students. Do not invent data."

type Service struct {
	client *openai.Client
	model  string
	logger core.Logger
}

func NewService(conf *core.Config, logger core.Logger) *Service {
	cfg := openai.DefaultConfig(conf.AI.APIKey)
	if conf.AI.BaseURL != "" {
		cfg.BaseURL = conf.AI.BaseURL
	}
	return &Service{
		client: openai.NewClientWithConfig(cfg),
		model:  conf.AI.Model,
		logger: logger,
	}
}

// AnalyzeClass summarizes the annual report rows of one class.
func (svc *Service) AnalyzeClass(ctx context.Context, class school.ClassRoom, rows []grading.ReportRow) string {
	if len(rows) == 0 {
		return "This class has no students yet."
	}

	resp, err := svc.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: svc.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(class, rows)},
		},
	})
	if err != nil {
		svc.logger.Warn("class analysis completion failed", err)
		return FallbackMessage
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		svc.logger.Warn("class analysis completion returned no content")
		return FallbackMessage
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

func buildPrompt(class school.ClassRoom, rows []grading.ReportRow) string {
	b := new(strings.Builder)
	_, _ = fmt.Fprintf(b, "Class %s, subject %s, year %s.\n", class.Name, class.Subject, class.Year)
	_, _ = fmt.Fprintf(b, "Students (%d):\n", len(rows))
	for _, row := range rows {
		_, _ = fmt.Fprintf(b, "- %s: bimesters %.1f / %.1f / %.1f / %.1f, annual average %.2f",
			row.StudentName,
			row.Effective[0], row.Effective[1], row.Effective[2], row.Effective[3],
			row.Outcome.Average,
		)
		if row.Outcome.FinalExamRequired {
			if row.FinalExam.Valid {
				_, _ = fmt.Fprintf(b, ", final exam %.1f", row.FinalExam.Float64)
			} else {
				_, _ = fmt.Fprint(b, ", final exam pending")
			}
		}
		if row.Outcome.Approved {
			_, _ = fmt.Fprint(b, " (approved)\n")
		} else {
			_, _ = fmt.Fprint(b, " (not approved)\n")
		}
	}
	return b.String()
}
