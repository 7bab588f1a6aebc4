package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/justsurfingit/eis/internal/parser"
	"github.com/justsurfingit/eis/internal/scraper"
)

const (
	DefaultLLMModel   = "gemini-2.5-flash"
	maxExtractionText = 20000
)

// LLMService extracts posting details from page text with a hosted model.
type LLMService struct {
	Client llms.Model
}

// NewLLMService connects to Gemini. An empty API key is an error; callers
// that want the fallback optional should not construct the service.
func NewLLMService(ctx context.Context, apiKey, model string) (*LLMService, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	if model == "" {
		model = DefaultLLMModel
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &LLMService{Client: llm}, nil
}

const jobExtractionPrompt = `
You are an expert Job Data Extraction Agent. Your task is to analyze the provided text from a job posting page and extract structured data.

### INSTRUCTIONS:
1. **Analyze** the text to identify the core job details.
2. **Ignore** navigation menus, footers, "similar jobs" lists, and site advertisements.
3. **Extract** the following fields strictly.
4. **Format** the output as valid JSON only. Do not wrap the output in markdown code blocks.

### OUTPUT SCHEMA:
{
    "company_name": "Name of the company (e.g., Google, StartupInc)",
    "role_title": "Job title (e.g., Senior Backend Engineer)",
    "location": "Job location or 'Remote'",
    "description": "A clean summary of the job. Focus on Responsibilities and Requirements. Remove HTML tags.",
    "salary_range": "The salary string if explicitly mentioned (e.g., '£30,000 - £37,000 a year'), otherwise null",
    "deadline": "Application deadline as YYYY-MM-DD if stated, otherwise null"
}

### CONSTRAINT:
If a piece of information is missing, set the value to null. Do not hallucinate or guess.

### RAW CONTENT:
%s
`

type extractedJob struct {
	CompanyName *string `json:"company_name"`
	RoleTitle   *string `json:"role_title"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
	SalaryRange *string `json:"salary_range"`
	Deadline    *string `json:"deadline"`
}

// ExtractJobDetails asks the model for the posting fields in pageText.
func (s *LLMService) ExtractJobDetails(ctx context.Context, pageText string) (*scraper.Details, error) {
	raw, err := s.ExtractJobJSON(ctx, pageText)
	if err != nil {
		return nil, err
	}

	var out extractedJob
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}

	d := &scraper.Details{
		Title:       deref(out.RoleTitle),
		Company:     deref(out.CompanyName),
		Location:    deref(out.Location),
		Description: deref(out.Description),
	}
	if salary := deref(out.SalaryRange); salary != "" {
		sal := parser.ParseSalary(salary)
		d.SalaryMin, d.SalaryMax = sal.Min, sal.Max
	}
	if deadline := deref(out.Deadline); deadline != "" {
		if ts, ok := parseDeadline(deadline); ok {
			d.Deadline = &ts
		}
	}
	return d, nil
}

// ExtractJobJSON returns the model's JSON answer with any code fence
// removed.
func (s *LLMService) ExtractJobJSON(ctx context.Context, pageText string) (string, error) {
	pageText = scraper.Truncate(pageText, maxExtractionText)
	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, fmt.Sprintf(jobExtractionPrompt, pageText))
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return stripCodeFence(resp), nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func parseDeadline(s string) (time.Time, bool) {
	for _, layout := range []string{time.DateOnly, time.RFC3339, "02/01/2006", "2 January 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
