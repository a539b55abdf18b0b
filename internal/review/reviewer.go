package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/foreman/internal/git"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// maxDiffChars bounds how much of a branch diff is sent to the judge.
const maxDiffChars = 50000

// Result contains the verdict on one worker branch.
type Result struct {
	// Approved is true when the judge passed the branch.
	Approved bool
	// Feedback is the judge's full response.
	Feedback string
}

// Reviewer judges a worker branch's diff against its task description.
type Reviewer struct {
	client *Client
	git    git.Runner
}

// NewReviewer creates a reviewer over the given git repository.
func NewReviewer(client *Client, gitRunner git.Runner) *Reviewer {
	return &Reviewer{client: client, git: gitRunner}
}

// ReviewBranch diffs the worker branch against the base branch and asks
// the judge whether the changes complete the task. A branch with no
// changes is rejected without an API call.
func (r *Reviewer) ReviewBranch(ctx context.Context, task *models.Task, baseBranch, branch string) (*Result, error) {
	diff, err := r.git.DiffBetween(baseBranch, branch)
	if err != nil {
		return nil, fmt.Errorf("diff %s against %s: %w", branch, baseBranch, err)
	}
	if strings.TrimSpace(diff) == "" {
		return &Result{
			Approved: false,
			Feedback: fmt.Sprintf("branch %s has no changes against %s", branch, baseBranch),
		}, nil
	}

	if len(diff) > maxDiffChars {
		diff = diff[:maxDiffChars] + "\n... (diff truncated)"
	}

	resp, err := r.client.sdk().Messages.New(ctx, anthropic.MessageNewParams{
		Model:     r.client.Model(),
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildReviewPrompt(task, diff))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("review request failed: %w", err)
	}

	r.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	text := extractText(resp)
	approved := parseVerdict(text)
	return &Result{Approved: approved, Feedback: text}, nil
}

// buildReviewPrompt renders the judge prompt for a task and its diff.
func buildReviewPrompt(task *models.Task, diff string) string {
	var b strings.Builder
	b.WriteString(`You are a Senior Staff Engineer conducting a rigorous code review of work produced by an autonomous coding agent.

Your job is to be HYPER-CRITICAL. You are the last line of defense before this branch merges.

## Task the agent was given

`)
	fmt.Fprintf(&b, "Title: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", task.Description)
	}
	b.WriteString(`
## Review Criteria (ALL must pass)

1. **Completeness**: Does the diff actually accomplish the task?
2. **Correctness**: Are there logic errors or missed edge cases?
3. **Error Handling**: Are errors checked and handled appropriately?
4. **Security**: Injection? Path traversal? Data exposure?
5. **Maintainability**: Will someone understand this in 6 months?

## Response Format

Respond with EXACTLY one of:
- APPROVED: [1-2 sentence summary of why it's acceptable]
- REJECTED: [Numbered list of specific issues that MUST be fixed]

If you find ANY issue that could cause bugs, security problems, or significant maintenance burden, REJECT.

## Diff to Review

`)
	b.WriteString(diff)
	return b.String()
}

// parseVerdict reads the judge's verdict off the response text.
func parseVerdict(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "APPROVED")
}

func extractText(resp *anthropic.Message) string {
	var result string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result += variant.Text
		}
	}
	return strings.TrimSpace(result)
}
