package llmclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Client is the LLM capability the Analyzer consumes from the
// environment: multimodal chat, schema-constrained structured output, and
// a cost/token accounting hook. Step is called once per Analyzer Loop
// iteration; ClassifyParameters and SynthesizeExtraction are called by the
// Strategy Builder.
type Client interface {
	Step(ctx context.Context, query string, screenshot []byte) (StepResult, Usage, error)
	ClassifyParameters(ctx context.Context, candidateNames []string, requestContext string) (ClassificationResult, Usage, error)
	SynthesizeExtraction(ctx context.Context, schema map[string]interface{}, sampleBody, repairNote string) (ExtractionProgram, Usage, error)
}

// Usage is the per-call cost/token accounting hook.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// AnthropicClient is the concrete vision-and-reasoning LLM backend, built
// on the Anthropic SDK's multimodal messages API with tool-forced
// structured output (Anthropic has no first-class JSON-Schema response
// format, so structured output is realized as a single required tool
// call, the same technique the synthesized extraction routines rely on
// for schema conformance).
type AnthropicClient struct {
	api     anthropic.Client
	model   anthropic.Model
	timeout time.Duration
	retries int
	logger  *slog.Logger
}

// NewAnthropicClient builds a Client from an API key and model name. A
// zero maxRetries defaults to 3.
func NewAnthropicClient(apiKey, model string, timeout time.Duration, maxRetries int, logger *slog.Logger) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if maxRetries == 0 {
		maxRetries = 3
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnthropicClient{
		api:     anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   anthropic.Model(model),
		timeout: timeout,
		retries: maxRetries,
		logger:  logger.With("component", "llmclient"),
	}, nil
}

const stepSystemPrompt = `You are driving a headless browser to locate data matching a user's query.
Given a screenshot of the current viewport, report short verbatim text fragments that plausibly
belong to the requested data, and the single next action to take if none of the visible content
is useful yet (dismiss an overlay, load more content, skip to the main content, or do nothing).`

// Step requests a StepResult for the current viewport.
func (c *AnthropicClient) Step(ctx context.Context, query string, screenshot []byte) (StepResult, Usage, error) {
	userBlocks := []anthropic.ContentBlockParamUnion{
		anthropic.NewImageBlockBase64("image/png", base64.StdEncoding.EncodeToString(screenshot)),
		anthropic.NewTextBlock("User query: " + query),
	}

	var result StepResult
	usage, err := c.callStructured(ctx, "report_step_result", "Report the current viewport's matching text sections and next action.", StepResultSchema, stepSystemPrompt, userBlocks, &result)
	return result, usage, err
}

const classificationSystemPrompt = `You classify HTTP request parameters by their pagination role.
Every name you report must be copied verbatim from the candidate list provided; never invent a
name that is not in that list. Assign "none" to parameters that are not pagination-related.`

// ClassifyParameters asks the LLM to assign a pagination role to each
// candidate parameter name.
func (c *AnthropicClient) ClassifyParameters(ctx context.Context, candidateNames []string, requestContext string) (ClassificationResult, Usage, error) {
	prompt := fmt.Sprintf("Candidate parameter names: %v\n\nRequest context:\n%s", candidateNames, requestContext)
	userBlocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(prompt)}

	var result ClassificationResult
	usage, err := c.callStructured(ctx, "classify_parameters", "Classify each candidate parameter's pagination role.", ClassificationSchema, classificationSystemPrompt, userBlocks, &result)
	if err != nil {
		return result, usage, err
	}

	candidateSet := make(map[string]bool, len(candidateNames))
	for _, n := range candidateNames {
		candidateSet[n] = true
	}
	for _, p := range result.Parameters {
		if !candidateSet[p.Name] {
			return result, usage, fmt.Errorf("%w: classified name %q not in candidate set", ErrMalformedOutput, p.Name)
		}
	}
	return result, usage, nil
}

const extractionSystemPrompt = `You write gojq query programs (https://github.com/itchyny/gojq) that extract
a list of records from a JSON or HTML-wrapped-as-text response body. Respond with a single jq
filter expression, starting from ".", that yields a JSON array of objects whose keys match the
requested schema's top-level properties. Unknown or nested fields may be omitted.`

// SynthesizeExtraction asks the LLM to produce a gojq program extracting
// records matching schema from sampleBody. repairNote, when non-empty,
// carries the prior attempt's failure back to the model as a repair
// instruction.
func (c *AnthropicClient) SynthesizeExtraction(ctx context.Context, schema map[string]interface{}, sampleBody, repairNote string) (ExtractionProgram, Usage, error) {
	schemaJSON, _ := json.MarshalIndent(schema, "", "  ")
	prompt := fmt.Sprintf("Target schema:\n%s\n\nSample response body (truncated):\n%s", schemaJSON, truncate(sampleBody, 8000))
	if repairNote != "" {
		prompt += "\n\nThe previous attempt failed:\n" + repairNote + "\nProduce a corrected query."
	}
	userBlocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(prompt)}

	var result ExtractionProgram
	usage, err := c.callStructured(ctx, "emit_extraction_program", "Emit the gojq extraction program.", ExtractionProgramSchema, extractionSystemPrompt, userBlocks, &result)
	return result, usage, err
}

// callStructured forces the model to respond via a single named tool call
// whose input is validated against schema, then decodes that call's input
// into out. It retries transient and malformed-output failures up to
// c.retries times with a brief bounded backoff.
func (c *AnthropicClient) callStructured(
	ctx context.Context,
	toolName, toolDescription string,
	schema map[string]interface{},
	systemPrompt string,
	userBlocks []anthropic.ContentBlockParamUnion,
	out interface{},
) (Usage, error) {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		usage, err := c.attemptStructured(ctx, toolName, toolDescription, schema, systemPrompt, userBlocks, out)
		if err == nil {
			return usage, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return Usage{}, err
		}
		c.logger.Warn("llm call retrying", "tool", toolName, "attempt", attempt+1, "reason", err)
		backoff(attempt)
	}
	return Usage{}, lastErr
}

func (c *AnthropicClient) attemptStructured(
	ctx context.Context,
	toolName, toolDescription string,
	schema map[string]interface{},
	systemPrompt string,
	userBlocks []anthropic.ContentBlockParamUnion,
	out interface{},
) (Usage, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.api.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(userBlocks...),
		},
		Tools: []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        toolName,
					Description: anthropic.String(toolDescription),
					InputSchema: schema,
				},
			},
		},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: toolName},
		},
	})
	if err != nil {
		return Usage{}, classifyError(err)
	}

	usage := Usage{
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}

	for _, block := range msg.Content {
		tu := block.AsToolUse()
		if tu.Name != toolName {
			continue
		}
		if err := json.Unmarshal(tu.Input, out); err != nil {
			return usage, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		return usage, nil
	}
	return usage, ErrMalformedOutput
}

// classifyError maps a provider error into the bounded failure kinds the
// Analyzer recognizes.
func classifyError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return &CallError{Err: ErrRateLimited, StatusCode: apiErr.StatusCode, Provider: "anthropic"}
		case 400, 422:
			return &CallError{Err: ErrContentRefusal, StatusCode: apiErr.StatusCode, Provider: "anthropic"}
		default:
			return &CallError{Err: ErrTransient, StatusCode: apiErr.StatusCode, Provider: "anthropic"}
		}
	}
	return &CallError{Err: ErrTransient, Provider: "anthropic"}
}

// backoff applies a short, bounded pause between retries, scaled by
// attempt count the way an adaptive worker loop backs off between idle
// polls, but capped low since this backs off an interactive call, not a
// poll loop.
func backoff(attempt int) {
	d := time.Duration(attempt+1) * 250 * time.Millisecond
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	time.Sleep(d)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
