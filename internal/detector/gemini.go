package detector

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/google/generative-ai-go/genai"
	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/robalyx/chatguard/internal/setup/config"
	"github.com/robalyx/chatguard/pkg/utils"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/json"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// GeminiName is the configuration key of the LLM detector.
const GeminiName = "gemini"

// ApplicationJSON is the MIME type of the request payload.
const ApplicationJSON = "application/json"

// maxPromptTextLength bounds the message text sent to the model.
const maxPromptTextLength = 4000

// ErrModelResponse indicates the model returned no usable answer.
var ErrModelResponse = errors.New("model response error")

const geminiSystemPrompt = `Instruction:
You are a moderator for public group chats. You classify a single chat message as spam or clean.

Spam includes:
- Unsolicited advertising, promotion or referral links
- Scams, phishing, fake giveaways and impersonation of staff or brands
- Crypto, investment or gambling schemes
- Adult content offers and requests to move to private messages for such content
- Mass-mention or copy-pasted bait messages

Clean includes:
- Ordinary conversation, questions, jokes and arguments
- Links shared as part of a conversation without promotional intent
- Messages in any language that are not spam

Output format:
Return "spam" true or false, a "confidence" between 0 and 100 for your verdict,
and a short "reason" written in English describing the decisive evidence.

Rules:
1. Judge only the message content and the provided context.
2. Never flag a message for its language alone.
3. Use confidence above 90 only when the message is unambiguous.`

const geminiRequestPrompt = `Classify this chat message.

Input:
%s`

// geminiRequest is the message context sent to the model.
type geminiRequest struct {
	Text                 string `json:"text"`
	IsReplyToChannelPost bool   `json:"isReplyToChannelPost"`
	HasAttachment        bool   `json:"hasAttachment"`
}

// geminiResponse is the structured answer returned by the model.
type geminiResponse struct {
	Spam       bool    `json:"spam"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// GeminiDetector classifies messages with a Gemini model.
type GeminiDetector struct {
	model  *genai.GenerativeModel
	minify *minify.M
	sem    *semaphore.Weighted
	logger *zap.Logger
}

// NewGeminiDetector creates a detector using the given Gemini client.
func NewGeminiDetector(client *genai.Client, cfg *config.Gemini, logger *zap.Logger) *GeminiDetector {
	model := client.GenerativeModel(cfg.Model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(geminiSystemPrompt))
	model.ResponseMIMEType = ApplicationJSON
	model.ResponseSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"spam": {
				Type:        genai.TypeBoolean,
				Description: "Whether the message is spam",
			},
			"confidence": {
				Type:        genai.TypeNumber,
				Description: "Confidence in the verdict between 0 and 100",
			},
			"reason": {
				Type:        genai.TypeString,
				Description: "Short explanation of the verdict",
			},
		},
		Required: []string{"spam", "confidence", "reason"},
	}
	model.SetTemperature(0.1)
	model.SetTopP(0.9)
	model.SetTopK(20)
	model.SetMaxOutputTokens(256)

	// Create minifier for JSON
	m := minify.New()
	m.AddFunc(ApplicationJSON, json.Minify)

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &GeminiDetector{
		model:  model,
		minify: m,
		sem:    semaphore.NewWeighted(maxConcurrent),
		logger: logger.Named("detector_gemini"),
	}
}

// Name returns the configuration key of the detector.
func (d *GeminiDetector) Name() string {
	return GeminiName
}

// ContentKind returns the content the detector inspects.
func (d *GeminiDetector) ContentKind() enum.ContentKind {
	return enum.ContentKindText
}

// Check asks the model to classify the message.
func (d *GeminiDetector) Check(ctx context.Context, req *types.ContentCheckRequest) (*types.CheckResult, error) {
	prompt, err := d.buildPrompt(req)
	if err != nil {
		return nil, err
	}

	// Acquire semaphore to limit concurrent AI calls
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire gemini semaphore: %w", err)
	}
	defer d.sem.Release(1)

	var result *types.CheckResult

	err = utils.WithRetry(ctx, func() error {
		response, err := d.model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return fmt.Errorf("AI generation failed: %w", err)
		}

		if len(response.Candidates) == 0 || response.Candidates[0].Content == nil ||
			len(response.Candidates[0].Content.Parts) == 0 {
			return fmt.Errorf("%w: no response from Gemini", ErrModelResponse)
		}

		responseText, ok := response.Candidates[0].Content.Parts[0].(genai.Text)
		if !ok {
			return fmt.Errorf("%w: unexpected response format from AI", ErrModelResponse)
		}

		result, err = parseGeminiResponse(string(responseText))
		if err != nil {
			d.logger.Error("Failed to parse AI response",
				zap.String("response", string(responseText)),
				zap.Error(err))
			return err
		}

		return nil
	}, utils.GetAIRetryOptions())
	if err != nil {
		return nil, err
	}

	return result, nil
}

// buildPrompt renders the request prompt with the minified message context.
func (d *GeminiDetector) buildPrompt(req *types.ContentCheckRequest) (string, error) {
	payload, err := sonic.Marshal(geminiRequest{
		Text:                 utils.TruncateString(utils.CompressWhitespacePreserveNewlines(req.Text), maxPromptTextLength),
		IsReplyToChannelPost: req.IsReplyToChannelPost,
		HasAttachment:        req.HasAttachment(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	minified, err := d.minify.Bytes(ApplicationJSON, payload)
	if err != nil {
		return "", fmt.Errorf("failed to minify JSON: %w", err)
	}

	return fmt.Sprintf(geminiRequestPrompt, minified), nil
}

// parseGeminiResponse converts the model's JSON answer into a check result.
func parseGeminiResponse(text string) (*types.CheckResult, error) {
	var response geminiResponse
	if err := sonic.Unmarshal([]byte(text), &response); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}

	verdict := enum.VerdictClean
	if response.Spam {
		verdict = enum.VerdictSpam
	}

	return &types.CheckResult{
		Verdict:    verdict,
		Confidence: types.ClampConfidence(response.Confidence),
		Reason:     response.Reason,
	}, nil
}
