package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/snapsolve/backend/domain"
	"github.com/snapsolve/backend/utils/log"
)

// Replies used when the backend misbehaves. These reach the user as-is; a
// solve never surfaces a transport error.
const (
	solveFailureReply = "SnapSolve AI encountered an error. Please check the file quality and try again."
	emptyModelReply   = "I'm sorry, I couldn't generate a solution. Please try again."
)

type GeminiClient struct {
	client      *genai.Client
	solveModel  string
	imageModel  string
	temperature float32
}

func NewGeminiClient(apiKey, solveModel, imageModel string, temperature float32) *GeminiClient {
	ctx := context.TODO()

	client, err := genai.NewClient(
		ctx,
		&genai.ClientConfig{
			APIKey:      apiKey,
			HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
		},
	)
	if err != nil {
		panic(fmt.Errorf("creating genai client: %w", err))
	}

	return &GeminiClient{
		client:      client,
		solveModel:  solveModel,
		imageModel:  imageModel,
		temperature: temperature,
	}
}

// Solve sends one turn to Gemini. History arrives already bounded; each
// turn keeps its original role and full text. Any failure degrades to the
// fixed apology string.
func (g *GeminiClient) Solve(ctx context.Context, req domain.SolveRequest) string {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, msg := range req.History {
		role := genai.RoleModel
		if msg.Role == domain.RoleUser {
			role = genai.RoleUser
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = "Please analyze the attached file."
	}

	userParts := []*genai.Part{
		{Text: fmt.Sprintf("Grade Level Context: %s\nSelected Mode: %s\n\nStudent Input: %s",
			req.GradeLevel, req.Mode, prompt)},
	}

	if req.Media != nil {
		data, err := decodeMediaData(req.Media.Data)
		if err != nil {
			log.WithCtx(ctx).Error("decoding media attachment", zap.Error(err))
			return solveFailureReply
		}
		userParts = append(userParts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: req.Media.MIMEType,
				Data:     data,
			},
		})
	}

	contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: userParts})

	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.solveModel,
		contents,
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: systemInstruction(req.Mode, req.Pro)}},
			},
			Temperature: genai.Ptr[float32](g.temperature),
		},
	)
	if err != nil {
		log.WithCtx(ctx).Error("gemini solve request failed", zap.Error(err))
		return solveFailureReply
	}

	if text := resp.Text(); text != "" {
		return text
	}
	return emptyModelReply
}

// GenerateVisualAid asks the image model for one illustration and returns
// it as a data URL. An error means the aid is absent for this prompt.
func (g *GeminiClient) GenerateVisualAid(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.imageModel,
		genai.Text(fmt.Sprintf("Educational diagram or illustration for: %s. Clean, labeled, academic style.", prompt)),
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	)
	if err != nil {
		return "", fmt.Errorf("generate visual aid: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates in visual aid response")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return "data:image/png;base64," + base64.StdEncoding.EncodeToString(part.InlineData.Data), nil
		}
	}
	return "", fmt.Errorf("no image data in visual aid response")
}

// decodeMediaData strips the data-URL prefix, if any, and decodes the
// base64 payload into raw bytes for transport.
func decodeMediaData(data string) ([]byte, error) {
	if i := strings.IndexByte(data, ','); i >= 0 {
		data = data[i+1:]
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decoding media payload: %w", err)
	}
	return decoded, nil
}
