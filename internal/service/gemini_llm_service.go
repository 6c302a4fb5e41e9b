package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/ngophuc/toeic-exam-api/config"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// AIAssessment is one graded speaking/writing response: a raw 0-100 score,
// a per-criterion breakdown, free-form feedback, a corrected rewrite
// (writing only) and a transcription of the recording (speaking only).
type AIAssessment struct {
	Score          float64
	DetailedScores map[string]float64
	Feedback       string
	CorrectedText  string
	Transcription  string
}

// GeminiLLMService is the opaque external AI grader.
type GeminiLLMService interface {
	ScoreWriting(ctx context.Context, partType, questionContent, answerText string) (*AIAssessment, error)
	ScoreSpeaking(ctx context.Context, partType, questionContent, audioURL string) (*AIAssessment, error)
}

type geminiLLMService struct {
	client *genai.GenerativeModel
	cfg    *config.Config
}

func NewGeminiLLMService(cfg *config.Config) (GeminiLLMService, error) {
	if cfg.GeminiApiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set. GeminiLLMService will be non-functional.")
		return &geminiLLMService{cfg: cfg, client: nil}, nil
	}
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiApiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	model := client.GenerativeModel("gemini-1.5-flash")
	return &geminiLLMService{client: model, cfg: cfg}, nil
}

func fetchAudioData(audioURL string) ([]byte, string, error) {
	if audioURL == "" {
		return nil, "", fmt.Errorf("audio URL is empty")
	}
	resp, err := http.Get(audioURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch audio from URL %s: %w", audioURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch audio (status %d) from URL %s", resp.StatusCode, audioURL)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read audio data from URL %s: %w", audioURL, err)
	}

	contentType := resp.Header.Get("Content-Type")
	var mimeType string
	if contentType != "" {
		parsedMime, _, parseErr := mime.ParseMediaType(contentType)
		if parseErr == nil && strings.HasPrefix(parsedMime, "audio/") {
			mimeType = parsedMime
		}
	}
	if mimeType == "" {
		ext := filepath.Ext(audioURL)
		mimeType = mime.TypeByExtension(ext)
		if mimeType == "" || !strings.HasPrefix(mimeType, "audio/") {
			// Cloudinary serves recordings without an extension sometimes.
			mimeType = "audio/mpeg"
			log.Warn().Str("url", audioURL).Str("ext", ext).Msg("Could not determine audio MIME type, assuming audio/mpeg.")
		}
	}
	return audioData, mimeType, nil
}

func parseAssessment(rawResponse string) (*AIAssessment, error) {
	scorePrefix := "Score:"
	criteriaPrefix := "Criteria:"
	correctedPrefix := "Corrected:"
	feedbackPrefix := "Feedback:"
	transcriptionPrefix := "Transcription:"

	scoreIndex := strings.Index(rawResponse, scorePrefix)
	if scoreIndex == -1 {
		return nil, fmt.Errorf("response does not contain 'Score:' prefix. Raw: %s", rawResponse)
	}

	var scoreStr string
	endOfScoreLine := strings.Index(rawResponse[scoreIndex:], "\n")
	if endOfScoreLine == -1 {
		scoreStr = strings.TrimSpace(rawResponse[scoreIndex+len(scorePrefix):])
	} else {
		scoreStr = strings.TrimSpace(rawResponse[scoreIndex+len(scorePrefix) : scoreIndex+endOfScoreLine])
	}
	parts := strings.Fields(scoreStr)
	if len(parts) > 0 {
		scoreStr = parts[0]
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(scoreStr), 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse score value ('%s') from AI response", scoreStr)
	}

	assessment := &AIAssessment{Score: score}

	criteriaIndex := strings.Index(rawResponse, criteriaPrefix)
	correctedIndex := strings.Index(rawResponse, correctedPrefix)
	transcriptionIndex := strings.Index(rawResponse, transcriptionPrefix)
	feedbackIndex := strings.Index(rawResponse, feedbackPrefix)

	if criteriaIndex != -1 {
		line := rawResponse[criteriaIndex+len(criteriaPrefix):]
		if nl := strings.Index(line, "\n"); nl != -1 {
			line = line[:nl]
		}
		detailed := make(map[string]float64)
		for _, pair := range strings.Split(line, ",") {
			name, value, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			v, parseErr := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if parseErr != nil {
				continue
			}
			detailed[strings.TrimSpace(name)] = v
		}
		if len(detailed) > 0 {
			assessment.DetailedScores = detailed
		}
	}

	if correctedIndex != -1 {
		end := len(rawResponse)
		if feedbackIndex > correctedIndex {
			end = feedbackIndex
		}
		assessment.CorrectedText = strings.TrimSpace(rawResponse[correctedIndex+len(correctedPrefix) : end])
	}

	if transcriptionIndex != -1 {
		end := len(rawResponse)
		if feedbackIndex > transcriptionIndex {
			end = feedbackIndex
		}
		assessment.Transcription = strings.TrimSpace(rawResponse[transcriptionIndex+len(transcriptionPrefix) : end])
	}
	if feedbackIndex != -1 {
		assessment.Feedback = strings.TrimSpace(rawResponse[feedbackIndex+len(feedbackPrefix):])
	} else {
		assessment.Feedback = "Feedback not found in the expected format after the score."
	}

	// Clamp to the raw band.
	if assessment.Score > 100 {
		assessment.Score = 100
	}
	if assessment.Score < 0 {
		assessment.Score = 0
	}
	return assessment, nil
}

const writingOutputInstruction = `
Please provide your evaluation in four distinct parts:
1. Score: A numerical score for the answer, from 0 to 100, reflecting the overall quality based on all criteria.
2. Criteria: A per-criterion breakdown on a single line, as comma-separated name=score pairs covering grammar, vocabulary, coherence and task_achievement, each from 0 to 100.
3. Corrected: A corrected version of the user's answer with the identified errors fixed, keeping the user's ideas and structure.
4. Feedback: Detailed, constructive feedback. Specifically:
    - Identify strong points of the response.
    - Point out specific errors in grammar, vocabulary, coherence, or task achievement.
    - For each error, explain briefly why it's an error.
    - Provide a concrete example of how to correct the error or improve the sentence/section.
    - Offer general advice for improvement related to the identified weaknesses.

Format your response strictly as:
Score: [Your Numerical Score Here]
Criteria: grammar=[0-100], vocabulary=[0-100], coherence=[0-100], task_achievement=[0-100]
Corrected:
[Your Corrected Version Here]
Feedback:
[Your Detailed Feedback Here, using bullet points or clear paragraphs for different aspects]
---
`

const speakingOutputInstruction = `
Please provide your evaluation in four distinct parts:
1. Score: A numerical score for the answer, from 0 to 100, reflecting pronunciation, intonation, fluency, grammar, vocabulary and task achievement.
2. Criteria: A per-criterion breakdown on a single line, as comma-separated name=score pairs covering pronunciation, fluency, grammar and vocabulary, each from 0 to 100.
3. Transcription: A faithful transcription of what the speaker said.
4. Feedback: Detailed, constructive feedback on pronunciation, fluency, grammar, vocabulary, and how well the response addresses the task.

Format your response strictly as:
Score: [Your Numerical Score Here]
Criteria: pronunciation=[0-100], fluency=[0-100], grammar=[0-100], vocabulary=[0-100]
Transcription:
[Your Transcription Here]
Feedback:
[Your Detailed Feedback Here]
---
`

func (s *geminiLLMService) ScoreWriting(ctx context.Context, partType, questionContent, answerText string) (*AIAssessment, error) {
	if s.client == nil {
		return nil, fmt.Errorf("gemini client not initialized")
	}

	var prompt strings.Builder
	prompt.WriteString("You are an expert TOEIC Writing Test instructor with deep knowledge of the TOEIC Writing Test format and scoring criteria.\n")
	prompt.WriteString("Please evaluate the following user's TOEIC writing response.\n\n")

	switch partType {
	case "sentence_picture":
		prompt.WriteString("The user was asked to write ONE grammatically correct sentence for a picture-description task.\n")
		prompt.WriteString("Evaluate grammar, vocabulary, and task achievement for a single complete sentence.\n\n")
	case "email_response":
		prompt.WriteString("The user was asked to respond to an email prompt.\n")
		prompt.WriteString("Evaluate grammar, vocabulary, coherence and cohesion, task achievement, and the suitability of tone for an email.\n\n")
	case "opinion_essay":
		prompt.WriteString("The user was asked to write an opinion essay.\n")
		prompt.WriteString("Evaluate grammar, vocabulary, coherence and cohesion, thesis development with relevant reasons and examples, and essay structure.\n\n")
	default:
		return nil, fmt.Errorf("unsupported writing part type for scoring: %s", partType)
	}

	prompt.WriteString("Task Prompt (for context):\n---\n")
	prompt.WriteString(questionContent)
	prompt.WriteString("\n---\n\nUser's Answer:\n---\n")
	prompt.WriteString(answerText)
	prompt.WriteString("\n---\n\n")
	prompt.WriteString(writingOutputInstruction)

	return s.generate(ctx, []genai.Part{genai.Text(prompt.String())}, partType)
}

func (s *geminiLLMService) ScoreSpeaking(ctx context.Context, partType, questionContent, audioURL string) (*AIAssessment, error) {
	if s.client == nil {
		return nil, fmt.Errorf("gemini client not initialized")
	}

	audioData, mimeType, err := fetchAudioData(audioURL)
	if err != nil {
		log.Error().Err(err).Str("audioURL", audioURL).Msg("Failed to fetch audio for scoring")
		return nil, err
	}

	var prompt strings.Builder
	prompt.WriteString("You are an expert TOEIC Speaking Test instructor with deep knowledge of the TOEIC Speaking Test format and scoring criteria.\n")
	prompt.WriteString("Please evaluate the user's recorded TOEIC speaking response provided above.\n\n")

	switch partType {
	case "read_aloud":
		prompt.WriteString("The task was to read a text aloud. Evaluate pronunciation, intonation, and stress.\n\n")
	case "describe_picture":
		prompt.WriteString("The task was to describe a picture. Evaluate pronunciation, intonation, grammar, vocabulary, and cohesion.\n\n")
	case "respond_questions":
		prompt.WriteString("The task was to answer spoken questions. Evaluate relevance, completeness, and delivery of the answers.\n\n")
	case "express_opinion":
		prompt.WriteString("The task was to express and support an opinion. Evaluate delivery, language use, and the development of the opinion.\n\n")
	default:
		return nil, fmt.Errorf("unsupported speaking part type for scoring: %s", partType)
	}

	prompt.WriteString("Task Prompt (for context):\n---\n")
	prompt.WriteString(questionContent)
	prompt.WriteString("\n---\n\n")
	prompt.WriteString(speakingOutputInstruction)

	parts := []genai.Part{
		genai.Blob{MIMEType: mimeType, Data: audioData},
		genai.Text(prompt.String()),
	}
	return s.generate(ctx, parts, partType)
}

func (s *geminiLLMService) generate(ctx context.Context, parts []genai.Part, partType string) (*AIAssessment, error) {
	resp, err := s.client.GenerateContent(ctx, parts...)
	if err != nil {
		log.Error().Err(err).Str("partType", partType).Msg("Gemini API error during scoring")
		return nil, fmt.Errorf("gemini API error: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		log.Warn().Msg("Gemini returned no candidates or parts in response.")
		return nil, fmt.Errorf("gemini returned no content")
	}

	fullResponseText := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			fullResponseText += string(txt)
		}
	}
	if fullResponseText == "" {
		return nil, fmt.Errorf("gemini returned no text content")
	}

	assessment, parseErr := parseAssessment(fullResponseText)
	if parseErr != nil {
		log.Warn().Err(parseErr).Str("rawResponse", fullResponseText).Msg("Failed to parse assessment from Gemini response")
		return nil, parseErr
	}
	return assessment, nil
}
