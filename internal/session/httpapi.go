package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ngophuc/toeic-exam-api/internal/dto"
)

// HTTPAPI implements API over the platform's REST surface. Transport-level
// failures and gateway errors are wrapped in ConnectivityError so the
// controller can distinguish "the network is down" from "the server said
// no".
type HTTPAPI struct {
	baseURL string
	token   string
	client  *http.Client
}

var (
	_ API        = (*HTTPAPI)(nil)
	_ MediaStore = (*HTTPAPI)(nil)
)

func NewHTTPAPI(baseURL, token string, client *http.Client) *HTTPAPI {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPAPI{baseURL: baseURL, token: token, client: client}
}

func (a *HTTPAPI) Start(ctx context.Context, testID uint, timingMode string) (*Bootstrap, error) {
	q := url.Values{}
	q.Set("test_id", strconv.FormatUint(uint64(testID), 10))
	if timingMode != "" {
		q.Set("timing_mode", timingMode)
	}
	var resp dto.TestStartResponse
	if err := a.do(ctx, http.MethodPost, "/api/v1/user/tests/start?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return bootstrapFromResponse(&resp), nil
}

func (a *HTTPAPI) SaveProgress(ctx context.Context, testResultID uint, answers []AnswerUpload) error {
	req := dto.SaveProgressRequest{
		TestResultID: testResultID,
		Answers:      make([]dto.SavedAnswerInput, 0, len(answers)),
	}
	for _, u := range answers {
		req.Answers = append(req.Answers, savedAnswerInput(u))
	}
	return a.do(ctx, http.MethodPost, "/api/v1/user/tests/save-progress", req, nil)
}

func (a *HTTPAPI) SubmitObjective(ctx context.Context, sub ObjectiveSubmission) (*ObjectiveResult, error) {
	req := dto.SubmitLRRequest{
		TestID:         sub.TestID,
		ElapsedMinutes: sub.ElapsedMinutes,
		Auto:           sub.Auto,
		Answers:        make([]dto.LRAnswerInput, 0, len(sub.Answers)),
	}
	if sub.TestResultID != 0 {
		id := sub.TestResultID
		req.TestResultID = &id
	}
	for _, u := range sub.Answers {
		idx := u.SubIndex
		req.Answers = append(req.Answers, dto.LRAnswerInput{
			TestQuestionID:    u.QuestionID,
			SubQuestionIndex:  &idx,
			ChosenOptionLabel: u.ChosenLabel,
		})
	}
	var resp dto.GeneralLRResult
	if err := a.do(ctx, http.MethodPost, "/api/v1/user/tests/submit/lr", req, &resp); err != nil {
		return nil, err
	}
	return &ObjectiveResult{
		TestResultID:   resp.TestResultID,
		TotalScore:     resp.TotalScore,
		ListeningScore: resp.ListeningScore,
		ReadingScore:   resp.ReadingScore,
		CorrectCount:   resp.CorrectCount,
		SkipCount:      resp.SkipCount,
		TotalQuestions: resp.TotalQuestions,
	}, nil
}

func (a *HTTPAPI) SubmitSubjective(ctx context.Context, sub SubjectiveSubmission) error {
	req := dto.BulkAssessmentRequest{
		TestResultID:   sub.TestResultID,
		ElapsedMinutes: sub.ElapsedMinutes,
		Parts:          make([]dto.AssessmentPartInput, 0, len(sub.Parts)),
	}
	for _, p := range sub.Parts {
		idx := p.SubIndex
		req.Parts = append(req.Parts, dto.AssessmentPartInput{
			TestQuestionID:   p.QuestionID,
			SubQuestionIndex: &idx,
			PartType:         p.PartType,
			Text:             p.Text,
			AudioURL:         p.AudioURL,
		})
	}
	return a.do(ctx, http.MethodPost, "/api/v1/user/assessment/bulk", req, nil)
}

// Upload pushes a recorded answer to the platform's media endpoint and
// returns the durable URL the engine keeps in place of the bytes. HTTPAPI
// therefore satisfies MediaStore as well, so one instance wires a whole
// Controller.
func (a *HTTPAPI) Upload(ctx context.Context, name string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("failed to encode upload: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("failed to encode upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/v1/user/files/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &ConnectivityError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadGateway && resp.StatusCode <= http.StatusGatewayTimeout {
		return "", &ConnectivityError{Err: fmt.Errorf("server unreachable: status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr dto.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			return "", errors.New(apiErr.Message)
		}
		return "", fmt.Errorf("request failed: status %d", resp.StatusCode)
	}

	var out dto.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return out.URL, nil
}

func (a *HTTPAPI) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return &ConnectivityError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadGateway && resp.StatusCode <= http.StatusGatewayTimeout {
		return &ConnectivityError{Err: fmt.Errorf("server unreachable: status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr dto.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			return errors.New(apiErr.Message)
		}
		return fmt.Errorf("request failed: status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func savedAnswerInput(u AnswerUpload) dto.SavedAnswerInput {
	idx := u.SubIndex
	in := dto.SavedAnswerInput{
		TestQuestionID:   u.QuestionID,
		SubQuestionIndex: &idx,
	}
	if u.ChosenLabel != "" {
		label := u.ChosenLabel
		in.ChosenOptionLabel = &label
	}
	if u.Text != "" {
		text := u.Text
		in.AnswerText = &text
	}
	if u.AudioURL != "" {
		audio := u.AudioURL
		in.AnswerAudioURL = &audio
	}
	return in
}

func bootstrapFromResponse(resp *dto.TestStartResponse) *Bootstrap {
	boot := &Bootstrap{
		TestResultID:    resp.TestResultID,
		TestID:          resp.TestID,
		TimingMode:      resp.TimingMode,
		DurationMinutes: resp.DurationMinutes,
		StartedAt:       resp.StartedAt,
	}
	for _, part := range resp.Parts {
		for _, q := range part.Questions {
			info := QuestionInfo{
				QuestionID: q.TestQuestionID,
				SubCount:   1,
				Skill:      part.Skill,
				PartType:   part.Name,
			}
			if q.IsQuestionGroup && q.Group != nil {
				info.SubCount = len(q.Group.Questions)
			}
			boot.Questions = append(boot.Questions, info)
		}
	}
	for _, saved := range resp.SavedAnswers {
		idx := saved.SubQuestionIndex
		boot.SavedAnswers = append(boot.SavedAnswers, SavedAnswer{
			QuestionID:  saved.TestQuestionID,
			SubIndex:    &idx,
			ChosenLabel: saved.ChosenOptionLabel,
			Text:        saved.AnswerText,
			AudioURL:    saved.AnswerAudioURL,
			UpdatedAt:   saved.UpdatedAt,
		})
	}
	return boot
}
