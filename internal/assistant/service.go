// Package assistant answers questions about a user's inventory, analyzes item
// photos and suggests collections, all under per-user daily quotas.
package assistant

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/patrickmn/go-cache"

	"github.com/erazemk/shramba/internal/imaging"
	"github.com/erazemk/shramba/internal/model"
)

// MaxQuestionLength is the longest accepted question, in characters.
const MaxQuestionLength = 500

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 8 * time.Second

// Model is a generative language model.
type Model interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GenerateRequest is a single model call.
type GenerateRequest struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int32
	// JSON asks the model to answer with a JSON document.
	JSON  bool
	Image *Image
}

// Image is inline image data sent with a prompt.
type Image struct {
	Data []byte
	MIME string
}

// Config holds assistant limits and timeouts.
type Config struct {
	QueryLimit    int
	AnalysisLimit int
	Timeout       time.Duration
	// SuggestionCacheTTL is how long model suggestions are reused for an
	// unchanged inventory. Zero disables the cache.
	SuggestionCacheTTL time.Duration
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		QueryLimit:         DefaultQueryLimit,
		AnalysisLimit:      DefaultAnalysisLimit,
		Timeout:            DefaultTimeout,
		SuggestionCacheTTL: 15 * time.Minute,
	}
}

// Service is the assistant. It is safe for concurrent use.
type Service struct {
	db       *sql.DB
	model    Model
	cfg      Config
	quota    *Tracker
	contexts *ContextBuilder
	cache    *cache.Cache
}

// New returns a service backed by db. A nil model disables question answering
// and image analysis; rule-based suggestions keep working.
func New(db *sql.DB, m Model, cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	s := &Service{
		db:       db,
		model:    m,
		cfg:      cfg,
		quota:    NewTracker(db, cfg.QueryLimit, cfg.AnalysisLimit),
		contexts: NewContextBuilder(db),
	}
	if cfg.SuggestionCacheTTL > 0 {
		s.cache = cache.New(cfg.SuggestionCacheTTL, 2*cfg.SuggestionCacheTTL)
	}
	return s
}

// setClock replaces the time source of the service and its parts.
func (s *Service) setClock(now func() time.Time) {
	s.quota.now = now
	s.contexts.now = now
}

// Answer is the response to a question.
type Answer struct {
	Answer           string             `json:"answer"`
	Intent           Intent             `json:"intent"`
	FoundItems       []model.Item       `json:"found_items"`
	FoundCollections []model.Collection `json:"found_collections"`
	QueryStatus      QuotaStatus        `json:"query_status"`
}

// ImageAnalysis is the model's identification of a photographed item.
type ImageAnalysis struct {
	Name           string      `json:"name"`
	Tags           []string    `json:"tags"`
	AnalysisStatus QuotaStatus `json:"analysis_status"`
}

// SuggestionResult is the response to a suggestion request.
type SuggestionResult struct {
	Suggestions           []CollectionSuggestion `json:"suggestions"`
	TotalUncollectedItems int                    `json:"total_uncollected_items"`
	QueryStatus           *QuotaStatus           `json:"query_status,omitempty"`
}

// QueryStatus reports the user's remaining questions for today.
func (s *Service) QueryStatus(ctx context.Context, userID int64) (QuotaStatus, error) {
	return s.quota.Status(ctx, userID, model.QuotaQuery)
}

// AnalysisStatus reports the user's remaining image analyses for today.
func (s *Service) AnalysisStatus(ctx context.Context, userID int64) (QuotaStatus, error) {
	return s.quota.Status(ctx, userID, model.QuotaAnalysis)
}

// AskQuestion answers a free-text question about the user's inventory. The
// query quota is only debited when an answer is produced.
func (s *Service) AskQuestion(ctx context.Context, userID int64, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &ValidationError{Field: "question", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		return nil, &ValidationError{Field: "question", Message: fmt.Sprintf("must be at most %d characters", MaxQuestionLength)}
	}
	if s.model == nil {
		return nil, upstream(errNoModel)
	}

	reservation, err := s.quota.Reserve(ctx, userID, model.QuotaQuery)
	if err != nil {
		return nil, err
	}

	answer, err := s.answer(ctx, userID, question)
	if err != nil {
		reservation.Release(ctx)
		return nil, err
	}
	answer.QueryStatus = reservation.Status()
	return answer, nil
}

func (s *Service) answer(ctx context.Context, userID int64, question string) (*Answer, error) {
	snapshot, err := s.contexts.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	intent := Classify(question)

	raw, err := s.generate(ctx, GenerateRequest{
		System:      questionInstruction(),
		Prompt:      questionPrompt(snapshot, intent, question),
		Temperature: 0.4,
		MaxTokens:   intent.MaxTokens(),
	})
	if err != nil {
		return nil, err
	}

	entities, err := ExtractEntities(ctx, s.db, userID, raw)
	if err != nil {
		return nil, fmt.Errorf("resolving answer references: %w", err)
	}

	return &Answer{
		Answer:           Clean(raw),
		Intent:           intent,
		FoundItems:       entities.Items,
		FoundCollections: entities.Collections,
	}, nil
}

// AnalyzeImage identifies the item in a base64-encoded photo. A data URL
// prefix is accepted; its media type is used when mimeType is empty.
func (s *Service) AnalyzeImage(ctx context.Context, userID int64, imageBase64, mimeType string) (*ImageAnalysis, error) {
	img, err := decodeImage(imageBase64, mimeType)
	if err != nil {
		return nil, err
	}
	if s.model == nil {
		return nil, upstream(errNoModel)
	}

	reservation, err := s.quota.Reserve(ctx, userID, model.QuotaAnalysis)
	if err != nil {
		return nil, err
	}

	analysis, err := s.analyze(ctx, img)
	if err != nil {
		reservation.Release(ctx)
		return nil, err
	}
	analysis.AnalysisStatus = reservation.Status()
	return analysis, nil
}

func (s *Service) analyze(ctx context.Context, img *imaging.ProcessResult) (*ImageAnalysis, error) {
	raw, err := s.generate(ctx, GenerateRequest{
		System:      analysisInstruction,
		Prompt:      analysisPrompt,
		Temperature: 0.2,
		MaxTokens:   256,
		JSON:        true,
		Image:       &Image{Data: img.Data, MIME: img.MIME},
	})
	if err != nil {
		return nil, err
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		return nil, upstream(err)
	}
	return analysis, nil
}

func decodeImage(imageBase64, mimeType string) (*imaging.ProcessResult, error) {
	payload := strings.TrimSpace(imageBase64)
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		if !found {
			return nil, &ValidationError{Field: "image", Message: "malformed data URL"}
		}
		if mimeType == "" {
			mimeType, _, _ = strings.Cut(header, ";")
		}
		payload = data
	}
	if payload == "" {
		return nil, &ValidationError{Field: "image", Message: "must not be empty"}
	}

	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if !imaging.AllowedMIME[mimeType] {
		return nil, &ValidationError{Field: "mime_type", Message: "must be one of image/jpeg, image/png, image/gif, image/webp"}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &ValidationError{Field: "image", Message: "must be base64-encoded"}
	}

	img, err := imaging.Process(bytes.NewReader(data))
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		return nil, &ValidationError{Field: "image", Message: err.Error()}
	case err != nil:
		return nil, &ValidationError{Field: "image", Message: "unsupported or corrupt image"}
	}
	return img, nil
}

// GenerateCollectionSuggestions proposes new collections for the user's
// active items. Inventories with fewer than three items get no suggestions
// and are not charged; otherwise one query unit is consumed.
func (s *Service) GenerateCollectionSuggestions(ctx context.Context, userID int64, limit int) (*SuggestionResult, error) {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	limit = min(limit, MaxSuggestionLimit)

	snapshot, err := s.contexts.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &SuggestionResult{
		Suggestions:           []CollectionSuggestion{},
		TotalUncollectedItems: snapshot.Uncollected(),
	}
	if len(snapshot.Items) < minClusterSize {
		return result, nil
	}

	reservation, err := s.quota.Reserve(ctx, userID, model.QuotaQuery)
	if err != nil {
		return nil, err
	}

	active := snapshot.Active()
	var candidates []CollectionSuggestion
	candidates = append(candidates, SuggestByLocation(active, snapshot.Collections)...)
	candidates = append(candidates, SuggestByPrice(active, snapshot.Collections)...)
	candidates = append(candidates, SuggestByPattern(active, snapshot.Collections, snapshot.Now)...)
	candidates = append(candidates, s.modelSuggestions(ctx, snapshot)...)

	result.Suggestions = Rank(candidates, snapshot.Collections, limit)
	status := reservation.Status()
	result.QueryStatus = &status
	return result, nil
}

// modelSuggestions returns model-backed suggestions, reusing a cached result
// while the inventory is unchanged. Failures yield no suggestions.
func (s *Service) modelSuggestions(ctx context.Context, snapshot *Snapshot) []CollectionSuggestion {
	if s.model == nil {
		return nil
	}

	key := fmt.Sprintf("%d:%s", snapshot.UserID, snapshot.Fingerprint())
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return cached.([]CollectionSuggestion)
		}
	}

	suggestions, err := s.suggestFromModel(ctx, snapshot)
	if err != nil {
		slog.Warn("generating model suggestions", "user_id", snapshot.UserID, "error", err)
		return nil
	}
	if s.cache != nil {
		s.cache.SetDefault(key, suggestions)
	}
	return suggestions
}

func (s *Service) suggestFromModel(ctx context.Context, snapshot *Snapshot) ([]CollectionSuggestion, error) {
	sample := sampleItems(snapshot.Active(), suggestionSampleSize)
	if len(sample) < minClusterSize {
		return nil, nil
	}

	raw, err := s.generate(ctx, GenerateRequest{
		System:      suggestionInstruction,
		Prompt:      suggestionPrompt(snapshot.Collections, sample),
		Temperature: 0.7,
		MaxTokens:   800,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	proposals, err := parseProposals(raw)
	if err != nil {
		return nil, err
	}

	var out []CollectionSuggestion
	for _, p := range proposals {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		matched := matchItems(p.Items, sample)
		if len(matched) < minClusterSize {
			continue
		}
		out = append(out, newSuggestion(name, strings.TrimSpace(p.Description), OriginModel, 0.85, matched))
	}
	return out, nil
}

// generate calls the model under the configured timeout.
func (s *Service) generate(ctx context.Context, req GenerateRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	text, err := s.model.Generate(ctx, req)
	if err != nil {
		slog.Warn("model call failed", "duration", time.Since(start), "error", err)
		return "", upstream(err)
	}
	if strings.TrimSpace(text) == "" {
		return "", upstream(errors.New("empty model response"))
	}
	return text, nil
}
