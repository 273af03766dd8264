package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/finscoop/internal/news"
	"horse.fit/finscoop/internal/pipeline"
	payloadschema "horse.fit/finscoop/schema"
)

const maxQueryLength = 500

func (s *Server) handleHealth(c echo.Context) error {
	database := "disabled"
	if s.deps.Database != nil {
		if err := s.deps.Database.Ping(c.Request().Context()); err != nil {
			s.logger.Error().Err(err).Msg("database ping failed")
			return fail(c, http.StatusServiceUnavailable, "Database unavailable", map[string]any{"database": "unreachable"})
		}
		database = "ok"
	}
	if halted := s.deps.Pipeline.Halted(); halted != nil {
		return fail(c, http.StatusServiceUnavailable, "Pipeline halted", map[string]any{"reason": halted.Error()})
	}

	return success(c, map[string]any{
		"service":  "finscoop",
		"time":     s.now().UTC(),
		"database": database,
		"stories":  s.deps.Pipeline.Stories().Stats().Stories,
	})
}

func (s *Server) handleStats(c echo.Context) error {
	return success(c, s.deps.Pipeline.Stats())
}

func (s *Server) handleProcessArticle(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return failValidation(c, map[string]string{"body": "could not be read"})
	}

	article, err := s.deps.Ingest.FromPayload(c.Request().Context(), raw)
	if err != nil {
		return failValidation(c, map[string]string{"payload": err.Error()})
	}

	state, err := s.deps.Pipeline.Process(c.Request().Context(), article)
	if err != nil {
		return s.processError(c, state, err)
	}

	code := http.StatusCreated
	if state.Replayed {
		code = http.StatusOK
	}
	return successWithStatus(c, code, pipeline.NewReport(state, nil))
}

func (s *Server) processError(c echo.Context, state pipeline.State, err error) error {
	report := pipeline.NewReport(state, err)
	switch {
	case errors.Is(err, news.ErrEmbeddingFailure):
		return fail(c, http.StatusUnprocessableEntity, "Embedding failed", report)
	case errors.Is(err, news.ErrInvalidArticle):
		return fail(c, http.StatusBadRequest, "Invalid article", report)
	case errors.Is(err, pipeline.ErrArticleInFlight):
		return fail(c, http.StatusConflict, "Article is already being processed", report)
	case errors.Is(err, pipeline.ErrPipelineHalted):
		return c.JSON(http.StatusServiceUnavailable, jsendResponse{
			Status:  "error",
			Message: "Pipeline halted",
			Code:    http.StatusServiceUnavailable,
		})
	default:
		s.logger.Error().Err(err).Str("article_id", state.Article.ID).Msg("process article failed")
		return internalError(c, "Failed to process article")
	}
}

func (s *Server) handleProcessBatch(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return failValidation(c, map[string]string{"body": "could not be read"})
	}
	items, err := payloadschema.SplitBatch(raw)
	if err != nil {
		return failValidation(c, map[string]string{"payload": err.Error()})
	}
	if len(items) == 0 {
		return failValidation(c, map[string]string{"payload": "batch is empty"})
	}
	if len(items) > maxBatchSize {
		return failValidation(c, map[string]string{"payload": fmt.Sprintf("batch holds %d articles, limit is %d", len(items), maxBatchSize)})
	}

	ctx := c.Request().Context()
	reports := make([]pipeline.Report, len(items))
	valid := make([]news.Article, 0, len(items))
	positions := make([]int, 0, len(items))
	for i, item := range items {
		article, err := s.deps.Ingest.FromPayload(ctx, item)
		if err != nil {
			reports[i] = pipeline.NewReport(pipeline.State{Stage: pipeline.StageRejected}, err)
			continue
		}
		valid = append(valid, article)
		positions = append(positions, i)
	}

	processed := s.deps.Pipeline.ProcessBatch(ctx, valid)
	for j, report := range processed.Reports {
		reports[positions[j]] = report
	}

	result := pipeline.BatchResult{Reports: reports, Processed: len(reports)}
	for _, report := range reports {
		if !report.Success {
			result.Failed++
		}
	}
	return success(c, result)
}

type queryRequest struct {
	Query        string   `json:"query"`
	Limit        *int     `json:"limit,omitempty"`
	ExpandSector *bool    `json:"expand_sector,omitempty"`
	MinScore     *float64 `json:"min_score,omitempty"`
}

func (s *Server) handleQuery(c echo.Context) error {
	var req queryRequest
	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object with a query field"})
	}

	fieldErrors := make(map[string]string)
	text := strings.TrimSpace(req.Query)
	if text == "" {
		fieldErrors["query"] = "is required"
	} else if len([]rune(text)) > maxQueryLength {
		fieldErrors["query"] = fmt.Sprintf("must be at most %d characters", maxQueryLength)
	}

	q := news.Query{Text: text, Limit: 10, ExpandSector: true}
	if req.Limit != nil {
		if *req.Limit < 1 || *req.Limit > 100 {
			fieldErrors["limit"] = "must be between 1 and 100"
		}
		q.Limit = *req.Limit
	}
	if req.ExpandSector != nil {
		q.ExpandSector = *req.ExpandSector
	}
	if req.MinScore != nil {
		if *req.MinScore < 0 {
			fieldErrors["min_score"] = "must be >= 0"
		}
		q.MinScore = *req.MinScore
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	return success(c, s.deps.Query.Search(q))
}

func (s *Server) handleStories(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}
	offset, err := parsePositiveInt(c.QueryParam("offset"), 0, 0, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"offset": err.Error()})
	}

	stories, total := s.deps.Pipeline.Stories().List(offset, limit)
	return success(c, map[string]any{
		"items": stories,
		"pagination": map[string]any{
			"offset":      offset,
			"limit":       limit,
			"total_items": total,
		},
	})
}

func (s *Server) handleStoryDetail(c echo.Context) error {
	storyID := strings.TrimSpace(c.Param("id"))
	if storyID == "" {
		return failValidation(c, map[string]string{"id": "is required"})
	}

	found, err := s.deps.Pipeline.Stories().Get(storyID)
	if errors.Is(err, news.ErrStoryNotFound) {
		return failNotFound(c, "Story not found")
	}
	if err != nil {
		s.logger.Error().Err(err).Str("story_id", storyID).Msg("load story failed")
		return internalError(c, "Failed to load story")
	}
	return success(c, found)
}

func (s *Server) handleStock(c echo.Context) error {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		return failValidation(c, map[string]string{"symbol": "is required"})
	}

	matches := s.deps.Pipeline.Stories().BySymbol(symbol)
	return success(c, map[string]any{
		"symbol": symbol,
		"items":  matches,
		"total":  len(matches),
	})
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
