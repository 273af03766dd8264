package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/finscoop/internal/langdetect"
	"horse.fit/finscoop/internal/news"
	"horse.fit/finscoop/internal/reader"
	payloadschema "horse.fit/finscoop/schema"
)

var articleNamespace = uuid.MustParse("6f1f8a4e-3c0b-5d8e-9a52-7b1c2d3e4f50")

// BodyFetcher retrieves the readable text of an article page.
type BodyFetcher interface {
	Fetch(ctx context.Context, articleURL, title string) (string, error)
}

type Options struct {
	// FetchMissingBody downloads the page at url when content is empty.
	FetchMissingBody bool
	Fetcher          BodyFetcher
	Now              func() time.Time
}

// Service turns validated submissions into pipeline articles.
type Service struct {
	logger       zerolog.Logger
	fetcher      BodyFetcher
	fetchMissing bool
	now          func() time.Time
}

func NewService(logger zerolog.Logger, opts Options) *Service {
	fetcher := opts.Fetcher
	if fetcher == nil && opts.FetchMissingBody {
		fetcher = reader.NewFetcher(reader.FetchOptions{})
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logger:       logger,
		fetcher:      fetcher,
		fetchMissing: opts.FetchMissingBody,
		now:          now,
	}
}

// ArticleID derives the id used when a submission carries none. The same
// title from the same source always yields the same id, so resubmissions are
// replays rather than new articles.
func ArticleID(title, source string) string {
	key := strings.TrimSpace(title) + "_" + strings.TrimSpace(source)
	return uuid.NewSHA1(articleNamespace, []byte(key)).String()
}

// FromPayload validates one raw submission and builds its article. Validation
// failures wrap news.ErrInvalidArticle.
func (s *Service) FromPayload(ctx context.Context, raw json.RawMessage) (news.Article, error) {
	item, err := payloadschema.ValidateArticlePayload(raw)
	if err != nil {
		return news.Article{}, fmt.Errorf("%w: %v", news.ErrInvalidArticle, err)
	}
	return s.Build(ctx, *item)
}

func (s *Service) Build(ctx context.Context, item payloadschema.ArticleSubmission) (news.Article, error) {
	title := strings.Join(strings.Fields(item.Title), " ")
	source := strings.TrimSpace(item.Source)
	if title == "" || source == "" {
		return news.Article{}, fmt.Errorf("%w: title and source are required", news.ErrInvalidArticle)
	}

	article := news.Article{
		ID:     strings.TrimSpace(item.ID),
		Title:  title,
		Source: source,
	}
	if article.ID == "" {
		article.ID = ArticleID(title, source)
	}
	if item.URL != nil {
		article.URL = strings.TrimSpace(*item.URL)
	}
	if item.Author != nil {
		article.Author = strings.TrimSpace(*item.Author)
	}

	published, ok, err := item.PublishedAt()
	if err != nil {
		return news.Article{}, fmt.Errorf("%w: %v", news.ErrInvalidArticle, err)
	}
	if !ok {
		published = s.now().UTC()
	}
	article.PublishedAt = published

	body, err := s.body(ctx, item.Content, article)
	if err != nil {
		return news.Article{}, err
	}
	article.Body = body

	submittedLanguage := ""
	if item.Language != nil {
		submittedLanguage = *item.Language
	}
	article.Language = langdetect.Resolve(submittedLanguage, title+"\n"+body)

	s.logger.Debug().
		Str("article_id", article.ID).
		Str("source", article.Source).
		Str("language", article.Language).
		Int("body_chars", len([]rune(article.Body))).
		Msg("article ingested")
	return article, nil
}

func (s *Service) body(ctx context.Context, content string, article news.Article) (string, error) {
	if reader.LooksLikeHTML(content) {
		text, err := reader.ExtractHTML(content, article.URL)
		if err != nil {
			s.logger.Warn().Err(err).Str("article_id", article.ID).Msg("html cleanup failed; keeping raw text")
			return reader.CleanText(content), nil
		}
		if text != "" {
			return text, nil
		}
	}

	text := reader.CleanText(content)
	if text != "" || article.URL == "" || !s.fetchMissing || s.fetcher == nil {
		return text, nil
	}

	fetched, err := s.fetcher.Fetch(ctx, article.URL, article.Title)
	if err != nil {
		return "", fmt.Errorf("%w: fetch body for %s: %v", news.ErrInvalidArticle, article.URL, err)
	}
	return fetched, nil
}
