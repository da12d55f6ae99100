// Package ingest encodes and stores submitted items in the background.
//
// Every submission becomes a Job that runs on a shared worker pool. Items
// are isolated from each other: an item that cannot be fetched or encoded is
// reported as failed and the rest of the batch is still stored.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/logger"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/metrics"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultPoolSize     = 4
	DefaultMaxBatchSize = 1000
	DefaultMaxJobs      = 1000
)

var errInterrupted = errors.New("ingestion interrupted")

// Config sizes the worker pool and the job registry.
type Config struct {
	// PoolSize is the number of jobs processed concurrently. Submissions
	// beyond it fail with ErrOverloaded.
	PoolSize int
	// MaxBatchSize caps the number of items in one submission.
	MaxBatchSize int
	// MaxJobs is how many jobs the registry keeps. Finished jobs are evicted
	// oldest first; running jobs are never evicted.
	MaxJobs int
}

// Deps are the stores and encoders a Service writes through. A nil store
// disables the matching Submit method; a nil TextEncoder stores texts
// without a semantic encoding.
type Deps struct {
	Texts        TextStore
	Images       ImageStore
	Posts        PostStore
	Fetcher      Fetcher
	TextEncoder  Encoder
	ImageEncoder Encoder
}

// ImageSource is one image to ingest: either downloaded from URL or given as Data.
type ImageSource struct {
	URL         string
	Data        []byte
	ContentType string
}

// PostInput is one post to ingest. Message and ImageURL are optional.
type PostInput struct {
	PostID   string
	PageID   string
	Message  string
	ImageURL string
}

// Service owns the worker pool and the job registry.
type Service struct {
	deps   Deps
	cfg    Config
	pool   *ants.Pool
	wg     sync.WaitGroup
	logger *zap.Logger

	mu     sync.Mutex
	jobs   map[string]*Job
	order  []string
	closed bool
}

// New creates an ingestion service. Call Release when done.
func New(deps Deps, cfg Config, l *zap.Logger) (*Service, error) {
	if l == nil {
		l = zap.NewNop()
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = DefaultMaxJobs
	}

	pool, err := ants.NewPool(cfg.PoolSize,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(v any) {
			l.Error("Ingestion job panicked", zap.Any("panic", v))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Service{
		deps:   deps,
		cfg:    cfg,
		pool:   pool,
		logger: l,
		jobs:   make(map[string]*Job),
	}, nil
}

// SubmitTexts stores texts in the background.
func (s *Service) SubmitTexts(ctx context.Context, texts []string) (*Job, error) {
	if s.deps.Texts == nil {
		return nil, fmt.Errorf("text ingestion is not configured: %w", domain.ErrInvalidRequest)
	}
	texts = slices.Clone(texts)
	return s.submit(ctx, KindText, len(texts), func(ctx context.Context, job *Job) {
		s.runTexts(ctx, job, texts)
	})
}

// SubmitImages downloads, encodes and stores images in the background.
func (s *Service) SubmitImages(ctx context.Context, sources []ImageSource) (*Job, error) {
	if s.deps.Images == nil || s.deps.ImageEncoder == nil {
		return nil, fmt.Errorf("image ingestion is not configured: %w", domain.ErrInvalidRequest)
	}
	sources = slices.Clone(sources)
	return s.submit(ctx, KindImage, len(sources), func(ctx context.Context, job *Job) {
		s.runImages(ctx, job, sources)
	})
}

// SubmitPosts encodes and stores posts in the background. Posts whose id is
// already stored are reported as skipped.
func (s *Service) SubmitPosts(ctx context.Context, posts []PostInput) (*Job, error) {
	if s.deps.Posts == nil {
		return nil, fmt.Errorf("post ingestion is not configured: %w", domain.ErrInvalidRequest)
	}
	posts = slices.Clone(posts)
	return s.submit(ctx, KindPost, len(posts), func(ctx context.Context, job *Job) {
		s.runPosts(ctx, job, posts)
	})
}

// Job returns a submitted job by id.
func (s *Service) Job(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %q: %w", id, domain.ErrNotFound)
	}
	return job, nil
}

// Wait blocks until job finishes or ctx is done.
func (s *Service) Wait(ctx context.Context, job *Job) (Report, error) {
	select {
	case <-job.Done():
		return job.Report(), nil
	case <-ctx.Done():
		return job.Report(), ctx.Err()
	}
}

// Release refuses new submissions, waits for running jobs and stops the pool.
func (s *Service) Release() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
	s.pool.Release()
}

func (s *Service) submit(ctx context.Context, kind Kind, n int, run func(context.Context, *Job)) (*Job, error) {
	if n == 0 {
		return nil, fmt.Errorf("empty batch: %w", domain.ErrInvalidRequest)
	}
	if n > s.cfg.MaxBatchSize {
		return nil, fmt.Errorf("batch of %d items exceeds limit %d: %w", n, s.cfg.MaxBatchSize, domain.ErrInvalidRequest)
	}

	job := newJob(uuid.NewString(), kind, n)
	log := logger.FromContext(ctx, s.logger).With(
		zap.String("job_id", job.id),
		zap.String("kind", string(kind)),
	)
	// The job outlives the request that submitted it.
	jobCtx := logger.ContextWithLogger(context.WithoutCancel(ctx), log)

	if err := s.register(job); err != nil {
		return nil, err
	}
	metrics.IngestJobsInFlight.Inc()

	err := s.pool.Submit(func() {
		defer s.wg.Done()
		defer metrics.IngestJobsInFlight.Dec()
		defer s.complete(jobCtx, job)
		run(jobCtx, job)
	})
	if err != nil {
		s.wg.Done()
		metrics.IngestJobsInFlight.Dec()
		s.unregister(job.id)
		if errors.Is(err, ants.ErrPoolOverload) || errors.Is(err, ants.ErrPoolClosed) {
			return nil, fmt.Errorf("submit job: %w", domain.ErrOverloaded)
		}
		return nil, fmt.Errorf("submit job: %w", err)
	}

	log.Info("Ingestion job submitted", zap.Int("items", n))
	return job, nil
}

func (s *Service) complete(ctx context.Context, job *Job) {
	job.finish(errInterrupted)
	r := job.Report()

	stored, skipped, failed := r.Count(StatusStored), r.Count(StatusSkipped), r.Count(StatusFailed)
	metrics.IngestItemsTotal.WithLabelValues(string(job.kind), string(StatusStored)).Add(float64(stored))
	metrics.IngestItemsTotal.WithLabelValues(string(job.kind), string(StatusSkipped)).Add(float64(skipped))
	metrics.IngestItemsTotal.WithLabelValues(string(job.kind), string(StatusFailed)).Add(float64(failed))

	logger.FromContext(ctx, s.logger).Info("Ingestion job finished",
		zap.Int("stored", stored),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Duration("duration", r.Finished.Sub(r.Submitted)),
	)
}

// register adds job to the registry and counts it as running. It fails once
// Release has started, so wg.Add never races with wg.Wait.
func (s *Service) register(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("ingestion is shut down: %w", domain.ErrOverloaded)
	}
	s.wg.Add(1)
	s.jobs[job.id] = job
	s.order = append(s.order, job.id)
	s.evict()
	return nil
}

// evict drops finished jobs oldest first until the registry fits MaxJobs.
// Running jobs are kept however old they are. Must hold s.mu.
func (s *Service) evict() {
	excess := len(s.jobs) - s.cfg.MaxJobs
	if excess <= 0 {
		return
	}
	kept := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if excess > 0 && s.jobs[id].isFinished() {
			delete(s.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

func (s *Service) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, id)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
}

func (s *Service) runTexts(ctx context.Context, job *Job, texts []string) {
	var (
		pending []domain.StoredText
		indices []int
	)
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			s.fail(ctx, job, i, "", fmt.Errorf("empty text: %w", domain.ErrEncoding))
			continue
		}
		item := domain.StoredText{Body: t}
		if s.deps.TextEncoder != nil {
			enc, err := s.deps.TextEncoder.Encode(ctx, domain.TextItem(t))
			if err != nil {
				s.fail(ctx, job, i, "", fmt.Errorf("encode text: %w", err))
				continue
			}
			item.Encoding = enc
		}
		pending = append(pending, item)
		indices = append(indices, i)
	}

	s.persist(ctx, job, indices, nil, func() ([]int64, error) {
		return s.deps.Texts.Append(ctx, pending...)
	})
}

func (s *Service) runImages(ctx context.Context, job *Job, sources []ImageSource) {
	var (
		pending []domain.StoredImage
		indices []int
		keys    []string
	)
	for i, src := range sources {
		data, contentType := src.Data, src.ContentType
		if src.URL != "" {
			res, err := s.download(ctx, src.URL)
			if err != nil {
				s.fail(ctx, job, i, src.URL, err)
				continue
			}
			data, contentType = res.Data, res.ContentType
		}
		if len(data) == 0 {
			s.fail(ctx, job, i, src.URL, fmt.Errorf("empty image: %w", domain.ErrEncoding))
			continue
		}

		enc, err := s.deps.ImageEncoder.Encode(ctx, domain.ImageItem(data))
		if err != nil {
			s.fail(ctx, job, i, src.URL, fmt.Errorf("encode image: %w", err))
			continue
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		pending = append(pending, domain.StoredImage{
			ContentType: contentType,
			Image:       data,
			Encoding:    enc,
			Source:      src.URL,
		})
		indices = append(indices, i)
		keys = append(keys, src.URL)
	}

	s.persist(ctx, job, indices, keys, func() ([]int64, error) {
		return s.deps.Images.Append(ctx, pending...)
	})
}

func (s *Service) runPosts(ctx context.Context, job *Job, posts []PostInput) {
	var (
		pending []domain.Post
		indices []int
		keys    []string
	)
	for i, in := range posts {
		post, err := s.encodePost(ctx, in)
		if err != nil {
			s.fail(ctx, job, i, in.PostID, err)
			continue
		}
		pending = append(pending, post)
		indices = append(indices, i)
		keys = append(keys, in.PostID)
	}

	s.persist(ctx, job, indices, keys, func() ([]int64, error) {
		return s.deps.Posts.Append(ctx, pending...)
	})
}

// encodePost encodes whichever of message and image the post carries.
// A post with neither is stored with empty encodings.
func (s *Service) encodePost(ctx context.Context, in PostInput) (domain.Post, error) {
	if in.PostID == "" {
		return domain.Post{}, fmt.Errorf("empty post id: %w", domain.ErrInvalidRequest)
	}
	post := domain.Post{PostID: in.PostID, PageID: in.PageID, Message: in.Message}

	if in.Message != "" && s.deps.TextEncoder != nil {
		enc, err := s.deps.TextEncoder.Encode(ctx, domain.TextItem(in.Message))
		if err != nil {
			return domain.Post{}, fmt.Errorf("encode message: %w", err)
		}
		post.MessageEncoding = enc
	}

	if in.ImageURL != "" && s.deps.ImageEncoder != nil {
		res, err := s.download(ctx, in.ImageURL)
		if err != nil {
			return domain.Post{}, err
		}
		enc, err := s.deps.ImageEncoder.Encode(ctx, domain.ImageItem(res.Data))
		if err != nil {
			return domain.Post{}, fmt.Errorf("encode attachment: %w", err)
		}
		post.ImageEncoding = enc
	}
	return post, nil
}

func (s *Service) download(ctx context.Context, url string) (domain.Resource, error) {
	if s.deps.Fetcher == nil {
		return domain.Resource{}, fmt.Errorf("image download is not configured: %w", domain.ErrFetch)
	}
	res, err := s.deps.Fetcher.Fetch(ctx, url)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("download image: %w", err)
	}
	return res, nil
}

// persist appends the encoded items and maps the returned ids back to the
// submitted item indices. keys may be nil.
func (s *Service) persist(ctx context.Context, job *Job, indices []int, keys []string, appendFn func() ([]int64, error)) {
	if len(indices) == 0 {
		return
	}
	key := func(k int) string {
		if keys == nil {
			return ""
		}
		return keys[k]
	}

	ids, err := appendFn()
	if err == nil && len(ids) != len(indices) {
		err = fmt.Errorf("store returned %d ids for %d items", len(ids), len(indices))
	}
	if err != nil {
		for k, i := range indices {
			s.fail(ctx, job, i, key(k), fmt.Errorf("store: %w", err))
		}
		return
	}

	for k, i := range indices {
		if ids[k] == domain.NoID {
			job.set(i, ItemResult{ID: domain.NoID, Key: key(k), Status: StatusSkipped, Err: domain.ErrDuplicate})
			continue
		}
		job.set(i, ItemResult{ID: ids[k], Key: key(k), Status: StatusStored})
	}
}

func (s *Service) fail(ctx context.Context, job *Job, i int, key string, err error) {
	job.set(i, ItemResult{ID: domain.NoID, Key: key, Status: StatusFailed, Err: err})
	logger.FromContext(ctx, s.logger).Warn("Ingestion item failed",
		zap.Int("index", i),
		zap.String("key", key),
		zap.Error(err),
	)
}
