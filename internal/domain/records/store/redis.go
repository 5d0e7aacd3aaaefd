package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"roadscan-server-go/internal/domain/records"
	"roadscan-server-go/internal/platform/config"
)

// redisStore keeps each record as a JSON string:
//
//	<prefix>upload:<id>
//	<prefix>analysis:<id>
//	<prefix>analysis:upload:<uploadID>  -> analysis id
//	<prefix>conditions:<analysisID>     -> list of JSON conditions
type redisStore struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
}

// NewRedis connects and pings. A failed ping is returned so the caller can
// choose to degrade.
func NewRedis(cfg config.RecordRedisStore, timeout time.Duration) (RecordStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(pingCtx, timeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, unavailable("redis ping", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "roadscan:"
	}
	return &redisStore{
		client:  client,
		prefix:  prefix,
		ttl:     cfg.TTL,
		timeout: timeout,
		now:     time.Now,
	}, nil
}

func (s *redisStore) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, s.timeout)
}

func (s *redisStore) key(parts ...string) string {
	k := s.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

func (s *redisStore) getJSON(ctx context.Context, key string, v any) error {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return sonic.Unmarshal(raw, v)
}

func (s *redisStore) InsertUpload(ctx context.Context, upload records.Upload) (records.Upload, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	upload = stampUpload(upload, s.now())
	data, err := sonic.Marshal(upload)
	if err != nil {
		return records.Upload{}, fmt.Errorf("encode upload: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key("upload", upload.ID), data, s.ttl).Result()
	if err != nil {
		return records.Upload{}, unavailable("insert upload", err)
	}
	if !ok {
		return records.Upload{}, ErrConflict
	}
	return upload, nil
}

func (s *redisStore) FindUpload(ctx context.Context, id string) (records.Upload, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var upload records.Upload
	if err := s.getJSON(ctx, s.key("upload", id), &upload); err != nil {
		if errors.Is(err, redis.Nil) {
			return records.Upload{}, notFound("upload", id)
		}
		return records.Upload{}, unavailable("find upload", err)
	}
	return upload, nil
}

func (s *redisStore) InsertAnalysis(ctx context.Context, analysis records.AnalysisResult) (records.AnalysisResult, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	analysis = stampAnalysis(analysis, s.now())
	data, err := sonic.Marshal(analysis)
	if err != nil {
		return records.AnalysisResult{}, fmt.Errorf("encode analysis: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key("analysis", "upload", analysis.UploadID), analysis.ID, s.ttl).Result()
	if err != nil {
		return records.AnalysisResult{}, unavailable("insert analysis", err)
	}
	if !ok {
		return records.AnalysisResult{}, ErrConflict
	}
	if err := s.client.Set(ctx, s.key("analysis", analysis.ID), data, s.ttl).Err(); err != nil {
		_ = s.client.Del(ctx, s.key("analysis", "upload", analysis.UploadID)).Err()
		return records.AnalysisResult{}, unavailable("insert analysis", err)
	}
	return analysis, nil
}

func (s *redisStore) FindAnalysisByUpload(ctx context.Context, uploadID string) (records.AnalysisResult, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	id, err := s.client.Get(ctx, s.key("analysis", "upload", uploadID)).Result()
	if errors.Is(err, redis.Nil) {
		return records.AnalysisResult{}, notFound("analysis for upload", uploadID)
	}
	if err != nil {
		return records.AnalysisResult{}, unavailable("find analysis", err)
	}

	var analysis records.AnalysisResult
	if err := s.getJSON(ctx, s.key("analysis", id), &analysis); err != nil {
		if errors.Is(err, redis.Nil) {
			return records.AnalysisResult{}, notFound("analysis", id)
		}
		return records.AnalysisResult{}, unavailable("find analysis", err)
	}
	return analysis, nil
}

func (s *redisStore) InsertConditions(ctx context.Context, conditions []records.RoadCondition) ([]records.RoadCondition, error) {
	if len(conditions) == 0 {
		return nil, nil
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	stamped := stampConditions(conditions, s.now())
	pipe := s.client.TxPipeline()
	touched := map[string]struct{}{}
	for _, c := range stamped {
		data, err := sonic.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("encode condition %s: %w", c.ID, err)
		}
		key := s.key("conditions", c.AnalysisID)
		pipe.RPush(ctx, key, data)
		touched[key] = struct{}{}
	}
	if s.ttl > 0 {
		for key := range touched {
			pipe.Expire(ctx, key, s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, unavailable("insert conditions", err)
	}
	return stamped, nil
}

func (s *redisStore) FindConditions(ctx context.Context, analysisID string) ([]records.RoadCondition, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	items, err := s.client.LRange(ctx, s.key("conditions", analysisID), 0, -1).Result()
	if err != nil {
		return nil, unavailable("find conditions", err)
	}
	out := make([]records.RoadCondition, 0, len(items))
	for _, item := range items {
		var c records.RoadCondition
		if err := sonic.UnmarshalString(item, &c); err != nil {
			return nil, fmt.Errorf("decode condition: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *redisStore) Stats(ctx context.Context) (map[string]any, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	size, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return map[string]any{"type": "redis", "available": false}, unavailable("stats", err)
	}
	return map[string]any{
		"type":        "redis",
		"available":   true,
		"prefix":      s.prefix,
		"keys":        size,
		"ttl_seconds": int(s.ttl.Seconds()),
	}, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
