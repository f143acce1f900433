package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"newsdesk/internal/model"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	savedIndexKey   = "saved:index"
	archiveQueueKey = "queue:archive"

	headlineRetention = 7 * 24 * time.Hour
	queuePollTimeout  = time.Second
	updateRetries     = 3
)

func headlineKey(spec model.Specification) string {
	return "headlines:" + spec.Key()
}

func savedKey(id uuid.UUID) string {
	return fmt.Sprintf("saved:%s", id)
}

// HybridStore keeps small, hot data in Redis (headline snapshots, saved
// article metadata, the archive queue) and archived article text in Badger.
type HybridStore struct {
	rdb *redis.Client
	db  *badger.DB
}

// NewHybridStore connects to Redis and opens Badger at badgerPath.
// Pass badgerPath="" to run without archived text (for one-shot CLI tools).
func NewHybridStore(redisAddr string, badgerPath string) (*HybridStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	var db *badger.DB
	if badgerPath != "" {
		opts := badger.DefaultOptions(badgerPath)
		opts.Logger = nil // Silence default logger
		var err error
		db, err = badger.Open(opts)
		if err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to open badger: %w", err)
		}
	}

	return New(rdb, db), nil
}

// New wraps already opened clients. db may be nil.
func New(rdb *redis.Client, db *badger.DB) *HybridStore {
	return &HybridStore{rdb: rdb, db: db}
}

// Close cleans up connections
func (s *HybridStore) Close() {
	if s.rdb != nil {
		s.rdb.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// RunGC reclaims Badger value-log space every interval until ctx ends.
func (s *HybridStore) RunGC(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if s.db == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.db.RunValueLogGC(0.7); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				logger.Debug("Value log GC skipped", zap.Error(err))
			}
		}
	}
}

// PutHeadlines replaces the cached snapshot for spec.
func (s *HybridStore) PutHeadlines(ctx context.Context, spec model.Specification, articles []model.Article) error {
	snap := HeadlineSnapshot{Articles: articles, FetchedAt: time.Now()}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, headlineKey(spec), data, headlineRetention).Err()
}

// Headlines returns the cached snapshot for spec, or ErrNotFound.
func (s *HybridStore) Headlines(ctx context.Context, spec model.Specification) (HeadlineSnapshot, error) {
	val, err := s.rdb.Get(ctx, headlineKey(spec)).Bytes()
	if err == redis.Nil {
		return HeadlineSnapshot{}, ErrNotFound
	} else if err != nil {
		return HeadlineSnapshot{}, err
	}

	var snap HeadlineSnapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return HeadlineSnapshot{}, fmt.Errorf("decoding headline snapshot: %w", err)
	}
	if snap.Articles == nil {
		snap.Articles = []model.Article{}
	}
	return snap, nil
}

// Save writes metadata to Redis and, when present, the article text to
// Badger. A pending article is also queued for archiving.
func (s *HybridStore) Save(ctx context.Context, article *model.SavedArticle) error {
	meta := *article
	meta.Content = ""

	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, savedKey(article.ID), data, 0)
	pipe.ZAdd(ctx, savedIndexKey, redis.Z{
		Score:  float64(article.SavedAt.UnixNano()),
		Member: article.ID.String(),
	})
	if article.Status == model.StatusPending {
		pipe.LPush(ctx, archiveQueueKey, article.ID.String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return s.putContent(article)
}

// Update rewrites the metadata and text of an article that is still saved.
// It never re-adds or requeues: if the article was removed it returns
// ErrNotFound and writes nothing.
func (s *HybridStore) Update(ctx context.Context, article *model.SavedArticle) error {
	meta := *article
	meta.Content = ""
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	id := article.ID.String()
	write := func(tx *redis.Tx) error {
		if err := tx.ZScore(ctx, savedIndexKey, id).Err(); err == redis.Nil {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, savedKey(article.ID), data, 0)
			return nil
		})
		return err
	}

	for range updateRetries {
		err = s.rdb.Watch(ctx, write, savedKey(article.ID), savedIndexKey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return err
	}

	if err := s.putContent(article); err != nil {
		return err
	}
	// A Remove that ran between the metadata write and the text write
	// already deleted the text; drop ours too.
	saved, err := s.IsSaved(ctx, article.ID)
	if err != nil {
		return err
	}
	if !saved {
		return s.deleteContent(article.ID)
	}
	return nil
}

func (s *HybridStore) putContent(article *model.SavedArticle) error {
	if article.Content == "" {
		return nil
	}
	if s.db == nil {
		return fmt.Errorf("cannot save content: badgerdb is not initialized")
	}
	packed, err := compress(article.Content)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(article.ID.String()), packed)
	})
}

func (s *HybridStore) deleteContent(id uuid.UUID) error {
	if s.db == nil {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(id.String()))
	})
}

// Get combines metadata from Redis with archived text from Badger.
func (s *HybridStore) Get(ctx context.Context, id uuid.UUID) (*model.SavedArticle, error) {
	val, err := s.rdb.Get(ctx, savedKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var article model.SavedArticle
	if err := json.Unmarshal(val, &article); err != nil {
		return nil, err
	}

	if s.db != nil {
		err = s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(id.String()))
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				text, err := decompress(val)
				if err != nil {
					return err
				}
				article.Content = text
				return nil
			})
		})
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return nil, err
		}
	}

	return &article, nil
}

// List returns saved articles, most recently saved first. limit <= 0 means
// no limit. Text is not loaded.
func (s *HybridStore) List(ctx context.Context, limit int) ([]model.SavedArticle, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.rdb.ZRevRange(ctx, savedIndexKey, 0, stop).Result()
	if err != nil {
		return nil, err
	}

	articles := make([]model.SavedArticle, 0, len(ids))
	if len(ids) == 0 {
		return articles, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "saved:" + id
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var a model.SavedArticle
		if err := json.Unmarshal([]byte(raw), &a); err == nil {
			articles = append(articles, a)
		}
	}
	return articles, nil
}

func (s *HybridStore) IsSaved(ctx context.Context, id uuid.UUID) (bool, error) {
	err := s.rdb.ZScore(ctx, savedIndexKey, id.String()).Err()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

// Remove drops an article from the saved set. Removing an id that is not
// saved is a no-op.
func (s *HybridStore) Remove(ctx context.Context, id uuid.UUID) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, savedKey(id))
	pipe.ZRem(ctx, savedIndexKey, id.String())
	pipe.LRem(ctx, archiveQueueKey, 0, id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return s.deleteContent(id)
}

// PopQueue waits up to a second for an archive job. It returns
// ErrQueueEmpty when nothing arrived so callers can check their context.
func (s *HybridStore) PopQueue(ctx context.Context) (uuid.UUID, error) {
	result, err := s.rdb.BRPop(ctx, queuePollTimeout, archiveQueueKey).Result()
	if err == redis.Nil {
		return uuid.Nil, ErrQueueEmpty
	} else if err != nil {
		return uuid.Nil, err
	}

	return uuid.Parse(result[1])
}

func compress(text string) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := io.WriteString(zw, text); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) (string, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("opening archived text: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("reading archived text: %w", err)
	}
	return string(out), nil
}
