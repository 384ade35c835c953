package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/horizon-research/horizon/internal/metrics"
	"github.com/horizon-research/horizon/internal/models"
)

const defaultMaxCached = 1024

// RedisStore is a Store backed by Redis with a small read cache. Writes go
// to Redis before the cache so durability holds on return.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration

	mu     sync.Mutex
	cache  map[string]*models.ResearchSession
	access map[string]time.Time
	maxN   int

	locks sync.Map // session ID -> *sync.Mutex
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(addr, password string, db int, ttl time.Duration, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		logger: logger,
		ttl:    ttl,
		cache:  make(map[string]*models.ResearchSession),
		access: make(map[string]time.Time),
		maxN:   defaultMaxCached,
	}, nil
}

// Ping reports Redis reachability for readiness checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func sessionKey(id string) string { return "horizon:session:" + id }

// CreateSession creates a new session record. Creating an ID that already
// exists returns the existing session unchanged.
func (s *RedisStore) CreateSession(ctx context.Context, id, title string, profile models.UserProfile, report models.ReportConfig) (*models.ResearchSession, error) {
	if id == "" {
		id = uuid.New().String()
	}
	if existing, err := s.GetSession(ctx, id); err == nil {
		return existing, nil
	}

	now := time.Now().UTC()
	sess := &models.ResearchSession{
		ID:        id,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []models.Message{},
		Tasks:     []models.ResearchTask{},
		Report:    report,
		Profile:   profile,
	}
	if err := s.save(ctx, sess); err != nil {
		metrics.SessionStoreErrors.WithLabelValues("create").Inc()
		return nil, err
	}

	metrics.SessionsCreated.Inc()
	s.logger.Info("Created session", zap.String("session_id", id))
	return sess, nil
}

// GetSession loads a session, preferring the local cache.
func (s *RedisStore) GetSession(ctx context.Context, id string) (*models.ResearchSession, error) {
	s.mu.Lock()
	if sess, ok := s.cache[id]; ok {
		s.access[id] = time.Now()
		s.mu.Unlock()
		return cloneSession(sess), nil
	}
	s.mu.Unlock()

	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		metrics.SessionStoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	var sess models.ResearchSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	s.cacheSession(&sess)
	return cloneSession(&sess), nil
}

// PutTasks replaces the session's task list wholesale.
func (s *RedisStore) PutTasks(ctx context.Context, id string, tasks []models.ResearchTask) error {
	return s.mutate(ctx, id, "put_tasks", func(sess *models.ResearchSession) error {
		sess.Tasks = tasks
		return nil
	})
}

// UpdateTask applies a patch to one task.
func (s *RedisStore) UpdateTask(ctx context.Context, id, taskID string, patch models.TaskPatch) error {
	return s.mutate(ctx, id, "update_task", func(sess *models.ResearchSession) error {
		for i := range sess.Tasks {
			if sess.Tasks[i].ID == taskID {
				return applyPatch(&sess.Tasks[i], patch)
			}
		}
		return ErrTaskNotFound
	})
}

// SetFinalReport stores the synthesis report. Re-running a session
// overwrites it.
func (s *RedisStore) SetFinalReport(ctx context.Context, id, report string) error {
	return s.mutate(ctx, id, "set_report", func(sess *models.ResearchSession) error {
		sess.Synthesis = report
		return nil
	})
}

// AppendMessage appends to the session's conversation log.
func (s *RedisStore) AppendMessage(ctx context.Context, id string, role models.MessageRole, content string, suggestions []string) error {
	return s.mutate(ctx, id, "append_message", func(sess *models.ResearchSession) error {
		sess.Messages = append(sess.Messages, models.Message{
			ID:          uuid.New().String(),
			Role:        role,
			Content:     content,
			Timestamp:   time.Now().UTC(),
			Suggestions: suggestions,
		})
		return nil
	})
}

// mutate is read-modify-write of the full session record, serialized per
// session: sibling tasks in a batch issue concurrent point mutations against
// the same key, and a save built on a stale read would revert a sibling's
// terminal write. Cross-process contention does not arise; a run's
// activities execute on the worker that owns the run.
func (s *RedisStore) mutate(ctx context.Context, id, op string, fn func(*models.ResearchSession) error) error {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(sess); err != nil {
		return err
	}
	sess.UpdatedAt = time.Now().UTC()
	if err := s.save(ctx, sess); err != nil {
		metrics.SessionStoreErrors.WithLabelValues(op).Inc()
		return err
	}
	return nil
}

func (s *RedisStore) sessionLock(id string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *RedisStore) save(ctx context.Context, sess *models.ResearchSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	s.cacheSession(sess)
	return nil
}

func (s *RedisStore) cacheSession(sess *models.ResearchSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[sess.ID] = cloneSession(sess)
	s.access[sess.ID] = time.Now()
	if len(s.cache) > s.maxN {
		s.evictOldest()
	}
	metrics.SessionCacheSize.Set(float64(len(s.cache)))
}

func (s *RedisStore) evictOldest() {
	var oldest string
	var when time.Time
	for id, t := range s.access {
		if oldest == "" || t.Before(when) {
			oldest, when = id, t
		}
	}
	delete(s.cache, oldest)
	delete(s.access, oldest)
}

func cloneSession(sess *models.ResearchSession) *models.ResearchSession {
	out := *sess
	out.Messages = append([]models.Message(nil), sess.Messages...)
	out.Tasks = make([]models.ResearchTask, len(sess.Tasks))
	for i, t := range sess.Tasks {
		ct := t
		ct.Sources = append([]models.Source(nil), t.Sources...)
		if t.Quality != nil {
			q := *t.Quality
			ct.Quality = &q
		}
		if t.Verification != nil {
			v := *t.Verification
			ct.Verification = &v
		}
		out.Tasks[i] = ct
	}
	return &out
}
