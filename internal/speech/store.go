package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AudioTTL bounds how long rendered call audio is kept. Calls fetch their
// audio within seconds of the script being served.
const AudioTTL = time.Hour

// AudioStore keeps rendered audio until the telephony provider fetches it.
type AudioStore interface {
	Put(ctx context.Context, key string, audio []byte, ttl time.Duration) error
	// Get reports ok=false on a miss; err is reserved for store failures.
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// AudioKey is the file name under which a call's audio is served.
func AudioKey(messageID string) string {
	return "message_" + messageID + ".mp3"
}

// ParseAudioKey extracts the message id from a file name built by AudioKey.
func ParseAudioKey(filename string) (string, bool) {
	if !strings.HasPrefix(filename, "message_") || !strings.HasSuffix(filename, ".mp3") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(filename, "message_"), ".mp3")
	return id, id != ""
}

type RedisAudioStore struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisAudioStore(rdb redis.Cmdable) *RedisAudioStore {
	return &RedisAudioStore{rdb: rdb, prefix: "audio:"}
}

func (s *RedisAudioStore) Put(ctx context.Context, key string, audio []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = AudioTTL
	}
	if err := s.rdb.Set(ctx, s.prefix+key, audio, ttl).Err(); err != nil {
		return fmt.Errorf("audio store put: %w", err)
	}
	return nil
}

func (s *RedisAudioStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("audio store get: %w", err)
	}
	return b, true, nil
}

// MemoryAudioStore is used when Redis is not configured and in tests.
type MemoryAudioStore struct {
	mu    sync.Mutex
	items map[string]memoryAudio
	clock func() time.Time
}

type memoryAudio struct {
	data    []byte
	expires time.Time
}

func NewMemoryAudioStore() *MemoryAudioStore {
	return &MemoryAudioStore{items: map[string]memoryAudio{}, clock: time.Now}
}

func (s *MemoryAudioStore) Put(ctx context.Context, key string, audio []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = AudioTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memoryAudio{data: append([]byte(nil), audio...), expires: s.clock().Add(ttl)}
	return nil
}

func (s *MemoryAudioStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	if !s.clock().Before(it.expires) {
		delete(s.items, key)
		return nil, false, nil
	}
	return it.data, true, nil
}
