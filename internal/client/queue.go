package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/dto"
)

// QueuedEntry entrada pendiente: el cuerpo de POST /entrada más el instante de encolado (ms Unix)
type QueuedEntry struct {
	dto.RegisterEntryRequest
	EnqueuedAt int64  `json:"_ts"`
	ID         string `json:"_id,omitempty"`
}

// key identidad del elemento; las colas escritas sin _id usan _ts + trabajadorId
func (e QueuedEntry) key() string {
	if e.ID != "" {
		return e.ID
	}
	return fmt.Sprintf("%d/%d", e.EnqueuedAt, e.WorkerID)
}

// UpdateFunc recibe la cola actual y devuelve la nueva
type UpdateFunc func(items []QueuedEntry) ([]QueuedEntry, error)

// Store almacenamiento durable de la cola como arreglo JSON.
// Update es atómico también entre procesos (varias CLI o terminales sobre la misma cola).
type Store interface {
	Load(ctx context.Context) ([]QueuedEntry, error)
	Update(ctx context.Context, fn UpdateFunc) error
}

func decodeQueue(data []byte) ([]QueuedEntry, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var items []QueuedEntry
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func encodeQueue(items []QueuedEntry) ([]byte, error) {
	if items == nil {
		items = []QueuedEntry{}
	}
	return json.Marshal(items)
}

// ── FileStore ──

const lockRetryDelay = 25 * time.Millisecond

// FileStore guarda la cola en un archivo JSON.
// Un flock sobre <path>.lock serializa lectura+escritura entre procesos; la
// escritura va a un temporal que se renombra.
type FileStore struct {
	path   string
	lock   *flock.Flock
	mu     sync.Mutex // flock no excluye dentro del mismo proceso
	logger *zap.Logger
}

// NewFileStore crea FileStore
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	return &FileStore{path: path, lock: flock.New(path + ".lock"), logger: logger}
}

func (s *FileStore) acquire(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("creación del directorio de la cola: %w", err)
	}
	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err == nil && !ok {
		err = errors.New("no se obtuvo el bloqueo")
	}
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("bloqueo de la cola offline: %w", err)
	}
	return func() {
		_ = s.lock.Unlock()
		s.mu.Unlock()
	}, nil
}

func (s *FileStore) Load(ctx context.Context) ([]QueuedEntry, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.load()
}

func (s *FileStore) Update(ctx context.Context, fn UpdateFunc) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	items, err := s.load()
	if err != nil {
		return err
	}
	next, err := fn(items)
	if err != nil {
		return err
	}
	return s.save(next)
}

func (s *FileStore) load() ([]QueuedEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lectura de la cola offline: %w", err)
	}

	items, err := decodeQueue(data)
	if err != nil {
		// se aparta el archivo ilegible para no sobrescribirlo
		aside := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().UnixMilli())
		if rerr := os.Rename(s.path, aside); rerr != nil {
			return nil, fmt.Errorf("cola offline ilegible y no se pudo apartar: %w", rerr)
		}
		s.logger.Warn("cola offline ilegible, se apartó y se inicia vacía",
			zap.String("path", s.path), zap.String("aside", aside), zap.Error(err))
		return nil, nil
	}
	return items, nil
}

func (s *FileStore) save(items []QueuedEntry) error {
	data, err := encodeQueue(items)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("escritura de la cola offline: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("escritura de la cola offline: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("escritura de la cola offline: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("escritura de la cola offline: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// ── RedisStore ──

// QueueKV operaciones de pkg/redis usadas por RedisStore
type QueueKV interface {
	LoadQueue(ctx context.Context, key string) ([]byte, error)
	UpdateQueue(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
	MoveQueueAside(ctx context.Context, key, aside string) error
}

// RedisStore guarda la cola bajo una clave de Redis (terminales que comparten la cola)
type RedisStore struct {
	kv     QueueKV
	key    string
	logger *zap.Logger
}

// NewRedisStore crea RedisStore
func NewRedisStore(kv QueueKV, key string, logger *zap.Logger) *RedisStore {
	return &RedisStore{kv: kv, key: key, logger: logger}
}

// corruptQueueError el valor guardado no es un arreglo JSON válido
type corruptQueueError struct{ err error }

func (e *corruptQueueError) Error() string { return "cola offline en Redis ilegible: " + e.err.Error() }

func (s *RedisStore) Load(ctx context.Context) ([]QueuedEntry, error) {
	data, err := s.kv.LoadQueue(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("lectura de la cola offline en Redis: %w", err)
	}
	items, err := decodeQueue(data)
	if err != nil {
		return nil, s.moveAside(ctx, err)
	}
	return items, nil
}

func (s *RedisStore) Update(ctx context.Context, fn UpdateFunc) error {
	err := s.update(ctx, fn)
	var ce *corruptQueueError
	if !errors.As(err, &ce) {
		return err
	}
	if err := s.moveAside(ctx, ce.err); err != nil {
		return err
	}
	return s.update(ctx, fn)
}

func (s *RedisStore) update(ctx context.Context, fn UpdateFunc) error {
	return s.kv.UpdateQueue(ctx, s.key, func(current []byte) ([]byte, error) {
		items, err := decodeQueue(current)
		if err != nil {
			return nil, &corruptQueueError{err: err}
		}
		next, err := fn(items)
		if err != nil {
			return nil, err
		}
		return encodeQueue(next)
	})
}

func (s *RedisStore) moveAside(ctx context.Context, cause error) error {
	aside := fmt.Sprintf("%s.corrupt-%d", s.key, time.Now().UnixMilli())
	if err := s.kv.MoveQueueAside(ctx, s.key, aside); err != nil {
		return fmt.Errorf("cola offline en Redis ilegible y no se pudo apartar: %w", err)
	}
	s.logger.Warn("cola offline en Redis ilegible, se apartó y se inicia vacía",
		zap.String("key", s.key), zap.String("aside", aside), zap.Error(cause))
	return nil
}

// ── Queue ──

// Queue cola ordenada de entradas pendientes.
//
// No reordena ni deduplica. Drain envía en orden y se detiene en el primer
// fallo; de la cola salen solo los elementos confirmados, por identidad, de
// modo que otro proceso que encole, drene o descarte a la vez no pierde nada.
type Queue struct {
	store Store
	now   func() time.Time
	newID func() string

	drainMu sync.Mutex // un drenado a la vez por proceso
}

// NewQueue crea la cola sobre un Store
func NewQueue(store Store) *Queue {
	return &Queue{store: store, now: time.Now, newID: uuid.NewString}
}

// Enqueue agrega una copia con marca de tiempo e identificador y la persiste de inmediato
func (q *Queue) Enqueue(ctx context.Context, req dto.RegisterEntryRequest) (QueuedEntry, error) {
	item := QueuedEntry{RegisterEntryRequest: req, EnqueuedAt: q.now().UnixMilli(), ID: q.newID()}
	if req.Location != nil {
		loc := *req.Location
		item.Location = &loc
	}

	err := q.store.Update(ctx, func(items []QueuedEntry) ([]QueuedEntry, error) {
		return append(items, item), nil
	})
	if err != nil {
		return QueuedEntry{}, err
	}
	return item, nil
}

// Pending copia de los elementos pendientes, en orden
func (q *Queue) Pending(ctx context.Context) ([]QueuedEntry, error) {
	return q.store.Load(ctx)
}

// Len número de elementos pendientes
func (q *Queue) Len(ctx context.Context) (int, error) {
	items, err := q.Pending(ctx)
	return len(items), err
}

// DropHead descarta el primer elemento (rechazo permanente que bloquea la cola)
func (q *Queue) DropHead(ctx context.Context) (*QueuedEntry, error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	var head *QueuedEntry
	err := q.store.Update(ctx, func(items []QueuedEntry) ([]QueuedEntry, error) {
		head = nil
		if len(items) == 0 {
			return items, nil
		}
		h := items[0]
		head = &h
		return items[1:], nil
	})
	if err != nil {
		return nil, err
	}
	return head, nil
}

// SendFunc envía un elemento; nil = atendido
type SendFunc func(ctx context.Context, item QueuedEntry) error

// Drain envía en orden hasta el primer fallo y devuelve cuántos se atendieron.
// El error devuelto es el del envío que detuvo el drenado o el del almacenamiento.
func (q *Queue) Drain(ctx context.Context, send SendFunc) (int, error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	snapshot, err := q.store.Load(ctx)
	if err != nil {
		return 0, err
	}

	var sent []QueuedEntry
	var sendErr error
	for _, item := range snapshot {
		if err := ctx.Err(); err != nil {
			sendErr = err
			break
		}
		if err := send(ctx, item); err != nil {
			sendErr = err
			break
		}
		sent = append(sent, item)
	}

	if len(sent) == 0 {
		return 0, sendErr
	}

	// lo ya enviado se retira aunque ctx se haya cancelado
	if err := q.remove(context.WithoutCancel(ctx), sent); err != nil {
		return len(sent), err
	}
	return len(sent), sendErr
}

// remove quita de la cola actual los elementos enviados; los que ya no estén
// (otro proceso los envió o descartó) se ignoran
func (q *Queue) remove(ctx context.Context, sent []QueuedEntry) error {
	return q.store.Update(ctx, func(items []QueuedEntry) ([]QueuedEntry, error) {
		done := make(map[string]int, len(sent))
		for _, it := range sent {
			done[it.key()]++
		}
		out := make([]QueuedEntry, 0, len(items))
		for _, it := range items {
			if k := it.key(); done[k] > 0 {
				done[k]--
				continue
			}
			out = append(out, it)
		}
		return out, nil
	})
}
