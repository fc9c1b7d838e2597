package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrWatchUnsupported is returned by Follow when the durable tier cannot report changes.
var ErrWatchUnsupported = errors.New("durable tier does not support change notification")

// Option configures a [TokenStore] or [ProfileStore].
type Option func(*options)

type options struct {
	key    string
	logger zerolog.Logger
}

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.key = key
		}
	}
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func buildOptions(defaultKey string, opts []Option) options {
	o := options{key: defaultKey, logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// tieredStore holds one JSON value persisted in an ephemeral and an optional durable tier
// and mirrored in memory for subscribers.
type tieredStore[T any] struct {
	key       string
	ephemeral Tier
	durable   Tier
	validate  func(*T) error
	clone     func(*T) *T
	logger    zerolog.Logger

	// opMu serialises mutations so read-modify-write updates are not lost.
	opMu sync.Mutex

	mu      sync.RWMutex
	current *T
	subs    map[uint64]func(*T)
	nextSub uint64
}

func newTieredStore[T any](ephemeral, durable Tier, o options, validate func(*T) error, clone func(*T) *T) *tieredStore[T] {
	if ephemeral == nil {
		ephemeral = NewMemoryTier()
	}
	return &tieredStore[T]{
		key:       o.key,
		ephemeral: ephemeral,
		durable:   durable,
		validate:  validate,
		clone:     clone,
		logger:    o.logger,
		subs:      make(map[uint64]func(*T)),
	}
}

// decode returns nil for anything that is not a valid value.
func (s *tieredStore[T]) decode(data []byte) *T {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	if err := s.validate(&v); err != nil {
		return nil
	}
	return &v
}

func (s *tieredStore[T]) read(ctx context.Context) (*T, error) {
	data, ok, err := s.ephemeral.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if !ok && s.durable != nil {
		data, ok, err = s.durable.Get(ctx, s.key)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, nil
	}
	v := s.decode(data)
	if v == nil {
		s.logger.Debug().Str("key", s.key).Msg("ignoring malformed persisted session value")
	}
	return v, nil
}

func (s *tieredStore[T]) load(ctx context.Context) error {
	v, err := s.read(ctx)
	if err != nil {
		return err
	}
	s.publish(v)
	return nil
}

func (s *tieredStore[T]) get() *T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clone(s.current)
}

func (s *tieredStore[T]) set(ctx context.Context, v *T, remember bool) error {
	if v == nil {
		return errors.New("session value is nil")
	}
	if err := s.validate(v); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.ephemeral.Set(ctx, s.key, data); err != nil {
		return err
	}
	if remember && s.durable != nil {
		if err := s.durable.Set(ctx, s.key, data); err != nil {
			return err
		}
	}
	s.publish(s.clone(v))
	return nil
}

// update applies fn to the current value. The durable tier is rewritten only when it
// already holds an entry, so a session that was not remembered stays ephemeral.
//
// The in-memory value is replaced even when a tier write fails; the error is returned.
func (s *tieredStore[T]) update(ctx context.Context, fn func(*T)) error {
	_, err := s.updateIf(ctx, nil, fn)
	return err
}

// updateIf is update guarded by match, evaluated against the current value under the
// same lock as the write. applied is false when there is no value or match rejects it.
func (s *tieredStore[T]) updateIf(ctx context.Context, match func(*T) bool, fn func(*T)) (applied bool, err error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	next := s.get()
	if next == nil || (match != nil && !match(next)) {
		return false, nil
	}
	fn(next)
	if err := s.validate(next); err != nil {
		return false, err
	}
	data, err := json.Marshal(next)
	if err != nil {
		return false, err
	}
	defer s.publish(next)

	if err := s.ephemeral.Set(ctx, s.key, data); err != nil {
		return true, err
	}
	if s.durable == nil {
		return true, nil
	}
	_, exists, err := s.durable.Get(ctx, s.key)
	if err != nil {
		return true, err
	}
	if exists {
		return true, s.durable.Set(ctx, s.key, data)
	}
	return true, nil
}

func (s *tieredStore[T]) clear(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	var errs []error
	if err := s.ephemeral.Delete(ctx, s.key); err != nil {
		errs = append(errs, err)
	}
	if s.durable != nil {
		if err := s.durable.Delete(ctx, s.key); err != nil {
			errs = append(errs, err)
		}
	}
	s.publish(nil)
	return errors.Join(errs...)
}

func (s *tieredStore[T]) publish(v *T) {
	s.mu.Lock()
	s.current = v
	subs := make([]func(*T), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(s.clone(v))
	}
}

func (s *tieredStore[T]) subscribe(fn func(*T)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	v := s.clone(s.current)
	s.mu.Unlock()

	fn(v)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// follow mirrors changes made to the durable entry by other processes into the
// ephemeral tier and the in-memory value.
func (s *tieredStore[T]) follow(ctx context.Context) error {
	w, ok := s.durable.(Watcher)
	if !ok {
		return ErrWatchUnsupported
	}
	return w.Watch(ctx, func(key string) {
		if key != s.key {
			return
		}
		if err := s.sync(ctx); err != nil {
			s.logger.Warn().Err(err).Str("key", s.key).Msg("session follow: reload failed")
		}
	})
}

func (s *tieredStore[T]) sync(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	durable, ok, err := s.durable.Get(ctx, s.key)
	if err != nil {
		return err
	}
	local, localOK, err := s.ephemeral.Get(ctx, s.key)
	if err != nil {
		return err
	}

	if !ok {
		if !localOK && s.get() == nil {
			return nil
		}
		if err := s.ephemeral.Delete(ctx, s.key); err != nil {
			return err
		}
		s.publish(nil)
		return nil
	}

	if localOK && bytes.Equal(local, durable) {
		return nil
	}
	v := s.decode(durable)
	if v == nil {
		return fmt.Errorf("durable entry %q is malformed", s.key)
	}
	if err := s.ephemeral.Set(ctx, s.key, durable); err != nil {
		return err
	}
	s.publish(v)
	return nil
}
