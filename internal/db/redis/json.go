package redis

import (
	"context"
	"errors"

	"github.com/redis/rueidis"

	"github.com/shopgrep/shopgrep/internal/db"
)

const jsonRootPath = "$"

// JSONSet writes data as the root JSON document at key.
func (s *Store) JSONSet(ctx context.Context, key string, data []byte) error {
	cmd := s.b().JsonSet().Key(key).Path(jsonRootPath).Value(rueidis.BinaryString(data)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpJSONSet, Err: err}
	}
	return nil
}

// JSONGet returns the root JSON document at key. Missing keys return
// db.ErrKeyNotFound.
func (s *Store) JSONGet(ctx context.Context, key string) ([]byte, error) {
	cmd := s.b().JsonGet().Key(key).Build()
	val, err := s.do(ctx, cmd).AsBytes()
	if err != nil {
		if errors.Is(err, rueidis.Nil) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpJSONGet, Err: err}
	}
	return val, nil
}

// JSONGetMulti fetches root JSON documents for many keys in one pipelined
// round trip. Missing keys yield a nil entry at their position.
func (s *Store) JSONGetMulti(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make(rueidis.Commands, 0, len(keys))
	for _, key := range keys {
		cmds = append(cmds, s.b().JsonGet().Key(key).Build())
	}

	out := make([][]byte, len(keys))
	for i, resp := range s.client.DoMulti(ctx, cmds...) {
		val, err := resp.AsBytes()
		if err != nil {
			if errors.Is(err, rueidis.Nil) {
				continue
			}
			return nil, &db.Error{Op: db.OpJSONGet, Err: err}
		}
		out[i] = val
	}
	return out, nil
}
