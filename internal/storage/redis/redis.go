/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package redis keeps history snapshots as single JSON values in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/neilalexander/yggpost/internal/storage/types"
)

const keyPrefix = "yggpost:snapshot:"

type snapshot struct {
	Records []types.Record `json:"records"`
}

type RedisStorage struct {
	client goredis.UniversalClient
}

// NewRedisStorage connects to the Redis server at addr.
func NewRedisStorage(ctx context.Context, addr string) (*RedisStorage, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr: addr,
	})
	s, err := NewRedisStorageFromClient(ctx, client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// NewRedisStorageFromClient uses an existing client, which may be a
// cluster or failover client. Close closes it.
func NewRedisStorageFromClient(ctx context.Context, client goredis.UniversalClient) (*RedisStorage, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("client.Ping: %w", err)
	}
	return &RedisStorage{
		client: client,
	}, nil
}

func (s *RedisStorage) Save(ctx context.Context, identity string, records []types.Record) error {
	if records == nil {
		records = []types.Record{}
	}
	data, err := json.Marshal(snapshot{Records: records})
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+identity, data, 0).Err(); err != nil {
		return fmt.Errorf("s.client.Set: %w", err)
	}
	return nil
}

func (s *RedisStorage) Load(ctx context.Context, identity string) ([]types.Record, bool, error) {
	data, err := s.client.Get(ctx, keyPrefix+identity).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("s.client.Get: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("json.Unmarshal: %w", err)
	}
	return snap.Records, true, nil
}

func (s *RedisStorage) Erase(ctx context.Context, identity string) error {
	if err := s.client.Del(ctx, keyPrefix+identity).Err(); err != nil {
		return fmt.Errorf("s.client.Del: %w", err)
	}
	return nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}
