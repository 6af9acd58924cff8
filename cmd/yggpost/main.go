/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/neilalexander/yggpost"
	"github.com/neilalexander/yggpost/internal/config"
	"github.com/neilalexander/yggpost/internal/storage"
	"github.com/neilalexander/yggpost/internal/storage/redis"
	"github.com/neilalexander/yggpost/internal/storage/sqlite3"
	"github.com/neilalexander/yggpost/internal/transport"
	"github.com/neilalexander/yggpost/internal/utils"
)

type peerAddrList []string

func (i *peerAddrList) String() string {
	return strings.Join(*i, ", ")
}

func (i *peerAddrList) Set(value string) error {
	*i = append(*i, value)
	return nil
}

func main() {
	rawlog := log.New(color.Output, "", 0)
	green := color.New(color.FgGreen).SprintfFunc()
	log := log.New(rawlog.Writer(), fmt.Sprintf("[  %s  ] ", green("Yggpost")), 0)

	var peerAddrs peerAddrList
	database := flag.String("database", "yggpost.db", "SQLite database file")
	identity := flag.String("identity", "yggpost", "Name of the saved mail history")
	multicast := flag.Bool("multicast", false, "Connect to Yggdrasil peers on your LAN")
	snapshot := flag.String("snapshot", "sqlite", "Where to save mail history: sqlite or redis")
	redisaddr := flag.String("redis", "localhost:6379", "Redis server address, with -snapshot=redis")
	clean := flag.Bool("clean", false, "Erase the saved mail history and exit")
	flag.Var(&peerAddrs, "peer", "Connect to a specific Yggdrasil static peer (this option can be given more than once)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := sqlite3.NewSQLite3Storage(*database)
	if err != nil {
		panic(err)
	}
	defer db.Close()
	log.Printf("Using database file %q\n", *database)

	sk, created, err := config.LoadOrCreateKey(db)
	if err != nil {
		panic(err)
	}
	if created {
		log.Printf("Generated new server identity")
	}
	cfg := config.New(sk, *identity)
	log.Printf("Relay address: %s\n", utils.CreateAddress(cfg.PublicKey))

	var backend storage.Backend
	switch *snapshot {
	case "sqlite":
		backend = db
	case "redis":
		rs, err := redis.NewRedisStorage(ctx, *redisaddr)
		if err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %s", *redisaddr, err)
		}
		defer rs.Close()
		backend = rs
		log.Printf("Saving mail history to Redis at %s\n", *redisaddr)
	default:
		log.Fatalf("Unknown snapshot backend %q", *snapshot)
	}

	relay := &yggpost.Relay{
		Log:      log,
		Identity: cfg.Identity,
		Backend:  backend,
	}

	if *clean {
		if err := relay.Clean(ctx); err != nil {
			log.Fatalf("Failed to erase mail history: %s", err)
		}
		log.Printf("Erased mail history %q\n", cfg.Identity)
		return
	}

	if !*multicast && len(peerAddrs) == 0 {
		log.Printf("You must specify either -peer, -multicast or both!")
		os.Exit(0)
	}

	t, err := transport.NewYggdrasilTransport(rawlog, cfg.PrivateKey, peerAddrs, *multicast, cfg.MaxPayload, cfg.ReceiveTimeout)
	if err != nil {
		panic(err)
	}

	if err := relay.Start(ctx, t); err != nil {
		_ = t.Close()
		log.Fatalf("Failed to start relay: %s", err)
	}

	<-ctx.Done()
	if err := relay.Stop(); err != nil {
		log.Printf("Failed to save mail history: %s", err)
		db.Close()
		os.Exit(1)
	}
}
