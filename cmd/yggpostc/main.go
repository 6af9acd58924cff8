/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/neilalexander/yggpost/internal/client"
	"github.com/neilalexander/yggpost/internal/config"
	"github.com/neilalexander/yggpost/internal/mailstore"
	"github.com/neilalexander/yggpost/internal/smtpserver"
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

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [command]\n\nCommands:\n", os.Args[0])
	fmt.Fprintln(flag.CommandLine.Output(), "  send <to> <content>")
	fmt.Fprintln(flag.CommandLine.Output(), "  sent [n] | incoming [n] | all [n]")
	fmt.Fprintln(flag.CommandLine.Output(), "  correspondence <address> [n]")
	fmt.Fprintln(flag.CommandLine.Output(), "  unread | contacts")
	fmt.Fprintln(flag.CommandLine.Output(), "\nWith no command, -smtp runs a submission gateway.\n\nFlags:")
	flag.PrintDefaults()
}

func main() {
	rawlog := log.New(color.Output, "", 0)
	cyan := color.New(color.FgCyan).SprintfFunc()
	log := log.New(rawlog.Writer(), fmt.Sprintf("[  %s  ] ", cyan("Yggpostc")), 0)

	var peerAddrs peerAddrList
	database := flag.String("database", "yggpostc.db", "SQLite database file")
	server := flag.String("server", "", "Address of the relay")
	smtpaddr := flag.String("smtp", "", "SMTP listen address for the submission gateway")
	multicast := flag.Bool("multicast", false, "Connect to Yggdrasil peers on your LAN")
	password := flag.Bool("password", false, "Set a new SMTP password")
	timeout := flag.Duration("timeout", 30*time.Second, "How long to wait for a response")
	flag.Var(&peerAddrs, "peer", "Connect to a specific Yggdrasil static peer (this option can be given more than once)")
	flag.Usage = usage
	flag.Parse()

	db, err := sqlite3.NewSQLite3Storage(*database)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	if *password {
		if err := setPassword(db); err != nil {
			log.Println("Failed to set password:", err)
			db.Close()
			os.Exit(1)
		}
		log.Println("Password for SMTP has been updated!")
		return
	}

	sk, created, err := config.LoadOrCreateKey(db)
	if err != nil {
		panic(err)
	}
	if created {
		log.Printf("Generated new client identity")
	}
	cfg := config.New(sk, "")
	log.Printf("Mail address: %s\n", utils.CreateAddress(cfg.PublicKey))

	relayAddr, err := utils.ParseAddress(*server)
	if err != nil {
		log.Fatalf("Invalid -server address %q: %s", *server, err)
	}
	if !*multicast && len(peerAddrs) == 0 {
		log.Printf("You must specify either -peer, -multicast or both!")
		os.Exit(0)
	}
	if flag.NArg() == 0 && *smtpaddr == "" {
		flag.Usage()
		os.Exit(2)
	}

	t, err := transport.NewYggdrasilTransport(rawlog, cfg.PrivateKey, peerAddrs, *multicast, cfg.MaxPayload, cfg.ReceiveTimeout)
	if err != nil {
		panic(err)
	}
	c := client.NewClient(log, t, relayAddr)
	defer c.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if flag.NArg() > 0 {
		ctx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()
		if err := runCommand(ctx, c, flag.Args()); err != nil {
			log.Printf("Failed to run %q: %s", flag.Arg(0), err)
			c.Close()
			db.Close()
			os.Exit(1)
		}
		return
	}

	backend := &smtpserver.Backend{
		Log:    log,
		Auth:   db,
		Sender: c,
	}
	s := smtpserver.NewSMTPServer(backend, *smtpaddr, c.Address(), int(cfg.MaxPayload))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Println("Listening for SMTP on:", s.Addr)
		if err := s.ListenAndServe(); err != nil && ctx.Err() == nil {
			return fmt.Errorf("s.ListenAndServe: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return s.Close()
	})
	if err := g.Wait(); err != nil {
		log.Println("SMTP gateway stopped:", err)
	}
}

func setPassword(db *sqlite3.SQLite3Storage) error {
	fmt.Printf("New password: ")
	password1, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("term.ReadPassword: %w", err)
	}
	fmt.Println()
	fmt.Printf("Confirm password: ")
	password2, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("term.ReadPassword: %w", err)
	}
	fmt.Println()
	if !bytes.Equal(password1, password2) {
		return fmt.Errorf("the supplied passwords do not match")
	}
	return db.ConfigSetPassword(strings.TrimSpace(string(password1)))
}

func runCommand(ctx context.Context, c *client.Client, args []string) error {
	amount := func(i int) (int, error) {
		if len(args) <= i {
			return 10, nil
		}
		return strconv.Atoi(args[i])
	}

	var mails []mailstore.Mail
	var err error
	switch args[0] {
	case "send":
		if len(args) != 3 {
			return fmt.Errorf("usage: send <to> <content>")
		}
		to, err := utils.ParseAddress(args[1])
		if err != nil {
			return fmt.Errorf("utils.ParseAddress: %w", err)
		}
		return c.SendMail(to, args[2])

	case "sent", "incoming", "all":
		n, err := amount(1)
		if err != nil {
			return fmt.Errorf("strconv.Atoi: %w", err)
		}
		switch args[0] {
		case "sent":
			mails, err = c.Sent(ctx, n)
		case "incoming":
			mails, err = c.Incoming(ctx, n)
		default:
			mails, err = c.All(ctx, n)
		}
		if err != nil {
			return err
		}

	case "correspondence":
		if len(args) < 2 {
			return fmt.Errorf("usage: correspondence <address> [n]")
		}
		other, err := utils.ParseAddress(args[1])
		if err != nil {
			return fmt.Errorf("utils.ParseAddress: %w", err)
		}
		n, err := amount(2)
		if err != nil {
			return fmt.Errorf("strconv.Atoi: %w", err)
		}
		if mails, err = c.Correspondence(ctx, other, n); err != nil {
			return err
		}

	case "unread":
		if mails, err = c.Unread(ctx); err != nil {
			return err
		}

	case "contacts":
		contacts, err := c.Contacts(ctx)
		if err != nil {
			return err
		}
		for _, contact := range contacts {
			fmt.Println(contact)
		}
		return nil

	default:
		return fmt.Errorf("unknown command")
	}

	for _, mail := range mails {
		fmt.Printf("From: %s\nTo: %s\n\n%s\n\n", mail.From, mail.To, mail.Content)
	}
	return nil
}
