/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package transport

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net"
	"regexp"
	"sync"
	"time"

	iwt "github.com/Arceliar/ironwood/types"
	"github.com/fatih/color"
	gologme "github.com/gologme/log"
	"github.com/neilalexander/utp"
	"go.uber.org/atomic"
	"github.com/yggdrasil-network/yggdrasil-go/src/config"
	"github.com/yggdrasil-network/yggdrasil-go/src/core"
	"github.com/yggdrasil-network/yggdrasil-go/src/multicast"
)

// sendLinger is how long Close keeps the node up after the last Send, so
// the final stream's data and FIN can reach the peer.
const sendLinger = 2 * time.Second

// YggdrasilTransport carries each payload over its own uTP stream on the
// Yggdrasil overlay. Endpoint addresses are hex-encoded node public keys.
type YggdrasilTransport struct {
	log        *log.Logger
	core       *core.Core
	multicast  *multicast.Multicast
	sessions   *utp.Socket
	address    string
	maxPayload int64
	timeout    time.Duration
	lastSend   atomic.Time
	once       sync.Once
	closed     chan struct{}
}

func NewYggdrasilTransport(log *log.Logger, sk ed25519.PrivateKey, peers []string, mcast bool, maxPayload int64, timeout time.Duration) (*YggdrasilTransport, error) {
	yellow := color.New(color.FgYellow).SprintfFunc()
	glog := gologme.New(log.Writer(), fmt.Sprintf("[ %s ] ", yellow("Yggdrasil")), gologme.LstdFlags|gologme.Lmsgprefix)
	glog.EnableLevel("warn")
	glog.EnableLevel("error")
	glog.EnableLevel("info")

	pk := sk.Public().(ed25519.PublicKey)

	cfg := config.GenerateConfig()
	copy(cfg.PrivateKey, sk)
	if err := cfg.GenerateSelfSignedCertificate(); err != nil {
		return nil, fmt.Errorf("cfg.GenerateSelfSignedCertificate: %w", err)
	}

	options := []core.SetupOption{
		core.NodeInfo(map[string]interface{}{
			"name": hex.EncodeToString(pk) + "@yggpost",
		}),
		core.NodeInfoPrivacy(true),
	}
	for _, peer := range peers {
		if peer == "" {
			continue
		}
		options = append(options, core.Peer{URI: peer})
	}
	ygg, err := core.New(cfg.Certificate, glog, options...)
	if err != nil {
		return nil, fmt.Errorf("core.New: %w", err)
	}

	t := &YggdrasilTransport{
		log:        log,
		core:       ygg,
		address:    hex.EncodeToString(pk),
		maxPayload: maxPayload,
		timeout:    timeout,
		closed:     make(chan struct{}),
	}

	if mcast {
		t.multicast, err = multicast.New(ygg, glog, multicast.MulticastInterface{
			Regex:  regexp.MustCompile(".*"),
			Beacon: true,
			Listen: true,
		})
		if err != nil {
			ygg.Stop()
			return nil, fmt.Errorf("multicast.New: %w", err)
		}
	}

	t.sessions, err = utp.NewSocketFromPacketConnNoClose(ygg)
	if err != nil {
		t.stopNode()
		return nil, fmt.Errorf("utp.NewSocketFromPacketConnNoClose: %w", err)
	}
	return t, nil
}

func (t *YggdrasilTransport) Address() string {
	return t.address
}

func (t *YggdrasilTransport) Send(destination string, payload []byte) error {
	if int64(len(payload)) > t.maxPayload {
		return fmt.Errorf("payload of %d bytes exceeds limit of %d", len(payload), t.maxPayload)
	}
	k, err := hex.DecodeString(destination)
	if err != nil {
		return fmt.Errorf("hex.DecodeString: %w", err)
	}
	if len(k) != ed25519.PublicKeySize {
		return fmt.Errorf("destination %q is not a node key", destination)
	}
	addr := make(iwt.Addr, ed25519.PublicKeySize)
	copy(addr, k)

	conn, err := t.sessions.DialAddr(addr)
	if err != nil {
		return fmt.Errorf("t.sessions.DialAddr: %w", err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(t.timeout)); err != nil {
		return fmt.Errorf("conn.SetWriteDeadline: %w", err)
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("conn.Write: %w", err)
	}
	t.lastSend.Store(time.Now())
	return nil
}

func (t *YggdrasilTransport) Receive() (string, []byte, error) {
	for {
		conn, err := t.sessions.Accept()
		if err != nil {
			select {
			case <-t.closed:
				return "", nil, ErrClosed
			default:
			}
			return "", nil, fmt.Errorf("t.sessions.Accept: %w", err)
		}
		payload, err := t.read(conn)
		source := conn.RemoteAddr().String()
		_ = conn.Close()
		if err != nil {
			t.log.Println("Dropped payload from", source, "due to error:", err)
			continue
		}
		return source, payload, nil
	}
}

func (t *YggdrasilTransport) read(conn net.Conn) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
		return nil, fmt.Errorf("conn.SetReadDeadline: %w", err)
	}
	payload, err := io.ReadAll(io.LimitReader(conn, t.maxPayload+1))
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll: %w", err)
	}
	if int64(len(payload)) > t.maxPayload {
		return nil, fmt.Errorf("payload exceeds limit of %d bytes", t.maxPayload)
	}
	return payload, nil
}

func (t *YggdrasilTransport) Close() error {
	var err error
	t.once.Do(func() {
		time.Sleep(lingerFor(t.lastSend.Load(), time.Now()))
		close(t.closed)
		err = t.sessions.Close()
		t.stopNode()
	})
	return err
}

// lingerFor returns how much of the linger window after a send at last is
// still left at now.
func lingerFor(last, now time.Time) time.Duration {
	if last.IsZero() {
		return 0
	}
	if d := sendLinger - now.Sub(last); d > 0 {
		return d
	}
	return 0
}

func (t *YggdrasilTransport) stopNode() {
	if t.multicast != nil {
		_ = t.multicast.Stop()
	}
	t.core.Stop()
}
