package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Provide a KISS TCP interface for client applications.
 *
 * Description:	Any number of clients can connect.  Every received
 *		payload is sent to all of them as a KISS data frame.
 *		A client can go away and come back again without
 *		restarting this application.
 *
 *		Frames from clients are read so the socket doesn't back
 *		up, then discarded.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const kissWriteTimeout = 5 * time.Second

type KissServer struct {
	listener net.Listener
	logger   *log.Logger

	mu      sync.Mutex
	clients map[net.Conn]struct{}
	wg      sync.WaitGroup
}

/*-------------------------------------------------------------------
 *
 * Name:        NewKissServer
 *
 * Purpose:     Start listening.  Connections are accepted by Serve.
 *
 * Inputs:	addr	- Like ":8001".  Port 0 picks a free one.
 *
 *--------------------------------------------------------------------*/

func NewKissServer(addr string, logger *log.Logger) (*KissServer, error) {
	var listener, err = net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("KISS listen on %s: %w", addr, err)
	}

	logger.Info("Ready to accept KISS TCP client application", "addr", listener.Addr().String())

	return &KissServer{ //nolint:exhaustruct
		listener: listener,
		logger:   logger,
		clients:  make(map[net.Conn]struct{}),
	}, nil
}

func (ks *KissServer) Addr() net.Addr {
	return ks.listener.Addr()
}

// ClientCount is the number of clients connected now.
func (ks *KissServer) ClientCount() int {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	return len(ks.clients)
}

// Serve accepts clients until ctx is done or the listener is closed.
func (ks *KissServer) Serve(ctx context.Context) error {
	var stop = context.AfterFunc(ctx, func() { _ = ks.listener.Close() })
	defer stop()

	for {
		var conn, err = ks.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			return fmt.Errorf("KISS accept: %w", err)
		}

		ks.logger.Info("Connected to KISS client application", "from", conn.RemoteAddr().String())

		ks.mu.Lock()
		ks.clients[conn] = struct{}{}
		ks.mu.Unlock()

		ks.wg.Add(1)

		go ks.listenClient(conn)
	}
}

// listenClient drains whatever the client sends until it disconnects.
func (ks *KissServer) listenClient(conn net.Conn) {
	defer ks.wg.Done()
	defer ks.drop(conn)

	var kf = newKissFrameReader()
	var buf = make([]byte, 256)
	var from = conn.RemoteAddr().String()

	for {
		var n, err = conn.Read(buf)

		for _, b := range buf[:n] {
			if frame := kf.Add(b); frame != nil {
				kissClientFrame(ks.logger, from, frame)
			}
		}

		if err != nil {
			return
		}
	}
}

func (ks *KissServer) drop(conn net.Conn) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if _, ok := ks.clients[conn]; !ok {
		return
	}

	delete(ks.clients, conn)
	_ = conn.Close()

	ks.logger.Info("Closing connection to KISS client application", "from", conn.RemoteAddr().String())
}

// Send writes one already framed KISS message to every client.  A client
// that can't keep up is disconnected.
func (ks *KissServer) Send(frame []byte) error {
	ks.mu.Lock()
	var conns = make([]net.Conn, 0, len(ks.clients))
	for c := range ks.clients {
		conns = append(conns, c)
	}
	ks.mu.Unlock()

	for _, c := range conns {
		_ = c.SetWriteDeadline(time.Now().Add(kissWriteTimeout))

		if _, err := c.Write(frame); err != nil {
			ks.logger.Warn("Error sending KISS message to client application", "to", c.RemoteAddr().String(), "err", err)
			ks.drop(c)
		}
	}

	return nil
}

// Close stops listening and disconnects everyone.
func (ks *KissServer) Close() error {
	var err = ks.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}

	ks.mu.Lock()
	for c := range ks.clients {
		_ = c.Close()
	}
	ks.mu.Unlock()

	ks.wg.Wait()

	return err
}
