// Command netplaytest is an in-process two-instance harness: it wires two
// ChannelSockets and two statemachine.Machines against a fake GameAccessor,
// soak-testing the lockstep/delay invariants without a real game or network
// attached.
package main

import (
	"context"
	"flag"
	"log"
	"sync"
	"time"

	"github.com/junowen-net/core/internal/session"
	"github.com/junowen-net/core/internal/signaling"
	"github.com/junowen-net/core/internal/statemachine"
	"github.com/junowen-net/core/internal/transport"
)

var (
	frames       = flag.Int("frames", 600, "number of frames to soak-test")
	defaultDelay = flag.Int("delay", 2, "initial lockstep delay")
	maxSlack     = flag.Int("max-slack", 60, "clamp for the delayed-input queue's slack counter")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	hostSock, guestSock := signaling.NewChannelSocketPair()
	newConn := func() (*transport.Connection, error) { return transport.NewConnection("") }

	type Result struct {
		result signaling.Result
		err    error
	}

	hostCh := make(chan Result, 1)
	guestCh := make(chan Result, 1)

	go func() {
		res, err := signaling.ReceiveSignaling(ctx, hostSock, newConn, 10*time.Second)
		hostCh <- Result{res, err}
	}()
	go func() {
		res, err := signaling.ReceiveSignaling(ctx, guestSock, newConn, 10*time.Second)
		guestCh <- Result{res, err}
	}()

	hostRes := <-hostCh
	guestRes := <-guestCh
	if hostRes.err != nil {
		log.Fatalf("host signaling failed: %v", hostRes.err)
	}
	if guestRes.err != nil {
		log.Fatalf("guest signaling failed: %v", guestRes.err)
	}
	defer hostRes.result.Conn.Close()
	defer guestRes.result.Conn.Close()

	log.Printf("connected: host.IsHost=%v guest.IsHost=%v", hostRes.result.IsHost, guestRes.result.IsHost)

	hostBattle := session.NewBattleSession(hostRes.result.Channel, hostRes.result.IsHost, *defaultDelay, *maxSlack)
	guestBattle := session.NewBattleSession(guestRes.result.Channel, guestRes.result.IsHost, *defaultDelay, *maxSlack)

	hostAcc := newMemAccessor("host")
	guestAcc := newMemAccessor("guest")

	hostMachine := statemachine.NewMachine(hostAcc, hostBattle, hostRes.result.IsHost, "host-player", [12]byte{1, 2, 3})
	guestMachine := statemachine.NewMachine(guestAcc, guestBattle, guestRes.result.IsHost, "guest-player", [12]byte{})

	pairs := 0
	for i := 0; i < *frames; i++ {
		hostAcc.setLocalInput(localSlot(hostRes.result.IsHost), inputValueFor(i))
		guestAcc.setLocalInput(localSlot(guestRes.result.IsHost), inputValueFor(i+1000))

		hostAcc.advanceFixture()
		guestAcc.advanceFixture()

		// Both sides tick concurrently: InitMatch, InitRound and Tick block
		// until the peer's matching message arrives.
		var wg sync.WaitGroup
		var hostErr, guestErr error
		wg.Add(2)
		go func() { defer wg.Done(); hostErr = hostMachine.Tick() }()
		go func() { defer wg.Done(); guestErr = guestMachine.Tick() }()
		wg.Wait()
		if hostErr != nil {
			log.Fatalf("frame %d: host tick: %v", i, hostErr)
		}
		if guestErr != nil {
			log.Fatalf("frame %d: guest tick: %v", i, guestErr)
		}
		if hostMachine.State() == statemachine.StateGame {
			pairs++
		}
	}

	log.Printf("soak test complete: %d frames, %d frames in Game state, host delay=%d", *frames, pairs, hostBattle.Delay())
}

func localSlot(isHost bool) statemachine.PlayerSlot {
	if isHost {
		return statemachine.PlayerOne
	}
	return statemachine.PlayerTwo
}

func inputValueFor(i int) uint16 {
	return uint16(i % 0xFFFF)
}
