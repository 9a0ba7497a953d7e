package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"sort"
	"time"

	"github.com/sorcix/irc"
)

func main() {
	addr := flag.String("addr", "localhost:7777", "ircflood address")
	nick := flag.String("nick", "smoke", "nickname to register with")
	lines := flag.Int("lines", 1000, "stop after this many lines")
	quit := flag.Bool("quit", true, "send QUIT before disconnecting")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", *addr)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	stop := context.AfterFunc(ctx, func() { nc.Close() })
	defer stop()
	conn := irc.NewConn(nc)
	defer conn.Close()

	mustSend := func(m *irc.Message) {
		if err := conn.Encode(m); err != nil {
			log.Fatalf("send: %v", err)
		}
	}

	mustSend(&irc.Message{Command: irc.NICK, Params: []string{*nick}})
	mustSend(&irc.Message{Command: irc.USER, Params: []string{*nick, "0", "*"}, Trailing: "smoke test"})

	counts := make(map[string]int)
	start := time.Now()
	welcomed := false
	total := 0
	for total < *lines {
		m, err := conn.Decode()
		if err != nil {
			log.Printf("read stopped: %v", err)
			break
		}
		if m == nil {
			continue
		}
		total++
		counts[m.Command]++

		switch m.Command {
		case irc.RPL_WELCOME:
			welcomed = true
			log.Printf("welcome: %s", m.Trailing)
		case irc.PING:
			mustSend(&irc.Message{Command: irc.PONG, Trailing: m.Trailing})
		}
	}
	elapsed := time.Since(start)

	if *quit {
		mustSend(&irc.Message{Command: irc.QUIT, Trailing: "smoke done"})
	}

	if !welcomed {
		log.Fatalf("no welcome after %d lines", total)
	}

	cmds := make([]string, 0, len(counts))
	for c := range counts {
		cmds = append(cmds, c)
	}
	sort.Strings(cmds)
	for _, c := range cmds {
		fmt.Printf("%-8s %d\n", c, counts[c])
	}
	fmt.Printf("%d lines in %s (%.0f lines/s)\n", total, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())
}
