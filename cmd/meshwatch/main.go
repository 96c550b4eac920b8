package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrmesh/pkg/broadcast"
	"github.com/ryandielhenn/zephyrmesh/pkg/discovery"
)

// meshwatch passively subscribes to a multicast group and prints every
// advertisement it can decode. Handy for checking that a cluster is actually
// chattering on the wire.
func main() {
	group := flag.String("group", "239.77.77.77:7946", "multicast group address")
	raw := flag.Bool("raw", false, "also print undecodable payload sizes")
	flag.Parse()

	mc, err := broadcast.NewMulticast(*group, zap.NewNop())
	if err != nil {
		fmt.Fprintln(os.Stderr, "join group:", err)
		os.Exit(1)
	}
	defer mc.Close()

	codec := discovery.JSONCodec{}
	unsub := mc.Subscribe(func(payload []byte) {
		n, err := codec.Decode(payload)
		if err != nil {
			if *raw {
				fmt.Printf("%s  ?? %d undecodable bytes\n", time.Now().Format(time.TimeOnly), len(payload))
			}
			return
		}
		fmt.Printf("%s  %s @ %s\n", time.Now().Format(time.TimeOnly), n.ID, n.Address)
	})
	defer unsub()

	fmt.Println("watching", *group)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
}
