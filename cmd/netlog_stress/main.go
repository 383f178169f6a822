// Command netlog_stress hammers a store with concurrent appenders and
// readers and prints what was kept, evicted and lost.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/irctrakz/netlog/pkg/core"
	"github.com/irctrakz/netlog/pkg/logging"
	"github.com/irctrakz/netlog/pkg/netlog"
	"github.com/irctrakz/netlog/pkg/record"
	"github.com/irctrakz/netlog/pkg/ring"
)

type result struct {
	lines    uint64
	overruns uint64
	tooLarge uint64
}

func main() {
	var (
		writers  = flag.Int("writers", 4, "concurrent appenders")
		readers  = flag.Int("readers", 4, "concurrent readers")
		capacity = flag.Int("capacity", 64*1024, "arena size in bytes")
		duration = flag.Duration("duration", 2*time.Second, "how long to run")
		maxPath  = flag.Int("path", 64, "maximum random path length")
		pause    = flag.Duration("pause", 0, "sleep between appends per writer")
	)
	flag.Parse()

	logging.SetLevel(logging.WarnLevel)

	res, m, err := run(*writers, *readers, *capacity, *maxPath, *duration, *pause)
	if err != nil {
		fmt.Println("ERROR:", err)
		return
	}

	fmt.Printf("Store: capacity=%d appends=%d evictions=%d wraps=%d truncations=%d seq=%d..%d\n",
		m.Capacity, m.Appends, m.Evictions, m.Wraps, m.Truncations, m.FirstSeq, m.NextSeq)
	fmt.Printf("Readers: lines=%d overruns=%d too_large=%d\n", res.lines, res.overruns, res.tooLarge)
	if res.lines == 0 {
		fmt.Println("WARN: readers saw no lines; increase duration or lower writers")
	}
	if m.Evictions == 0 {
		fmt.Println("WARN: no evictions; lower capacity to exercise wraparound")
	}
}

func run(writers, readers, capacity, maxPath int, duration, pause time.Duration) (result, core.StoreMetrics, error) {
	store, err := ring.New(capacity)
	if err != nil {
		return result{}, core.StoreMetrics{}, err
	}
	dev := netlog.NewDevice(store, record.DefaultHeader())
	logger := netlog.NewLogger(store, nil)

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var res result
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		h := dev.Open(0)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer dev.Close(h)
			buf := make([]byte, 4096)
			for {
				_, err := dev.Read(ctx, h, buf)
				switch {
				case err == nil:
					atomic.AddUint64(&res.lines, 1)
				case errors.Is(err, ring.ErrOverrun):
					atomic.AddUint64(&res.overruns, 1)
				case errors.Is(err, ring.ErrLineTooLarge):
					atomic.AddUint64(&res.tooLarge, 1)
				default:
					return
				}
			}
		}()
	}

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(id)))
			for ctx.Err() == nil {
				logger.Log(randomEvent(rng, int32(id), maxPath))
				if pause > 0 {
					time.Sleep(pause)
				}
			}
		}(i)
	}

	wg.Wait()
	return res, store.Metrics(), nil
}

func randomEvent(rng *rand.Rand, pid int32, maxPath int) *core.Event {
	ev := &core.Event{
		PID:      pid,
		UID:      uint32(rng.Intn(2000)),
		Path:     "/" + strings.Repeat("x", rng.Intn(maxPath+1)),
		Action:   core.Action(1 + rng.Intn(4)),
		Protocol: core.ProtoTCP,
	}
	if rng.Intn(2) == 0 {
		ev.Protocol = core.ProtoUDP
	}
	port := uint16(1024 + rng.Intn(60000))
	if rng.Intn(4) == 0 {
		ev.Family = core.FamilyInet6
		ev.Src = netip.AddrPortFrom(netip.MustParseAddr("2001:db8::1"), port)
		ev.Dst = netip.AddrPortFrom(netip.MustParseAddr("2001:db8::2"), 443)
	} else {
		ev.Family = core.FamilyInet
		ev.Src = netip.AddrPortFrom(netip.AddrFrom4([4]byte{10, 0, 0, byte(rng.Intn(255))}), port)
		ev.Dst = netip.AddrPortFrom(netip.AddrFrom4([4]byte{93, 184, 216, 34}), 443)
	}
	return ev
}
