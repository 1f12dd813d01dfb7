// Package ids issues 63-bit time-ordered ids for server-assigned message
// identifiers: 41 bits of milliseconds since the service epoch, 10 bits of
// node, 12 bits of per-millisecond sequence.
package ids

import (
	"strconv"
	"sync"
	"time"
)

const (
	nodeBits = 10
	seqBits  = 12

	maxNodeID = (1 << nodeBits) - 1
	seqMask   = (1 << seqBits) - 1
	tsShift   = nodeBits + seqBits
)

var epochMS = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

type generator struct {
	mu     sync.Mutex
	nodeID int64
	lastMS int64
	seq    int64
}

var defaultGen = &generator{nodeID: 1}

// Generate returns a new id, strictly increasing within the process.
func Generate() int64 {
	return defaultGen.next()
}

func GenerateString() string {
	return strconv.FormatInt(Generate(), 10)
}

// SetNodeID sets the node component (0~1023). Call once from main before
// the first Generate; out-of-range values fall back to 1.
func SetNodeID(nodeID int64) {
	if nodeID < 0 || nodeID > maxNodeID {
		nodeID = 1
	}
	defaultGen.mu.Lock()
	defaultGen.nodeID = nodeID
	defaultGen.mu.Unlock()
}

func (g *generator) next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < g.lastMS {
		// clock went backwards, hold until it catches up
		now = waitUntil(g.lastMS)
	}
	if now == g.lastMS {
		g.seq = (g.seq + 1) & seqMask
		if g.seq == 0 {
			// sequence exhausted for this millisecond
			now = waitUntil(g.lastMS + 1)
		}
	} else {
		g.seq = 0
	}
	g.lastMS = now

	return (now-epochMS)<<tsShift | g.nodeID<<seqBits | g.seq
}

func waitUntil(targetMS int64) int64 {
	now := time.Now().UnixMilli()
	for now < targetMS {
		time.Sleep(time.Duration(targetMS-now) * time.Millisecond)
		now = time.Now().UnixMilli()
	}
	return now
}
