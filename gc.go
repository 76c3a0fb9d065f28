package MvccDB

import (
	"MvccDB/data"
	"log"
	"sync"
	"time"
)

// GCStats outcome of one collection pass
type GCStats struct {
	Watermark      uint64
	Chains         int // chains inspected
	Versions       int // versions reclaimed
	DroppedChains  int // tombstoned chains removed from the index
	PrunedTxns     int // finished txns forgotten by the registry
	SkippedByGrace int // dead tombstones kept for another pass
}

// GarbageCollector reclaims versions that no present or future snapshot can see
type GarbageCollector struct {
	store   *MvStore
	manager *TxnManager
	grace   int

	mu       *sync.Mutex // one pass at a time
	interval time.Duration
	// trigger channel, a full channel means a pass is already requested
	gcChannel chan struct{}
	stopCh    chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

func NewGarbageCollector(store *MvStore, manager *TxnManager, interval time.Duration, graceCycles int) *GarbageCollector {
	return &GarbageCollector{
		store:     store,
		manager:   manager,
		grace:     graceCycles,
		mu:        new(sync.Mutex),
		interval:  interval,
		gcChannel: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start runs the background loop, a pass on every tick and on every Trigger
func (gc *GarbageCollector) Start() {
	gc.wg.Add(1)
	go gc.run()
}

func (gc *GarbageCollector) run() {
	defer gc.wg.Done()
	var tick <-chan time.Time
	if gc.interval > 0 {
		ticker := time.NewTicker(gc.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-gc.stopCh:
			return
		case <-tick:
			gc.safeCollect()
		case <-gc.gcChannel:
			gc.safeCollect()
		}
	}
}

// safeCollect a failed pass only delays reclamation
func (gc *GarbageCollector) safeCollect() {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok && err == ErrClockExhausted {
				panic(r)
			}
			log.Println("gc pass skipped:", r)
		}
	}()
	gc.Collect()
}

// Trigger requests a pass without waiting for it, e.g. under memory pressure
func (gc *GarbageCollector) Trigger() {
	select {
	case gc.gcChannel <- struct{}{}:
	default:
	}
}

// Stop ends the background loop and waits for it
func (gc *GarbageCollector) Stop() {
	gc.stopOnce.Do(func() {
		close(gc.stopCh)
	})
	gc.wg.Wait()
}

// Collect one synchronous pass
func (gc *GarbageCollector) Collect() GCStats {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	stats := GCStats{Watermark: gc.manager.Watermark()}
	it := gc.store.index.Iterator(nil, false)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		stats.Chains++
		gc.collectChain(it.Value(), stats.Watermark, &stats)
	}
	stats.PrunedTxns = gc.manager.tracker.prune(stats.Watermark)
	return stats
}

// collectChain never removes the newest version, except a committed
// tombstone older than the watermark that outlived the grace passes
func (gc *GarbageCollector) collectChain(chain *data.VersionChain, watermark uint64, stats *GCStats) {
	chain.Lock()
	defer chain.Unlock()
	if chain.Dropped || chain.Len() == 0 {
		return
	}

	last := chain.Len() - 1
	kept := chain.Versions[:0]
	for i, v := range chain.Versions {
		if i != last && v.IsCommitted() && v.End.IsTimestamp() && v.End.Value <= watermark {
			stats.Versions++
			continue
		}
		kept = append(kept, v)
	}
	for i := len(kept); i < len(chain.Versions); i++ {
		chain.Versions[i] = nil
	}
	chain.Versions = kept

	head := chain.Head()
	if chain.Len() != 1 || !head.IsTombstone() || !head.IsCommitted() || head.Begin.Value > watermark {
		chain.Grace = 0
		return
	}
	if chain.Grace < gc.grace {
		chain.Grace++
		stats.SkippedByGrace++
		return
	}
	gc.store.dropChain(chain)
	stats.DroppedChains++
	stats.Versions++
}
