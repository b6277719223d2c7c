package search

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/exascience/pargo/parallel"

	"github.com/ChrisMcGann/tagrecon/pkg/digest"
	"github.com/ChrisMcGann/tagrecon/pkg/ptm"
)

// Stats summarizes the work done by a search.
type Stats struct {
	Proteins     int
	Peptides     int64
	Variants     int64
	SkippedPlans int64 // peptides searched unmodified because of the variant ceiling
	Comparisons  int64
	Workers      int
	Elapsed      time.Duration
}

func (s *Stats) add(other Stats) {
	s.Proteins += other.Proteins
	s.Peptides += other.Peptides
	s.Variants += other.Variants
	s.SkippedPlans += other.SkippedPlans
	s.Comparisons += other.Comparisons
}

// Run digests every protein, enumerates the modified variants of each
// peptide and queries them against the spectra. Worker w processes proteins
// w, w+N, w+2N, ... where N is the number of workers. Worker 0 writes a
// status line to the progress writer every StatusUpdateFrequency seconds.
func (e *Engine) Run(digester *digest.Digester) Stats {
	numWorkers := e.cfg.Workers()
	if numWorkers > len(e.proteins) {
		numWorkers = len(e.proteins)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var (
		mu         sync.Mutex
		nextWorker int
		total      = Stats{Workers: numWorkers}
		done       atomic.Int64
	)
	start := time.Now()

	parallel.Range(0, numWorkers, numWorkers, func(low, high int) {
		for i := low; i < high; i++ {
			mu.Lock()
			worker := nextWorker
			nextWorker++
			mu.Unlock()

			stats := e.work(worker, numWorkers, digester, &done, start)

			mu.Lock()
			total.add(stats)
			mu.Unlock()
		}
	})

	total.Elapsed = time.Since(start)
	return total
}

func (e *Engine) work(worker, numWorkers int, digester *digest.Digester, done *atomic.Int64, start time.Time) Stats {
	var stats Stats
	interval := time.Duration(e.cfg.StatusUpdateFrequency * float64(time.Second))
	lastUpdate := time.Now()

	for i := worker; i < len(e.proteins); i += numWorkers {
		for _, peptide := range digester.Digest(e.proteins[i]) {
			stats.Peptides++
			plan := ptm.NewPlan(peptide, e.cfg.MaxDynamicMods, e.cfg.Dynamic(), e.cfg.Static(), e.cfg.MaxNumPeptideVariants)
			if plan.Skipped() {
				stats.SkippedPlans++
			}
			for _, variant := range plan.Variants(true) {
				stats.Variants++
				if e.cfg.MassReconMode {
					stats.Comparisons += e.QueryByMass(variant, i)
				} else {
					stats.Comparisons += e.QuerySequence(variant, i)
				}
			}
		}
		stats.Proteins++
		n := done.Add(1)

		if worker == 0 && interval > 0 && time.Since(lastUpdate) >= interval {
			lastUpdate = time.Now()
			fmt.Fprintf(e.progress, "Searched %d of %d proteins (%.1f%%); %s elapsed\n",
				n, len(e.proteins), 100*float64(n)/float64(len(e.proteins)), time.Since(start).Round(time.Second))
		}
	}
	return stats
}
