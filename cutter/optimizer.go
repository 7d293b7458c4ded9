package cutter

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	poolSize    = 64
	maxBranches = 1024
	gracePeriod = 500 * time.Millisecond
)

// branch is a population of solutions descended from one seed, best first
type branch struct {
	id         int
	solutions  []*Solution
	best       float64
	generation int64
}

type task struct {
	branch   int
	source   *Solution
	other    *Solution
	mutation int
}

// optimizer runs the genetic search. All branch state is guarded by mu and
// only the scheduler and completed tasks touch it.
type optimizer struct {
	m       *mask
	opt     OptimizationType
	arena   *arena
	workers int
	seed    int64

	mu       sync.Mutex
	branches []*branch
	byID     map[int]*branch
	nextID   int
	current  int
	best     float64
	stopped  bool
	finished int64
}

func newOptimizer(m *mask, opt OptimizationType, workers int, seed int64, seeds []*Solution) *optimizer {
	o := &optimizer{
		m:       m,
		opt:     opt,
		arena:   newArena(len(m.pix), workers*4),
		workers: workers,
		seed:    seed,
		byID:    make(map[int]*branch),
		nextID:  1,
		best:    math.MaxFloat64,
	}
	for _, s := range seeds {
		o.createBranch(o.nextID, s)
		o.nextID++
	}
	return o
}

func (b *branch) add(s *Solution, best *float64) {
	b.generation++

	score := s.Score()
	i := sort.Search(len(b.solutions), func(i int) bool {
		return b.solutions[i].Score() > score
	})
	b.solutions = append(b.solutions, nil)
	copy(b.solutions[i+1:], b.solutions[i:])
	b.solutions[i] = s

	if len(b.solutions) > poolSize {
		b.solutions = b.solutions[:poolSize]
	}

	if score < b.best {
		b.best = score
		if score < *best {
			*best = score
		}
	}
}

func (b *branch) random(r *rand.Rand) *Solution {
	return b.solutions[r.Intn(len(b.solutions))]
}

// less ranks branches for eviction, the last one sorted is dropped
func (o *optimizer) less(a, b *branch) bool {
	if a.best == b.best {
		return a.generation < b.generation
	}
	// The branch holding the overall best is never dropped
	if a.best == o.best {
		return true
	}
	if b.best == o.best {
		return false
	}
	if a.generation/1000 == b.generation/1000 {
		return a.best < b.best
	}
	// Otherwise young branches get a chance to catch up
	return a.generation < b.generation
}

// createBranch must be called with mu held
func (o *optimizer) createBranch(id int, s *Solution) {
	if len(o.branches) >= maxBranches {
		sort.SliceStable(o.branches, func(i, j int) bool {
			return o.less(o.branches[i], o.branches[j])
		})
		last := o.branches[len(o.branches)-1]
		o.branches = o.branches[:len(o.branches)-1]
		delete(o.byID, last.id)
		if o.current >= len(o.branches) {
			o.current = 0
		}
	}

	b := &branch{
		id:   id,
		best: math.MaxFloat64,
	}
	b.add(s, &o.best)
	o.branches = append(o.branches, b)
	o.byID[b.id] = b
}

func (o *optimizer) addSolution(id int, s *Solution) {
	if !s.Complete() {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return
	}

	if b, ok := o.byID[id]; ok {
		b.add(s, &o.best)
		return
	}

	// Crossovers start a new branch with the id they were given
	o.createBranch(id, s)
}

func (o *optimizer) newTask(r *rand.Rand) task {
	o.mu.Lock()
	defer o.mu.Unlock()

	if r.Int()&0x1f != 0 {
		if o.current >= len(o.branches) {
			o.current = 0
		}
		b := o.branches[o.current]
		o.current = (o.current + 1) % len(o.branches)
		return task{
			branch:   b.id,
			source:   b.random(r),
			mutation: r.Int()&3 + 1,
		}
	}

	b1 := o.branches[r.Intn(len(o.branches))]
	b2 := o.branches[r.Intn(len(o.branches))]
	t := task{
		branch: o.nextID,
		source: b1.random(r),
		other:  b2.random(r),
	}
	o.nextID++
	return t
}

func (o *optimizer) mutate(r *rand.Rand, t task) *Solution {
	cells := t.source.snapshot()
	s := newSolution(o.m, o.opt, o.arena.get())

	for i, n := 0, len(cells); i < n && i < t.mutation; i++ {
		for _, m := range take(r, &cells).mutate(r) {
			s.add(m)
		}
	}

	for _, c := range cells {
		if s.Complete() {
			break
		}
		s.add(c)
	}

	return s
}

func (o *optimizer) crossover(r *rand.Rand, t task) *Solution {
	a, b := t.source.snapshot(), t.other.snapshot()
	s := newSolution(o.m, o.opt, o.arena.get())

	for len(a) > 0 && len(b) > 0 && !s.Complete() {
		if r.Intn(2) == 0 {
			s.add(take(r, &a))
		} else {
			s.add(take(r, &b))
		}
	}

	return s
}

// take removes a random cell from cells
func take(r *rand.Rand, cells *[]Cell) Cell {
	j := r.Intn(len(*cells))
	c := (*cells)[j]
	*cells = append((*cells)[:j], (*cells)[j+1:]...)
	return c
}

func (o *optimizer) execute(r *rand.Rand, t task) {
	var s *Solution
	if t.other != nil {
		s = o.crossover(r, t)
	} else {
		s = o.mutate(r, t)
	}

	// The coverage buffer goes back to the arena, pooled solutions only
	// need their cells and score
	s.Score()
	o.arena.put(s.coverage)
	s.coverage = nil

	o.addSolution(t.branch, s)
}

func (o *optimizer) worker(ctx context.Context, id int, tasks <-chan task, budget int64, cancel context.CancelFunc) {
	r := rand.New(rand.NewSource(o.seed + int64(id) + 1))
	for t := range tasks {
		if ctx.Err() != nil {
			continue
		}
		o.execute(r, t)
		if n := atomic.AddInt64(&o.finished, 1); budget > 0 && n >= budget {
			cancel()
		}
	}
}

// run searches until budget tasks have completed or ctx is cancelled and
// returns the cells of the best solution of all branches. Tasks still running
// after the grace period are abandoned and their results dropped.
func (o *optimizer) run(ctx context.Context, budget int64) []Cell {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make(chan task, o.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			o.worker(ctx, id, tasks, budget, cancel)
		}(i)
	}

	r := rand.New(rand.NewSource(o.seed))
loop:
	for {
		t := o.newTask(r)
		select {
		case tasks <- t:
		case <-ctx.Done():
			break loop
		}
	}
	close(tasks)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(gracePeriod):
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = true

	if best := o.bestSolution(); best != nil {
		return best.snapshot()
	}
	return nil
}

// bestSolution must be called with mu held
func (o *optimizer) bestSolution() *Solution {
	var best *Solution
	for _, b := range o.branches {
		if len(b.solutions) == 0 {
			continue
		}
		if s := b.solutions[0]; best == nil || s.Score() < best.Score() {
			best = s
		}
	}
	return best
}

func (o *optimizer) iterations() int64 {
	return atomic.LoadInt64(&o.finished)
}
