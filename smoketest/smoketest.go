package smoketest

import (
	"context"
	"math/rand"
	"net/http"
	"sort"
	"time"

	"github.com/aukilabs/dagaz/spatial"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/golang/geo/r3"
	"github.com/segmentio/encoding/json"
	"golang.org/x/sync/errgroup"
)

const (
	ErrTypeSmokeTestFailed = "smoke_test_failed"

	indexName = "smoke_test"
)

type Options struct {
	MinNodes int
	MaxNodes int

	// The options of the tested indexes. They should be the ones used to
	// create the scene indexes.
	IndexOptions []spatial.Option

	Objects int
	Queries int
	Runs    int
	Seed    int64
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MinNodes == 0 && o.MaxNodes == 0 {
		o.MinNodes = spatial.DefaultMinNodes
		o.MaxNodes = spatial.DefaultMaxNodes
	}
	if o.Objects <= 0 {
		o.Objects = 500
	}
	if o.Queries <= 0 {
		o.Queries = 50
	}
	if o.Runs <= 0 {
		o.Runs = 4
	}
	return o
}

// Step is the outcome of a phase of a smoke test run.
type Step struct {
	Run      int           `json:"run"`
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

type Results struct {
	Passed   bool          `json:"passed"`
	Steps    []Step        `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// Run exercises fresh spatial indexes with random boxes and checks that every
// operation returns what a brute-force scan would. Runs are independent and
// executed concurrently; the first failing run cancels the others.
func Run(ctx context.Context, opts Options) Results {
	opts = opts.withDefaults()
	start := time.Now()

	if opts.Timeout > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	steps := make([][]Step, opts.Runs)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Runs; i++ {
		g.Go(func() error {
			r := run{
				id:   i,
				opts: opts,
				rnd:  rand.New(rand.NewSource(opts.Seed + int64(i))),
			}
			err := r.do(ctx)
			steps[i] = r.steps
			return err
		})
	}
	err := g.Wait()

	res := Results{
		Passed:   err == nil,
		Duration: time.Since(start),
	}
	for _, s := range steps {
		res.Steps = append(res.Steps, s...)
	}
	return res
}

type run struct {
	id    int
	opts  Options
	rnd   *rand.Rand
	steps []Step

	index *spatial.Index[int]
	boxes []spatial.BoundingBox
	ids   []uint32
}

func (r *run) do(ctx context.Context) error {
	phases := []struct {
		name string
		fn   func(context.Context) error
	}{
		{name: "create", fn: r.create},
		{name: "insert", fn: r.insert},
		{name: "lookup", fn: r.lookup},
		{name: "query", fn: r.query},
		{name: "remove", fn: r.remove},
	}

	for _, p := range phases {
		start := time.Now()
		err := p.fn(ctx)
		if err == nil {
			err = ctx.Err()
		}

		step := Step{
			Run:      r.id,
			Name:     p.name,
			Passed:   err == nil,
			Duration: time.Since(start),
		}
		if err != nil {
			step.Error = err.Error()
		}
		r.steps = append(r.steps, step)

		if err != nil {
			return errors.New("smoke test step failed").
				WithType(ErrTypeSmokeTestFailed).
				WithTag("run", r.id).
				WithTag("step", p.name).
				Wrap(err)
		}
	}
	return nil
}

func (r *run) create(ctx context.Context) error {
	opts := append([]spatial.Option{spatial.WithName(indexName)}, r.opts.IndexOptions...)
	index, err := spatial.New[int](r.opts.MinNodes, r.opts.MaxNodes, opts...)
	if err != nil {
		return err
	}
	r.index = index
	return nil
}

func (r *run) insert(ctx context.Context) error {
	r.boxes = make([]spatial.BoundingBox, r.opts.Objects)
	r.ids = make([]uint32, r.opts.Objects)

	for i := range r.boxes {
		if i%64 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}

		r.boxes[i] = r.randomBox(100, 5)
		r.ids[i] = r.index.Insert(i, r.boxes[i])
	}

	if r.index.Len() != len(r.boxes) {
		return errors.Newf("index holds %d entries instead of %d", r.index.Len(), len(r.boxes))
	}
	return r.index.Validate()
}

func (r *run) lookup(ctx context.Context) error {
	for i, id := range r.ids {
		v, ok := r.index.Get(id, r.boxes[i])
		if !ok {
			return errors.New("inserted entry not found").WithTag("id", id)
		}
		if v != i {
			return errors.New("inserted entry has a wrong value").
				WithTag("id", id).
				WithTag("value", v).
				WithTag("expected_value", i)
		}
	}
	return nil
}

func (r *run) query(ctx context.Context) error {
	for q := 0; q < r.opts.Queries; q++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		area := r.randomBox(100, 30)

		got := r.index.Query(area)
		sort.Ints(got)

		var expected []int
		for i, b := range r.boxes {
			if b.Intersects(area) {
				expected = append(expected, i)
			}
		}

		if len(got) != len(expected) {
			return errors.New("query returned a wrong number of entries").
				WithTag("area", area.String()).
				WithTag("count", len(got)).
				WithTag("expected_count", len(expected))
		}
		for i := range got {
			if got[i] != expected[i] {
				return errors.New("query returned a wrong entry").
					WithTag("area", area.String()).
					WithTag("value", got[i]).
					WithTag("expected_value", expected[i])
			}
		}
	}
	return nil
}

func (r *run) remove(ctx context.Context) error {
	for i := 1; i < len(r.ids); i++ {
		if !r.index.Remove(r.ids[i], r.boxes[i]) {
			return errors.New("removing entry failed").WithTag("id", r.ids[i])
		}

		if i%64 == 0 {
			if err := r.index.Validate(); err != nil {
				return err
			}
		}
	}

	if err := r.index.Validate(); err != nil {
		return err
	}
	if r.index.Len() != 1 || r.index.Height() != 1 {
		return errors.New("index did not shrink to a single leaf").
			WithTag("len", r.index.Len()).
			WithTag("height", r.index.Height())
	}
	if _, ok := r.index.Get(r.ids[0], r.boxes[0]); !ok {
		return errors.New("remaining entry not found").WithTag("id", r.ids[0])
	}
	return nil
}

func (r *run) randomBox(maxStart, maxWidth float64) spatial.BoundingBox {
	lo := r3.Vector{
		X: r.rnd.Float64() * maxStart,
		Y: r.rnd.Float64() * maxStart,
		Z: r.rnd.Float64() * maxStart,
	}
	size := r3.Vector{
		X: 0.01 + r.rnd.Float64()*maxWidth,
		Y: 0.01 + r.rnd.Float64()*maxWidth,
		Z: 0.01 + r.rnd.Float64()*maxWidth,
	}
	return spatial.NewBoundingBox(lo, lo.Add(size))
}

type smokeTestRequest struct {
	Objects int   `json:"objects"`
	Queries int   `json:"queries"`
	Runs    int   `json:"runs"`
	Seed    int64 `json:"seed"`
}

// HandleSmokeTest runs a smoke test and responds with its results. The request
// body can override the number of objects, queries and runs, and the random
// seed.
func HandleSmokeTest(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req smokeTestRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				logs.Warn(errors.New("decoding smoke test request failed").Wrap(err))
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}

		runOpts := opts
		if req.Objects > 0 {
			runOpts.Objects = req.Objects
		}
		if req.Queries > 0 {
			runOpts.Queries = req.Queries
		}
		if req.Runs > 0 {
			runOpts.Runs = req.Runs
		}
		if req.Seed != 0 {
			runOpts.Seed = req.Seed
		} else if runOpts.Seed == 0 {
			runOpts.Seed = time.Now().UnixNano()
		}

		res := Run(r.Context(), runOpts)

		l := logs.WithTag("passed", res.Passed).
			WithTag("seed", runOpts.Seed).
			WithTag("duration", res.Duration)
		if res.Passed {
			l.Info("smoke test passed")
		} else {
			l.Warn(errors.New("smoke test failed").WithType(ErrTypeSmokeTestFailed))
		}

		b, err := json.Marshal(res)
		if err != nil {
			logs.Warn(errors.New("encoding smoke test results failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(b)
	}
}
