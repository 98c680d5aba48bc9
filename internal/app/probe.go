package app

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/calib-hub/condfetch/internal/config"
	"github.com/calib-hub/condfetch/internal/logger"
	"github.com/calib-hub/condfetch/pkg/condb"
)

// ProbeOptions controls the randomized fetch probe.
type ProbeOptions struct {
	Bound int   // upper end of the probed [0, Bound] interval, seconds
	Calls int   // number of fetch calls spread over the interval
	Seed  int64 // random source seed
	Once  bool  // generate one token set and reuse it for every call
}

func (o ProbeOptions) normalized() ProbeOptions {
	if o.Bound <= 0 {
		o.Bound = 100
	}
	if o.Calls <= 0 {
		o.Calls = int(math.Ceil(float64(o.Bound) / 10))
	}
	if o.Seed == 0 {
		o.Seed = 12345
	}
	return o
}

// Tokens is one randomly generated probe identity: the tag, domain, and
// timestamp to query, and the payload name the service is expected to
// answer with.
type Tokens struct {
	Timestamp uint64
	Tag       string
	Domain    string
	Payload   string
}

// Probe exercises payload IOV fetches against a live service at randomized
// times, verifying each response resolves to the expected payload path.
type Probe struct {
	cfg    *config.Profile
	client *condb.Client
	log    logger.Logger
	out    io.Writer
	opts   ProbeOptions
}

// NewProbe builds a probe runtime writing its records to out.
func NewProbe(cfg *config.Profile, client *condb.Client, log logger.Logger, out io.Writer, opts ProbeOptions) (*Probe, error) {
	if cfg == nil {
		return nil, fmt.Errorf("profile must not be nil")
	}
	if client == nil {
		return nil, fmt.Errorf("client must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Probe{cfg: cfg, client: client, log: log, out: out, opts: opts.normalized()}, nil
}

// SplitInterval splits the closed interval [0, b] into segments of integer
// length cut at n distinct random points. The returned segments sum to b.
func SplitInterval(b, n int, rng *rand.Rand) ([]int, error) {
	if b <= 0 || n <= 0 || n > b+1 {
		return nil, fmt.Errorf("interval split requires 0 < n <= b+1, got b=%d n=%d", b, n)
	}

	indices := make([]int, b+1)
	for i := range indices {
		indices[i] = i
	}

	cuts := make([]int, 0, n)
	for i := 0; i < n; i++ {
		j := rng.Intn(len(indices))
		cuts = append(cuts, indices[j])
		indices = append(indices[:j], indices[j+1:]...)
	}
	sort.Ints(cuts)

	segments := make([]int, 0, n+1)
	prev := 0
	for _, cut := range cuts {
		segments = append(segments, cut-prev)
		prev = cut
	}
	if prev != b {
		segments = append(segments, b-prev)
	}
	return segments, nil
}

// RandomTokens draws a probe identity from the given inclusive ranges.
func RandomTokens(tagRange, domRange [2]int, tstRange [2]uint64, rng *rand.Rand) (Tokens, error) {
	if tagRange[0] > tagRange[1] || domRange[0] > domRange[1] || tstRange[0] > tstRange[1] {
		return Tokens{}, fmt.Errorf("token ranges must satisfy a <= b")
	}

	timestamp := tstRange[0] + uint64(rng.Int63n(int64(tstRange[1]-tstRange[0]+1)))
	tagIndex := tagRange[0] + rng.Intn(tagRange[1]-tagRange[0]+1)
	domIndex := domRange[0] + rng.Intn(domRange[1]-domRange[0]+1)

	return Tokens{
		Timestamp: timestamp,
		Tag:       fmt.Sprintf("Tag_%d", tagIndex),
		Domain:    fmt.Sprintf("Domain_%d", domIndex),
		Payload:   fmt.Sprintf("Payload_%d_Commit_%d_Domain_%d", timestamp, tagIndex, domIndex),
	}, nil
}

// Default token ranges probed against the test deployment.
var (
	probeTagRange = [2]int{17, 19}
	probeDomRange = [2]int{5, 10}
	probeTstRange = [2]uint64{300, 301}
)

// Run executes the probe loop until all segments are consumed or the
// context is cancelled.
func (p *Probe) Run(ctx context.Context) error {
	rng := rand.New(rand.NewSource(p.opts.Seed)) //nolint:gosec // reproducible probe schedule

	segments, err := SplitInterval(p.opts.Bound, p.opts.Calls, rng)
	if err != nil {
		return err
	}
	sum := 0
	for _, s := range segments {
		sum += s
	}
	if sum != p.opts.Bound {
		return fmt.Errorf("interval split lost coverage: got %d, want %d", sum, p.opts.Bound)
	}

	if p.cfg.Verbosity > 0 {
		fmt.Fprintln(p.out, "time, duration, wait, byte_count, response_code, path, error_code")
	}

	var tk Tokens
	generate := true

	for _, segment := range segments {
		if err := sleepCtx(ctx, time.Duration(segment)*time.Second); err != nil {
			return err
		}

		if generate {
			tk, err = RandomTokens(probeTagRange, probeDomRange, probeTstRange, rng)
			if err != nil {
				return err
			}
			if p.opts.Once {
				generate = false
			}
		}

		p.runOnce(ctx, tk, segment)
	}
	return nil
}

// runOnce performs one timed fetch and reports the outcome.
func (p *Probe) runOnce(ctx context.Context, tk Tokens, waited int) {
	wallStart := time.Now()
	result, err := p.client.FetchResult(ctx, tk.Tag, tk.Domain, tk.Timestamp)
	elapsed := time.Since(wallStart)

	expected := p.cfg.PathPrefix() + "/" + tk.Payload
	errorCode := 0
	switch {
	case err != nil:
		p.log.ErrorObj("probe fetch failed", "error", err)
		errorCode = 3
	case len(result.Paths) != 1:
		p.log.ErrorObj("probe expected a single payload", "paths", result.Paths)
		errorCode = 1
	case result.Paths[0] != expected:
		p.log.ErrorObj("probe payload mismatch", "mismatch", map[string]any{
			"want": expected,
			"got":  result.Paths[0],
		})
		errorCode = 2
	}

	path := ""
	if errorCode == 0 {
		path = result.Paths[0]
	}

	if p.cfg.Verbosity > 1 {
		fmt.Fprintf(p.out, "OK in %.3f ms after %d s %d B %q\n",
			float64(elapsed.Microseconds())/1000, waited, result.ByteCount, path)
	} else if p.cfg.Verbosity > 0 {
		fmt.Fprintf(p.out, "%d, %.3f, %d, %d, %d, %q, %d\n",
			wallStart.Unix(), float64(elapsed.Microseconds())/1000, waited,
			result.ByteCount, result.ResponseCode, path, errorCode)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
