package flow

import (
	"fmt"
	"sync"
	"time"

	"github.com/teris-io/shortid"
)

// idGenerator produces short, unique-enough ids for default flow ids and
// worker names (including converge-group members). Adapted from dipipe's workerIdGen: same
// shape, generalized from worker names to the flow domain.
type idGenerator struct {
	mu sync.Mutex
	sh *shortid.Shortid
}

func newIDGenerator() (*idGenerator, error) {
	sh, err := shortid.New(1, shortid.DefaultABC, uint64(time.Now().UnixNano()))
	if err != nil {
		return nil, fmt.Errorf("flow: newIDGenerator: failed to instantiate a shortid generator: %w", err)
	}
	return &idGenerator{sh: sh}, nil
}

// next returns a fresh id. shortid.Shortid isn't documented as
// concurrency-safe, so calls are serialized.
func (g *idGenerator) next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := g.sh.Generate()
	if err != nil {
		return "", fmt.Errorf("flow: idGenerator: next: failed to generate a unique id: %w", err)
	}
	return id, nil
}
