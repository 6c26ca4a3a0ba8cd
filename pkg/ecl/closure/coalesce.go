package closure

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/snomedtools/goecl/pkg/ecl/backend"
)

// buildState tracks one in-flight or completed Build call, guarded by once
// so concurrent callers building the same snapshot key at the same moment
// wait on a single build rather than racing to build it twice.
type buildState struct {
	once    sync.Once
	closure *Closure
	err     error
}

var inFlight = xsync.NewMap[string, *buildState]()

// BuildCoalesced is Build, except that concurrent calls sharing the same
// key are coalesced onto a single build: whichever goroutine arrives first
// runs Build, and every other concurrent caller for that key waits for and
// receives its result instead of starting a redundant topological pass.
// key identifies the backend snapshot being built (e.g. a release tag or
// a content hash); it is not the backend value itself, since a Backend
// implementation is not required to be comparable. The entry is not
// retained once built, so a later call with the same key runs a fresh
// build rather than returning a stale cached one.
func BuildCoalesced(ctx context.Context, key string, source backend.Backend) (*Closure, error) {
	state, _ := inFlight.LoadOrCompute(key, func() (*buildState, bool) {
		return &buildState{}, false
	})

	state.once.Do(func() {
		defer inFlight.Delete(key)
		state.closure, state.err = Build(ctx, source)
	})

	return state.closure, state.err
}
