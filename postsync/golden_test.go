package postsync

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// The call trace against the target is part of the engine's contract: a
// resync must look the post up again, update it in place and leave the
// publication state alone.
func TestSyncPostCallTrace(t *testing.T) {
	s, _, target := newTestSyncer(testPost(42))
	ctx := context.Background()

	var buf bytes.Buffer
	for run := 1; run <= 2; run++ {
		target.ResetCalls()
		_, err := s.SyncPost(ctx, 42, clock())
		require.NoError(t, err)
		fmt.Fprintf(&buf, "# run %d\n", run)
		for _, call := range target.Calls() {
			fmt.Fprintln(&buf, call)
		}
	}

	g := goldie.New(t)
	g.Assert(t, "create_then_resync", buf.Bytes())
}
