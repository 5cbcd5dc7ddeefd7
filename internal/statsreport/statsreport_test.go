package statsreport_test

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrown-smtsim/appmgr/internal/appmgr"
	"github.com/jbrown-smtsim/appmgr/internal/eventqueue"
	"github.com/jbrown-smtsim/appmgr/internal/simcollab"
	"github.com/jbrown-smtsim/appmgr/internal/statsreport"
)

func buildCoordinator(t *testing.T) *appmgr.Coordinator {
	t.Helper()
	ref := simcollab.NewReference()
	collab := simcollab.Collaborators{
		Ctx: ref, Bus: ref, Cache: ref, Inject: ref, TLB: ref, RStack: ref, Dirty: ref,
	}
	queue := eventqueue.New()
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1})
	coord, err := appmgr.New(appmgr.Config{ThreadSwapinCyc: 2, ThreadSwapoutCyc: 2}, collab, queue, handler)
	require.NoError(t, err)
	require.NoError(t, coord.RegisterIdleCtx(0, 0))
	coord.SetupDone()
	require.NoError(t, coord.AddReadyApp(0, 1))
	return coord
}

func TestWriteProducesNonEmptyCSVSections(t *testing.T) {
	coord := buildCoordinator(t)

	var buf bytes.Buffer
	err := statsreport.Write(&buf, "run1", coord.View())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "app,run1,1")
	assert.Contains(t, out, "app_timing,run1,1,deact_halt")
}

func TestWriteCoreSectionListsRegisteredCores(t *testing.T) {
	coord := buildCoordinator(t)

	var buf bytes.Buffer
	require.NoError(t, statsreport.Write(&buf, "run2", coord.View()))
	assert.Contains(t, buf.String(), "core,run2,0")
}
