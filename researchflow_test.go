package researchflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/studypilot/researchflow"
	"github.com/studypilot/researchflow/research"
	"github.com/studypilot/researchflow/testutil/mocks"
	"github.com/studypilot/researchflow/types"
)

func TestNew_RequiresBackend(t *testing.T) {
	_, err := researchflow.New(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend")
}

func TestNew_RunsSingleNodeResearch(t *testing.T) {
	svc, err := researchflow.New(mocks.NewSearchBackend("scripted"),
		researchflow.WithLogger(zaptest.NewLogger(t)),
		researchflow.WithAgentTimeout(2*time.Second))
	require.NoError(t, err)
	t.Cleanup(svc.Shutdown)

	runID, err := svc.StartResearch(context.Background(), research.StartRequest{Topic: "tidal energy"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := svc.GetResearchStatus(runID)
		return err == nil && status.Status == types.NodeCompleted
	}, 10*time.Second, 25*time.Millisecond)

	status, err := svc.GetResearchStatus(runID)
	require.NoError(t, err)
	assert.Equal(t, "tidal energy", status.Topic)
	assert.Equal(t, 1, status.TotalNodes)
	assert.Equal(t, 1, status.CompletedNodes)
}

func TestNew_RecursesWithSynthesizer(t *testing.T) {
	svc, err := researchflow.New(mocks.NewSearchBackend("scripted"),
		researchflow.WithSynthesizer(mocks.NewSynthesizer(2)),
		researchflow.WithMaxDepth(2),
		researchflow.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(svc.Shutdown)

	runID, err := svc.StartResearch(context.Background(), research.StartRequest{Topic: "photosynthesis"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := svc.GetResearchStatus(runID)
		return err == nil && status.Status == types.NodeCompleted
	}, 15*time.Second, 25*time.Millisecond)

	status, err := svc.GetResearchStatus(runID)
	require.NoError(t, err)
	assert.Greater(t, status.TotalNodes, 1)
	assert.Equal(t, status.TotalNodes, status.CompletedNodes)
}
