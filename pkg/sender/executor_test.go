package sender

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tx-sender-sol/internal/consts"
	"tx-sender-sol/pkg/batch"
	"tx-sender-sol/pkg/fees"
	"tx-sender-sol/pkg/ledger"
	"tx-sender-sol/pkg/tx"
	"tx-sender-sol/pkg/types"
)

func transferIns(payer, dest types.Pubkey) tx.Instruction {
	return tx.Instruction{
		ProgramID: consts.SystemProgram,
		Accounts: []tx.AccountMeta{
			tx.WritableMeta(payer, true),
			tx.WritableMeta(dest, false),
		},
		Data: []byte{2, 0, 0, 0, 100, 0, 0, 0, 0, 0, 0, 0},
	}
}

// twoBatchPlan 两个任务各占一批：计算上限 300k，每任务 200k
func twoBatchPlan(t *testing.T, payer types.Pubkey) *batch.Plan {
	t.Helper()
	jobs := []batch.Job{
		{ID: "job-0", Instructions: []tx.Instruction{transferIns(payer, pk(0xE0))}, ComputeUnits: 200_000, Idempotent: true},
		{ID: "job-1", Instructions: []tx.Instruction{transferIns(payer, pk(0xE1))}, ComputeUnits: 200_000, Idempotent: true},
	}
	plan, err := batch.BuildPlan(jobs, batch.ArrivalOrder, batch.Limits{MaxComputeUnits: 300_000})
	require.NoError(t, err)
	require.Len(t, plan.Batches, 2)
	return plan
}

func collect(ch <-chan BatchOutcome) []BatchOutcome {
	var out []BatchOutcome
	for oc := range ch {
		out = append(out, oc)
	}
	return out
}

func TestExecutor_RunsPlanInOrder(t *testing.T) {
	rig := newTestRig()
	plan := twoBatchPlan(t, rig.payer)

	ex := NewExecutor(rig.pipeline(testOptions()), ExecutorOptions{})
	outcomes := collect(ex.Start(context.Background(), plan, BatchRequest{
		Payer: rig.payer,
		Tier:  fees.TierNormal,
	}))

	require.Len(t, outcomes, 2, "每批一条进度，全部完成后通道关闭")
	for i, oc := range outcomes {
		assert.Equal(t, i, oc.Index, "进度按批序号推送")
		require.NoError(t, oc.Err)
		require.NotNil(t, oc.Receipt)
		assert.Equal(t, StateConfirmed, oc.Receipt.State)
	}
	assert.Equal(t, []string{"job-0"}, outcomes[0].JobIDs)
	assert.Equal(t, []string{"job-1"}, outcomes[1].JobIDs)
	assert.Equal(t, 2, rig.led.submitCalls, "批严格串行，每批恰好一笔交易")
}

func TestExecutor_StopOnFailure(t *testing.T) {
	rig := newTestRig()
	rig.led.finalStatus = ledger.SubmissionStatus{State: ledger.StateFailed, Reason: "program error: custom 42"}
	plan := twoBatchPlan(t, rig.payer)

	ex := NewExecutor(rig.pipeline(testOptions()), ExecutorOptions{StopOnFailure: true})
	outcomes := collect(ex.Start(context.Background(), plan, BatchRequest{Payer: rig.payer}))

	require.Len(t, outcomes, 1, "首批失败后不再执行后续批")
	require.Error(t, outcomes[0].Err)
	f, ok := AsFailure(outcomes[0].Err)
	require.True(t, ok)
	assert.Equal(t, KindRejected, f.Kind)
	assert.Equal(t, 1, rig.led.submitCalls)
}

func TestExecutor_ContinuesPastFailureByDefault(t *testing.T) {
	rig := newTestRig()
	rig.led.finalStatus = ledger.SubmissionStatus{State: ledger.StateFailed, Reason: "program error: custom 42"}
	plan := twoBatchPlan(t, rig.payer)

	ex := NewExecutor(rig.pipeline(testOptions()), ExecutorOptions{})
	outcomes := collect(ex.Start(context.Background(), plan, BatchRequest{Payer: rig.payer}))

	require.Len(t, outcomes, 2)
	assert.Error(t, outcomes[0].Err)
	assert.Error(t, outcomes[1].Err)
	assert.Equal(t, 2, rig.led.submitCalls)
}

func TestExecutor_CancelBetweenBatches(t *testing.T) {
	rig := newTestRig()
	plan := twoBatchPlan(t, rig.payer)

	ctx, cancel := context.WithCancel(context.Background())
	ex := NewExecutor(rig.pipeline(testOptions()), ExecutorOptions{InterBatchDelay: 80 * time.Millisecond})
	ch := ex.Start(ctx, plan, BatchRequest{Payer: rig.payer})

	first := <-ch
	require.NoError(t, first.Err)
	assert.Equal(t, 0, first.Index)
	cancel()

	second, open := <-ch
	require.True(t, open, "取消也要推送一条带错误的进度")
	assert.Equal(t, 1, second.Index)
	assert.True(t, errors.Is(second.Err, context.Canceled))
	assert.Equal(t, []string{"job-1"}, second.JobIDs)

	_, open = <-ch
	assert.False(t, open, "取消后通道必须关闭")
	assert.Equal(t, 1, rig.led.submitCalls, "被取消的批不得发出交易")
}

func TestExecutor_NonIdempotentBatchPropagates(t *testing.T) {
	// 批内含非幂等任务时，歧义窗口内不得重建重发，终局为歧义
	rig := newTestRig()
	rig.led.hashValid = false
	rig.led.confirmAfterSubmits = 99

	jobs := []batch.Job{{
		ID:           "withdraw-7",
		Instructions: []tx.Instruction{transferIns(rig.payer, pk(0xE7))},
		ComputeUnits: 50_000,
		Idempotent:   false,
	}}
	plan, err := batch.BuildPlan(jobs, batch.ArrivalOrder, batch.Limits{})
	require.NoError(t, err)

	opts := testOptions()
	opts.ConfirmTimeout = 15 * time.Millisecond

	ex := NewExecutor(rig.pipeline(opts), ExecutorOptions{})
	outcomes := collect(ex.Start(context.Background(), plan, BatchRequest{Payer: rig.payer}))

	require.Len(t, outcomes, 1)
	require.Error(t, outcomes[0].Err)
	f, ok := AsFailure(outcomes[0].Err)
	require.True(t, ok)
	assert.Equal(t, KindAmbiguous, f.Kind)
	assert.Contains(t, f.Reason, "manual check")
	assert.Equal(t, 1, rig.led.submitCalls, "非幂等批绝不重发")
}
