package mq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tx-sender-sol/internal/consts"
	"tx-sender-sol/internal/utils"
	"tx-sender-sol/pkg/sender"
	"tx-sender-sol/pkg/types"
)

func testSignature(seed byte) types.Signature {
	var sig types.Signature
	for i := range sig {
		sig[i] = seed + byte(i)
	}
	return sig
}

func confirmedReceipt(seed byte) *sender.Receipt {
	return &sender.Receipt{
		State:     sender.StateConfirmed,
		Signature: testSignature(seed),
		Slot:      123_456,
		Attempts:  2,
		PriceUsed: 35_000,
		UnitLimit: 92_000,
		Submitted: true,
		Latency:   1200 * time.Millisecond,
	}
}

func TestOutcomeEvent_EncodeDecode(t *testing.T) {
	ev := BuildOutcomeEvent("mainnet", confirmedReceipt(7))
	assert.Equal(t, consts.ChainIDSolana, ev.ChainID)
	assert.Equal(t, uint8(sender.StateConfirmed), ev.State)
	assert.Equal(t, uint64(1200), ev.LatencyMs)
	assert.Equal(t, uint8(0), ev.FailKind, "成功回执不带失败原因")

	data, err := EncodeOutcome(ev)
	require.NoError(t, err)

	got, err := DecodeOutcome(data)
	require.NoError(t, err)
	assert.Equal(t, ev, got, "事件应完整还原")

	// 类型前缀不符时拒绝解码
	bad, err := utils.EncodeEvent(99, ev)
	require.NoError(t, err)
	_, err = DecodeOutcome(bad)
	assert.Error(t, err)
}

func TestOutcomeEvent_CarriesFailure(t *testing.T) {
	rec := confirmedReceipt(9)
	rec.State = sender.StateFailed
	rec.Failure = &sender.Failure{
		Kind:    sender.KindRejected,
		Reason:  "program error: custom 6001",
		Attempt: 1,
	}

	ev := BuildOutcomeEvent("testnet", rec)
	assert.Equal(t, uint8(sender.KindRejected), ev.FailKind)
	assert.Equal(t, "program error: custom 6001", ev.FailMsg)

	data, err := EncodeOutcome(ev)
	require.NoError(t, err)
	got, err := DecodeOutcome(data)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestBuildOutcomeJobs_PartitionBySignature(t *testing.T) {
	events := []OutcomeEvent{
		BuildOutcomeEvent("mainnet", confirmedReceipt(1)),
		BuildOutcomeEvent("mainnet", confirmedReceipt(2)),
		BuildOutcomeEvent("mainnet", confirmedReceipt(1)), // 同签名
	}

	jobs, err := BuildOutcomeJobs("tx-outcome", 8, events)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	for _, j := range jobs {
		assert.Equal(t, "tx-outcome", j.Topic)
		assert.GreaterOrEqual(t, j.Partition, int32(0))
		assert.Less(t, j.Partition, int32(8))

		got, err := DecodeOutcome(j.Value)
		require.NoError(t, err)
		assert.Equal(t, uint64(123_456), got.Slot)
	}

	assert.Equal(t, jobs[0].Partition, jobs[2].Partition, "同一交易的事件必须落在同一分区")
}
