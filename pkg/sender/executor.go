package sender

import (
	"context"
	"time"

	"tx-sender-sol/pkg/batch"
	"tx-sender-sol/pkg/fees"
	"tx-sender-sol/pkg/logger"
	"tx-sender-sol/pkg/tx"
	"tx-sender-sol/pkg/types"
)

// BatchOutcome 一批的执行结果，按完成顺序推送
type BatchOutcome struct {
	Index   int      // 批在规划中的序号
	JobIDs  []string // 批内任务 ID
	Receipt *Receipt // 管线回执，取消时可能为 nil
	Err     error
}

// ExecutorOptions 批执行参数
type ExecutorOptions struct {
	InterBatchDelay time.Duration // 批间固定延迟，尊重节点限流
	StopOnFailure   bool          // 某批终局失败后不再执行后续批
}

// BatchRequest 整份规划共用的发送参数
type BatchRequest struct {
	Payer   types.Pubkey
	Tables  []tx.AddressTable
	Tier    fees.Tier
	Program types.Pubkey // 费率维度目标程序，零值取各批首条指令的程序
}

// Executor 顺序执行一份打包规划：每批一笔交易经由管线发送，
// 批间留固定间隔，进度经由调用方拉取的 channel 推送。
type Executor struct {
	pipeline *Pipeline
	opts     ExecutorOptions
}

func NewExecutor(p *Pipeline, opts ExecutorOptions) *Executor {
	return &Executor{pipeline: p, opts: opts}
}

// Start 启动执行并立即返回进度通道。批严格串行，每批完成后推送一条
// BatchOutcome；全部完成或取消后关闭通道。通道容量等于批数，
// 消费侧滞后不会阻塞执行。
//
// 取消语义：批与批之间的取消立即生效；批内取消由管线处理——
// 已提交的字节只停轮询，不会被当作「未发生」。
// 含非幂等任务的批由管线保证不在结果歧义窗口内重建重发。
func (e *Executor) Start(ctx context.Context, plan *batch.Plan, base BatchRequest) <-chan BatchOutcome {
	out := make(chan BatchOutcome, len(plan.Batches))

	go func() {
		defer close(out)

		for i, b := range plan.Batches {
			if i > 0 && e.opts.InterBatchDelay > 0 {
				if err := sleepCtx(ctx, e.opts.InterBatchDelay); err != nil {
					out <- BatchOutcome{Index: i, JobIDs: jobIDs(b), Err: err}
					return
				}
			}
			if err := ctx.Err(); err != nil {
				out <- BatchOutcome{Index: i, JobIDs: jobIDs(b), Err: err}
				return
			}

			if b.AtCapacity {
				logger.Warnf("[sender] 批 %d 计算占用超过 90%%（%d 单元），提交前请留意",
					i, b.ComputeUnits)
			}

			rec, err := e.pipeline.Send(ctx, Request{
				Payer:        base.Payer,
				Instructions: b.Instructions(),
				Tables:       base.Tables,
				Program:      base.Program,
				Tier:         base.Tier,
				Idempotent:   b.Idempotent(),
			})
			out <- BatchOutcome{Index: i, JobIDs: jobIDs(b), Receipt: rec, Err: err}

			if err != nil && e.opts.StopOnFailure {
				logger.Warnf("[sender] 批 %d 失败，停止后续 %d 批: %v", i, len(plan.Batches)-i-1, err)
				return
			}
		}
	}()

	return out
}

func jobIDs(b batch.PlannedBatch) []string {
	ids := make([]string, 0, len(b.Jobs))
	for _, j := range b.Jobs {
		ids = append(ids, j.ID)
	}
	return ids
}
