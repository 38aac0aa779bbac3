package sender

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tx-sender-sol/pkg/fees"
	"tx-sender-sol/pkg/ledger"
	"tx-sender-sol/pkg/logger"
	"tx-sender-sol/pkg/lookup"
	"tx-sender-sol/pkg/signer"
	"tx-sender-sol/pkg/tx"
	"tx-sender-sol/pkg/types"
)

// 管线默认参数
const (
	DefaultMaxAttempts    = 3
	DefaultRetryDelay     = 500 * time.Millisecond
	DefaultPollInterval   = 400 * time.Millisecond
	DefaultConfirmTimeout = 30 * time.Second
	DefaultNetwork        = "mainnet"
)

// Options 管线行为参数，零值字段取默认
type Options struct {
	Network          string        // 费率键的网络标签
	MaxAttempts      int           // 尝试次数预算（含首次）
	RetryDelay       time.Duration // 两次尝试之间的固定延迟
	EscalationFactor float64       // 重建时报价抬升系数，0 或 1 关闭
	SimulateFirst    bool          // 签名前预演，拒绝的交易不消耗签名与提交
	TightenUnits     bool          // 预演成功后按真实消耗收紧计算单元预算
	DisableBudget    bool          // 不注入预算指令
	PollInterval     time.Duration // 确认轮询间隔
	ConfirmTimeout   time.Duration // 单次尝试的确认窗口
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = DefaultConfirmTimeout
	}
	if o.Network == "" {
		o.Network = DefaultNetwork
	}
	return o
}

// Request 一次发送请求。
// Program 为费率维度的目标程序，零值取第一条指令的程序；
// PreSignatures 为外部已收集的签名（多签场景），管线只为其余地址请签。
type Request struct {
	Payer         types.Pubkey
	Instructions  []tx.Instruction
	Tables        []tx.AddressTable
	Program       types.Pubkey
	Tier          fees.Tier
	Idempotent    bool
	PreSignatures map[types.Pubkey]types.Signature
}

func (r Request) feeProgram() types.Pubkey {
	if !r.Program.IsZero() {
		return r.Program
	}
	return r.Instructions[0].ProgramID
}

// State 发送流程所处阶段
type State uint8

const (
	StateBuilt State = iota
	StateSimulated
	StateSigned
	StateSubmitted
	StateConfirming
	StateConfirmed
	StateFailed
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateSimulated:
		return "simulated"
	case StateSigned:
		return "signed"
	case StateSubmitted:
		return "submitted"
	case StateConfirming:
		return "confirming"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Receipt 一次发送的最终回执。
// Submitted 表示是否有字节可能已进入网络：取消或歧义终局时据此判断
// 「交易也许仍会上链」，绝不等同于「交易没有发生」。
type Receipt struct {
	State     State
	Signature types.Signature // 最后一次签出的交易签名（即交易 ID）
	Slot      uint64          // 确认所在 slot
	Attempts  int
	PriceUsed uint64 // 最后一次构建使用的报价（微单位/计算单元）
	UnitLimit uint32 // 最后一次构建申请的计算单元
	Submitted bool
	Latency   time.Duration // 最后一次尝试从提交到出结果的耗时
	Failure   *Failure      // 终局失败时的结构化原因
}

// OutcomeSink 终局回执的旁路发布（审计/监控），实现方自管超时，尽力而为
type OutcomeSink interface {
	Publish(receipt *Receipt)
}

// Pipeline 交易提交管线：构建 → （预演）→ 签名 → 提交 → 确认，
// 失败按分类决定重查、原字节重发或重建重试。
type Pipeline struct {
	opts    Options
	chain   ledger.Client
	signer  signer.Signer
	est     *fees.Estimator
	session *lookup.Session
	sink    OutcomeSink
}

func NewPipeline(opts Options, chain ledger.Client, sg signer.Signer, est *fees.Estimator) *Pipeline {
	if est == nil {
		est = fees.NewEstimator(fees.Config{})
	}
	return &Pipeline{opts: opts.withDefaults(), chain: chain, signer: sg, est: est}
}

// WithSession 挂接地址频次跟踪：每条编译出的消息都会被观察，
// 供查找表维护计划选址
func (p *Pipeline) WithSession(s *lookup.Session) *Pipeline {
	p.session = s
	return p
}

// WithSink 挂接终局回执的旁路发布
func (p *Pipeline) WithSink(sink OutcomeSink) *Pipeline {
	p.sink = sink
	return p
}

// Estimator 返回管线使用的费率估计器（供快照持久化等场景）
func (p *Pipeline) Estimator() *fees.Estimator { return p.est }

// Send 执行一次完整的提交流程，阻塞至终局或取消。
//
// 终局语义：
//   - 返回 (rec, nil)：已确认上链，rec.Slot 为确认位置。
//   - 返回 (rec, *Failure)：结构化失败，rec.Submitted 指示是否有在途字节。
//   - 返回 (rec, ctx.Err())：提交前被取消，未产生网络副作用。
//
// 提交后的取消只停止本地轮询，回执状态保持 submitted，
// 因为账本仍可能确认这笔交易。
func (p *Pipeline) Send(ctx context.Context, req Request) (*Receipt, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	key := fees.Key{Network: p.opts.Network, Program: req.feeProgram(), Tier: req.Tier}
	price := p.est.Suggest(key)
	units := p.est.SuggestUnitLimit(key)

	rec := &Receipt{State: StateBuilt}

	var (
		wire       []byte          // 当前已签名交易字节，nil 表示需要（重）构建
		wireHash   types.Blockhash // wire 绑定的 blockhash
		sig        types.Signature // wire 的交易签名（首个签名槽）
		everSigned bool
		unresolved bool  // 当前 wire 存在结果未判定的提交
		lastErr    error // 预算耗尽时上浮的最后一个失败
	)

	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		rec.Attempts = attempt

		if attempt > 1 {
			if err := sleepCtx(ctx, p.opts.RetryDelay); err != nil {
				return p.cancelled(rec, err)
			}
		}

		if wire == nil {
			// ---- 构建 ----
			if everSigned && !p.signer.Capabilities().SupportsFreshnessRefreshResign {
				return p.fail(rec, &Failure{
					Kind:    KindCapabilityUnsupported,
					Attempt: attempt,
					Reason:  "signer cannot re-sign after blockhash refresh",
				})
			}
			if attempt > 1 && p.opts.EscalationFactor > 1 {
				price = p.est.Clamp(uint64(float64(price) * p.opts.EscalationFactor))
			}

			blockhash, _, err := p.chain.LatestBlockhash(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return p.cancelled(rec, ctx.Err())
				}
				lastErr = fmt.Errorf("fetch blockhash: %w", err)
				logger.Warnf("[sender] 获取 blockhash 失败（第 %d 次尝试）: %v", attempt, err)
				continue
			}

			msg, err := p.buildMessage(req, blockhash, price, units)
			if err != nil {
				return p.failOrReturn(rec, attempt, err)
			}
			rec.State = StateBuilt
			if p.session != nil {
				p.session.ObserveMessage(msg)
			}

			// ---- 预演 ----
			if p.opts.SimulateFirst {
				res, err := p.simulate(ctx, msg)
				if err != nil {
					if ctx.Err() != nil {
						return p.cancelled(rec, ctx.Err())
					}
					if f, ok := AsFailure(err); ok {
						f.Attempt = attempt
						if f.Kind == KindFreshnessExpired {
							// 取到手就老化的 blockhash：直接重建
							lastErr = f
							continue
						}
						return p.fail(rec, f)
					}
					lastErr = err
					continue
				}
				if res.UnitsConsumed > 0 {
					p.est.RecordUnitsConsumed(key, res.UnitsConsumed)
					if p.opts.TightenUnits {
						tightened := fees.TightenUnitLimit(res.UnitsConsumed)
						if tightened != units {
							units = tightened
							msg, err = p.buildMessage(req, blockhash, price, units)
							if err != nil {
								return p.failOrReturn(rec, attempt, err)
							}
						}
					}
				}
				rec.State = StateSimulated
			}

			// ---- 签名 ----
			txn, signedBytes, err := p.signMessage(ctx, msg, req)
			if err != nil {
				return p.failOrReturn(rec, attempt, err)
			}
			wire = signedBytes
			wireHash = blockhash
			sig = txn.Signatures[0]
			everSigned = true
			unresolved = false
			rec.State = StateSigned
			rec.Signature = sig
			rec.PriceUsed = price
			rec.UnitLimit = units
		}

		// ---- 提交 ----
		submitStart := time.Now()
		got, err := p.chain.Submit(ctx, wire)
		if err != nil {
			switch classifySubmitError(err) {
			case KindFreshnessExpired:
				// 节点明确拒收，字节未进入网络
				if unresolved && !req.Idempotent {
					return p.fail(rec, &Failure{
						Kind:    KindAmbiguous,
						Attempt: attempt,
						Reason:  "prior submission outcome unknown; refusing to rebuild non-idempotent request",
						Err:     err,
					})
				}
				lastErr = &Failure{Kind: KindFreshnessExpired, Attempt: attempt, Reason: err.Error()}
				logger.Infof("[sender] blockhash 已过期，重建交易（第 %d 次尝试）", attempt)
				wire = nil
				continue
			case KindRejected:
				return p.fail(rec, &Failure{Kind: KindRejected, Attempt: attempt, Reason: err.Error(), Err: err})
			default:
				// 传输失败：字节可能已进入网络，按歧义处理，走状态轮询裁决
				rec.Submitted = true
				unresolved = true
			}
		} else {
			rec.Submitted = true
			if !got.IsZero() && got != sig {
				logger.Warnf("[sender] 节点返回签名与本地不一致: local=%s node=%s", sig, got)
			}
		}
		rec.State = StateConfirming

		// ---- 确认 ----
		st, decided, cerr := p.confirm(ctx, sig)
		latency := time.Since(submitStart)
		rec.Latency = latency

		if cerr != nil {
			// 取消：在途字节不受影响，只停止本地轮询
			f := &Failure{
				Kind:    KindAmbiguous,
				Attempt: attempt,
				Reason:  "cancelled while awaiting confirmation",
				Err:     cerr,
			}
			rec.State = StateSubmitted
			rec.Failure = f
			p.publish(rec)
			return rec, f
		}

		if !decided {
			// 确认窗口耗尽：歧义，重试决策前必须重查一次状态
			unresolved = true
			if st2, rerr := p.chain.Status(ctx, sig); rerr == nil &&
				(st2.State == ledger.StateConfirmed || st2.State == ledger.StateFailed) {
				st, decided = st2, true
			}
		}

		if decided {
			unresolved = false
			switch st.State {
			case ledger.StateConfirmed:
				return p.confirmed(rec, key, st, latency, price)
			case ledger.StateFailed:
				if expiredReason(st.Reason) {
					p.est.RecordOutcome(key, fees.Sample{
						At: time.Now(), Latency: latency,
						Outcome: fees.OutcomeDropped, PriceUsed: price,
					})
					lastErr = &Failure{Kind: KindFreshnessExpired, Attempt: attempt, Reason: st.Reason}
					logger.Infof("[sender] 交易因 blockhash 过期被丢弃，重建（第 %d 次尝试）", attempt)
					wire = nil
					continue
				}
				// 已被打包执行但程序报错：报价本身有效，结果为拒绝
				p.est.RecordOutcome(key, fees.Sample{
					At: time.Now(), Latency: latency,
					Outcome: fees.OutcomeConfirmed, PriceUsed: price,
				})
				return p.fail(rec, &Failure{Kind: KindRejected, Attempt: attempt, Reason: st.Reason})
			}
		}

		// 重查后仍无终态：记超时样本，再判定原交易死活
		p.est.RecordOutcome(key, fees.Sample{
			At: time.Now(), Latency: latency,
			Outcome: fees.OutcomeTimedOut, PriceUsed: price,
		})

		valid, verr := p.chain.IsBlockhashValid(ctx, wireHash)
		if verr == nil && !valid {
			// blockhash 已失效：不会再有新的打包。
			// 幂等请求可安全重建；非幂等请求存在「已打包但尚未观测到」的缝隙，
			// 交还调用方人工核对。
			if !req.Idempotent {
				return p.fail(rec, &Failure{
					Kind:    KindAmbiguous,
					Attempt: attempt,
					Reason:  "blockhash expired with outcome unknown; non-idempotent request requires manual check",
				})
			}
			lastErr = &Failure{Kind: KindFreshnessExpired, Attempt: attempt, Reason: "blockhash expired before confirmation"}
			wire = nil
			continue
		}

		// 原交易可能仍在窗口内：下一轮原字节重发（账本按签名去重，安全）
		lastErr = &Failure{Kind: KindAmbiguous, Attempt: attempt, Reason: "confirmation window elapsed"}
		logger.Infof("[sender] 确认窗口耗尽，原字节重发（第 %d 次尝试）: sig=%s", attempt, sig)
	}

	// ---- 预算耗尽 ----
	rec.State = StateExhausted
	if f, ok := AsFailure(lastErr); ok {
		rec.Failure = f
		p.publish(rec)
		logger.Warnf("[sender] 尝试预算耗尽: attempts=%d kind=%s", rec.Attempts, f.Kind)
		return rec, f
	}
	p.publish(rec)
	if lastErr == nil {
		lastErr = errors.New("no attempt completed")
	}
	return rec, fmt.Errorf("attempts exhausted after %d tries: %w", p.opts.MaxAttempts, lastErr)
}

func validateRequest(req Request) error {
	if req.Payer.IsZero() {
		return errors.New("sender: payer is required")
	}
	if len(req.Instructions) == 0 {
		return errors.New("sender: at least one instruction is required")
	}
	return nil
}

// buildMessage 组装指令并编译消息：预算指令在前，业务指令保持入参顺序
func (p *Pipeline) buildMessage(req Request, blockhash types.Blockhash, price uint64, units uint32) (*tx.Message, error) {
	instructions := req.Instructions
	if !p.opts.DisableBudget {
		budget, err := fees.BudgetInstructions(units, price)
		if err != nil {
			return nil, fmt.Errorf("budget instructions: %w", err)
		}
		instructions = make([]tx.Instruction, 0, len(budget)+len(req.Instructions))
		instructions = append(instructions, budget...)
		instructions = append(instructions, req.Instructions...)
	}

	msg, err := tx.CompileMessage(req.Payer, instructions, blockhash, req.Tables)
	if err != nil {
		if isSizeError(err) {
			return nil, &Failure{Kind: KindMessageTooLarge, Err: err}
		}
		return nil, fmt.Errorf("compile message: %w", err)
	}
	return msg, nil
}

// simulate 以零签名占位字节预演。账本拒绝时返回 KindRejected 失败，
// blockhash 老化返回 KindFreshnessExpired。
func (p *Pipeline) simulate(ctx context.Context, msg *tx.Message) (ledger.SimulationResult, error) {
	simBytes, err := tx.NewTransaction(msg).Serialize()
	if err != nil {
		return ledger.SimulationResult{}, &Failure{Kind: KindMessageTooLarge, Err: err}
	}
	res, err := p.chain.Simulate(ctx, simBytes)
	if err != nil {
		return ledger.SimulationResult{}, fmt.Errorf("simulate: %w", err)
	}
	if !res.OK() {
		if expiredReason(res.Err) {
			return ledger.SimulationResult{}, &Failure{Kind: KindFreshnessExpired, Reason: res.Err}
		}
		return ledger.SimulationResult{}, &Failure{Kind: KindRejected, Reason: res.Err}
	}
	return res, nil
}

// signMessage 请签并装配签名信封。任何必需签名槽缺签都是硬性前置条件失败。
func (p *Pipeline) signMessage(ctx context.Context, msg *tx.Message, req Request) (*tx.Transaction, []byte, error) {
	required := msg.RequiredSigners()

	toSign := make([]types.Pubkey, 0, len(required))
	for _, addr := range required {
		if _, ok := req.PreSignatures[addr]; ok {
			continue
		}
		toSign = append(toSign, addr)
	}

	if len(toSign) < len(required) && !p.signer.Capabilities().SupportsPartialSign {
		return nil, nil, &Failure{
			Kind:   KindCapabilityUnsupported,
			Reason: "partial signing required but signer does not support it",
		}
	}

	msgBytes, err := msg.Serialize()
	if err != nil {
		return nil, nil, &Failure{Kind: KindMessageTooLarge, Err: err}
	}

	txn := tx.NewTransaction(msg)
	for _, addr := range required {
		if sig, ok := req.PreSignatures[addr]; ok {
			if err := txn.SetSignature(addr, sig); err != nil {
				return nil, nil, fmt.Errorf("apply pre-signature: %w", err)
			}
		}
	}

	if len(toSign) > 0 {
		sigs, err := p.signer.Sign(ctx, msgBytes, toSign)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			return nil, nil, &Failure{
				Kind:   KindMissingSignature,
				Reason: "signer could not produce required signatures",
				Err:    err,
			}
		}
		for addr, sig := range sigs {
			if err := txn.SetSignature(addr, sig); err != nil {
				return nil, nil, fmt.Errorf("apply signature: %w", err)
			}
		}
	}

	if missing := txn.MissingSigners(); len(missing) > 0 {
		return nil, nil, &Failure{
			Kind:   KindMissingSignature,
			Reason: fmt.Sprintf("unsigned required signers: %s", joinPubkeys(missing)),
		}
	}

	wire, err := txn.Serialize()
	if err != nil {
		return nil, nil, &Failure{Kind: KindMessageTooLarge, Err: err}
	}
	return txn, wire, nil
}

// confirm 轮询状态直至终态、确认窗口耗尽或取消。
// decided=false 且 err=nil 表示窗口耗尽仍无终态。
func (p *Pipeline) confirm(ctx context.Context, sig types.Signature) (ledger.SubmissionStatus, bool, error) {
	deadline := time.NewTimer(p.opts.ConfirmTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(p.opts.PollInterval)
	defer tick.Stop()

	for {
		st, err := p.chain.Status(ctx, sig)
		if err == nil && (st.State == ledger.StateConfirmed || st.State == ledger.StateFailed) {
			return st, true, nil
		}
		// 查询失败按瞬时故障处理，窗口内继续轮询

		select {
		case <-ctx.Done():
			return ledger.SubmissionStatus{}, false, ctx.Err()
		case <-deadline.C:
			return ledger.SubmissionStatus{}, false, nil
		case <-tick.C:
		}
	}
}

// confirmed 终结为确认态：喂回估计器、发布回执
func (p *Pipeline) confirmed(rec *Receipt, key fees.Key, st ledger.SubmissionStatus, latency time.Duration, price uint64) (*Receipt, error) {
	p.est.RecordOutcome(key, fees.Sample{
		At: time.Now(), Latency: latency,
		Outcome: fees.OutcomeConfirmed, PriceUsed: price,
	})
	rec.State = StateConfirmed
	rec.Slot = st.Slot
	p.publish(rec)
	logger.Infof("[sender] 已确认: sig=%s slot=%d attempts=%d latency=%v price=%d",
		rec.Signature, st.Slot, rec.Attempts, latency, price)
	return rec, nil
}

// fail 终结为失败态：挂上结构化失败并发布回执
func (p *Pipeline) fail(rec *Receipt, f *Failure) (*Receipt, error) {
	if f.Attempt == 0 {
		f.Attempt = rec.Attempts
	}
	rec.State = StateFailed
	rec.Failure = f
	p.publish(rec)
	logger.Warnf("[sender] 发送失败: kind=%s attempt=%d reason=%s", f.Kind, f.Attempt, f.Reason)
	return rec, f
}

// failOrReturn 结构化失败走 fail，其余错误原样上浮
func (p *Pipeline) failOrReturn(rec *Receipt, attempt int, err error) (*Receipt, error) {
	if f, ok := AsFailure(err); ok {
		f.Attempt = attempt
		return p.fail(rec, f)
	}
	return rec, err
}

// cancelled 提交前被取消：无网络副作用，原样返回取消错误
func (p *Pipeline) cancelled(rec *Receipt, err error) (*Receipt, error) {
	if rec.Submitted {
		f := &Failure{Kind: KindAmbiguous, Attempt: rec.Attempts, Reason: "cancelled with submission in flight", Err: err}
		rec.State = StateSubmitted
		rec.Failure = f
		p.publish(rec)
		return rec, f
	}
	rec.State = StateFailed
	return rec, err
}

func (p *Pipeline) publish(rec *Receipt) {
	if p.sink == nil {
		return
	}
	p.sink.Publish(rec)
}

// classifySubmitError 划分提交错误：
// 节点明确拒收（过期/非法）未进入网络，传输类失败则结果不可知
func classifySubmitError(err error) Kind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindAmbiguous
	}
	msg := strings.ToLower(err.Error())
	if expiredReason(msg) {
		return KindFreshnessExpired
	}
	for _, marker := range []string{"rejected", "simulation failed", "invalid transaction", "insufficient funds"} {
		if strings.Contains(msg, marker) {
			return KindRejected
		}
	}
	return KindAmbiguous
}

func isSizeError(err error) bool {
	return errors.Is(err, tx.ErrMessageTooLarge) ||
		errors.Is(err, tx.ErrTooManyAccounts) ||
		errors.Is(err, tx.ErrAccountIndexOverflow) ||
		errors.Is(err, tx.ErrTableTooLarge)
}

func joinPubkeys(addrs []types.Pubkey) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
