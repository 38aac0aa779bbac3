package sender

import (
	"errors"
	"fmt"
	"strings"
)

// Kind 失败分类。管线依据分类决定善后：
// 只有 KindFreshnessExpired 会在预算内自动重建重试；
// KindAmbiguous 必须先重查状态；其余一律立即终止。
type Kind uint8

const (
	// KindMessageTooLarge 账户表或负载超出协议上限，致命，不重试
	KindMessageTooLarge Kind = iota + 1

	// KindMissingSignature 必要签名缺失，属调用方前置条件错误
	KindMissingSignature

	// KindFreshnessExpired blockhash 在确认前老化，可带新 blockhash 重建重试
	KindFreshnessExpired

	// KindAmbiguous 超时或网络部分失败，结果无法判定；
	// 重试前必须重查状态，绝不盲目换字节重发
	KindAmbiguous

	// KindRejected 账本明确报告失败（模拟失败或程序错误），绝不自动重试
	KindRejected

	// KindCapabilityUnsupported 签名方不支持所需操作，立即上浮，不做静默降级
	KindCapabilityUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindMessageTooLarge:
		return "message_too_large"
	case KindMissingSignature:
		return "missing_signature"
	case KindFreshnessExpired:
		return "freshness_expired"
	case KindAmbiguous:
		return "ambiguous"
	case KindRejected:
		return "rejected"
	case KindCapabilityUnsupported:
		return "capability_unsupported"
	default:
		return "unknown"
	}
}

// Failure 提交管线的结构化失败：分类 + 原因 + 发生在第几次尝试。
// 调用方凭此决定善后（重派、人工核对、放弃）。
type Failure struct {
	Kind    Kind
	Reason  string
	Attempt int
	Err     error // 底层错误，可为空
}

func (f *Failure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "send failed (%s, attempt %d)", f.Kind, f.Attempt)
	if f.Reason != "" {
		b.WriteString(": ")
		b.WriteString(f.Reason)
	}
	if f.Err != nil {
		fmt.Fprintf(&b, ": %v", f.Err)
	}
	return b.String()
}

func (f *Failure) Unwrap() error { return f.Err }

// Retryable 是否属于可在尝试预算内自动处理的分类
func (f *Failure) Retryable() bool {
	return f.Kind == KindFreshnessExpired || f.Kind == KindAmbiguous
}

// AsFailure 从错误链中提取 *Failure
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	ok := errors.As(err, &f)
	return f, ok
}

// expiredReason 账本报告的失败原因是否为 blockhash 过期
func expiredReason(reason string) bool {
	r := strings.ToLower(reason)
	return strings.Contains(r, "blockhashnotfound") ||
		strings.Contains(r, "blockhash not found") ||
		strings.Contains(r, "blockhash expired")
}
