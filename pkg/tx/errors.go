package tx

import "errors"

var (
	// ErrMessageTooLarge 序列化后的交易超过协议字节上限
	ErrMessageTooLarge = errors.New("tx: serialized transaction exceeds size limit")

	// ErrTooManyAccounts 静态账户表超过协议上限
	ErrTooManyAccounts = errors.New("tx: static account table exceeds limit")

	// ErrAccountIndexOverflow 合并索引空间超过 u8 可寻址范围
	ErrAccountIndexOverflow = errors.New("tx: combined account index space exceeds u8 range")

	// ErrAccountMismatch 试图合并两个不同地址的账户引用
	ErrAccountMismatch = errors.New("tx: cannot merge metas of different accounts")

	// ErrSignerInLookupTable 签名账户被路由进查找表（签名者必须留在静态表）
	ErrSignerInLookupTable = errors.New("tx: signer address routed to lookup table")

	// ErrProgramInLookupTable 被调用程序被路由进查找表（程序必须留在静态表）
	ErrProgramInLookupTable = errors.New("tx: invoked program routed to lookup table")

	// ErrTableTooLarge 地址查找表条目数超过协议上限
	ErrTableTooLarge = errors.New("tx: lookup table exceeds entry limit")

	// ErrUnknownSigner 地址不在必需签名者集合中
	ErrUnknownSigner = errors.New("tx: address is not a required signer")

	// ErrUnsupportedVersion 消息版本不受支持（仅支持 v0）
	ErrUnsupportedVersion = errors.New("tx: unsupported message version")

	// ErrSignatureCount 签名槽数量与 header 要求不一致
	ErrSignatureCount = errors.New("tx: signature count does not match required signers")

	// ErrInvalidSignature 签名校验失败
	ErrInvalidSignature = errors.New("tx: signature verification failed")
)
