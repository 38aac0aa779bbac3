package consts

// 交易封包的协议上限。超限不是降级条件而是硬错误：
// 打包器负责在编译前保证不越界。
const (
	// MaxTransactionSize 序列化交易（含签名）的字节上限
	MaxTransactionSize = 1232

	// MaxStaticAccountKeys 静态账户表的地址数上限
	MaxStaticAccountKeys = 64

	// MaxCombinedAccounts 静态 + 查找表解析后的合并索引空间上限（索引为 u8）
	MaxCombinedAccounts = 256

	// MaxComputeUnitsPerTx 单笔交易可申请的计算单元上限
	MaxComputeUnitsPerTx = 1_400_000

	// DefaultComputeUnitLimit 未显式设置预算时账本侧的默认计算单元
	DefaultComputeUnitLimit = 200_000

	// MaxLookupTableEntries 单张地址查找表可容纳的地址数上限
	MaxLookupTableEntries = 256

	// SignatureLength / PubkeyLength 定长字段字节数
	SignatureLength = 64
	PubkeyLength    = 32

	// MessageVersionPrefix v0 版本标记字节（高位为 1，低 7 位为版本号）
	MessageVersionPrefix = 0x80
)
