package signer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	sdktypes "github.com/blocto/solana-go-sdk/types"

	"tx-sender-sol/pkg/types"
)

// ErrNoKeyHeld 请求的地址没有任何一个由本签名方掌握。
var ErrNoKeyHeld = errors.New("signer: none of the requested addresses are held")

// Local 进程内私钥签名方。持有一把或多把 ed25519 私钥，
// 支持部分签名、刷新重签与付费者更换（全能力）。
type Local struct {
	accounts map[types.Pubkey]sdktypes.Account
}

// NewLocal 由已有账户构造本地签名方
func NewLocal(accounts ...sdktypes.Account) *Local {
	l := &Local{accounts: make(map[types.Pubkey]sdktypes.Account, len(accounts))}
	for _, acct := range accounts {
		l.accounts[types.Pubkey(acct.PublicKey)] = acct
	}
	return l
}

// FromBase58 由 base58 私钥串构造本地签名方
func FromBase58(keys ...string) (*Local, error) {
	accounts := make([]sdktypes.Account, 0, len(keys))
	for i, key := range keys {
		acct, err := sdktypes.AccountFromBase58(key)
		if err != nil {
			return nil, fmt.Errorf("signer: parse key %d: %w", i, err)
		}
		accounts = append(accounts, acct)
	}
	return NewLocal(accounts...), nil
}

// FromSeed 由 32 字节种子构造本地签名方
func FromSeed(seeds ...[]byte) (*Local, error) {
	accounts := make([]sdktypes.Account, 0, len(seeds))
	for i, seed := range seeds {
		acct, err := sdktypes.AccountFromSeed(seed)
		if err != nil {
			return nil, fmt.Errorf("signer: seed %d: %w", i, err)
		}
		accounts = append(accounts, acct)
	}
	return NewLocal(accounts...), nil
}

// Generate 生成 n 把随机私钥的本地签名方，测试与一次性场景使用
func Generate(n int) *Local {
	accounts := make([]sdktypes.Account, 0, n)
	for i := 0; i < n; i++ {
		accounts = append(accounts, sdktypes.NewAccount())
	}
	return NewLocal(accounts...)
}

// Addresses 返回持有的全部地址，字节序排序保证确定性
func (l *Local) Addresses() []types.Pubkey {
	addrs := make([]types.Pubkey, 0, len(l.accounts))
	for addr := range l.accounts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
	return addrs
}

// Holds 是否持有某地址的私钥
func (l *Local) Holds(addr types.Pubkey) bool {
	_, ok := l.accounts[addr]
	return ok
}

func (l *Local) Capabilities() Capabilities {
	return Capabilities{
		SupportsPartialSign:            true,
		SupportsFreshnessRefreshResign: true,
		SupportsFeePayerSwap:           true,
	}
}

// Sign 为 addrs 中持有私钥的地址出签。未持有的地址跳过；
// 一个都未持有返回 ErrNoKeyHeld。
func (l *Local) Sign(ctx context.Context, message []byte, addrs []types.Pubkey) (map[types.Pubkey]types.Signature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(message) == 0 {
		return nil, errors.New("signer: empty message")
	}

	sigs := make(map[types.Pubkey]types.Signature, len(addrs))
	for _, addr := range addrs {
		acct, ok := l.accounts[addr]
		if !ok {
			continue
		}
		sig, err := types.SignatureFromBytes(acct.Sign(message))
		if err != nil {
			return nil, fmt.Errorf("signer: sign for %s: %w", addr, err)
		}
		sigs[addr] = sig
	}
	if len(sigs) == 0 {
		return nil, fmt.Errorf("%w: %d addresses requested", ErrNoKeyHeld, len(addrs))
	}
	return sigs, nil
}
