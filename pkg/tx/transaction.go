package tx

import (
	"crypto/ed25519"
	"fmt"

	"tx-sender-sol/internal/consts"
	"tx-sender-sol/pkg/encoding"
	"tx-sender-sol/pkg/types"
)

// Transaction 签名信封：签名槽与静态表前 NumRequiredSignatures 个地址一一对应，
// 零值签名表示该槽尚未签名（序列化时原样写出，用于部分签名与模拟场景）。
type Transaction struct {
	Signatures []types.Signature
	Message    *Message
}

// NewTransaction 按消息要求的签名者数量开好签名槽
func NewTransaction(msg *Message) *Transaction {
	return &Transaction{
		Signatures: make([]types.Signature, msg.Header.NumRequiredSignatures),
		Message:    msg,
	}
}

// SetSignature 将签名写入 addr 对应的槽位，addr 不是必需签名者时返回 ErrUnknownSigner
func (t *Transaction) SetSignature(addr types.Pubkey, sig types.Signature) error {
	for i, signer := range t.Message.RequiredSigners() {
		if signer == addr {
			t.Signatures[i] = sig
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownSigner, addr)
}

// MissingSigners 返回签名槽仍为零值的地址列表
func (t *Transaction) MissingSigners() []types.Pubkey {
	var missing []types.Pubkey
	for i, signer := range t.Message.RequiredSigners() {
		if i >= len(t.Signatures) || t.Signatures[i].IsZero() {
			missing = append(missing, signer)
		}
	}
	return missing
}

// Serialize 输出完整交易线格式：compact-u16 签名数 + 64B 签名... + 消息。
// 签名槽数量必须与 header 一致；总字节数超过协议上限时返回 ErrMessageTooLarge。
func (t *Transaction) Serialize() ([]byte, error) {
	if len(t.Signatures) != int(t.Message.Header.NumRequiredSignatures) {
		return nil, fmt.Errorf("%w: %d slots, header wants %d",
			ErrSignatureCount, len(t.Signatures), t.Message.Header.NumRequiredSignatures)
	}
	msgBytes, err := t.Message.Serialize()
	if err != nil {
		return nil, err
	}

	buf, err := encoding.AppendCompactU16(nil, len(t.Signatures))
	if err != nil {
		return nil, err
	}
	for _, sig := range t.Signatures {
		buf = append(buf, sig[:]...)
	}
	buf = append(buf, msgBytes...)

	if len(buf) > consts.MaxTransactionSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLarge, len(buf), consts.MaxTransactionSize)
	}
	return buf, nil
}

// DeserializeTransaction 解析完整交易，签名数必须与消息 header 一致
func DeserializeTransaction(data []byte) (*Transaction, error) {
	if len(data) > consts.MaxTransactionSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLarge, len(data), consts.MaxTransactionSize)
	}
	r := encoding.NewReader(data)

	sigCount, err := r.ReadCompactU16()
	if err != nil {
		return nil, err
	}
	sigs := make([]types.Signature, sigCount)
	for i := range sigs {
		b, err := r.ReadBytes(consts.SignatureLength)
		if err != nil {
			return nil, err
		}
		copy(sigs[i][:], b)
	}

	msg, err := readMessage(r)
	if err != nil {
		return nil, err
	}
	if err := r.ExpectEOF(); err != nil {
		return nil, err
	}
	if sigCount != int(msg.Header.NumRequiredSignatures) {
		return nil, fmt.Errorf("%w: %d signatures, header wants %d",
			ErrSignatureCount, sigCount, msg.Header.NumRequiredSignatures)
	}
	return &Transaction{Signatures: sigs, Message: msg}, nil
}

// VerifySignatures 校验所有已填充的签名槽；存在零值槽或校验失败时报错。
// 账户地址即 ed25519 公钥。
func (t *Transaction) VerifySignatures() error {
	if missing := t.MissingSigners(); len(missing) > 0 {
		return fmt.Errorf("tx: %d unsigned slots, first %s", len(missing), missing[0])
	}
	msgBytes, err := t.Message.Serialize()
	if err != nil {
		return err
	}
	for i, signer := range t.Message.RequiredSigners() {
		if !ed25519.Verify(ed25519.PublicKey(signer[:]), msgBytes, t.Signatures[i][:]) {
			return fmt.Errorf("%w: signer %s", ErrInvalidSignature, signer)
		}
	}
	return nil
}
