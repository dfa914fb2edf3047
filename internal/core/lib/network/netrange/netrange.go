/**
 * IPv4 CIDR 网段计算
 * @date: 2026.02.10
 * @description: 将 "A.B.C.D/P" 解析为网段，按升序惰性生成可用主机地址 (不含网络地址和广播地址)
 */

package netrange

import (
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrInvalidAddress 地址格式错误 (段数不对/非数字/八位组 >= 256)
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidPrefix 前缀长度错误 (不在 [0, 32] 内或非整数)
	ErrInvalidPrefix = errors.New("invalid prefix")
)

var addressRegex = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})$`)

// Range 一个 IPv4 网段，创建后不可变
type Range struct {
	base   uint32 // 用户输入的地址 (不一定是网络地址)
	prefix int    // 前缀长度 [0, 32]
}

// Parse 解析 "A.B.C.D/P"
func Parse(input string) (*Range, error) {
	parts := strings.Split(strings.TrimSpace(input), "/")
	if len(parts) > 2 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, input)
	}

	base, err := ParseAddress(parts[0])
	if err != nil {
		return nil, err
	}

	if len(parts) == 1 {
		return nil, fmt.Errorf("%w: missing prefix in %q", ErrInvalidPrefix, input)
	}
	prefix, err := parsePrefix(parts[1])
	if err != nil {
		return nil, err
	}

	return &Range{base: base, prefix: prefix}, nil
}

// ParseAddress 将点分十进制转换为 32 位无符号整数
func ParseAddress(address string) (uint32, error) {
	m := addressRegex.FindStringSubmatch(address)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	var u32 uint32
	for _, octet := range m[1:] {
		v, err := strconv.Atoi(octet)
		if err != nil || v >= 256 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
		}
		u32 = u32<<8 | uint32(v)
	}
	return u32, nil
}

func parsePrefix(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil || p < 0 || p > 32 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrefix, s)
	}
	return p, nil
}

// FormatAddress 32 位整数转点分十进制
func FormatAddress(u32 uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(u32>>24), byte(u32>>16), byte(u32>>8), byte(u32))
}

// Prefix 前缀长度
func (r *Range) Prefix() int {
	return r.prefix
}

// Mask 高 prefix 位为 1 的掩码
func (r *Range) Mask() uint32 {
	// 64 位中间值，prefix = 0 时左移 32 位不会溢出
	return uint32(uint64(0xffffffff) << (32 - r.prefix))
}

// Network 网络地址
func (r *Range) Network() uint32 {
	return r.base & r.Mask()
}

// Broadcast 广播地址
func (r *Range) Broadcast() uint32 {
	return uint32(r.broadcast64())
}

func (r *Range) broadcast64() uint64 {
	return uint64(r.Network()) + (uint64(1) << (32 - r.prefix)) - 1
}

// Size Hosts() 将产生的地址数量
func (r *Range) Size() uint64 {
	first, end := uint64(r.Network())+1, r.broadcast64()
	if end <= first {
		return 0
	}
	return end - first
}

// Hosts 惰性生成 (network, broadcast) 开区间内的全部地址。
// /31 和 /32 的区间为空，由算术自然得出。
// 每次遍历都从头开始，不保留状态。
func (r *Range) Hosts() iter.Seq[string] {
	return func(yield func(string) bool) {
		for i := uint64(r.Network()) + 1; i < r.broadcast64(); i++ {
			if !yield(FormatAddress(uint32(i))) {
				return
			}
		}
	}
}

// String 规范化后的 CIDR (网络地址/前缀)
func (r *Range) String() string {
	return fmt.Sprintf("%s/%d", FormatAddress(r.Network()), r.Prefix())
}
