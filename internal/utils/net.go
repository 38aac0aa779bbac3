package utils

import (
	"fmt"
	"net"
)

// GetLocalIP 返回本机对外通信使用的 IPv4 地址。
// 通过一次 UDP「拨号」让内核选路，不产生真实网络流量。
func GetLocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("GetLocalIP: %w", err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("GetLocalIP: unexpected addr type %T", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}
