package utils

import "unicode/utf16"

// HashCode 计算与 Java String.hashCode 一致的 32 位哈希
// 按 UTF-16 码元迭代 h = 31*h + c，溢出按 int32 回绕
func HashCode(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(c)
	}
	return h
}
