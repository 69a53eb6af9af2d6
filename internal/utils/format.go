package utils

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// FormatUptime 格式化运行时长: HH.MM.SS，超过一天时加 "D-" 前缀
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	sec := total % 60
	min := (total / 60) % 60
	hr := (total / 3600) % 24
	days := total / 86400

	s := fmt.Sprintf("%02d.%02d.%02d", hr, min, sec)
	if days > 0 {
		s = strconv.FormatInt(days, 10) + "-" + s
	}
	return s
}

// Fixed 按固定小数位格式化，按精确十进制值舍入，恰好一半时远离零
//
//	Fixed(0.0625, 3) -> "0.063"
//	Fixed(1.005, 2)  -> "1.00" (1.005 的二进制值略小于 1.005)
func Fixed(v float64, prec int) string {
	if prec < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', prec, 64)
	}

	r := new(big.Rat).SetFloat64(math.Abs(v))
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(prec)), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))

	n, rem := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if rem.Lsh(rem, 1).Cmp(r.Denom()) >= 0 {
		n.Add(n, big.NewInt(1))
	}

	digits := n.String()
	if prec > 0 {
		if len(digits) <= prec {
			digits = strings.Repeat("0", prec-len(digits)+1) + digits
		}
		digits = digits[:len(digits)-prec] + "." + digits[len(digits)-prec:]
	}
	if v < 0 {
		digits = "-" + digits
	}
	return digits
}

// SafeDiv 除数为零时返回 0
func SafeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
