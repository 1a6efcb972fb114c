package limiter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// 解析 period 字符串，返回 time.Duration 单位和数量，例如 "10s" -> (time.Second, 10)
func ParsePeriod(period string) (time.Duration, int, error) {
	var unit time.Duration

	// 去除字符串中的空格
	period = strings.TrimSpace(period)

	// 获取数字部分
	var numStr string
	var unitStr string
	for i, char := range period {
		if char >= '0' && char <= '9' {
			numStr += string(char)
		} else {
			unitStr = period[i:]
			break
		}
	}
	// 省略数字时视为 1，例如 "s"
	if numStr == "" {
		numStr = "1"
	}
	num, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, 0, err
	}
	// 解析时间单位部分
	switch strings.ToLower(unitStr) {
	case "ms":
		unit = time.Millisecond
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	default:
		return 0, 0, fmt.Errorf("unsupported time unit: %q", unitStr)
	}
	return unit, num, nil
}

// ParseRate 解析 "<次数>/<周期>" 格式，例如 "10/1s"、"100/1m"
func ParseRate(rate string) (int, time.Duration, error) {
	parts := strings.SplitN(strings.TrimSpace(rate), "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid rate %q, expected <count>/<period>", rate)
	}
	capacity, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid rate count %q: %w", parts[0], err)
	}
	unit, num, err := ParsePeriod(parts[1])
	if err != nil {
		return 0, 0, err
	}
	interval := unit * time.Duration(num)
	if err := Validate(capacity, interval); err != nil {
		return 0, 0, err
	}
	return capacity, interval, nil
}
