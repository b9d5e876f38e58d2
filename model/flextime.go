package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FlexTime 宽容时间戳
// 历史数据里的 updatedAt 存在三种形态：epoch 毫秒数、RFC3339 字符串、
// {seconds, nanoseconds} 结构体。统一归一化为 epoch 毫秒；无法识别的
// 形态标记为无效而不报错，由上层按最后已知进度软降级处理。
type FlexTime struct {
	ms    int64
	valid bool
}

// FlexMillis 从 epoch 毫秒构造 FlexTime
func FlexMillis(ms int64) FlexTime {
	return FlexTime{ms: ms, valid: true}
}

// FlexNow 当前时刻的 FlexTime
func FlexNow() FlexTime {
	return FlexMillis(time.Now().UnixMilli())
}

// Millis 返回归一化后的 epoch 毫秒；无效时 ok 为 false
func (t FlexTime) Millis() (int64, bool) {
	return t.ms, t.valid
}

// IsZero 是否为零值（未设置或归一化失败）
func (t FlexTime) IsZero() bool {
	return !t.valid
}

// secondsPair {seconds, nanoseconds} 形态
type secondsPair struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int64 `json:"nanoseconds"`
}

// UnmarshalJSON 依次尝试三种形态，全部失败时不返回错误，仅标记无效
func (t *FlexTime) UnmarshalJSON(data []byte) error {
	// epoch 毫秒
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		t.ms = n
		t.valid = true
		return nil
	}

	// RFC3339 字符串
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			t.ms = parsed.UnixMilli()
			t.valid = true
			return nil
		}
		t.valid = false
		return nil
	}

	// {seconds, nanoseconds} 结构体
	var pair secondsPair
	if err := json.Unmarshal(data, &pair); err == nil && (pair.Seconds != 0 || pair.Nanoseconds != 0) {
		t.ms = pair.Seconds*1000 + pair.Nanoseconds/1e6
		t.valid = true
		return nil
	}

	t.valid = false
	return nil
}

// MarshalJSON 统一序列化为 epoch 毫秒
func (t FlexTime) MarshalJSON() ([]byte, error) {
	if !t.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(t.ms, 10)), nil
}

// Scan 实现 sql.Scanner，数据库中以 bigint 毫秒存储
func (t *FlexTime) Scan(value interface{}) error {
	if value == nil {
		t.valid = false
		return nil
	}
	switch v := value.(type) {
	case int64:
		t.ms = v
		t.valid = true
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			t.valid = false
			return nil
		}
		t.ms = n
		t.valid = true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			t.valid = false
			return nil
		}
		t.ms = n
		t.valid = true
	case time.Time:
		t.ms = v.UnixMilli()
		t.valid = true
	default:
		return fmt.Errorf("cannot scan %T into FlexTime", value)
	}
	return nil
}

// Value 实现 driver.Valuer
func (t FlexTime) Value() (driver.Value, error) {
	if !t.valid {
		return nil, nil
	}
	return t.ms, nil
}
