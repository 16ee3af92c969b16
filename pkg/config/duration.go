package config

import (
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Duration 支持 YAML/JSON 反序列化，单位为秒
// 可以从数字（秒数）或字符串（如 "30s"、"2h"）解析
type Duration int64

// Duration 返回 time.Duration 值
func (d Duration) Duration() time.Duration {
	return time.Duration(d) * time.Second
}

// Seconds 返回秒数
func (d Duration) Seconds() int64 {
	return int64(d)
}

// SecondsInt 返回 int 类型的秒数
func (d Duration) SecondsInt() int {
	return int(d)
}

var durationType = reflect.TypeOf(Duration(0))

// durationHook 把 "30s" 这类字符串解析为秒数，纯数字字符串按秒处理
func durationHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType || from.Kind() != reflect.String {
			return data, nil
		}
		s := data.(string)
		if s == "" {
			return Duration(0), nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Duration(n), nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, err
		}
		return Duration(d / time.Second), nil
	}
}
