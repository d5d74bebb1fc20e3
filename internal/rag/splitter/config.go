package splitter

import (
	"fmt"
	"math"
)

// 分块模式
const (
	ModeHierarchical = "hierarchical" // 按 Markdown 标题层级
	ModeCustom       = "custom"       // 调用方给定分隔符级联
	ModeAuto         = "auto"         // 内置分隔符级联
)

// DefaultSeparators auto 模式的内置分隔符级联:
// 段落 → 行 → 中英文句末标点 → 空格 → 字符
var DefaultSeparators = []string{"\n\n", "\n", "。", "！", "？", ".", "!", "?", " ", ""}

// ConfigValidationError 分块配置非法
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("分块配置非法: %s: %s", e.Field, e.Reason)
}

// Config 分块配置。OverlapRatio 规范形式是 [0,1) 的比例,
// 历史调用方会传 0-100 的整数百分比, 由 NormalizeOverlap 在边界统一。
type Config struct {
	Mode         string
	MaxSize      int
	OverlapRatio float64
	Separators   []string
}

// NormalizeOverlap 将重叠设置统一为 [0,1) 的比例。
// [0,1) 原样返回; (1,100] 视为整数百分比除以 100;
// 1 本身有歧义 (100% 比例还是 1% 百分比), 连同其余值一并拒绝。
func NormalizeOverlap(v float64) (float64, error) {
	switch {
	case v < 0:
		return 0, &ConfigValidationError{Field: "overlap_ratio", Reason: fmt.Sprintf("不能为负: %v", v)}
	case v < 1:
		return v, nil
	case v == 1:
		return 0, &ConfigValidationError{Field: "overlap_ratio", Reason: "1 无法区分 100% 比例与 1% 百分比"}
	case v <= 100:
		return v / 100, nil
	default:
		return 0, &ConfigValidationError{Field: "overlap_ratio", Reason: fmt.Sprintf("超出 [0,1) 与 0-100 百分比范围: %v", v)}
	}
}

// Validate 急切校验, 在任何 I/O 之前失败
func (c Config) Validate() error {
	switch c.Mode {
	case ModeHierarchical, ModeCustom, ModeAuto:
	default:
		return &ConfigValidationError{Field: "mode", Reason: fmt.Sprintf("未知模式 %q", c.Mode)}
	}

	if c.MaxSize <= 0 {
		return &ConfigValidationError{Field: "max_size", Reason: fmt.Sprintf("必须为正数: %d", c.MaxSize)}
	}

	if _, err := NormalizeOverlap(c.OverlapRatio); err != nil {
		return err
	}

	if c.Mode == ModeCustom && len(c.Separators) == 0 {
		return &ConfigValidationError{Field: "separators", Reason: "custom 模式必须给定分隔符列表"}
	}

	return nil
}

// OverlapChars 相邻分块重叠的字符数: floor(MaxSize * ratio)
func (c Config) OverlapChars() int {
	ratio, err := NormalizeOverlap(c.OverlapRatio)
	if err != nil {
		return 0
	}
	return int(math.Floor(float64(c.MaxSize) * ratio))
}
