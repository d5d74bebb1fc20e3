package splitter

import "strings"

// recursiveSplitter 递归分隔符分块。
// 在预算内优先按靠前的分隔符切分, 逐级回退, 最终退到字符边界;
// 相邻分块之间重复前一块末尾 overlap 个字符。
type recursiveSplitter struct {
	maxSize    int
	overlap    int
	separators []string
}

func newRecursiveSplitter(maxSize, overlap int, separators []string) *recursiveSplitter {
	// 重叠不允许吃掉整个分块预算
	if overlap >= maxSize {
		overlap = maxSize - 1
	}
	return &recursiveSplitter{
		maxSize:    maxSize,
		overlap:    overlap,
		separators: separators,
	}
}

// Split 切分文本。首块至多 maxSize 字符; 后续块由前块末尾的
// overlap 字符加上新内容构成, 总长同样不超过 maxSize。
func (s *recursiveSplitter) Split(content string) ([]Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	runes := []rune(content)
	chunks := make([]Chunk, 0)

	var prev []rune // 上一个分块的完整内容
	pos := 0

	for pos < len(runes) {
		budget := s.maxSize
		var head []rune
		if len(chunks) > 0 && s.overlap > 0 {
			head = tail(prev, s.overlap)
			budget = s.maxSize - len(head)
		}

		cut := s.cutPoint(runes[pos:], budget)
		body := runes[pos : pos+cut]

		chunk := make([]rune, 0, len(head)+len(body))
		chunk = append(chunk, head...)
		chunk = append(chunk, body...)

		chunks = append(chunks, newChunk(string(chunk), len(chunks), nil))
		prev = chunk
		pos += cut
	}

	return chunks, nil
}

// cutPoint 返回在预算内的最佳切分长度 (rune 数)。
// 依次尝试分隔符级联: 取预算内最后一次出现的位置并在分隔符之后切分;
// 全部失手时直接按预算切。
func (s *recursiveSplitter) cutPoint(text []rune, budget int) int {
	if len(text) <= budget {
		return len(text)
	}

	window := string(text[:budget])
	for _, sep := range s.separators {
		if sep == "" {
			break
		}
		idx := strings.LastIndex(window, sep)
		if idx <= 0 {
			continue
		}
		// 切分点在分隔符之后, 分隔符归前块
		cut := len([]rune(window[:idx])) + len([]rune(sep))
		if cut > 0 && cut <= budget {
			return cut
		}
	}

	return budget
}

// tail 取末尾至多 n 个 rune
func tail(runes []rune, n int) []rune {
	if len(runes) <= n {
		return runes
	}
	return runes[len(runes)-n:]
}
