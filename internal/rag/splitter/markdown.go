package splitter

import "strings"

// headerSplitter 按 Markdown 标题层级分块 (#, ##, ###)。
// 每个分块携带产生它的标题路径, 不做大小限制。
type headerSplitter struct{}

// 标题层级与元数据键, 与分块策略绑定的稳定契约
var headerLevels = []struct {
	prefix string
	key    string
}{
	{"### ", "header_3"},
	{"## ", "header_2"},
	{"# ", "header_1"},
}

// Split 扫描标题行, 标题之间的正文归为一个分块。
// 标题行本身进入元数据而非正文, 四级及更深的标题按正文处理。
func (s *headerSplitter) Split(content string) ([]Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	chunks := make([]Chunk, 0)
	path := map[string]string{} // header_1..header_3 当前路径

	var body []string
	flush := func() {
		text := strings.TrimSpace(strings.Join(body, "\n"))
		body = body[:0]
		if text == "" {
			return
		}
		meta := make(map[string]any, len(path))
		for k, v := range path {
			meta[k] = v
		}
		chunks = append(chunks, newChunk(text, len(chunks), meta))
	}

	for _, line := range strings.Split(content, "\n") {
		level, title := matchHeader(line)
		if level == 0 {
			body = append(body, line)
			continue
		}

		flush()

		// 更新路径并清除更深层级
		switch level {
		case 1:
			path = map[string]string{"header_1": title}
		case 2:
			path["header_2"] = title
			delete(path, "header_3")
		case 3:
			path["header_3"] = title
		}
	}
	flush()

	return chunks, nil
}

// matchHeader 识别 1-3 级标题行, 返回层级与标题文本
func matchHeader(line string) (int, string) {
	trimmed := strings.TrimSpace(line)
	for _, h := range headerLevels {
		if strings.HasPrefix(trimmed, h.prefix) {
			level := strings.Count(h.prefix, "#")
			return level, strings.TrimSpace(strings.TrimPrefix(trimmed, h.prefix))
		}
	}
	return 0, ""
}
