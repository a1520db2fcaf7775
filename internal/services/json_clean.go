package services

import (
	"encoding/json"
	"strings"
	"unicode"

	apperrors "github.com/Corphon/SceneScribe/internal/errors"
	"github.com/Corphon/SceneScribe/internal/models"
)

// 模型输出中常见的噪声
var jsonNoiseReplacer = strings.NewReplacer(
	"\ufeff", "",
	"\u00a0", " ",
	"\u2028", "\n",
	"\u2029", "\n",
)

// 字符串外出现的全角结构符号
var structuralPunctuationMap = map[rune]rune{
	'：': ':',
	'，': ',',
	'【': '[',
	'】': ']',
	'［': '[',
	'］': ']',
	'｛': '{',
	'｝': '}',
}

// 弯引号与其闭合符号
var quotePairs = map[rune]rune{
	'“': '”',
	'„': '”',
	'「': '」',
	'『': '』',
}

// normalizeJSONStructure 把字符串外的全角符号换成ASCII，弯引号统一为直引号
func normalizeJSONStructure(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	closing := '"'

	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
				b.WriteRune(r)
			case r == '\\':
				escaped = true
				b.WriteRune(r)
			case r == closing || r == '"':
				inString = false
				closing = '"'
				b.WriteRune('"')
			default:
				b.WriteRune(r)
			}
			continue
		}

		if repl, ok := structuralPunctuationMap[r]; ok {
			b.WriteRune(repl)
			continue
		}
		if c, ok := quotePairs[r]; ok {
			inString = true
			closing = c
			b.WriteRune('"')
			continue
		}
		if r == '"' {
			inString = true
			closing = '"'
			b.WriteRune(r)
			continue
		}
		if r > unicode.MaxASCII && !unicode.IsSpace(r) {
			// 字符串外的异常字符直接丢弃
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// cleanJSONString 截取模型输出中的第一个完整JSON值
func cleanJSONString(s string) string {
	s = models.StripCodeFence(jsonNoiseReplacer.Replace(s))
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u2060':
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return strings.TrimSpace(s)
	}
	s = normalizeJSONStructure(s[start:])

	open, shut := byte('{'), byte('}')
	if s[0] == '[' {
		open, shut = '[', ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == shut:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}

	// 没有配对的结束符，退回到最后一个
	if end := strings.LastIndexByte(s, shut); end != -1 {
		return s[:end+1]
	}
	return strings.TrimSpace(s)
}

// CleanLLMJSONResponse 提供给外部调用的JSON清洗助手
func CleanLLMJSONResponse(raw string) string {
	return cleanJSONString(raw)
}

// DecodeModelJSON 清洗并解析模型返回的JSON，失败时返回模型格式错误
func DecodeModelJSON(raw string, v interface{}) error {
	cleaned := cleanJSONString(raw)
	if cleaned == "" {
		return apperrors.NewModelFormatError("模型返回为空", nil)
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return apperrors.NewModelFormatError("模型返回的JSON无法解析", err)
	}
	return nil
}
