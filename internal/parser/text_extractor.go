package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"parsely-go/internal/types"

	"golang.org/x/text/encoding/charmap"
)

// 文本提取的最小输入
const (
	MinDocumentBytes = 4
	MinDocumentChars = 3
)

// PDFTextExtractor PDF 文本提取能力
type PDFTextExtractor interface {
	ExtractText(ctx context.Context, data []byte, uri string) (string, error)
}

// DocumentExtractor 按 MIME 类型或扩展名把上传文件转为 RawDocument
type DocumentExtractor struct {
	pdf PDFTextExtractor
}

// NewDocumentExtractor 创建文本提取器，pdf 为 nil 时不支持 PDF
func NewDocumentExtractor(pdf PDFTextExtractor) *DocumentExtractor {
	return &DocumentExtractor{pdf: pdf}
}

// DetectKind 根据 MIME 与文件名判断类型：pdf / text / ""
func DetectKind(filename, mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch {
	case mt == "application/pdf":
		return "pdf"
	case strings.HasPrefix(mt, "text/"):
		return "text"
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "pdf"
	case ".txt", ".text", ".md":
		return "text"
	}
	return ""
}

// Extract 提取文本。输入过小、类型不支持或提取结果过短都返回 InputError
func (d *DocumentExtractor) Extract(ctx context.Context, data []byte, filename, mimeType string) (types.RawDocument, error) {
	doc := types.RawDocument{Filename: filename, MimeType: mimeType}
	if len(data) < MinDocumentBytes {
		return doc, types.NewInputError("extract", fmt.Sprintf("文件过小 (%d 字节)", len(data)))
	}

	var text string
	switch DetectKind(filename, mimeType) {
	case "pdf":
		if d.pdf == nil {
			return doc, types.NewInputError("extract", "未配置PDF解析器")
		}
		doc.MimeType = "application/pdf"
		t, err := d.pdf.ExtractText(ctx, data, filename)
		if err != nil {
			return doc, &types.ParseError{Kind: types.ErrInput, Op: "extract", Detail: "PDF文本提取失败", Err: err}
		}
		text = t
	case "text":
		if doc.MimeType == "" {
			doc.MimeType = "text/plain"
		}
		text = decodeText(data)
	default:
		return doc, types.NewInputError("extract", fmt.Sprintf("不支持的文件类型: %s (%s)", filename, mimeType))
	}

	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinDocumentChars {
		return doc, types.NewInputError("extract", "提取到的文本过短")
	}
	doc.Text = text
	return doc, nil
}

// decodeText UTF-8 原样返回（去 BOM），否则按 Windows-1252 解码
func decodeText(data []byte) string {
	data = trimBOM(data)
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return string(out)
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
