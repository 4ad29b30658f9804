package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"study-assistant/internal/models"
)

var (
	docxParagraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	docxTextRe      = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	slideTextRe     = regexp.MustCompile(`<a:t>([^<]*)</a:t>`)
	slideNameRe     = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// SupportedExtensions lists the file types ParseFile understands.
var SupportedExtensions = []string{".txt", ".md", ".markdown", ".pdf", ".docx", ".pptx", ".xlsx", ".xlsm"}

// ParseFile extracts the text of a study document. Structural units of the
// source (markdown blocks, pages, slides, sheets) are separated by blank lines
// so Chunk sees them as paragraphs.
func ParseFile(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	log.Debug().Str("file", filePath).Str("ext", ext).Msg("Parsing source")

	var content string
	var err error
	switch ext {
	case ".txt", "":
		content, err = parseText(filePath)
	case ".md", ".markdown":
		content, err = parseMarkdown(filePath)
	case ".pdf":
		content, err = parsePDF(filePath)
	case ".docx":
		content, err = parseDOCX(filePath)
	case ".pptx":
		content, err = parsePPTX(filePath)
	case ".xlsx":
		content, err = parseXLSX(filePath)
	case ".xlsm":
		content, err = parseXLSM(filePath)
	default:
		err = fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", models.ErrUnreadableSource, filePath, err)
	}
	return content, nil
}

// DecodeText validates UTF-8 input and normalises line endings.
func DecodeText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: content is not valid UTF-8", models.ErrUnreadableSource)
	}
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n"), nil
}

func parseText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return DecodeText(data)
}

func parseMarkdown(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	content, err := DecodeText(data)
	if err != nil {
		return "", err
	}
	return markdownToText([]byte(content))
}

// markdownToText keeps the source of every leaf block, one block per paragraph.
func markdownToText(src []byte) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	var blocks []string
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindParagraph, ast.KindTextBlock, ast.KindHeading, ast.KindCodeBlock, ast.KindFencedCodeBlock:
		default:
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		if block := strings.TrimSpace(buf.String()); block != "" {
			blocks = append(blocks, block)
		}
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return "", err
	}
	return strings.Join(blocks, models.ChunkSeparator), nil
}

func parsePDF(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", err
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(pageText))
	}
	return strings.Join(pages, models.ChunkSeparator), nil
}

func parseDOCX(filePath string) (string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	var paragraphs []string
	for _, p := range docxParagraphRe.FindAllString(r.Editable().GetContent(), -1) {
		var sb strings.Builder
		for _, m := range docxTextRe.FindAllStringSubmatch(p, -1) {
			sb.WriteString(m[1])
		}
		if para := strings.TrimSpace(html.UnescapeString(sb.String())); para != "" {
			paragraphs = append(paragraphs, para)
		}
	}
	return strings.Join(paragraphs, models.ChunkSeparator), nil
}

func parsePPTX(filePath string) (string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	type slide struct {
		num  int
		text string
	}
	var slides []slide
	for _, file := range f.File {
		m := slideNameRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, text: extractSlideText(string(data))})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var blocks []string
	for _, s := range slides {
		if s.text != "" {
			blocks = append(blocks, s.text)
		}
	}
	return strings.Join(blocks, models.ChunkSeparator), nil
}

func extractSlideText(xmlContent string) string {
	var parts []string
	for _, m := range slideTextRe.FindAllStringSubmatch(xmlContent, -1) {
		parts = append(parts, html.UnescapeString(m[1]))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func parseXLSX(filePath string) (string, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return "", err
	}

	var sheets []string
	for _, sheet := range f.Sheets {
		var rows [][]string
		for _, row := range sheet.Rows {
			var cells []string
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			rows = append(rows, cells)
		}
		if block := sheetBlock(sheet.Name, rows); block != "" {
			sheets = append(sheets, block)
		}
	}
	return strings.Join(sheets, models.ChunkSeparator), nil
}

func parseXLSM(filePath string) (string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sheets []string
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		if block := sheetBlock(sheetName, rows); block != "" {
			sheets = append(sheets, block)
		}
	}
	return strings.Join(sheets, models.ChunkSeparator), nil
}

// sheetBlock renders a sheet as one paragraph: a title line then tab separated rows.
// Blank rows are dropped so a sheet never spans more than one chunk.
func sheetBlock(name string, rows [][]string) string {
	var text strings.Builder
	for _, row := range rows {
		line := strings.TrimSpace(strings.Join(row, "\t"))
		if line == "" {
			continue
		}
		text.WriteString("\n" + line)
	}
	if text.Len() == 0 {
		return ""
	}
	return fmt.Sprintf("## Sheet: %s%s", name, text.String())
}
