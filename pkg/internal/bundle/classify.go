package bundle

import (
	"path"
	"strings"

	"github.com/yeisme/flowvault/pkg/internal/model"
)

// Kind 文件内容类别.
type Kind = model.FileKind

const (
	KindMarkup     = model.KindMarkup
	KindStylesheet = model.KindStylesheet
	KindScript     = model.KindScript
	KindImage      = model.KindImage
	KindDocument   = model.KindDocument
	KindOther      = model.KindOther
)

// MimeOctetStream 未知类型的默认 MIME.
const MimeOctetStream = "application/octet-stream"

type classification struct {
	kind Kind
	mime string
}

// extensions 扩展名（小写，不含点）到类别与 MIME 的映射.
var extensions = map[string]classification{
	"html": {KindMarkup, "text/html"},
	"htm":  {KindMarkup, "text/html"},
	"css":  {KindStylesheet, "text/css"},
	"js":   {KindScript, "application/javascript"},
	"pdf":  {KindDocument, "application/pdf"},

	"png":  {KindImage, "image/png"},
	"jpg":  {KindImage, "image/jpeg"},
	"jpeg": {KindImage, "image/jpeg"},
	"gif":  {KindImage, "image/gif"},
	"svg":  {KindImage, "image/svg+xml"},
	"bmp":  {KindImage, "image/bmp"},
	"ico":  {KindImage, "image/x-icon"},
	"webp": {KindImage, "image/webp"},

	"woff":  {KindOther, "font/woff"},
	"woff2": {KindOther, "font/woff2"},
	"ttf":   {KindOther, "font/ttf"},
	"eot":   {KindOther, "application/vnd.ms-fontobject"},
	"otf":   {KindOther, "font/otf"},

	"json": {KindOther, "application/json"},
	"xml":  {KindOther, "application/xml"},
	"bpm":  {KindOther, MimeOctetStream},
	"bpmn": {KindOther, MimeOctetStream},
}

// Classify 按扩展名判断文件类别与 MIME，未知扩展名返回 other.
func Classify(name string) (Kind, string) {
	if c, ok := extensions[Ext(name)]; ok {
		return c.kind, c.mime
	}

	return KindOther, MimeOctetStream
}

// Ext 返回文件名最后一个点之后的小写扩展名，没有扩展名时为空.
func Ext(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))

	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return ""
	}

	return strings.ToLower(base[i+1:])
}
