package bundle

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/internal/model"
	nlog "github.com/yeisme/flowvault/pkg/log"
	"github.com/yeisme/flowvault/pkg/metrics"
)

// URLMap 相对路径到签名 URL 的映射.
type URLMap map[string]string

// Lookup 规范化引用后查找签名 URL.
func (m URLMap) Lookup(ref string) (string, bool) {
	key := Normalize(ref)
	if key == "" {
		return "", false
	}

	if u, ok := m[key]; ok {
		return u, true
	}

	u, ok := m["./"+key]

	return u, ok
}

// absolutePrefixes 以这些前缀开头的引用不做改写.
var absolutePrefixes = []string{"http://", "https://", "//", "data:", "blob:", "javascript:", "#"}

// IsAbsolute 判断引用是否指向包外资源.
func IsAbsolute(ref string) bool {
	for _, p := range absolutePrefixes {
		if strings.HasPrefix(ref, p) {
			return true
		}
	}

	return false
}

// Normalize 去掉开头的 "./"，并在首个 ? 或 # 处截断（位于开头时除外）.
func Normalize(ref string) string {
	ref = trimDotSlash(ref)

	if i := strings.IndexAny(ref, "?#"); i > 0 {
		ref = ref[:i]
	}

	return ref
}

// BuildURLMap 为所有有存储键的文件签发 URL.
// 签名失败只记录日志并跳过该文件，对应引用保持原样.
func BuildURLMap(ctx context.Context, files []model.File, signer Signer, expiry time.Duration, logger *zerolog.Logger) URLMap {
	if logger == nil {
		logger = nlog.Logger()
	}

	urls := make(URLMap, len(files)*2)

	for _, f := range files {
		if f.StorageKey == "" {
			continue
		}

		u, err := signer.Sign(ctx, f.StorageKey, expiry)
		if err != nil {
			metrics.SignFailures.Inc()
			logger.Warn().Err(err).Str("path", f.OriginalPath).Msg("sign url failed, reference left as is")

			continue
		}

		urls[f.OriginalPath] = u
		if !strings.HasPrefix(f.OriginalPath, "./") {
			urls["./"+f.OriginalPath] = u
		}
	}

	return urls
}

// referenceAttrs 需要改写的 (选择器, 属性).
var referenceAttrs = []struct {
	selector string
	attr     string
}{
	{"link[href]", "href"},
	{"script[src]", "src"},
	{"img[src]", "src"},
	{"a[href]", "href"},
	{"source[src]", "src"},
	{"object[data]", "data"},
	{"embed[src]", "src"},
}

var (
	cssURLPattern    = regexp.MustCompile(`(?i)url\(\s*(?:"([^"]*)"|'([^']*)'|([^'")]*?))\s*\)`)
	cssImportPattern = regexp.MustCompile(`(?i)(@import\s+)(?:"([^"]*)"|'([^']*)')`)
)

// Rewrite 解析 HTML 并把相对引用替换为 urls 中的签名 URL，找不到的引用保持不变.
func Rewrite(markup string, urls URLMap) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMarkupUnparseable, err)
	}

	for _, ra := range referenceAttrs {
		doc.Find(ra.selector).Each(func(_ int, s *goquery.Selection) {
			val, _ := s.Attr(ra.attr)
			if val == "" || IsAbsolute(val) {
				return
			}

			if u, ok := urls.Lookup(val); ok {
				s.SetAttr(ra.attr, u)
			}
		})
	}

	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					c.Data = RewriteCSS(c.Data, urls)
				}
			}
		}
	})

	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		val, _ := s.Attr("style")
		if val == "" {
			return
		}

		if out := RewriteCSS(val, urls); out != val {
			s.SetAttr("style", out)
		}
	})

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMarkupUnparseable, err)
	}

	return out, nil
}

// RewriteCSS 改写 CSS 文本中的 url(...) 与 @import "..." 引用.
// 替换通过回调完成，签名 URL 中的 $ 原样保留.
func RewriteCSS(css string, urls URLMap) string {
	css = cssURLPattern.ReplaceAllStringFunc(css, func(match string) string {
		ref := firstNonEmpty(cssURLPattern.FindStringSubmatch(match)[1:])
		if ref == "" || IsAbsolute(ref) {
			return match
		}

		if u, ok := urls.Lookup(ref); ok {
			return "url('" + u + "')"
		}

		return match
	})

	return cssImportPattern.ReplaceAllStringFunc(css, func(match string) string {
		sub := cssImportPattern.FindStringSubmatch(match)

		ref := firstNonEmpty(sub[2:])
		if ref == "" || IsAbsolute(ref) {
			return match
		}

		if u, ok := urls.Lookup(ref); ok {
			return sub[1] + "url('" + u + "')"
		}

		return match
	})
}

func firstNonEmpty(vals []string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	return ""
}

// Renderer 组合签名与改写.
type Renderer struct {
	signer Signer
	expiry time.Duration
	logger *zerolog.Logger
}

// NewRenderer 创建渲染器，expiry<=0 时使用默认签名有效期.
func NewRenderer(signer Signer, expiry time.Duration) *Renderer {
	if expiry <= 0 {
		expiry = time.Duration(configs.DefaultSignExpiry) * time.Second
	}

	return &Renderer{signer: signer, expiry: expiry, logger: nlog.Logger()}
}

// Expiry 返回签名有效期.
func (r *Renderer) Expiry() time.Duration {
	return r.expiry
}

// URLs 为文件集合构建路径映射.
func (r *Renderer) URLs(ctx context.Context, files []model.File) URLMap {
	return BuildURLMap(ctx, files, r.signer, r.expiry, r.logger)
}

// Render 为 markup 构建映射并改写，仅解析失败时返回错误.
func (r *Renderer) Render(ctx context.Context, markup string, files []model.File) (string, error) {
	return Rewrite(markup, r.URLs(ctx, files))
}
