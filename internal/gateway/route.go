package gateway

import (
	"cmp"
	"errors"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"
)

// 転送先サービスの識別子。
const (
	ServiceUser         = "user"
	ServiceCourse       = "course"
	ServiceEnrollment   = "enrollment"
	ServiceProgress     = "progress"
	ServiceNotification = "notification"
)

// RewriteRule は公開パスを転送先パスに書き換える規則。
// Prefixで始まるパスのPrefix部分をReplacementに置き換える。Replacementが空の場合は単純な除去になる。
type RewriteRule struct {
	// Prefix は置き換え対象の先頭部分。
	Prefix string
	// Replacement はPrefixの代わりに付与する文字列。
	Replacement string
}

// StripPrefix はprefixを除去する規則を返す。
func StripPrefix(prefix string) RewriteRule {
	return RewriteRule{Prefix: prefix}
}

// ReplacePrefix はprefixをreplacementに置き換える規則を返す。
func ReplacePrefix(prefix, replacement string) RewriteRule {
	return RewriteRule{Prefix: prefix, Replacement: replacement}
}

// Rewrite はpathにruleを適用した転送先パスを返す。
// 同じ入力には常に同じ結果を返し、結果は必ず "/" で始まる空でないパスになる。
// 書き換え後が空の場合は転送先のルート "/" を返す。
func Rewrite(path string, rule RewriteRule) string {
	rest := path
	if rule.Prefix != "" && strings.HasPrefix(path, rule.Prefix) {
		rest = rule.Replacement + path[len(rule.Prefix):]
	}
	if rest == "" {
		return "/"
	}
	if !strings.HasPrefix(rest, "/") {
		return "/" + rest
	}
	return rest
}

// Route は公開パスのプレフィックスと転送先の対応。
type Route struct {
	// Prefix は公開パスのプレフィックス（例: "/api/courses"）。
	Prefix string
	// Service は転送先サービスの識別子。
	Service string
	// Target は転送先サービスのベースURL。
	Target *url.URL
	// Rewrite はパスの書き換え規則。
	Rewrite RewriteRule
	// Public がtrueの場合はトークン検証を行わずに転送する。
	Public bool
}

// matches はpathがルートのプレフィックスにセグメント境界で一致するかを返す。
// "/api/courses" は "/api/courses" と "/api/courses/1" に一致し、"/api/coursesx" には一致しない。
func (r Route) matches(path string) bool {
	if r.Prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	return path == r.Prefix || strings.HasPrefix(path, r.Prefix+"/")
}

// RouteTable は起動時に構築される不変のルートテーブル。
// 複数のリクエストから同時に参照されるが、構築後に変更されることはない。
type RouteTable struct {
	routes []Route
}

// NewRouteTable はルートを検証し、最長一致の順に並べたテーブルを生成する。
func NewRouteTable(routes ...Route) (*RouteTable, error) {
	if len(routes) == 0 {
		return nil, errors.New("ルートが1件も定義されていません")
	}

	seen := make(map[string]struct{}, len(routes))
	sorted := make([]Route, 0, len(routes))
	for _, r := range routes {
		if !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("プレフィックスは/で始まる必要があります: %q", r.Prefix)
		}
		if r.Prefix != "/" && strings.HasSuffix(r.Prefix, "/") {
			return nil, fmt.Errorf("プレフィックスの末尾に/は付けられません: %q", r.Prefix)
		}
		if _, dup := seen[r.Prefix]; dup {
			return nil, fmt.Errorf("プレフィックスが重複しています: %q", r.Prefix)
		}
		if r.Target == nil || r.Target.Scheme == "" || r.Target.Host == "" {
			return nil, fmt.Errorf("転送先URLが不正です: prefix=%q", r.Prefix)
		}
		seen[r.Prefix] = struct{}{}
		sorted = append(sorted, r)
	}

	slices.SortStableFunc(sorted, func(a, b Route) int {
		return cmp.Compare(len(b.Prefix), len(a.Prefix))
	})
	return &RouteTable{routes: sorted}, nil
}

// Match はpathに最長一致するルートを返す。
// . や .. の要素、連続したスラッシュを含むパスはどのルートにも一致しない。
func (t *RouteTable) Match(path string) (Route, bool) {
	if !isCanonicalPath(path) {
		return Route{}, false
	}
	for _, r := range t.routes {
		if r.matches(path) {
			return r, true
		}
	}
	return Route{}, false
}

// isCanonicalPath はpが正規化済みのパスかどうかを返す。末尾のスラッシュは許容する。
func isCanonicalPath(p string) bool {
	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned == p
}

// Services は転送先サービスの識別子を重複なく昇順で返す。
func (t *RouteTable) Services() []string {
	services := make([]string, 0, len(t.routes))
	for _, r := range t.routes {
		if !slices.Contains(services, r.Service) {
			services = append(services, r.Service)
		}
	}
	slices.Sort(services)
	return services
}

// DefaultRoutes は設定から標準のルート定義を組み立てる。
// /api/auth のみ公開ルートで、それ以外はトークン検証が必要になる。
// /api/modules はコースサービスのサブリソースであり、/api だけを除去して /modules/... として転送する。
func DefaultRoutes(cfg Config) ([]Route, error) {
	defs := []struct {
		prefix  string
		service string
		rawURL  string
		rewrite RewriteRule
		public  bool
	}{
		{"/api/auth", ServiceUser, cfg.UserServiceURL, ReplacePrefix("/api/auth", "/auth"), true},
		{"/api/users", ServiceUser, cfg.UserServiceURL, StripPrefix("/api/users"), false},
		{"/api/courses", ServiceCourse, cfg.CourseServiceURL, StripPrefix("/api/courses"), false},
		{"/api/modules", ServiceCourse, cfg.CourseServiceURL, StripPrefix("/api"), false},
		{"/api/enrollments", ServiceEnrollment, cfg.EnrollmentServiceURL, StripPrefix("/api/enrollments"), false},
		{"/api/progress", ServiceProgress, cfg.ProgressServiceURL, StripPrefix("/api/progress"), false},
		{"/api/notifications", ServiceNotification, cfg.NotificationServiceURL, StripPrefix("/api/notifications"), false},
	}

	routes := make([]Route, 0, len(defs))
	for _, d := range defs {
		target, err := url.Parse(d.rawURL)
		if err != nil {
			return nil, fmt.Errorf("%sサービスのURLが不正です: %w", d.service, err)
		}
		routes = append(routes, Route{
			Prefix:  d.prefix,
			Service: d.service,
			Target:  target,
			Rewrite: d.rewrite,
			Public:  d.public,
		})
	}
	return routes, nil
}
