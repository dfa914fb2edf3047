// 构建时通过 -ldflags 注入:
//
//	go build -ldflags "-X dracscan/internal/pkg/version.GitCommit=$(git rev-parse --short HEAD) \
//	  -X dracscan/internal/pkg/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/dracscan

package version

import "runtime"

var (
	Version   = "1.0.0" // 版本号 -- 发布时候更新版本号
	BuildTime string
	GitCommit string
	GoVersion = runtime.Version()
)

// GetFullVersion 带提交号的版本，未注入时只返回版本号
func GetFullVersion() string {
	if GitCommit == "" {
		return Version
	}
	return Version + "+" + GitCommit
}
