package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProbeStatus 单个主机探测的结论
type ProbeStatus int

const (
	ProbeStatusUndetermined ProbeStatus = iota // 超时或传输层错误，结论未知
	ProbeStatusRejected                        // 收到响应但默认凭据未生效
	ProbeStatusCompromised                     // 默认凭据登录成功
)

func (s ProbeStatus) String() string {
	switch s {
	case ProbeStatusCompromised:
		return "compromised"
	case ProbeStatusRejected:
		return "rejected"
	default:
		return "undetermined"
	}
}

// ProbeOutcome 命中记录，只在登录成功时产生，交给 Sink 后不再修改
type ProbeOutcome struct {
	ScanID      string    `json:"scan_id"`
	Host        string    `json:"host"`
	Compromised bool      `json:"compromised"`
	Username    string    `json:"username"`
	Password    string    `json:"password"`
	FoundAt     time.Time `json:"found_at"`
}

// Headers 实现 TabularData 接口
func (o ProbeOutcome) Headers() []string {
	return []string{"Host", "Username", "Password", "Found At"}
}

// Rows 实现 TabularData 接口
func (o ProbeOutcome) Rows() [][]string {
	return [][]string{{o.Host, o.Username, o.Password, o.FoundAt.Format("2006-01-02 15:04:05")}}
}

// Notice 面向人的命中提示，包含主机和凭据
func (o ProbeOutcome) Notice() string {
	return fmt.Sprintf("Dell DRAC compromised! Credentials: %s:%s for IP: %s", o.Username, o.Password, o.Host)
}

// ProbeOutcomes 结果集合，用于一次性打印/导出
type ProbeOutcomes []ProbeOutcome

// Headers 实现 TabularData 接口
func (rs ProbeOutcomes) Headers() []string {
	return ProbeOutcome{}.Headers()
}

// Rows 实现 TabularData 接口
func (rs ProbeOutcomes) Rows() [][]string {
	var rows [][]string
	for _, o := range rs {
		rows = append(rows, o.Rows()...)
	}
	return rows
}

// ProbeResult 单个探测任务的返回值。
// Outcome 仅在 Compromised 时非空；Err 仅在 Undetermined 时非空。
// 探测失败只体现在这里，不会越过任务边界。
type ProbeResult struct {
	Host    string
	Status  ProbeStatus
	Outcome *ProbeOutcome
	Err     error
}

// ScanSummary 一次扫描的计数
type ScanSummary struct {
	ScanID       string        `json:"scan_id"`
	Target       string        `json:"target"`
	Dispatched   int64         `json:"dispatched"`
	Completed    int64         `json:"completed"`
	Compromised  int64         `json:"compromised"`
	Rejected     int64         `json:"rejected"`
	Undetermined int64         `json:"undetermined"`
	Duration     time.Duration `json:"duration"`
}

// Headers 实现 TabularData 接口
func (s ScanSummary) Headers() []string {
	return []string{"Target", "Dispatched", "Completed", "Compromised", "Rejected", "Undetermined", "Duration"}
}

// Rows 实现 TabularData 接口
func (s ScanSummary) Rows() [][]string {
	return [][]string{{
		s.Target,
		fmt.Sprintf("%d", s.Dispatched),
		fmt.Sprintf("%d", s.Completed),
		fmt.Sprintf("%d", s.Compromised),
		fmt.Sprintf("%d", s.Rejected),
		fmt.Sprintf("%d", s.Undetermined),
		s.Duration.Round(time.Millisecond).String(),
	}}
}

// NewScanID 生成扫描 ID，用于关联日志和导出结果
func NewScanID() string {
	return uuid.NewString()
}
