package reporter

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"

	"dracscan/internal/core/model"
)

// ConsoleReporter 控制台输出，每个命中立即打印一行
type ConsoleReporter struct {
	printer pterm.PrefixPrinter
}

func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{printer: pterm.Success}
}

func (r *ConsoleReporter) Report(ctx context.Context, outcome model.ProbeOutcome) error {
	r.printer.Println(outcome.Notice())
	return nil
}

// PrintOutcomes 扫描结束后汇总打印命中表格
func (r *ConsoleReporter) PrintOutcomes(outcomes model.ProbeOutcomes) error {
	if len(outcomes) == 0 {
		pterm.Info.Println("No host accepted the default credentials.")
		return nil
	}
	return printTable(outcomes)
}

// PrintSummary 打印扫描计数
func (r *ConsoleReporter) PrintSummary(summary model.ScanSummary) error {
	return printTable(summary)
}

func printTable(data TabularData) error {
	tableData := pterm.TableData{data.Headers()}
	tableData = append(tableData, data.Rows()...)

	err := pterm.DefaultTable.
		WithHasHeader(true).
		WithBoxed(false).
		WithData(tableData).
		Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}
