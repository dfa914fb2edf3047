package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
)

// SaveCsvResult 一次性将表格数据保存为 CSV
func SaveCsvResult(path string, data TabularData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer f.Close()

	// UTF-8 BOM，防止 Excel 打开乱码
	if _, err := f.WriteString("\xEF\xBB\xBF"); err != nil {
		return fmt.Errorf("failed to write csv file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(data.Headers()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	if err := w.WriteAll(data.Rows()); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// JsonReport JSON 导出的整体结构
type JsonReport struct {
	Summary  interface{} `json:"summary"`
	Outcomes interface{} `json:"outcomes"`
}

// SaveJsonResult 将扫描计数与命中结果保存为 JSON
func SaveJsonResult(path string, report JsonReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal json: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write json file: %w", err)
	}
	return nil
}
