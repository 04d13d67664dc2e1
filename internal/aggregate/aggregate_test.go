package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"

	"validator-commission-alerts/internal/classifier"
)

func TestBuildGapFilling(t *testing.T) {
	events := []EventRef{
		{VoteAccount: "val-a", Epoch: 100, Metric: classifier.MetricInflation},
		{VoteAccount: "val-b", Epoch: 104, Metric: classifier.MetricMev},
	}
	report := Build(events, 100, 105)
	if len(report.Rows) != 6 {
		t.Fatalf("期望 6 行, 实际 %d", len(report.Rows))
	}
	for i, row := range report.Rows {
		if row.Epoch != 100+uint64(i) {
			t.Fatalf("第 %d 行 epoch 应为 %d, 实际 %d", i, 100+i, row.Epoch)
		}
	}
	if report.Rows[0].Unique != 1 || report.Rows[0].Commission != 1 || report.Rows[0].Mev != 0 {
		t.Fatalf("epoch 100 统计不正确: %+v", report.Rows[0])
	}
	if report.Rows[4].Unique != 1 || report.Rows[4].Mev != 1 {
		t.Fatalf("epoch 104 统计不正确: %+v", report.Rows[4])
	}
	for _, i := range []int{1, 2, 3, 5} {
		if report.Rows[i].Unique != 0 {
			t.Fatalf("epoch %d 应为零值行, 实际 %+v", report.Rows[i].Epoch, report.Rows[i])
		}
	}
}

func TestBuildUnionAndIntersection(t *testing.T) {
	events := []EventRef{
		{VoteAccount: "val-a", Epoch: 7, Metric: classifier.MetricInflation},
		{VoteAccount: "val-a", Epoch: 7, Metric: classifier.MetricMev},
		{VoteAccount: "val-b", Epoch: 7, Metric: classifier.MetricInflation},
		{VoteAccount: "val-c", Epoch: 7, Metric: classifier.MetricMev},
		// 同一键重复引用只计一次
		{VoteAccount: "val-c", Epoch: 7, Metric: classifier.MetricMev},
	}
	report := Build(events, 7, 7)
	row := report.Rows[0]
	if row.Unique != 3 {
		t.Fatalf("期望 unique 3, 实际 %d", row.Unique)
	}
	if row.Commission != 2 || row.Mev != 2 {
		t.Fatalf("期望 commission 2 / mev 2, 实际 %d / %d", row.Commission, row.Mev)
	}
	if row.Both != 1 {
		t.Fatalf("期望 both 1, 实际 %d", row.Both)
	}
	// unique = commission + mev - both
	if row.Unique != row.Commission+row.Mev-row.Both {
		t.Fatalf("集合算术不自洽: %+v", row)
	}
}

func TestBuildRepeatOffenders(t *testing.T) {
	events := []EventRef{
		{VoteAccount: "val-a", Epoch: 50, Metric: classifier.MetricInflation},
		{VoteAccount: "val-a", Epoch: 80, Metric: classifier.MetricInflation},
		{VoteAccount: "val-b", Epoch: 60, Metric: classifier.MetricMev},
	}
	report := Build(events, 50, 52)
	if report.RepeatOffenders != 1 {
		t.Fatalf("期望 1 个重复作恶者, 实际 %d", report.RepeatOffenders)
	}
	if report.TotalValidators != 2 {
		t.Fatalf("期望 2 个作恶者, 实际 %d", report.TotalValidators)
	}
	if report.TotalEpochsTracked != 31 {
		t.Fatalf("期望跟踪 31 个 epoch, 实际 %d", report.TotalEpochsTracked)
	}
	if report.PeakPerEpoch != 1 {
		t.Fatalf("期望峰值 1, 实际 %d", report.PeakPerEpoch)
	}
	want := decimal.NewFromInt(2).DivRound(decimal.NewFromInt(31), 2)
	if !report.AvgPerEpoch.Equal(want) {
		t.Fatalf("期望均值 %s, 实际 %s", want, report.AvgPerEpoch)
	}
	// 窗口外的 epoch 不产生行
	if len(report.Rows) != 3 || report.Rows[0].Epoch != 50 || report.Rows[2].Epoch != 52 {
		t.Fatalf("窗口行不正确: %+v", report.Rows)
	}
}

func TestBuildEmptyHistory(t *testing.T) {
	report := Build(nil, 10, 12)
	if len(report.Rows) != 3 {
		t.Fatalf("空历史仍应补零, 实际 %d 行", len(report.Rows))
	}
	if report.TotalEpochsTracked != 0 || report.PeakPerEpoch != 0 {
		t.Fatalf("空历史全局统计应为零: %+v", report)
	}
	if !report.AvgPerEpoch.IsZero() {
		t.Fatalf("空历史均值应为 0, 实际 %s", report.AvgPerEpoch)
	}
}

func TestBuildInvertedWindow(t *testing.T) {
	report := Build(nil, 12, 10)
	if len(report.Rows) != 0 {
		t.Fatalf("倒置窗口不应产生行, 实际 %d", len(report.Rows))
	}
}
